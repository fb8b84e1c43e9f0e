package main

import (
	"fmt"

	"github.com/aretw0/yol"
	"github.com/aretw0/yol/internal/cli"
	"github.com/spf13/cobra"
)

var legacyCmd = &cobra.Command{
	Use:   "legacy",
	Short: "Migrate states kept in plain text files",
}

var legacyImportCmd = &cobra.Command{
	Use:   "import <runner> [file]",
	Short: "Copy a legacy state file into the store",
	Long: `Copy a legacy state file into the store.

The file defaults to runners.<runner>.legacy_state_file of the configuration.
Nothing is written when the store already holds a state for the runner.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, stores, logger, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		name := args[0]
		var path string
		if len(args) == 2 {
			path = args[1]
		} else if rc, ok := cfg.Runner(name); ok {
			path = rc.LegacyStateFile
		}
		if path == "" {
			return fmt.Errorf("no legacy state file configured for %q", name)
		}

		runner := yol.New(name,
			yol.WithStore(stores.State),
			yol.WithLogger(logger),
			yol.WithLegacyStateFile(path),
		)
		imported, err := runner.ImportLegacyState(cmd.Context())
		if err != nil {
			return err
		}

		state, err := runner.CurrentState(cmd.Context())
		if err != nil {
			return err
		}
		if imported {
			cli.PrintSystemMessage(cmd.OutOrStdout(), "Imported %s for %s", cli.DisplayState(state), name)
		} else {
			cli.PrintSystemMessage(cmd.OutOrStdout(), "Nothing to import; %s is at %s", name, cli.DisplayState(state))
		}
		return nil
	},
}

func init() {
	legacyCmd.AddCommand(legacyImportCmd)
	rootCmd.AddCommand(legacyCmd)
}
