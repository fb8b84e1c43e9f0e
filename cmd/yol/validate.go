package main

import (
	"github.com/aretw0/yol/internal/cli"
	"github.com/spf13/cobra"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Check the configuration and connect to its store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, stores, _, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		if _, _, err := stores.State.Get(cmd.Context(), "yol.validate-config"); err != nil {
			return err
		}

		cli.PrintSystemMessage(cmd.OutOrStdout(), "Configuration OK (store: %s, runners: %d)", cfg.Driver(), len(cfg.Runners))
		for name := range cfg.Runners {
			if identity, ok := cfg.IdentityFor(name); ok {
				cli.PrintSystemMessage(cmd.OutOrStdout(), "%s runs as %q", name, identity)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}
