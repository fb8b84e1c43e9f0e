package main

import (
	"fmt"

	"github.com/aretw0/yol/internal/cli"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <runner>",
	Short: "Print the chain of a runner as a Mermaid flowchart",
	Long: `Print the chain of a runner as a Mermaid flowchart.
States already passed and the persisted state are highlighted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, stores, logger, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		registry, err := cli.BuildRegistry(cfg, stores, logger)
		if err != nil {
			return err
		}
		runner, ok := registry.Lookup(args[0])
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrRunnerNotFound, args[0])
		}

		chart, err := runner.Mermaid(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), chart)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
