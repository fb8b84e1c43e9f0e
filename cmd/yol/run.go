package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/yol"
	"github.com/aretw0/yol/internal/cli"
	"github.com/aretw0/yol/pkg/domain"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [runner...]",
	Short: "Run the steps configured for runners",
	Long: `Run the steps configured under runners.<name>.steps, resuming each runner
from its persisted state. Without arguments every configured runner runs.`,
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

		runners := registry.Runners()
		if len(args) > 0 {
			runners = runners[:0]
			for _, name := range args {
				r, ok := registry.Lookup(name)
				if !ok {
					return fmt.Errorf("%w: %q", domain.ErrRunnerNotFound, name)
				}
				runners = append(runners, r)
			}
		}
		if len(runners) == 0 {
			cli.PrintSystemMessage(cmd.OutOrStdout(), "No runner declares steps")
			return nil
		}

		var errs []error
		for _, r := range runners {
			report, err := r.Run(cmd.Context())
			if err != nil {
				errs = append(errs, fmt.Errorf("runner %q: %w", r.Name(), err))
				cli.PrintSystemMessage(cmd.OutOrStdout(), "%s failed: %v", r.Name(), err)
				continue
			}
			printReport(cmd, r, report)
		}
		return errors.Join(errs...)
	},
}

func printReport(cmd *cobra.Command, r *yol.Runner, report *domain.RunReport) {
	if len(report.Applied) == 0 {
		cli.PrintSystemMessage(cmd.OutOrStdout(), "%s is up to date at %s", r.Name(), cli.DisplayState(report.To))
		return
	}
	cli.PrintSystemMessage(cmd.OutOrStdout(), "%s moved from %s to %s (%d steps)",
		r.Name(), cli.DisplayState(report.From), cli.DisplayState(report.To), len(report.Applied))
}

func init() {
	rootCmd.AddCommand(runCmd)
}
