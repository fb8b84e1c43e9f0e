package main

import (
	"github.com/aretw0/yol/internal/cli"
	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Read or repair the persisted state of a runner",
	Long: `Read or repair the persisted state of a runner.

A runner whose state is no longer part of its chain stops with an unknown state
error; "state set" and "state reset" move it back onto the chain.`,
}

var stateGetCmd = &cobra.Command{
	Use:   "get <runner>",
	Short: "Print the persisted state of a runner",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, stores, _, err := openStores(cmd)
		if err != nil {
			return err
		}
		defer stores.Close()

		state, found, err := cli.ReadState(cmd.Context(), stores.State, args[0])
		if err != nil {
			return err
		}
		if !found {
			cli.PrintSystemMessage(cmd.OutOrStdout(), "%s has never run: %s", args[0], cli.DisplayState(state))
			return nil
		}
		cli.PrintSystemMessage(cmd.OutOrStdout(), "%s is at %s", args[0], cli.DisplayState(state))
		return nil
	},
}

var stateSetCmd = &cobra.Command{
	Use:   "set <runner> <state>",
	Short: "Move the persisted state of a runner",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeState(cmd, args[0], args[1])
	},
}

var stateResetCmd = &cobra.Command{
	Use:   "reset <runner>",
	Short: "Move a runner back to the initial state; every transition runs again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeState(cmd, args[0], "")
	},
}

func writeState(cmd *cobra.Command, runner, value string) error {
	_, stores, logger, err := openStores(cmd)
	if err != nil {
		return err
	}
	defer stores.Close()

	var expected *string
	if cmd.Flags().Changed("expect") {
		e, _ := cmd.Flags().GetString("expect")
		expected = &e
	}

	previous, err := cli.WriteState(cmd.Context(), stores.State, runner, expected, value)
	if err != nil {
		return err
	}

	logger.Info("State written", "runner", runner, "from", previous, "to", value)
	cli.PrintSystemMessage(cmd.OutOrStdout(), "%s moved from %s to %s", runner, cli.DisplayState(previous), cli.DisplayState(value))
	return nil
}

func init() {
	for _, c := range []*cobra.Command{stateSetCmd, stateResetCmd} {
		c.Flags().String("expect", "", "Only write if the current state is this one")
	}
	stateCmd.AddCommand(stateGetCmd, stateSetCmd, stateResetCmd)
	rootCmd.AddCommand(stateCmd)
}
