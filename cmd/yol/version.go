package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/yol"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of yol",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "yol version %s\n", strings.TrimSpace(yol.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
