package main

import (
	"os"

	"github.com/cottand/traitsolve/cmd"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "traitsolve [subcommand]",
	Short:        "traitsolve\n a recursive solver for trait goals",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(cmd.SolveCmd)
}
