package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/icplabs/subaccount-sweeper/cmd/indexer/cli"
)

func main() {
	rootCmd := &cobra.Command{Use: "indexer"}
	rootCmd.PersistentFlags().String("config", "", "not read: config files are always looked up in ./cmd/config and ./config")
	rootCmd.PersistentFlags().String("env", "", "config environment overlay name")
	rootCmd.AddCommand(cli.EngineCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
