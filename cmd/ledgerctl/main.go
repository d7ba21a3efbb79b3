package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "ledgerctl",
		Short:   "Operator tool for the STK relay payment ledger",
		Version: Version,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(pendingCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
