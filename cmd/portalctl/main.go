package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "portalctl",
		Short:        "Care portal operator tools",
		SilenceUsage: true,
	}
	cmd.AddCommand(inventoryCmd())
	cmd.AddCommand(qrCmd())
	cmd.AddCommand(stockCmd())
	return cmd
}
