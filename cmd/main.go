package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var serviceVersion = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:          "financeiq",
		Short:        "Chart overlays and research tools on top of the FinanceIQ analytics backend",
		Version:      serviceVersion,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	load := func() (*app, error) {
		a, err := newApp(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize: %w", err)
		}
		return a, nil
	}

	rootCmd.AddCommand(
		newServeCmd(load),
		newOverlayCmd(load),
		newChatCmd(load),
		newAgentsCmd(load),
		newRefreshCmd(load),
		newResearchCmd(load),
		newSearchCmd(load),
	)
	return rootCmd
}
