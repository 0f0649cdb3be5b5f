// Package cmd provides the CLI commands of the display service.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-results-display/pkg/logger"
)

// NewRootCmd creates the root command of the display CLI.
func NewRootCmd() *cobra.Command {
	var configPath string
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:           "display",
		Short:         "Paginated, highlighted search-results display service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			*cfg = *loaded
			logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults and SD_* env when empty)")

	cmd.AddCommand(newServeCmd(cfg))
	cmd.AddCommand(newTermsCmd())
	cmd.AddCommand(newClassifyCmd())
	cmd.AddCommand(newAnalyticsCmd(cfg))
	cmd.AddCommand(newLoadTestCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
