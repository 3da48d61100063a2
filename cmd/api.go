package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psds-microservice/issue-tracker/internal/application"
	"github.com/psds-microservice/issue-tracker/internal/config"
	"github.com/psds-microservice/issue-tracker/internal/logging"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the HTTP API",
	RunE:  runAPI,
}

func init() {
	apiCmd.Flags().String("port", "", "HTTP port (overrides APP_PORT)")
	_ = viper.BindPFlag("http_port", apiCmd.Flags().Lookup("port"))
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := application.NewAPI(ctx, cfg, log)
	if err != nil {
		return err
	}
	return api.Run(ctx)
}

// loadConfig resolves and validates the configuration and installs the default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log := logging.New(os.Stderr, cfg.AppEnv, cfg.LogLevel)
	slog.SetDefault(log)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, log, nil
}
