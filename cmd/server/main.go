package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/linechat-server/internal/app"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath     string
		listenAddr  string
		adminAddr   string
		storagePath string
		logLevel    string
	)

	cmd := &cobra.Command{
		Use:   "linechat-server",
		Short: "Text-line chat server with registration, broadcast, and whispers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.New(logLevel)

			cfg, path, err := config.Load(logger, cfgPath)
			if err != nil {
				logger.Error().Err(err).Str("path", path).Msg("failed to load config")
				return err
			}

			// Flags win over file and env.
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("admin-addr") {
				cfg.Admin.Addr = adminAddr
				cfg.Admin.Enabled = true
			}
			if cmd.Flags().Changed("storage-path") {
				cfg.Storage.Path = storagePath
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			logger = log.New(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to build application")
				return err
			}

			logger.Info().Str("addr", cfg.ListenAddr).Msg("starting linechat server")
			if err := application.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("server exited with error")
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to config.yaml")
	cmd.Flags().StringVar(&listenAddr, "addr", "", "chat listen address (overrides config)")
	cmd.Flags().StringVar(&adminAddr, "admin-addr", "", "admin HTTP address (enables the admin server)")
	cmd.Flags().StringVar(&storagePath, "storage-path", "", "account storage path (overrides config)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}
