package main

import (
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vukmarkovic/Europace-sub000/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API and the sync task consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, flush, err := setup(envFile)
			if err != nil {
				return err
			}
			defer flush()
			return serve(cmd.Context(), cfg, logger)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and seed the field catalog, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, flush, err := setup(envFile)
			if err != nil {
				return err
			}
			defer flush()
			return migrate(cmd.Context(), cfg, logger)
		},
	}

	root := &cobra.Command{
		Use:           "clover",
		Short:         "Bitrix24 to Europace field matching service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file read before the environment")
	root.AddCommand(serveCmd, migrateCmd)
	return root
}

func setup(envFile string) (*config.Config, ectologger.Logger, func(), error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, nil, err
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.IsLocal() {
		zapConfig = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, nil, nil, err
	}
	flush := func() { _ = zapLogger.Sync() }
	return cfg, zapadapter.NewZapEctoLogger(zapLogger, nil), flush, nil
}
