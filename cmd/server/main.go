package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Skelmis/Template-Website/internal/alerts"
	"github.com/Skelmis/Template-Website/internal/config"
	"github.com/Skelmis/Template-Website/internal/server"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   os.Args[0] + " [--config FILE]",
	Short: "CRUD API server with cursor pagination and dynamic search",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		sugar := logger.Sugar()

		db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}

		if err := db.AutoMigrate(&alerts.User{}, &alerts.Alert{}); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}

		srv, err := server.New(cfg, db, sugar)
		if err != nil {
			return err
		}

		sugar.Infow("listening", "addr", cfg.Addr)
		return http.ListenAndServe(cfg.Addr, srv.Handler())
	},
}

func newLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	return cfg.Build()
}

func main() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "path to the config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
