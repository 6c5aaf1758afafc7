package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/tenant-auth-gateway/internal/config"
	"github.com/iliyamo/tenant-auth-gateway/internal/logging"
)

// global flags
var (
	envFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "authgw",
	Short: "Multi-tenant authentication gateway",
	Long: `authgw verifies bearer tokens issued by the Identity Gateway, resolves
the account a request acts on (including impersonation of sub-accounts)
and caches user and account records encrypted in Redis.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envErr := loadEnv(envFile)
		level, format := logLevel, logFormat
		if !cmd.Flags().Changed("log-level") {
			level = orEnv("LOG_LEVEL", level)
		}
		if !cmd.Flags().Changed("log-format") {
			format = orEnv("LOG_FORMAT", format)
		}
		logging.Init(level, format)
		return envErr // reported after logging is initialised
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("execution failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load (missing file is ignored)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

// loadEnv loads path into the environment without overriding variables
// that are already set.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func orEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
