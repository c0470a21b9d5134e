// Package cmd implements the actionreg command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/actionreg/internal/config"
	"github.com/zjrosen/actionreg/internal/log"
	"github.com/zjrosen/actionreg/internal/requestctx"
)

const (
	envPrefix         = "ACTIONREG"
	localConfigPath   = ".actionreg/config.yaml"
	defaultConfigName = "config"
)

var (
	version      = "dev"
	cfgFile      string
	cfg          config.Config
	verbose      bool
	outputFormat string
	projectID    string
	userID       string
)

var rootCmd = &cobra.Command{
	Use:   "actionreg",
	Short: "Register, revise and resolve workflow actions",
	Long: `actionreg manages a registry of named actions.

Actions are declared in YAML definition documents and registered in one
transaction per document: either every action in the document is stored or
none is. System actions are seeded from a built-in catalog and can never be
modified through registration.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: .actionreg/config.yaml or ~/.config/actionreg/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"mirror log output to stderr")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json",
		"output format: json or table")
	rootCmd.PersistentFlags().StringVar(&projectID, "project", "",
		"project id attached to registered actions when auth-enable is on (env ACTIONREG_PROJECT)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "",
		"user id the trust is issued for when auth-enable is on (env ACTIONREG_USER)")
	rootCmd.PersistentFlags().String("db", "",
		"SQLite database path (overrides storage.path)")
}

func initConfig() {
	_ = viper.BindPFlag("storage.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))

	defaults := config.Defaults()
	viper.SetDefault("storage.driver", defaults.Storage.Driver)
	viper.SetDefault("storage.path", defaults.Storage.Path)
	viper.SetDefault("trust.issuer", defaults.Trust.Issuer)
	viper.SetDefault("trust.ttl", defaults.Trust.TTL)
	viper.SetDefault("cache.ttl", defaults.Cache.TTL)
	viper.SetDefault("cache.cleanup_interval", defaults.Cache.CleanupInterval)
	viper.SetDefault("watch.debounce", defaults.Watch.Debounce)
	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.file_path", defaults.Tracing.FilePath)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	for name, on := range defaults.Flags {
		viper.SetDefault("flags."+name, on)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .actionreg/config.yaml (current directory)
		// 2. ~/.config/actionreg/config.yaml (user config)
		if _, err := os.Stat(localConfigPath); err == nil {
			viper.SetConfigFile(localConfigPath)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "actionreg"))
			viper.SetConfigName(defaultConfigName)
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// No config file found anywhere; continue with defaults.
			log.Debug(log.CatConfig, "No config file found, using defaults")
		} else {
			log.Warn(log.CatConfig, "Failed to read config", "error", err)
		}
	}

	cfg = config.Defaults()
	if err := viper.Unmarshal(&cfg); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to decode config", err)
	}
}

// setup validates configuration and starts logging before any subcommand.
func setup(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	switch {
	case cfg.Log.Path != "":
		cleanup, err := log.Init(cfg.Log.Path)
		if err != nil {
			return fmt.Errorf("initializing logging: %w", err)
		}
		cobra.OnFinalize(cleanup)
	case verbose:
		log.InitWriter(nil)
	}
	log.SetMinLevel(log.ParseLevel(cfg.Log.Level))

	if verbose {
		mirrorLogs(cmd.Context(), cmd.ErrOrStderr())
	}

	log.Debug(log.CatCLI, "Command starting", "command", cmd.CommandPath(), "config", viper.ConfigFileUsed())
	return nil
}

// requestContext carries the caller's project and user ids to the
// registration service.
func requestContext(ctx context.Context) context.Context {
	if p := viper.GetString("project"); p != "" {
		ctx = requestctx.WithProjectID(ctx, p)
	}
	if u := viper.GetString("user"); u != "" {
		ctx = requestctx.WithUserID(ctx, u)
	}
	return ctx
}

// configPath returns the config file in use, defaulting to the local path.
func configPath() string {
	if p := viper.ConfigFileUsed(); p != "" {
		return p
	}
	if cfgFile != "" {
		return cfgFile
	}
	return localConfigPath
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
