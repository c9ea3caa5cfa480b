// Package main is the entry point for the manivault session server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/app"
	"github.com/dshills/manivault/internal/config"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "manivault",
		Short:         "Data, hierarchy and action registries for analysis sessions",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("manivault %s\nCommit: %s\nBuilt: %s\n", version, commit, date))

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file (default ~/.manivault/config.toml)")
	pf.StringVar(&flags.envFile, "env-file", "", "Path to .env file (default next to the configuration file)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCommand(flags),
		newPluginsCommand(flags),
		newInspectCommand(),
	)
	return root
}

// loadConfig reads the configuration store and applies flag overrides.
func (f *globalFlags) loadConfig() (*config.Store, *config.Config, error) {
	opts := []config.Option{}
	if f.configPath != "" {
		opts = append(opts, config.WithPath(f.configPath))
	}
	if f.envFile != "" {
		opts = append(opts, config.WithEnvFile(f.envFile))
	}
	store, err := config.Load(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	cfg := f.override(store.Config())
	if err := cfg.Validate(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, cfg, nil
}

func (f *globalFlags) override(cfg *config.Config) *config.Config {
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	return cfg
}

// newCore builds the logging and the core for a command.
func (f *globalFlags) newCore(cmd *cobra.Command) (*config.Store, *app.Logging, *app.Core, error) {
	store, cfg, err := f.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logging, err := app.NewLogging(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}
	core, err := app.New(cmd.Context(), app.Options{Config: cfg, Logger: logging.Logger})
	if err != nil {
		_ = logging.Logger.Sync()
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("initialize: %w", err)
	}
	logging.Logger.Debug("core ready", zap.String("config", store.Path()), zap.String("version", version))
	return store, logging, core, nil
}
