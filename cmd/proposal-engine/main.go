// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the proposal-engine CLI. Each stage of
// drafting a grant proposal is a subcommand: index community documents,
// extract a blueprint from a funding call, retrieve grounding, generate and
// edit sections, check quality, and export the assembled proposal.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/proposal-engine/internal/logging"
	"github.com/pdiddy/proposal-engine/internal/secrets"
	"github.com/pdiddy/proposal-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Populated by the root command before any subcommand runs.
var (
	cfg           types.PipelineConfig
	logger        *slog.Logger
	loadedSecrets secrets.Secrets
)

var rootCmd = &cobra.Command{
	Use:   "proposal-engine",
	Short: "Draft grounded grant proposals from a funding call and community documents",
	Long: `proposal-engine drafts grant proposals section by section. It reads the
funding call into a requirement blueprint, grounds each section in indexed
community documents, drafts text with inline citations, and keeps user edits
and locked paragraphs intact across regeneration.

A typical run: index documents, extract a blueprint, generate, edit, check,
export.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		applyFlags(cmd, &cfg)

		logger, err = logging.New(logging.Options{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			Verbose: cfg.Logging.Verbose,
		})
		if err != nil {
			return err
		}
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", "path", used)
		}

		dir, _ := cmd.Flags().GetString("secrets-dir")
		loadedSecrets, err = secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		if len(loadedSecrets) > 0 {
			logger.Debug("loaded secrets", "keys", loadedSecrets.Keys())
		}
		loadedSecrets.Fill(&cfg.Blueprint.AIConfig)
		loadedSecrets.Fill(&cfg.Generation.AIConfig)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./proposal-engine.yaml or ~/.config/proposal-engine/proposal-engine.yaml)")
	pf.String("secrets-dir", ".secrets", "directory of one-file-per-key credentials")
	pf.String("store-dir", "", "directory holding proposal.db and exports")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.BoolP("verbose", "v", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("proposal-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "proposal-engine"))
		}
	}

	configureEnv(viper.GetViper())
	_ = viper.ReadInConfig()
}

// applyFlags lets persistent flags override file and environment settings.
func applyFlags(cmd *cobra.Command, c *types.PipelineConfig) {
	flags := cmd.Flags()
	if v, _ := flags.GetString("store-dir"); v != "" {
		c.Store.Dir = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		c.Logging.Level = v
	}
	if v, _ := flags.GetString("log-format"); v != "" {
		c.Logging.Format = v
	}
	if v, _ := flags.GetBool("verbose"); v {
		c.Logging.Verbose = true
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
