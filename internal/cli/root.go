// Package cli provides the command-line interface for the analysis engine.
package cli

import (
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"crypto-analyst/internal/config"
	"crypto-analyst/internal/logging"
)

// Version information, overridden at build time with -ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// skipConfig marks commands that run without loading configuration.
const skipConfig = "skip-config"

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "analyst",
		Short: "AI-augmented crypto technical analysis",
		Long: `analyst computes daily technical analyses for crypto trading pairs.

Indicators are calculated from exchange candles, an AI provider chain adds
the narrative, and the result is cached per symbol and calendar day.
Without provider credentials every analysis is rule-based.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] != "" {
				return nil
			}
			dir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(dir)
			if err != nil {
				return err
			}
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Log.Level = "debug"
			}
			app.Config = cfg
			app.Logger = logging.NewLoggerWithConfig(cfg.Log)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/crypto-analyst)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
	rootCmd.AddCommand(newInvalidateCmd(app))
	rootCmd.AddCommand(newProvidersCmd(app))
	rootCmd.AddCommand(newServeCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: map[string]string{skipConfig: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
				return
			}
			output.Printf("crypto-analyst v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			dir, _ := cmd.Flags().GetString("config")
			if dir == "" {
				dir = config.DefaultConfigDir()
			}
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": dir, "file": filepath.Join(dir, "config.toml")})
			}
			output.Println(dir)
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Title("Market Data")
	output.Printf("  Source:          %s (%s)\n", cfg.Market.Source, cfg.Market.BaseURL)
	output.Printf("  Candles:         %d x %s\n", cfg.Market.CandleLimit, cfg.Market.Interval)
	output.Println()

	output.Title("AI Chain")
	for i, e := range cfg.AI.Chain {
		key := output.Red("no key")
		if cfg.Credentials.KeyFor(e.Provider) != "" {
			key = output.Green("key set")
		}
		output.Printf("  %d. %-10s %-28s %s\n", i+1, e.Provider, e.Model, key)
	}
	output.Printf("  Retries:         %d per entry, %s timeout\n", cfg.AI.MaxRetries, cfg.AI.AttemptTimeout)
	output.Println()

	output.Title("Cache")
	output.Printf("  Backend:         %s\n", cfg.Cache.Backend)
	switch cfg.Cache.Backend {
	case "sqlite":
		output.Printf("  Path:            %s\n", cfg.Cache.SQLitePath)
	case "redis":
		output.Printf("  Address:         %s/%d (prefix %s)\n", cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.Cache.RedisPrefix)
	}
	output.Printf("  Timezone:        %s\n", cfg.Cache.Timezone)
	output.Printf("  TTL:             %s\n", cfg.Cache.TTL)
	output.Println()

	output.Title("Schedule")
	output.Printf("  Enabled:         %v\n", cfg.Schedule.Enabled)
	output.Printf("  Cron:            %s\n", cfg.Schedule.Cron)
	output.Printf("  Symbols:         %s\n", strings.Join(cfg.Schedule.Symbols, ", "))
}
