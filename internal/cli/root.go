// Package cli provides the command-line interface for the trading application.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"swarm-trader/internal/config"
	"swarm-trader/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-08-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "swarm-trader",
		Short: "Swarm Trader - consensus-driven autonomous trading",
		Long: `Swarm Trader runs an autonomous perpetual-futures trading loop.

Each decision cycle it polls a swarm of LLM voters for a one-word call,
reduces the votes to a strict-majority consensus, gates the result
through risk rules, and supervises any open position against fixed
stop-loss and take-profit levels. Operators steer the session over
Telegram with /pause, /resume, /closeall and /status.

Use 'swarm-trader run' to start trading in the configured mode.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/swarm-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newRunCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Swarm Trader v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Trading Configuration")
	output.Printf("  Mode:             %s\n", cfg.Trading.Mode)
	output.Printf("  Symbols:          %v\n", cfg.Trading.Symbols)
	output.Printf("  Decision Cycle:   %d min\n", cfg.Trading.IntervalMinutes)
	output.Printf("  Position Monitor: %d s\n", cfg.Trading.PnLCheckSeconds)
	output.Printf("  Long Only:        %v\n", cfg.Trading.LongOnly)
	output.Println()

	output.Bold("Risk Configuration")
	output.Printf("  Max Position %%:   %.1f%%\n", cfg.Risk.MaxPositionPct)
	output.Printf("  Leverage:         %dx\n", cfg.Risk.Leverage)
	output.Printf("  Stop Loss:        %.1f%%\n", cfg.Risk.StopLossPct)
	output.Printf("  Take Profit:      %.1f%%\n", cfg.Risk.TakeProfitPct)
	output.Printf("  Min Confidence:   %.0f\n", cfg.Risk.MinConfidence)
	output.Printf("  Max Daily Trades: %d\n", cfg.Risk.MaxDailyTrades)
	output.Printf("  Cooldown:         %d min\n", cfg.Risk.CooldownMinutes)
	output.Println()

	output.Bold("Swarm Configuration")
	output.Printf("  Models:           %v\n", cfg.Swarm.Models)
	output.Printf("  Min Voters:       %d\n", cfg.Swarm.MinVoters)
	output.Printf("  Voter Timeout:    %d s\n", cfg.Swarm.VoterTimeoutSeconds)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:          %v\n", cfg.Notifications.Enabled)
	output.Printf("  Level:            %s\n", cfg.Notifications.Level)
	output.Printf("  Terminal:         %v\n", cfg.Notifications.Terminal)
	output.Printf("  Webhook:          %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:         %v\n", cfg.Notifications.Telegram.Enabled)

	return nil
}
