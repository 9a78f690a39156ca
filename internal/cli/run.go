package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"swarm-trader/internal/command"
	"swarm-trader/internal/config"
	"swarm-trader/internal/engine"
	"swarm-trader/internal/exchange"
	"swarm-trader/internal/notify"
	"swarm-trader/internal/risk"
	"swarm-trader/internal/store"
	"swarm-trader/internal/swarm"
)

// paperStartingBalance is the simulated account equity for paper mode.
const paperStartingBalance = 10000

// newRunCmd creates the run command that starts the trading loop.
func newRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the autonomous trading loop",
		Long: `Start the decision and supervision loops for every configured symbol
and listen for operator commands. Runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paper, _ := cmd.Flags().GetBool("paper")
			if paper {
				app.Config.Trading.Mode = "paper"
			}
			return runTrader(cmd, app)
		},
	}
	cmd.Flags().Bool("paper", false, "force paper mode regardless of config")
	return cmd
}

func runTrader(cmd *cobra.Command, app *App) error {
	cfg := app.Config
	logger := app.Logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	voters := buildVoters(cfg)
	if len(voters) == 0 {
		return fmt.Errorf("no voters configured: set swarm.models and the OpenAI API key")
	}
	pool := swarm.NewPool(voters, cfg.Swarm.MinVoters,
		time.Duration(cfg.Swarm.VoterTimeoutSeconds)*time.Second, logger)

	rest := exchange.NewRESTClient(
		cfg.Trading.ExchangeBaseURL,
		cfg.Credentials.Exchange.APIKey,
		cfg.Credentials.Exchange.APISecret,
	)

	var venue exchange.Exchange
	if cfg.IsPaperMode() {
		venue = exchange.NewPaper(paperStartingBalance, rest.GetPrice)
		logger.Info().Float64("balance", paperStartingBalance).Msg("Paper mode, simulated ledger")
	} else {
		venue = rest
		logger.Info().Str("base_url", cfg.Trading.ExchangeBaseURL).Msg("Live mode")
	}

	var stream *exchange.PriceStream
	if cfg.Trading.ExchangeWSURL != "" {
		stream = exchange.NewPriceStream(cfg.Trading.ExchangeWSURL, cfg.Trading.Symbols, logger)
	}

	sink := notify.NewMultiNotifier(&cfg.Notifications, &cfg.Credentials.Telegram)
	if cfg.Notifications.Terminal {
		sink.AddChannel(notify.NewTerminalChannel(logger))
	}
	sink.SetErrorHandler(func(channel string, err error) {
		logger.Warn().Str("channel", channel).Err(err).Msg("Notification delivery failed")
	})

	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = config.DefaultConfigDir() + "/swarm-trader.db"
	}
	dataStore, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer dataStore.Close()

	var source command.Source = command.NewStaticSource()
	if cfg.Credentials.Telegram.BotToken != "" && cfg.Credentials.Telegram.ChatID != "" {
		source = command.NewTelegramSource(
			cfg.Credentials.Telegram.BotToken,
			cfg.Credentials.Telegram.ChatID,
			config.DefaultConfigDir(),
			logger,
		)
		logger.Info().Msg("Telegram command channel enabled")
	} else {
		logger.Warn().Msg("No Telegram credentials, command channel disabled")
	}

	session := risk.NewSession(time.Now())
	supervisor := engine.NewSupervisor(cfg.Risk, venue, session, dataStore, sink, logger)

	eng := engine.New(cfg, session, pool, venue, supervisor, source, sink, dataStore, stream, logger)

	eng.NotifyStartup(ctx)
	err = eng.Run(ctx)

	// Shutdown notice goes out on a fresh context; the run context is
	// already cancelled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	eng.NotifyShutdown(shutdownCtx)

	if err != nil && ctx.Err() != nil {
		// Clean interrupt, not a failure.
		return nil
	}
	return err
}

func buildVoters(cfg *config.Config) []swarm.Voter {
	voters := make([]swarm.Voter, 0, len(cfg.Swarm.Models))
	if cfg.Credentials.OpenAI.APIKey == "" {
		return voters
	}
	for _, model := range cfg.Swarm.Models {
		voters = append(voters, swarm.NewLLMVoter(
			cfg.Credentials.OpenAI.APIKey,
			cfg.Credentials.OpenAI.BaseURL,
			model,
		))
	}
	return voters
}
