package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"b3-alerts/internal/alerting"
	"b3-alerts/internal/bot"
	"b3-alerts/internal/config"
	"b3-alerts/internal/market"
	"b3-alerts/internal/monitor"
	"b3-alerts/internal/report"
	"b3-alerts/internal/scheduler"
	"b3-alerts/internal/storage"
	"b3-alerts/internal/telegram"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newMarketClient() *market.Client {
	return market.NewClient(market.ClientOptions{
		BaseURL:   a.Config.Market.BaseURL,
		Timeout:   a.Config.Market.RequestTimeout,
		UserAgent: a.Config.Market.UserAgent,
	}, a.Logger)
}

func (a *App) newOracle(client *market.Client) *market.Oracle {
	return market.NewOracle(client, market.OracleOptions{
		Workers:           a.Config.Monitor.OracleWorkers,
		FetchTimeout:      a.Config.Monitor.FetchTimeout,
		CoverageThreshold: a.Config.Monitor.CoverageThreshold,
		HistoryWindow:     a.Config.Market.HistoryWindow,
	}, a.Logger)
}

func (a *App) newTelegram() (*telegram.Client, error) {
	if a.Config.Telegram.BotToken == "" {
		return nil, fmt.Errorf("telegram.bot_token is required")
	}
	return telegram.NewClient(
		a.Config.Telegram.BotToken,
		a.Config.Telegram.APIBase,
		a.Config.Telegram.SendTimeout+a.Config.Telegram.PollTimeout,
		a.Logger,
	), nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) reportLocation() (*time.Location, time.Duration, error) {
	location, err := time.LoadLocation(a.Config.Report.Timezone)
	if err != nil {
		return nil, 0, fmt.Errorf("load report timezone: %w", err)
	}
	fireAt, err := config.ParseFireTime(a.Config.Report.FireTime)
	if err != nil {
		return nil, 0, err
	}
	return location, fireAt, nil
}

// Run executes the long-running bot, monitoring loop and report schedule.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	tg, err := a.newTelegram()
	if err != nil {
		return err
	}

	marketClient := a.newMarketClient()
	b := bot.New(tg, marketClient, store, store, bot.Options{
		AdminChatID: a.Config.Telegram.AdminChatID,
		PollTimeout: a.Config.Telegram.PollTimeout,
	}, a.Logger)

	dispatcher := alerting.NewChannelDispatcher(b.Outbound(), a.Config.Monitor.DispatchTimeout, a.Logger)
	oracle := a.newOracle(marketClient)

	mon := monitor.New(store, oracle, dispatcher, monitor.Options{
		Interval: a.Config.Monitor.Interval,
	}, a.Logger)

	errs := make(chan error, 3)
	go func() { errs <- b.Run(ctx) }()
	go func() { errs <- mon.Run(ctx) }()

	if a.Config.Report.Enabled {
		location, fireAt, err := a.reportLocation()
		if err != nil {
			return err
		}
		reporter := report.New(store, oracle, dispatcher, location, a.Logger)
		daily := scheduler.NewDaily(scheduler.DailyOptions{
			FireAt:       fireAt,
			Location:     location,
			WeekdaysOnly: true,
		}, a.Logger)
		go func() { errs <- daily.Run(ctx, reporter.SendClosingQuotes) }()
	}

	a.Logger.Info().Msg("service started")
	err = <-errs
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("service stopped")
	return nil
}
