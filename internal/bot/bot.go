package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"b3-alerts/internal/alerting"
	"b3-alerts/internal/market"
	"b3-alerts/internal/storage"
	"b3-alerts/internal/telegram"
)

// API is the slice of the Telegram client the bot loop uses.
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard *telegram.InlineKeyboardMarkup) error
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
}

// QuoteChecker verifies a symbol is quotable before an alert is accepted.
type QuoteChecker interface {
	Quote(ctx context.Context, symbol string) (market.Snapshot, error)
}

// Options tune the bot loop.
type Options struct {
	AdminChatID    int64
	PollTimeout    time.Duration
	OutboundBuffer int
}

// Bot owns the messaging transport: it serves inbound commands and resolves
// outbound sends handed over by the dispatcher and the reporter.
type Bot struct {
	api      API
	quotes   QuoteChecker
	alerts   storage.AlertStore
	users    storage.UserStore
	opts     Options
	outbound chan alerting.SendRequest
	logger   zerolog.Logger
}

// New constructs the bot.
func New(api API, quotes QuoteChecker, alerts storage.AlertStore, users storage.UserStore, opts Options, logger zerolog.Logger) *Bot {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 30 * time.Second
	}
	if opts.OutboundBuffer <= 0 {
		opts.OutboundBuffer = 16
	}
	return &Bot{
		api:      api,
		quotes:   quotes,
		alerts:   alerts,
		users:    users,
		opts:     opts,
		outbound: make(chan alerting.SendRequest, opts.OutboundBuffer),
		logger:   logger.With().Str("component", "bot").Logger(),
	}
}

// Outbound exposes the channel other goroutines hand send requests to.
func (b *Bot) Outbound() chan<- alerting.SendRequest {
	return b.outbound
}

// Run serves inbound updates and outbound sends until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	updates := make(chan telegram.Update)
	go b.pollLoop(ctx, updates)

	b.logger.Info().Msg("bot loop started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case request := <-b.outbound:
			request.Result <- b.resolveSend(ctx, request.Event)
		case update := <-updates:
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) resolveSend(ctx context.Context, event alerting.Event) error {
	text := event.Body
	if event.Subject != "" {
		text = event.Subject + "\n\n" + event.Body
	}
	err := b.api.SendMessage(ctx, event.ChatID, text, nil)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat_id", event.ChatID).Msg("outbound send failed")
		return err
	}
	b.logger.Info().Int64("chat_id", event.ChatID).Str("subject", event.Subject).Msg("outbound message sent")
	return nil
}

func (b *Bot) pollLoop(ctx context.Context, updates chan<- telegram.Update) {
	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}

		batch, err := b.api.GetUpdates(ctx, offset, b.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Error().Err(err).Msg("getUpdates failed, retrying")
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, update := range batch {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			select {
			case <-ctx.Done():
				return
			case updates <- update:
			}
		}
	}
}
