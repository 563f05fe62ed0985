package chat

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Iron-Ham/herobot/internal/errors"
	"github.com/Iron-Ham/herobot/internal/logging"
)

// TelegramConfig configures the Telegram Bot API endpoint.
type TelegramConfig struct {
	Token  string
	ChatID int64
	// APIEndpoint is a URL format with two %s verbs (token, method).
	// Defaults to tgbotapi.APIEndpoint.
	APIEndpoint string
	// PollTimeout is the getUpdates long-poll timeout.
	PollTimeout time.Duration
	// Silent disables user-facing alerts for sent messages.
	Silent bool
	// HTTPClient overrides the transport. Optional.
	HTTPClient tgbotapi.HTTPClient
}

// lifetimeClient binds every request to the endpoint's lifetime so Close
// aborts a long poll still in flight.
type lifetimeClient struct {
	ctx    context.Context
	client tgbotapi.HTTPClient
}

func (c lifetimeClient) Do(req *http.Request) (*http.Response, error) {
	return c.client.Do(req.WithContext(c.ctx))
}

// Telegram is an Endpoint backed by the Telegram Bot API. A single instance
// is shared by every loop; inbound polling is expected from one goroutine.
type Telegram struct {
	bot         *tgbotapi.BotAPI
	chatID      int64
	silent      bool
	pollTimeout time.Duration
	logger      *logging.Logger
	cancel      context.CancelFunc

	mu      sync.Mutex
	offset  int
	pending []Inbound
}

var _ Endpoint = (*Telegram)(nil)

// NewTelegram authenticates against the Bot API and returns the endpoint.
func NewTelegram(cfg TelegramConfig, logger *logging.Logger) (*Telegram, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	var base tgbotapi.HTTPClient = cfg.HTTPClient
	if base == nil {
		// Leave room above the server-side poll timeout for the response.
		base = &http.Client{Timeout: cfg.PollTimeout + 15*time.Second}
	}

	ctx, cancel := context.WithCancel(context.Background())
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, lifetimeClient{ctx: ctx, client: base})
	if err != nil {
		cancel()
		return nil, chatError("getMe", err)
	}

	t := &Telegram{
		bot:         bot,
		chatID:      cfg.ChatID,
		silent:      cfg.Silent,
		pollTimeout: cfg.PollTimeout,
		logger:      logger.WithComponent("telegram"),
		cancel:      cancel,
	}
	t.logger.Info("authenticated", "bot", bot.Self.UserName, "chat_id", cfg.ChatID)
	return t, nil
}

// SendMessage posts msg to the configured chat.
func (t *Telegram) SendMessage(ctx context.Context, msg Outbound) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	cfg := tgbotapi.NewMessage(t.chatID, msg.Text)
	cfg.DisableNotification = t.silent
	cfg.ReplyToMessageID = msg.ReplyTo

	sent, err := t.bot.Send(cfg)
	if err != nil {
		return Handle{}, chatError("sendMessage", err)
	}
	return Handle{ChatID: t.chatID, MessageID: sent.MessageID}, nil
}

// EditMessage replaces the text of the message identified by h.
func (t *Telegram) EditMessage(ctx context.Context, h Handle, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID := h.ChatID
	if chatID == 0 {
		chatID = t.chatID
	}
	if _, err := t.bot.Send(tgbotapi.NewEditMessageText(chatID, h.MessageID, text)); err != nil {
		return chatError("editMessageText", err)
	}
	return nil
}

// PollInbound returns the next text message from the configured chat. It
// long-polls getUpdates and returns nil, nil when the poll times out empty.
// Cancelling ctx returns immediately; the abandoned request finishes in the
// background without advancing the update offset.
func (t *Telegram) PollInbound(ctx context.Context) (*Inbound, error) {
	if msg := t.next(); msg != nil {
		return msg, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		updates []tgbotapi.Update
		err     error
	}
	done := make(chan result, 1)
	cfg := t.updateConfig()
	go func() {
		updates, err := t.bot.GetUpdates(cfg)
		done <- result{updates: updates, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, chatError("getUpdates", res.err)
		}
		t.accept(res.updates)
		return t.next(), nil
	}
}

func (t *Telegram) updateConfig() tgbotapi.UpdateConfig {
	t.mu.Lock()
	defer t.mu.Unlock()

	cfg := tgbotapi.NewUpdate(t.offset)
	cfg.Timeout = int(t.pollTimeout / time.Second)
	cfg.AllowedUpdates = []string{"message"}
	return cfg
}

// accept advances the offset past updates and queues text messages from
// the configured chat.
func (t *Telegram) accept(updates []tgbotapi.Update) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, u := range updates {
		if u.UpdateID >= t.offset {
			t.offset = u.UpdateID + 1
		}

		m := u.Message
		if m == nil || m.Text == "" {
			continue
		}
		if m.Chat == nil || m.Chat.ID != t.chatID {
			t.logger.Debug("ignored message from foreign chat", "update_id", u.UpdateID)
			continue
		}

		in := Inbound{
			ID:     m.MessageID,
			ChatID: m.Chat.ID,
			Text:   m.Text,
			Date:   time.Unix(int64(m.Date), 0),
		}
		if m.From != nil {
			in.From = m.From.UserName
		}
		t.pending = append(t.pending, in)
	}
}

func (t *Telegram) next() *Inbound {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.pending) == 0 {
		return nil
	}
	msg := t.pending[0]
	t.pending = t.pending[1:]
	return &msg
}

// Close aborts requests still in flight.
func (t *Telegram) Close() error {
	t.cancel()
	return nil
}

// chatError converts a Bot API failure into the typed chat error.
func chatError(op string, err error) error {
	ce := errors.NewChatError(op, err)

	var apiErr *tgbotapi.Error
	var apiErrValue tgbotapi.Error
	switch {
	case stderrors.As(err, &apiErr):
		ce.WithCode(apiErr.Code).WithRetryAfter(time.Duration(apiErr.RetryAfter) * time.Second)
	case stderrors.As(err, &apiErrValue):
		ce.WithCode(apiErrValue.Code).WithRetryAfter(time.Duration(apiErrValue.RetryAfter) * time.Second)
	}
	return ce
}
