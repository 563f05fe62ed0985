// Package heartbeat keeps a single liveness message fresh by editing it in
// place on every tick.
package heartbeat

import (
	"context"
	"time"

	"github.com/Iron-Ham/herobot/internal/chat"
	"github.com/Iron-Ham/herobot/internal/logging"
	"github.com/Iron-Ham/herobot/internal/status"
)

// DefaultPrefix precedes the timestamp in the refreshed text.
const DefaultPrefix = "Herobot pinged at"

// Refresher accepts edits of the liveness message.
type Refresher interface {
	RefreshHeartbeat(h chat.Handle, text string) error
}

// Options configures an Updater.
type Options struct {
	Interval time.Duration
	Prefix   string
}

// Updater edits the liveness message once per interval. It never sends a
// new message.
type Updater struct {
	refresher Refresher
	handle    chat.Handle
	interval  time.Duration
	prefix    string
	logger    *logging.Logger
}

// New creates an Updater refreshing the message identified by h.
func New(r Refresher, h chat.Handle, opts Options, logger *logging.Logger) *Updater {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Updater{
		refresher: r,
		handle:    h,
		interval:  opts.Interval,
		prefix:    prefix,
		logger:    logger.WithComponent("heartbeat"),
	}
}

// Run refreshes the liveness message on every tick until ctx ends.
func (u *Updater) Run(ctx context.Context) error {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.logger.Info("heartbeat started", "interval", u.interval.String(), "message_id", u.handle.MessageID)
	return u.runTicks(ctx, ticker.C)
}

func (u *Updater) runTicks(ctx context.Context, ticks <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case at, ok := <-ticks:
			if !ok {
				return nil
			}
			if err := u.refresher.RefreshHeartbeat(u.handle, u.Text(at)); err != nil {
				u.logger.Warn("heartbeat not queued", "error", err)
			}
		}
	}
}

// Text renders the freshness string for at, truncated to whole seconds.
func (u *Updater) Text(at time.Time) string {
	return u.prefix + " " + at.Local().Truncate(time.Second).Format(status.TimeLayout)
}
