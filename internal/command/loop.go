package command

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/herobot/internal/chat"
	"github.com/Iron-Ham/herobot/internal/errors"
	"github.com/Iron-Ham/herobot/internal/logging"
)

// DefaultErrorBackoff is the pause after a failed poll.
const DefaultErrorBackoff = time.Second

// Poller yields inbound messages. A nil message with a nil error means the
// poll timed out empty.
type Poller interface {
	PollInbound(ctx context.Context) (*chat.Inbound, error)
}

// Handler acts on a recognized command. Returning ErrStopRequested ends the
// loop; any other error is logged and the loop continues.
type Handler func(ctx context.Context, cmd Command) error

// Loop polls for inbound messages and hands recognized commands to a Handler.
type Loop struct {
	poller  Poller
	backoff time.Duration
	logger  *logging.Logger
}

// NewLoop creates a Loop. A non-positive backoff uses DefaultErrorBackoff.
func NewLoop(p Poller, backoff time.Duration, logger *logging.Logger) *Loop {
	if backoff <= 0 {
		backoff = DefaultErrorBackoff
	}
	return &Loop{
		poller:  p,
		backoff: backoff,
		logger:  logger.WithComponent("command"),
	}
}

// Run polls until ctx ends (returning nil) or the handler requests a stop
// (returning ErrStopRequested). Poll failures never end the loop.
func (l *Loop) Run(ctx context.Context, h Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		msg, err := l.poller.PollInbound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			l.logger.Error("poll failed", "error", err, "retryable", errors.IsRetryable(err))
			l.sleep(ctx, l.backoffFor(err))
			continue
		}
		if msg == nil {
			continue
		}

		cmd, ok := Parse(*msg)
		if !ok {
			l.logger.Debug("ignored inbound text", "message_id", msg.ID)
			continue
		}
		l.logger.Info("command received", "command", cmd.Kind.String(), "message_id", msg.ID, "from", msg.From)

		if err := l.handle(ctx, h, cmd); err != nil {
			if errors.Is(err, errors.ErrStopRequested) {
				return err
			}
			l.logger.Warn("command failed", "command", cmd.Kind.String(), "error", err)
		}
	}
}

func (l *Loop) handle(ctx context.Context, h Handler, cmd Command) error {
	var err error
	var pc panics.Catcher
	pc.Try(func() {
		err = h(ctx, cmd)
	})
	if r := pc.Recovered(); r != nil {
		return r.AsError()
	}
	return err
}

// backoffFor honors a retry-after hint when it is longer than the default.
func (l *Loop) backoffFor(err error) time.Duration {
	var chatErr *errors.ChatError
	if errors.As(err, &chatErr) && chatErr.RetryAfter > l.backoff {
		return chatErr.RetryAfter
	}
	return l.backoff
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
