// Package bot wires the status store, change source and chat endpoint into
// the running bot: the file watch loop, the heartbeat and the command loop.
package bot

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/herobot/internal/chat"
	"github.com/Iron-Ham/herobot/internal/command"
	"github.com/Iron-Ham/herobot/internal/dispatch"
	"github.com/Iron-Ham/herobot/internal/errors"
	"github.com/Iron-Ham/herobot/internal/heartbeat"
	"github.com/Iron-Ham/herobot/internal/logging"
	"github.com/Iron-Ham/herobot/internal/status"
)

// Reply texts for the stop protocol.
const (
	IgnoreStopText = "Ignore /stop"
	StoppingText   = "Stopping."
	// NoStatusText answers /status when no file has been observed yet.
	NoStatusText = "No status files yet."
)

// ChangeSource yields changed paths.
type ChangeSource interface {
	Next(ctx context.Context) (string, error)
}

// Config holds the coordinator settings.
type Config struct {
	WatchDir   string
	OnlineText string
	Heartbeat  heartbeat.Options
	// PollBackoff is the pause after a failed inbound poll.
	PollBackoff time.Duration
}

// Deps are the collaborators shared by every loop.
type Deps struct {
	Store      *status.Store
	Source     ChangeSource
	Endpoint   chat.Endpoint
	Dispatcher *dispatch.Dispatcher
}

// Coordinator owns the process lifetime: it runs the start-up sequence,
// then the three loops until a confirmed /stop or cancellation.
type Coordinator struct {
	cfg        Config
	store      *status.Store
	source     ChangeSource
	endpoint   chat.Endpoint
	dispatcher *dispatch.Dispatcher
	logger     *logging.Logger

	// stops counts /stop commands; only the command loop touches it.
	stops int
}

// New creates a Coordinator.
func New(cfg Config, deps Deps, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		cfg:        cfg,
		store:      deps.Store,
		source:     deps.Source,
		endpoint:   deps.Endpoint,
		dispatcher: deps.Dispatcher,
		logger:     logger.WithComponent("bot"),
	}
}

// Run scans the watch directory, announces the bot, and runs the loops. It
// returns nil after a confirmed /stop or when ctx is cancelled, once queued
// outbound messages are drained. Start-up failures are returned.
func (c *Coordinator) Run(ctx context.Context) error {
	n, err := c.store.Scan(c.cfg.WatchDir)
	if err != nil {
		return errors.Wrap(err, "initial scan")
	}
	c.logger.Info("initial scan complete", "dir", c.cfg.WatchDir, "files", n)

	// The dispatcher outlives the loops so it can drain what they queued.
	dctx, dcancel := context.WithCancel(context.WithoutCancel(ctx))
	dispatched := make(chan error, 1)
	go func() { dispatched <- c.dispatcher.Run(dctx) }()
	defer func() {
		dcancel()
		<-dispatched
	}()

	if summary, err := c.store.Summary(c.cfg.WatchDir); err != nil {
		c.logger.Warn("initial summary failed", "error", err)
	} else if summary != "" {
		if err := c.dispatcher.Notify(summary); err != nil {
			c.logger.Warn("initial summary not queued", "error", err)
		}
	}

	online, err := c.dispatcher.Deliver(ctx, chat.Outbound{Text: c.cfg.OnlineText})
	if err != nil {
		return errors.Wrap(err, "send online message")
	}
	c.logger.Info("online", "message_id", online.MessageID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.watchFiles(gctx)
	})
	g.Go(func() error {
		return heartbeat.New(c.dispatcher, online, c.cfg.Heartbeat, c.logger).Run(gctx)
	})
	g.Go(func() error {
		return command.NewLoop(c.endpoint, c.cfg.PollBackoff, c.logger).Run(gctx, c.handleCommand)
	})

	err = g.Wait()
	if errors.Is(err, errors.ErrStopRequested) {
		c.logger.Info("stopped by command")
		return nil
	}
	if err == nil {
		c.logger.Info("shutting down")
	}
	return err
}

// handleCommand answers /status with the summary and applies the stop
// protocol: the first /stop after start is acknowledged and ignored, every
// later one stops the bot after replying.
func (c *Coordinator) handleCommand(ctx context.Context, cmd command.Command) error {
	switch cmd.Kind {
	case command.Status:
		summary, err := c.store.Summary(c.cfg.WatchDir)
		if err != nil {
			return errors.Wrap(err, "render summary")
		}
		if summary == "" {
			summary = NoStatusText
		}
		return c.dispatcher.Notify(summary)

	case command.Stop:
		c.stops++
		if c.stops == 1 {
			c.logger.Info("ignoring first stop", "message_id", cmd.Message.ID)
			return c.dispatcher.Reply(cmd.Message, IgnoreStopText)
		}
		if _, err := c.dispatcher.Deliver(ctx, chat.Outbound{Text: StoppingText, ReplyTo: cmd.Message.ID}); err != nil {
			c.logger.Error("stop reply failed", "error", err)
		}
		return errors.ErrStopRequested
	}
	return nil
}
