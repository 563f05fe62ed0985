package bot

import (
	"context"

	"github.com/sourcegraph/conc/panics"

	"github.com/Iron-Ham/herobot/internal/errors"
)

// watchFiles observes every changed path and notifies when its status text
// differs from the last one seen. It returns nil when ctx ends.
func (c *Coordinator) watchFiles(ctx context.Context) error {
	for {
		path, err := c.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, errors.ErrSourceClosed) {
				return errors.Wrap(err, "file watch")
			}
			c.logger.Warn("change source error", "error", err)
			continue
		}

		var pc panics.Catcher
		pc.Try(func() { c.observe(path) })
		if r := pc.Recovered(); r != nil {
			c.logger.Error("observe panicked", "path", path, "error", r.AsError())
		}
	}
}

func (c *Coordinator) observe(path string) {
	st, changed, err := c.store.Observe(path)
	if err != nil {
		c.logger.Warn("failed to read status file", "path", path, "error", err)
		return
	}
	if !changed {
		c.logger.Debug("status unchanged", "path", path)
		return
	}
	if err := c.dispatcher.Notify(st.Message()); err != nil {
		c.logger.Warn("notification not queued", "path", path, "error", err)
	}
}
