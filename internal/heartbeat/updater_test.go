package heartbeat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/herobot/internal/chat"
	"github.com/Iron-Ham/herobot/internal/chat/chattest"
	"github.com/Iron-Ham/herobot/internal/dispatch"
	"github.com/Iron-Ham/herobot/internal/errors"
	"github.com/Iron-Ham/herobot/internal/logging"
)

type recordingRefresher struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (r *recordingRefresher) RefreshHeartbeat(_ chat.Handle, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return r.err
}

func TestUpdater_Text(t *testing.T) {
	u := New(&recordingRefresher{}, chat.Handle{}, Options{Interval: time.Second}, logging.NopLogger())
	at := time.Date(2026, 10, 19, 8, 30, 5, 999_000_000, time.Local)
	assert.Equal(t, "Herobot pinged at 2026-10-19 08:30:05", u.Text(at))

	u = New(&recordingRefresher{}, chat.Handle{}, Options{Interval: time.Second, Prefix: "alive"}, logging.NopLogger())
	assert.Equal(t, "alive 2026-10-19 08:30:05", u.Text(at))
}

func TestUpdater_NTicksEditNTimes(t *testing.T) {
	ep := chattest.New()
	d := dispatch.New(ep, dispatch.Options{}, logging.NopLogger())
	h, err := ep.SendMessage(context.Background(), chat.Outbound{Text: "Herobot is back!"})
	require.NoError(t, err)

	u := New(d, h, Options{Interval: time.Second}, logging.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan time.Time)
	done := make(chan error, 1)
	go func() { done <- u.runTicks(ctx, ticks) }()

	const n = 5
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local)
	for i := 0; i < n; i++ {
		ticks <- base.Add(time.Duration(i) * time.Second)
	}
	cancel()
	require.NoError(t, <-done)

	// Drain the queued edits.
	dctx, dcancel := context.WithCancel(context.Background())
	dcancel()
	require.NoError(t, d.Run(dctx))

	calls := ep.Calls()
	require.Len(t, calls, n+1)
	assert.Equal(t, chattest.KindSend, calls[0].Kind, "only the online message is ever sent")
	for i, c := range calls[1:] {
		assert.Equal(t, chattest.KindEdit, c.Kind)
		assert.Equal(t, h, c.Handle)
		assert.Equal(t, u.Text(base.Add(time.Duration(i)*time.Second)), c.Text)
	}
}

func TestUpdater_KeepsTickingAfterFailure(t *testing.T) {
	r := &recordingRefresher{err: errors.ErrDispatcherClosed}
	u := New(r, chat.Handle{MessageID: 1}, Options{Interval: time.Second}, logging.NopLogger())

	ticks := make(chan time.Time, 3)
	for i := 0; i < 3; i++ {
		ticks <- time.Now()
	}
	close(ticks)

	require.NoError(t, u.runTicks(context.Background(), ticks))
	assert.Len(t, r.texts, 3)
}

func TestUpdater_RunStopsOnCancel(t *testing.T) {
	r := &recordingRefresher{}
	u := New(r, chat.Handle{MessageID: 1}, Options{Interval: 10 * time.Millisecond}, logging.NopLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	require.NoError(t, u.Run(ctx))

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.NotEmpty(t, r.texts)
}
