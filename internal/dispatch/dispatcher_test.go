package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/herobot/internal/chat"
	"github.com/Iron-Ham/herobot/internal/chat/chattest"
	"github.com/Iron-Ham/herobot/internal/errors"
	"github.com/Iron-Ham/herobot/internal/logging"
)

// startDispatcher runs d until the test ends and returns a func that stops
// it and waits for Run to return.
func startDispatcher(t *testing.T, d *Dispatcher) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, d.Run(ctx))
	}()
	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)
	return stop
}

func waitCalls(t *testing.T, ep *chattest.Endpoint, n int) []chattest.Call {
	t.Helper()
	require.Eventually(t, func() bool { return len(ep.Calls()) >= n }, 2*time.Second, 5*time.Millisecond)
	return ep.Calls()
}

func TestDispatcher_PreservesEnqueueOrder(t *testing.T) {
	ep := chattest.New()
	d := New(ep, Options{}, logging.NopLogger())
	startDispatcher(t, d)

	h := chat.Handle{ChatID: chattest.ChatID, MessageID: 1}
	require.NoError(t, d.Notify("a.txt: ok"))
	require.NoError(t, d.RefreshHeartbeat(h, "Herobot pinged at 1"))
	require.NoError(t, d.Notify("a.txt: ok at 2026-10-19 08:00:00"))
	require.NoError(t, d.Reply(chat.Inbound{ID: 9}, "Ignore /stop"))

	calls := waitCalls(t, ep, 4)
	require.Len(t, calls, 4)
	assert.Equal(t, chattest.KindSend, calls[0].Kind)
	assert.Equal(t, "a.txt: ok", calls[0].Text)
	assert.Equal(t, chattest.KindEdit, calls[1].Kind)
	assert.Equal(t, h, calls[1].Handle)
	assert.Equal(t, "a.txt: ok at 2026-10-19 08:00:00", calls[2].Text)
	assert.Equal(t, "Ignore /stop", calls[3].Text)
	assert.Equal(t, 9, calls[3].ReplyTo)
}

func TestDispatcher_FIFOPerProducer(t *testing.T) {
	ep := chattest.New()
	d := New(ep, Options{QueueSize: 4}, logging.NopLogger())
	startDispatcher(t, d)

	const producers, perProducer = 3, 40
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				assert.NoError(t, d.Notify(fmt.Sprintf("p%d-%03d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	waitCalls(t, ep, producers*perProducer)

	last := map[string]string{}
	for _, text := range ep.Sent() {
		producer := strings.SplitN(text, "-", 2)[0]
		assert.Greater(t, text, last[producer], "producer %s out of order", producer)
		last[producer] = text
	}
}

func TestDispatcher_SwallowsFailures(t *testing.T) {
	ep := chattest.New()
	ep.SendErr = func(msg chat.Outbound) error {
		if msg.Text == "bad" {
			return errors.NewChatError("sendMessage", assert.AnError)
		}
		return nil
	}
	d := New(ep, Options{}, logging.NopLogger())
	startDispatcher(t, d)

	require.NoError(t, d.Notify("a"))
	require.NoError(t, d.Notify("bad"))
	require.NoError(t, d.Notify("c"))

	waitCalls(t, ep, 3)
	assert.Equal(t, []string{"a", "c"}, ep.Sent())
	assert.Equal(t, Stats{Delivered: 2, Failed: 1}, d.Stats())
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	ep := chattest.New()
	ep.EditErr = func(chat.Handle, string) error { panic("boom") }
	d := New(ep, Options{}, logging.NopLogger())
	startDispatcher(t, d)

	require.NoError(t, d.RefreshHeartbeat(chat.Handle{MessageID: 1}, "tick"))
	require.NoError(t, d.Notify("after"))

	require.Eventually(t, func() bool { return len(ep.Sent()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), d.Stats().Failed)
}

func TestDispatcher_Deliver(t *testing.T) {
	ep := chattest.New()
	d := New(ep, Options{}, logging.NopLogger())
	startDispatcher(t, d)

	require.NoError(t, d.Notify("summary"))
	h, err := d.Deliver(context.Background(), chat.Outbound{Text: "Herobot is back!"})
	require.NoError(t, err)
	assert.Equal(t, chat.Handle{ChatID: chattest.ChatID, MessageID: 2}, h)
	assert.Equal(t, []string{"summary", "Herobot is back!"}, ep.Sent())
}

func TestDispatcher_DeliverReturnsFailure(t *testing.T) {
	ep := chattest.New()
	ep.SendErr = func(chat.Outbound) error { return errors.NewChatError("sendMessage", nil).WithCode(403) }
	d := New(ep, Options{}, logging.NopLogger())
	startDispatcher(t, d)

	_, err := d.Deliver(context.Background(), chat.Outbound{Text: "x"})
	var chatErr *errors.ChatError
	require.ErrorAs(t, err, &chatErr)
	assert.Equal(t, 403, chatErr.Code)
}

func TestDispatcher_DrainsOnCancel(t *testing.T) {
	ep := chattest.New()
	d := New(ep, Options{}, logging.NopLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Notify(fmt.Sprintf("n%d", i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, []string{"n0", "n1", "n2", "n3", "n4"}, ep.Sent())

	assert.ErrorIs(t, d.Notify("late"), errors.ErrDispatcherClosed)
	_, err := d.Deliver(context.Background(), chat.Outbound{Text: "late"})
	assert.ErrorIs(t, err, errors.ErrDispatcherClosed)
}

func TestDispatcher_DrainTimeoutDropsRemainder(t *testing.T) {
	ep := chattest.New()
	d := New(ep, Options{RateLimit: 1, Burst: 1, DrainTimeout: 50 * time.Millisecond}, logging.NopLogger())

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Notify(fmt.Sprintf("n%d", i)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, []string{"n0"}, ep.Sent())
	assert.Equal(t, int64(2), d.Stats().Dropped)
}

func TestDispatcher_RateLimit(t *testing.T) {
	ep := chattest.New()
	d := New(ep, Options{RateLimit: 20, Burst: 1}, logging.NopLogger())
	startDispatcher(t, d)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Notify("tick"))
	}
	waitCalls(t, ep, 5)

	// Four waits of 50ms after the first call.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

func TestDispatcher_DeliverContextCancelled(t *testing.T) {
	ep := chattest.New()
	d := New(ep, Options{}, logging.NopLogger())
	// Not running: the request waits in the queue.

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.Deliver(ctx, chat.Outbound{Text: "x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
