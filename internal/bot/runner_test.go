package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowHandler records peak concurrency.
type slowHandler struct {
	delay   time.Duration
	running atomic.Int32
	peak    atomic.Int32

	mu   sync.Mutex
	seen []int
}

func (h *slowHandler) Dispatch(ctx context.Context, m Message) {
	n := h.running.Add(1)
	for {
		p := h.peak.Load()
		if n <= p || h.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(h.delay)
	h.mu.Lock()
	h.seen = append(h.seen, m.UpdateID)
	h.mu.Unlock()
	h.running.Add(-1)
}

func TestRunner_BoundsConcurrency(t *testing.T) {
	h := &slowHandler{delay: 20 * time.Millisecond}
	r := NewRunner(h, 3)

	for i := 0; i < 12; i++ {
		require.NoError(t, r.Submit(context.Background(), Message{UpdateID: i}))
	}
	r.Wait()

	assert.Len(t, h.seen, 12)
	assert.LessOrEqual(t, h.peak.Load(), int32(3))
	assert.GreaterOrEqual(t, h.peak.Load(), int32(2))
}

func TestRunner_RunDrainsChannel(t *testing.T) {
	h := &slowHandler{delay: time.Millisecond}
	r := NewRunner(h, 0)

	in := make(chan Message, 5)
	for i := 0; i < 5; i++ {
		in <- Message{UpdateID: i}
	}
	close(in)

	require.NoError(t, r.Run(context.Background(), in))
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, h.seen)
	assert.Equal(t, int32(1), h.peak.Load())
}

func TestRunner_SubmitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	h := dispatchFunc(func(context.Context, Message) { <-block })
	r := NewRunner(h, 1)
	require.NoError(t, r.Submit(context.Background(), Message{}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Submit(ctx, Message{}), context.DeadlineExceeded)

	close(block)
	r.Wait()
}

type dispatchFunc func(context.Context, Message)

func (f dispatchFunc) Dispatch(ctx context.Context, m Message) { f(ctx, m) }
