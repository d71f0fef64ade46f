package timer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"hardcore/internal/bootstrap/logging"
)

// Facility runs delayed and periodic callbacks on a single executor
// goroutine, so callbacks never run concurrently with each other.
type Facility struct {
	ctx    context.Context
	cancel context.CancelFunc

	fire chan *Handle
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]*Handle
	closed  bool
}

// Handle identifies one scheduled task.
type Handle struct {
	f         *Facility
	id        uint64
	interval  time.Duration
	fn        func(ctx context.Context) bool
	timer     *time.Timer
	cancelled atomic.Bool
}

func New(ctx context.Context) *Facility {
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f := &Facility{
		ctx:     logging.WithAttrs(runCtx, slog.String("component", "infrastructure.timer")),
		cancel:  cancel,
		fire:    make(chan *Handle),
		done:    make(chan struct{}),
		pending: make(map[uint64]*Handle),
	}
	f.wg.Add(1)
	go f.executor()
	return f
}

// After runs fn once after delay.
func (f *Facility) After(delay time.Duration, fn func(ctx context.Context)) *Handle {
	return f.schedule(delay, 0, func(ctx context.Context) bool {
		fn(ctx)
		return false
	})
}

// Every runs fn after delay and then every interval for as long as fn
// returns true.
func (f *Facility) Every(delay, interval time.Duration, fn func(ctx context.Context) bool) *Handle {
	if interval <= 0 {
		interval = delay
	}
	return f.schedule(delay, interval, fn)
}

// Pending reports how many tasks are scheduled and not yet finished.
func (f *Facility) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

func (f *Facility) schedule(delay, interval time.Duration, fn func(ctx context.Context) bool) *Handle {
	if delay < 0 {
		delay = 0
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	h := &Handle{f: f, id: f.nextID, interval: interval, fn: fn}
	if f.closed {
		h.cancelled.Store(true)
		return h
	}
	f.pending[h.id] = h
	h.timer = time.AfterFunc(delay, func() { f.enqueue(h) })
	return h
}

func (f *Facility) enqueue(h *Handle) {
	select {
	case f.fire <- h:
	case <-f.done:
	}
}

func (f *Facility) executor() {
	defer f.wg.Done()
	for {
		select {
		case <-f.done:
			return
		case h := <-f.fire:
			f.run(h)
		}
	}
}

func (f *Facility) run(h *Handle) {
	if h.cancelled.Load() {
		return
	}

	keep := func() (keep bool) {
		defer func() {
			if r := recover(); r != nil {
				logging.Error(f.ctx, "scheduled task panic", slog.Uint64("task_id", h.id), slog.Any("panic", r))
				keep = false
			}
		}()
		return h.fn(f.ctx)
	}()

	if keep && h.interval > 0 && !h.cancelled.Load() {
		f.mu.Lock()
		if !f.closed {
			h.timer.Reset(h.interval)
			f.mu.Unlock()
			return
		}
		f.mu.Unlock()
	}
	h.finish()
}

// Close cancels every pending task and stops the executor.
func (f *Facility) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	for _, h := range f.pending {
		h.cancelled.Store(true)
		h.timer.Stop()
	}
	f.pending = make(map[uint64]*Handle)
	f.mu.Unlock()

	close(f.done)
	f.cancel()
	f.wg.Wait()
}

// Cancel stops the task; a callback already running completes.
func (h *Handle) Cancel() {
	if h == nil || h.cancelled.Swap(true) {
		return
	}
	if h.timer != nil {
		h.timer.Stop()
	}
	h.finish()
}

func (h *Handle) Cancelled() bool {
	return h.cancelled.Load()
}

func (h *Handle) finish() {
	h.f.mu.Lock()
	delete(h.f.pending, h.id)
	h.f.mu.Unlock()
}
