package frame

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultInterval is one display refresh at 60 Hz.
const DefaultInterval = time.Second / 60

// Callback runs once for the frame it was requested for.
type Callback func(now time.Time)

// Handle identifies a pending frame request.
type Handle uint64

// Scheduler is a cooperative per-frame scheduler. Callbacks never run
// concurrently with each other; a callback that wants to run again must
// request the next frame itself.
type Scheduler interface {
	// RequestFrame schedules cb for the next frame.
	RequestFrame(cb Callback) Handle
	// CancelFrame drops a pending request. It never interrupts a callback
	// that is already running.
	CancelFrame(h Handle)
	// Post runs fn on the scheduler before the next frame's callbacks.
	Post(fn func())
}

// queue holds the pending requests shared by Ticker and Manual.
type queue struct {
	mu      sync.Mutex
	nextID  Handle
	pending map[Handle]Callback
	running map[Handle]Callback
	posted  []func()

	frames  uint64
	onPanic func(v any)
}

func (q *queue) init() {
	q.pending = make(map[Handle]Callback)
}

func (q *queue) RequestFrame(cb Callback) Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.pending[q.nextID] = cb
	return q.nextID
}

func (q *queue) CancelFrame(h Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, h)
	delete(q.running, h)
}

func (q *queue) Post(fn func()) {
	q.mu.Lock()
	q.posted = append(q.posted, fn)
	q.mu.Unlock()
}

// Frames returns the number of frames run so far.
func (q *queue) Frames() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.frames
}

// runFrame drains posted work, then runs every callback that was pending
// when the frame started, oldest request first.
func (q *queue) runFrame(now time.Time) {
	q.mu.Lock()
	posted := q.posted
	q.posted = nil
	q.mu.Unlock()

	for _, fn := range posted {
		q.safely(func() { fn() })
	}

	q.mu.Lock()
	q.frames++
	q.running = q.pending
	q.pending = make(map[Handle]Callback)
	handles := make([]Handle, 0, len(q.running))
	for h := range q.running {
		handles = append(handles, h)
	}
	q.mu.Unlock()

	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	for _, h := range handles {
		q.mu.Lock()
		cb, ok := q.running[h]
		delete(q.running, h)
		q.mu.Unlock()
		if !ok {
			continue
		}
		q.safely(func() { cb(now) })
	}
}

func (q *queue) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil && q.onPanic != nil {
			q.onPanic(r)
		}
	}()
	fn()
}

// Ticker drives a Scheduler from a time.Ticker.
type Ticker struct {
	queue

	clock    Clock
	interval time.Duration
	logger   zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewTicker creates a frame ticker. A non-positive interval selects
// DefaultInterval; a nil clock selects the system clock.
func NewTicker(interval time.Duration, clock Clock, logger zerolog.Logger) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	t := &Ticker{
		clock:    clock,
		interval: interval,
		logger:   logger.With().Str("component", "frame").Logger(),
		stop:     make(chan struct{}),
	}
	t.init()
	t.onPanic = func(v any) {
		t.logger.Error().Str("panic", fmt.Sprint(v)).Msg("Frame callback panicked")
	}
	return t
}

// Run runs frames until ctx is done or Stop is called.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info().Float64("hz", 1/t.interval.Seconds()).Msg("Frame loop started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("Frame loop stopped")
			return
		case <-t.stop:
			t.logger.Info().Msg("Frame loop stopped")
			return
		case <-ticker.C:
			t.runFrame(t.clock.Now())
		}
	}
}

// Stop halts Run. It is safe to call more than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// Manual is a Scheduler stepped explicitly, for tests and offline rendering.
// Panics raised by callbacks are recovered and kept for Panics.
type Manual struct {
	queue
	clock  *ManualClock
	panics []any
}

// NewManual creates a manual scheduler over clock.
func NewManual(clock *ManualClock) *Manual {
	m := &Manual{clock: clock}
	m.init()
	m.onPanic = func(v any) {
		m.mu.Lock()
		m.panics = append(m.panics, v)
		m.mu.Unlock()
	}
	return m
}

// Panics returns the values recovered from panicking callbacks so far.
func (m *Manual) Panics() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]any(nil), m.panics...)
}

// Step advances the clock by d and runs one frame.
func (m *Manual) Step(d time.Duration) {
	m.runFrame(m.clock.Advance(d))
}

// Pending reports how many callbacks wait for the next frame.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

var (
	_ Scheduler = (*Ticker)(nil)
	_ Scheduler = (*Manual)(nil)
)
