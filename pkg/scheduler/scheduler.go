// Package scheduler runs a fixed-rate tick loop that owns all mutable engine
// state. Other goroutines hand work to the loop by posting tasks, which are
// drained in posting order at the start of the next tick.
package scheduler

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the tick period of a 60 Hz loop.
const DefaultInterval = time.Second / 60

// Task is work executed on the loop goroutine.
type Task func()

// TickFunc advances the owner by one tick.
type TickFunc func(now time.Time)

// ErrorHandler receives a recovered panic together with its stack.
type ErrorHandler func(err any, stack []byte)

// debugLog is set by the debug package
var debugLog func(args ...any)

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...any)) {
	debugLog = fn
}

func logDebug(args ...any) {
	if fn := debugLog; fn != nil {
		fn(args...)
	}
}

// Loop is a single-goroutine tick loop with a task queue.
type Loop struct {
	tick     TickFunc
	interval time.Duration

	mu    sync.Mutex
	queue []Task

	onPanic ErrorHandler

	running atomic.Bool
	closed  atomic.Bool
	ticks   atomic.Uint64
	panics  atomic.Uint64

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a loop that calls tick every interval once started. A
// non-positive interval uses DefaultInterval.
func New(tick TickFunc, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Loop{
		tick:     tick,
		interval: interval,
		queue:    make([]Task, 0, 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// SetErrorHandler sets the handler for panics raised by tasks or ticks.
func (l *Loop) SetErrorHandler(h ErrorHandler) {
	l.onPanic = h
}

// Post queues a task for the next tick. It returns false once the loop has
// been stopped; the task is then dropped.
func (l *Loop) Post(t Task) bool {
	if t == nil {
		return false
	}
	if l.closed.Load() {
		logDebug("[Scheduler] dropping task posted after stop")
		return false
	}
	l.mu.Lock()
	l.queue = append(l.queue, t)
	l.mu.Unlock()
	return true
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Start begins ticking on a new goroutine. Starting a running or stopped
// loop does nothing.
func (l *Loop) Start() {
	if l.closed.Load() {
		logDebug("[Scheduler] Start after Stop ignored")
		return
	}
	if !l.running.CompareAndSwap(false, true) {
		logDebug("[Scheduler] already running")
		return
	}
	logDebug("[Scheduler] starting loop, interval", l.interval)
	go l.run()
}

// Stop ends the loop, waits for the current tick to finish and drops any
// queued task. It is safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.closed.Store(true)
		close(l.stop)
		if l.running.Load() {
			<-l.done
		}
		l.mu.Lock()
		dropped := len(l.queue)
		l.queue = nil
		l.mu.Unlock()
		logDebug("[Scheduler] stopped, dropped", dropped, "tasks")
	})
}

// IsRunning returns whether the loop goroutine is active.
func (l *Loop) IsRunning() bool {
	return l.running.Load()
}

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint64 { return l.ticks.Load() }

// Panics returns the number of recovered panics.
func (l *Loop) Panics() uint64 { return l.panics.Load() }

func (l *Loop) run() {
	defer func() {
		l.running.Store(false)
		close(l.done)
		logDebug("[Scheduler] loop ended")
	}()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.Step(now)
		}
	}
}

// Step drains the queue and runs one tick on the calling goroutine. It is
// used directly when the loop is driven manually and must not be called
// while the loop goroutine is running.
func (l *Loop) Step(now time.Time) {
	if l.closed.Load() {
		return
	}
	l.mu.Lock()
	batch := l.queue
	l.queue = make([]Task, 0, cap(batch))
	l.mu.Unlock()

	for _, t := range batch {
		l.safely(t)
	}
	if l.tick != nil {
		l.safely(func() { l.tick(now) })
	}
	l.ticks.Add(1)
}

// safely runs fn, recovering a panic so the loop keeps going.
func (l *Loop) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			stack := debug.Stack()
			logDebug(fmt.Sprintf("[Scheduler] recovered panic: %v", r))
			if l.onPanic != nil {
				l.onPanic(r, stack)
			}
		}
	}()
	fn()
}
