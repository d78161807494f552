package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

// Config carries the logical rate limit for one check.
type Config struct {
	// Limit is the maximum number of requests per window.
	Limit int
	// Window is the sliding window length.
	Window time.Duration
}

// Result is the outcome of a rate limit check. A denial is a regular,
// expected outcome, not an error.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the oldest counted request leaves the window.
	ResetAt time.Time
}

// RetryAfter returns how long a denied client should wait before retrying.
func (r Result) RetryAfter() time.Duration {
	d := time.Until(r.ResetAt)
	if d < 0 {
		return 0
	}
	return d
}

// Options bound the limiter's memory independently of any logical limit.
type Options struct {
	// MaxIdentifiers caps the number of tracked identifiers. When the cap
	// is reached the oldest-inserted identifier is evicted first.
	MaxIdentifiers int
	// MaxTimestampsPerIdentifier caps the timestamps retained for a single
	// identifier, so one abusive client cannot grow without bound.
	MaxTimestampsPerIdentifier int
	// SweepInterval is how often the background sweep drops identifiers
	// with no timestamps left in their window. Zero disables the sweep.
	SweepInterval time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdentifiers:             10000,
		MaxTimestampsPerIdentifier: 1000,
		SweepInterval:              5 * time.Minute,
	}
}

type entry struct {
	id     string
	stamps []time.Time
	// window is the window of the most recent check, used by the sweep to
	// decide when the entry is empty.
	window time.Duration
}

// Limiter is an in-memory sliding-window rate limiter keyed by client
// identifier. The backing store is bounded: per-identifier timestamps are
// capped, the identifier count is capped with oldest-inserted-first
// eviction, and a periodic sweep drops idle identifiers.
//
// Limiter is safe for concurrent use.
type Limiter struct {
	opts Options

	mu      sync.Mutex
	entries map[string]*list.Element
	// order holds *entry values in insertion order; the front is the
	// eviction candidate.
	order *list.List

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewLimiter creates a limiter and starts its background sweep.
func NewLimiter(opts Options) *Limiter {
	if opts.MaxIdentifiers <= 0 {
		opts.MaxIdentifiers = 10000
	}
	if opts.MaxTimestampsPerIdentifier <= 0 {
		opts.MaxTimestampsPerIdentifier = 1000
	}

	l := &Limiter{
		opts:    opts,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if opts.SweepInterval > 0 {
		go l.sweepLoop()
	}
	return l
}

// Check records a request from identifier against the sliding window and
// reports whether it is admitted. It never returns an error.
func (l *Limiter) Check(identifier string, cfg Config) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e := l.lookup(identifier)
	e.window = cfg.Window
	e.stamps = pruneBefore(e.stamps, now.Add(-cfg.Window))

	// Limit <= 0 admits nothing; the stamp slice may be empty then.
	if cfg.Limit <= 0 || len(e.stamps) >= cfg.Limit {
		resetAt := now.Add(cfg.Window)
		if len(e.stamps) > 0 {
			resetAt = e.stamps[0].Add(cfg.Window)
		}
		return Result{
			Allowed:   false,
			Limit:     cfg.Limit,
			Remaining: 0,
			ResetAt:   resetAt,
		}
	}

	// Hard per-identifier bound, independent of the logical limit.
	if len(e.stamps) >= l.opts.MaxTimestampsPerIdentifier {
		e.stamps = e.stamps[1:]
	}
	e.stamps = append(e.stamps, now)

	return Result{
		Allowed:   true,
		Limit:     cfg.Limit,
		Remaining: cfg.Limit - len(e.stamps),
		ResetAt:   e.stamps[0].Add(cfg.Window),
	}
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset drops all tracked state.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*list.Element)
	l.order.Init()
}

// Stop halts the background sweep. The limiter remains usable.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// lookup returns the entry for an identifier, creating it (and evicting the
// oldest-inserted identifier if the store is full). Callers must hold the
// lock.
func (l *Limiter) lookup(identifier string) *entry {
	if elem, ok := l.entries[identifier]; ok {
		return elem.Value.(*entry)
	}

	for len(l.entries) >= l.opts.MaxIdentifiers {
		oldest := l.order.Front()
		if oldest == nil {
			break
		}
		l.order.Remove(oldest)
		delete(l.entries, oldest.Value.(*entry).id)
	}

	e := &entry{id: identifier}
	l.entries[identifier] = l.order.PushBack(e)
	return e
}

func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

// sweep removes identifiers whose every timestamp has aged out of their
// window.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var next *list.Element
	for elem := l.order.Front(); elem != nil; elem = next {
		next = elem.Next()
		e := elem.Value.(*entry)
		e.stamps = pruneBefore(e.stamps, now.Add(-e.window))
		if len(e.stamps) == 0 {
			l.order.Remove(elem)
			delete(l.entries, e.id)
		}
	}
}

// pruneBefore drops timestamps strictly older than cutoff, keeping order.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && stamps[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}
