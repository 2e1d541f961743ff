package limiter

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

const defaultShardCount = 64

// window holds one identity's bucket table for the hour it was opened in.
type window struct {
	hourStart time.Time     // UTC, truncated to the window width
	buckets   map[int64]int // minute-start unix millis -> admissions
	hourCount int           // invariant: sum of bucket values
	lastSeen  time.Time     // wall clock of the last Allow touching this entry
}

// shard is one stripe of the identity table. Identities hash to a fixed shard
// so that callers for different identities rarely contend on the same lock.
type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// WindowedLimiter is an in-memory sliding-window-with-counters limiter.
// State lives for the process lifetime except for idle identities, which a
// background goroutine evicts after the idle TTL.
type WindowedLimiter struct {
	maxPerMinute int
	maxPerHour   int

	bucketWidth time.Duration // normally one minute
	windowWidth time.Duration // normally one hour
	slots       int           // windowWidth / bucketWidth

	cleanupInterval time.Duration
	idleTTL         time.Duration

	shards []*shard

	closeMu sync.Mutex
	done    chan struct{}
	closed  bool
}

// Option configures a WindowedLimiter beyond its required limits.
type Option func(*WindowedLimiter)

// WithBucketWidth overrides the minute-bucket duration. Intended for tests
// that cannot wait out real minutes.
func WithBucketWidth(d time.Duration) Option {
	return func(l *WindowedLimiter) { l.bucketWidth = d }
}

// WithWindowWidth overrides the hour-window duration. Must remain an exact
// multiple of the bucket width.
func WithWindowWidth(d time.Duration) Option {
	return func(l *WindowedLimiter) { l.windowWidth = d }
}

// WithShardCount overrides the number of lock stripes.
func WithShardCount(n int) Option {
	return func(l *WindowedLimiter) {
		if n > 0 {
			l.shards = make([]*shard, n)
		}
	}
}

// WithIdleTTL overrides how long an identity may sit untouched before the
// cleanup goroutine evicts its table. Defaults to 2x the cleanup interval.
func WithIdleTTL(d time.Duration) Option {
	return func(l *WindowedLimiter) { l.idleTTL = d }
}

// NewWindowedLimiter creates a limiter admitting at most maxPerMinute
// requests per minute bucket and maxPerHour per hour window, per identity.
// A cleanupInterval > 0 starts a background goroutine that evicts idle
// identities; pass 0 to disable eviction. Invalid limits fail fast.
func NewWindowedLimiter(maxPerMinute, maxPerHour int, cleanupInterval time.Duration, opts ...Option) (*WindowedLimiter, error) {
	if maxPerMinute <= 0 {
		return nil, fmt.Errorf("limiter: max per minute must be positive, got %d", maxPerMinute)
	}
	if maxPerHour <= 0 {
		return nil, fmt.Errorf("limiter: max per hour must be positive, got %d", maxPerHour)
	}

	l := &WindowedLimiter{
		maxPerMinute:    maxPerMinute,
		maxPerHour:      maxPerHour,
		bucketWidth:     time.Minute,
		windowWidth:     time.Hour,
		cleanupInterval: cleanupInterval,
		shards:          make([]*shard, defaultShardCount),
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.bucketWidth <= 0 || l.windowWidth <= 0 {
		return nil, fmt.Errorf("limiter: bucket and window widths must be positive")
	}
	if l.windowWidth%l.bucketWidth != 0 {
		return nil, fmt.Errorf("limiter: window width %s is not a multiple of bucket width %s", l.windowWidth, l.bucketWidth)
	}
	l.slots = int(l.windowWidth / l.bucketWidth)

	if l.idleTTL <= 0 {
		l.idleTTL = 2 * cleanupInterval
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string]*window)}
	}

	l.done = make(chan struct{})
	if cleanupInterval > 0 {
		go l.cleanup()
	}
	return l, nil
}

// Allow implements Limiter. The whole recycle-check-increment sequence runs
// under the identity's shard lock, so concurrent callers for one identity
// never observe a partially recycled table or lose an increment.
func (l *WindowedLimiter) Allow(identity string, at time.Time) (bool, Info, error) {
	if at.IsZero() {
		return false, Info{}, ErrInvalidTimestamp
	}

	// Calendar truncation in UTC keeps the bucket grid deterministic
	// regardless of the caller's local offset.
	at = at.UTC()
	minuteKey := at.Truncate(l.bucketWidth)
	hourKey := at.Truncate(l.windowWidth)

	s := l.shard(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[identity]
	if !ok || !w.hourStart.Equal(hourKey) {
		// First request, hour rollover, and backward timestamps are all the
		// same operation: throw the old table away and open a fresh one for
		// the hour containing this request.
		w = l.newWindow(hourKey)
		s.windows[identity] = w
	}
	w.lastSeen = time.Now()

	key := minuteKey.UnixMilli()
	count, ok := w.buckets[key]
	if !ok {
		return false, Info{}, fmt.Errorf("%w: minute %s, hour table starts %s",
			ErrBucketMissing, minuteKey.Format(time.RFC3339), w.hourStart.Format(time.RFC3339))
	}

	info := l.buildInfo(w, count, minuteKey)

	if count >= l.maxPerMinute || w.hourCount >= l.maxPerHour {
		// Denied requests consume no budget.
		info.RetryAfter = info.ResetAt.Sub(at)
		return false, info, nil
	}

	w.buckets[key] = count + 1
	w.hourCount++
	info.MinuteRemaining = l.maxPerMinute - count - 1
	info.HourRemaining = l.maxPerHour - w.hourCount
	return true, info, nil
}

// Window implements Limiter.
func (l *WindowedLimiter) Window(identity string) (Window, bool) {
	s := l.shard(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[identity]
	if !ok {
		return Window{}, false
	}

	snap := Window{
		HourStart: w.hourStart,
		HourCount: w.hourCount,
		Buckets:   make(map[int64]int),
		LastSeen:  w.lastSeen,
	}
	for key, count := range w.buckets {
		if count > 0 {
			snap.Buckets[key] = count
		}
	}
	return snap, true
}

// Close stops the background cleanup goroutine.
func (l *WindowedLimiter) Close() {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.done)
	}
}

func (l *WindowedLimiter) shard(identity string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return l.shards[h.Sum32()%uint32(len(l.shards))]
}

// newWindow allocates a fresh table of contiguous minute slots covering
// [hourStart, hourStart + window width), each initialized to zero.
func (l *WindowedLimiter) newWindow(hourStart time.Time) *window {
	buckets := make(map[int64]int, l.slots)
	for i := 0; i < l.slots; i++ {
		buckets[hourStart.Add(time.Duration(i)*l.bucketWidth).UnixMilli()] = 0
	}
	return &window{hourStart: hourStart, buckets: buckets}
}

// buildInfo computes header state before any increment. ResetAt is the next
// minute boundary, or the end of the hour window when the hourly budget is
// the binding constraint.
func (l *WindowedLimiter) buildInfo(w *window, count int, minuteKey time.Time) Info {
	info := Info{
		MinuteLimit:     l.maxPerMinute,
		MinuteRemaining: max(0, l.maxPerMinute-count),
		HourLimit:       l.maxPerHour,
		HourRemaining:   max(0, l.maxPerHour-w.hourCount),
		ResetAt:         minuteKey.Add(l.bucketWidth),
	}
	if w.hourCount >= l.maxPerHour {
		info.ResetAt = w.hourStart.Add(l.windowWidth)
	}
	return info
}

// cleanup periodically evicts identities that have not been seen within the
// idle TTL.
func (l *WindowedLimiter) cleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

// evictIdle removes identities whose last access is older than the idle TTL.
func (l *WindowedLimiter) evictIdle() {
	cutoff := time.Now().Add(-l.idleTTL)
	for _, s := range l.shards {
		s.mu.Lock()
		for identity, w := range s.windows {
			if w.lastSeen.Before(cutoff) {
				delete(s.windows, identity)
			}
		}
		s.mu.Unlock()
	}
}
