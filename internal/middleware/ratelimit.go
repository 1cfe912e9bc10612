package middleware

import (
	"hash/fnv"
	"log"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RetryAfterSeconds is the fixed hint sent with every 429.
const RetryAfterSeconds = 60

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter is the contract handlers depend on. The in-memory implementation
// below is process-local; a shared-store implementation can replace it
// without touching call sites.
type Limiter interface {
	Check(key string) Decision
}

type windowEntry struct {
	count   int
	resetAt time.Time
	seq     uint64 // insertion order, used for eviction
}

// FixedWindowLimiter counts requests per client key in fixed windows.
// Memory is bounded: every sweepEvery-th call (or whenever the table grows
// past maxKeys) expired entries are dropped, and if the table is still too
// large the oldest-inserted entries are evicted down to a low-water mark.
type FixedWindowLimiter struct {
	mu         sync.Mutex
	entries    map[string]*windowEntry
	limit      int
	window     time.Duration
	maxKeys    int
	sweepEvery uint64
	calls      uint64
	seq        uint64
	now        func() time.Time
}

// LimiterOption customizes a FixedWindowLimiter.
type LimiterOption func(*FixedWindowLimiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *FixedWindowLimiter) { l.now = now }
}

// WithSweepEvery sets how many calls pass between garbage-collection sweeps.
func WithSweepEvery(n uint64) LimiterOption {
	return func(l *FixedWindowLimiter) {
		if n > 0 {
			l.sweepEvery = n
		}
	}
}

// NewFixedWindowLimiter allows limit requests per window for each key and
// keeps at most maxKeys keys.
func NewFixedWindowLimiter(limit int, window time.Duration, maxKeys int, opts ...LimiterOption) *FixedWindowLimiter {
	if maxKeys <= 0 {
		maxKeys = 10000
	}
	l := &FixedWindowLimiter{
		entries:    make(map[string]*windowEntry),
		limit:      limit,
		window:     window,
		maxKeys:    maxKeys,
		sweepEvery: 256,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one request for key and reports whether it is allowed.
func (l *FixedWindowLimiter) Check(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.calls++

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.seq++
		l.entries[key] = &windowEntry{count: 1, resetAt: now.Add(l.window), seq: l.seq}
		l.maybeSweep(now)
		return l.decide(1)
	}

	e.count++
	if e.count <= l.limit {
		l.maybeSweep(now)
	}
	return l.decide(e.count)
}

// decide must be called with mu held. A limit below one rejects everything.
func (l *FixedWindowLimiter) decide(count int) Decision {
	if count > l.limit {
		return Decision{Allowed: false, RetryAfter: RetryAfterSeconds * time.Second}
	}
	return Decision{Allowed: true}
}

// Len returns the number of tracked keys.
func (l *FixedWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Sweep forces a garbage-collection pass.
func (l *FixedWindowLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweep(l.now())
}

func (l *FixedWindowLimiter) maybeSweep(now time.Time) {
	if l.calls%l.sweepEvery == 0 || len(l.entries) > l.maxKeys {
		l.sweep(now)
	}
}

// sweep must be called with mu held.
func (l *FixedWindowLimiter) sweep(now time.Time) {
	for k, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, k)
		}
	}
	if len(l.entries) <= l.maxKeys {
		return
	}

	// Evict to 90% of the cap so an attacker cycling keys does not force a
	// full eviction on every call.
	target := l.maxKeys - l.maxKeys/10
	type aged struct {
		key string
		seq uint64
	}
	all := make([]aged, 0, len(l.entries))
	for k, e := range l.entries {
		all = append(all, aged{k, e.seq})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })

	evicted := len(all) - target
	for _, a := range all[:evicted] {
		delete(l.entries, a.key)
	}
	log.Printf("[RATELIMIT] Evicted %d oldest keys (table was over %d)", evicted, l.maxKeys)
}

// ClientKey derives the rate-limit identity of a request: the first
// X-Forwarded-For hop, then X-Real-IP, then the socket peer address. If none
// is usable the request falls into one of a small number of buckets derived
// from its User-Agent rather than a single shared "unknown" key.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return "ip:" + ip
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		return "ip:" + real
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return "ip:" + host
	}
	h := fnv.New32a()
	h.Write([]byte(r.UserAgent()))
	return "ua:" + strconv.FormatUint(uint64(h.Sum32()%64), 10)
}

// DailyQuota caps the total number of requests per day across all clients.
// It protects the upstream model quota, not individual clients.
type DailyQuota struct {
	count   int64
	limit   int64
	resetAt time.Time
	loc     *time.Location
	mu      sync.Mutex
	now     func() time.Time
}

// NewDailyQuota creates a quota resetting at midnight in timezone. A limit of
// zero disables the quota.
func NewDailyQuota(limit int64, timezone string) *DailyQuota {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	q := &DailyQuota{limit: limit, loc: loc, now: time.Now}
	q.resetAt = q.nextMidnight()
	return q
}

// Allow checks if a request is allowed and increments the counter.
func (q *DailyQuota) Allow() bool {
	if q == nil || q.limit <= 0 {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.now().After(q.resetAt) {
		log.Printf("[QUOTA] Daily quota reset. Previous count: %d", q.count)
		q.count = 0
		q.resetAt = q.nextMidnight()
	}

	if q.count >= q.limit {
		return false
	}
	q.count++
	return true
}

// Remaining returns how many requests are left today, or -1 when the quota
// is disabled.
func (q *DailyQuota) Remaining() int64 {
	if q == nil || q.limit <= 0 {
		return -1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.now().After(q.resetAt) {
		return q.limit
	}
	return q.limit - q.count
}

func (q *DailyQuota) nextMidnight() time.Time {
	now := q.now().In(q.loc)
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, q.loc)
}

// RateLimitMiddleware rejects requests over the per-client limit, then
// requests over the daily quota (quota may be nil). Rejections are 429 with
// Retry-After and a JSON body.
func RateLimitMiddleware(limiter Limiter, quota *DailyQuota) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ClientKey(c.Request)
		if d := limiter.Check(key); !d.Allowed {
			log.Printf("[RATELIMIT] Blocked key=%s path=%s", key, c.Request.URL.Path)
			abortTooMany(c, d.RetryAfter, "RATE_LIMITED", "Trop de requêtes. Réessayez dans une minute.")
			return
		}
		if !quota.Allow() {
			log.Printf("[QUOTA] Daily quota exhausted path=%s", c.Request.URL.Path)
			abortTooMany(c, RetryAfterSeconds*time.Second, "DAILY_QUOTA_EXCEEDED", "Le quota quotidien de générations est atteint. Réessayez plus tard.")
			return
		}
		c.Next()
	}
}

func abortTooMany(c *gin.Context, retryAfter time.Duration, code, message string) {
	secs := int(retryAfter / time.Second)
	if secs <= 0 {
		secs = RetryAfterSeconds
	}
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error": message,
		"code":  code,
	})
}
