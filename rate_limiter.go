package rewardboard

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// tokenBucket hands out reservations: a caller takes a token immediately,
// possibly driving the balance negative, and sleeps until the bucket would
// have refilled to cover it. Waiters are served in arrival order.
type tokenBucket struct {
	mu       sync.Mutex
	rate     float64
	capacity float64
	tokens   float64
	last     time.Time
	now      func() time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	if rate <= 0 || burst <= 0 {
		return nil
	}
	return &tokenBucket{
		rate:     rate,
		capacity: float64(burst),
		tokens:   float64(burst),
		last:     time.Now(),
		now:      time.Now,
	}
}

// reserve takes one token and reports how long the caller must wait for it.
func (b *tokenBucket) reserve() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+b.rate*elapsed.Seconds())
		b.last = now
	}
	b.tokens--
	if b.tokens >= 0 {
		return 0
	}
	return time.Duration(-b.tokens / b.rate * float64(time.Second))
}

// cancel returns a reservation that was never used.
func (b *tokenBucket) cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = min(b.capacity, b.tokens+1)
}

// Wait blocks until the reserved token is due or ctx is done.
func (b *tokenBucket) Wait(ctx context.Context) error {
	if b == nil {
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	delay := b.reserve()
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		b.cancel()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// hostLimiterTransport throttles outgoing requests with one bucket per
// upstream host, so a chain's rewards server and its price feed do not
// share a budget.
type hostLimiterTransport struct {
	cfg  RateLimitConfig
	base http.RoundTripper

	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

func newHostLimiterTransport(cfg RateLimitConfig, base http.RoundTripper) *hostLimiterTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &hostLimiterTransport{
		cfg:     cfg,
		base:    base,
		buckets: make(map[string]*tokenBucket),
	}
}

func (t *hostLimiterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if bucket := t.bucketFor(req.URL.Hostname()); bucket != nil {
		if err := bucket.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	return t.base.RoundTrip(req)
}

// bucketFor returns nil when limiting is disabled.
func (t *hostLimiterTransport) bucketFor(host string) *tokenBucket {
	if host == "" || t.cfg.Rate <= 0 || t.cfg.Burst <= 0 {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bucket, ok := t.buckets[host]
	if !ok {
		bucket = newTokenBucket(t.cfg.Rate, t.cfg.Burst)
		t.buckets[host] = bucket
	}
	return bucket
}
