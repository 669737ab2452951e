package rewardboard

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type testRoundTripFunc func(*http.Request) (*http.Response, error)

func (f testRoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func okTransport(calls *int32) http.RoundTripper {
	return testRoundTripFunc(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(calls, 1)
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("ok")),
			Request:    req,
		}, nil
	})
}

func TestTokenBucketWaitsWhenRateExceeded(t *testing.T) {
	t.Parallel()

	bucket := newTokenBucket(2, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := bucket.Wait(ctx); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
	}
	elapsed := time.Since(start)

	minExpected := 900 * time.Millisecond
	if elapsed < minExpected {
		t.Fatalf("expected at least %v of throttling, got %v", minExpected, elapsed)
	}
}

func TestTokenBucketReservations(t *testing.T) {
	t.Parallel()

	clock := time.Unix(1_700_000_000, 0)
	bucket := newTokenBucket(1, 1)
	bucket.now = func() time.Time { return clock }
	bucket.last = clock

	if d := bucket.reserve(); d != 0 {
		t.Fatalf("first token should be free, got %v", d)
	}
	if d := bucket.reserve(); d != time.Second {
		t.Fatalf("second token due after 1s, got %v", d)
	}
	if d := bucket.reserve(); d != 2*time.Second {
		t.Fatalf("third token due after 2s, got %v", d)
	}

	bucket.cancel()
	bucket.cancel()
	clock = clock.Add(time.Second)
	if d := bucket.reserve(); d != 0 {
		t.Fatalf("refilled token should be free, got %v", d)
	}
}

func TestTokenBucketHonoursCancellation(t *testing.T) {
	t.Parallel()

	bucket := newTokenBucket(0.1, 1)
	if err := bucket.Wait(context.Background()); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := bucket.Wait(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}

	bucket.mu.Lock()
	tokens := bucket.tokens
	bucket.mu.Unlock()
	if tokens < -0.01 {
		t.Fatalf("cancelled reservation was not returned, tokens=%v", tokens)
	}
}

func TestInvalidTokenBucket(t *testing.T) {
	t.Parallel()

	if newTokenBucket(0, 1) != nil || newTokenBucket(1, 0) != nil {
		t.Fatal("expected nil bucket for non-positive settings")
	}
	var bucket *tokenBucket
	if err := bucket.Wait(context.Background()); err != nil {
		t.Fatalf("nil bucket should not block: %v", err)
	}
}

func TestHostLimiterTransportSharesBucketPerHost(t *testing.T) {
	t.Parallel()

	var calls int32
	transport := newHostLimiterTransport(RateLimitConfig{Rate: 10, Burst: 1}, okTransport(&calls))

	if transport.bucketFor("rewards.test") != transport.bucketFor("rewards.test") {
		t.Fatal("expected the same bucket for one host")
	}
	if transport.bucketFor("rewards.test") == transport.bucketFor("prices.test") {
		t.Fatal("expected distinct buckets per host")
	}

	client := &http.Client{Transport: transport}
	for _, url := range []string{"http://rewards.test/rewards", "http://prices.test/prices"} {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
		if err != nil {
			t.Fatalf("failed to build request: %v", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("client request failed: %v", err)
		}
		resp.Body.Close()
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected two upstream calls, got %d", calls)
	}
}

func TestHostLimiterTransportDisabled(t *testing.T) {
	t.Parallel()

	var calls int32
	transport := newHostLimiterTransport(RateLimitConfig{}, okTransport(&calls))
	if transport.bucketFor("rewards.test") != nil {
		t.Fatal("limiting should be disabled without a rate")
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://rewards.test/", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("round trip failed: %v", err)
	}
	resp.Body.Close()
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}
