package rewardboard

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

const nativePriceBody = `{
	"0x0000000000000000000000000000000000000000": "2000000000000000000000000000000000",
	"0x82aF49447D8a07e3bd95BD0d56f35241523fBab1": "1999000000000000000000000000000000"
}`

func TestPriceRepositoryCachesNativePrice(t *testing.T) {
	t.Parallel()

	var calls int32
	client := &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			atomic.AddInt32(&calls, 1)
			if req.URL.String() != "http://prices.test/prices" {
				t.Fatalf("unexpected url: %s", req.URL)
			}
			return jsonResponse(http.StatusOK, nativePriceBody), nil
		}),
	}
	repo := newPriceRepository(client, time.Minute, newTestLogger())

	for i := 0; i < 3; i++ {
		price, err := repo.NativePrice(context.Background(), testChain())
		if err != nil {
			t.Fatalf("NativePrice returned error: %v", err)
		}
		if price.String() != "2000000000000000000000000000000000" {
			t.Fatalf("unexpected price: %s", price)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single upstream call, got %d", got)
	}
}

func TestPriceRepositoryServesStaleOnFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)
	fail := false
	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			if fail {
				return jsonResponse(http.StatusServiceUnavailable, "down"), nil
			}
			return jsonResponse(http.StatusOK, nativePriceBody), nil
		}),
	}
	repo := newPriceRepository(client, time.Minute, newTestLogger())
	repo.now = func() time.Time { return now }

	if _, err := repo.NativePrice(context.Background(), testChain()); err != nil {
		t.Fatalf("initial fetch failed: %v", err)
	}

	fail = true
	now = now.Add(time.Hour)
	price, err := repo.NativePrice(context.Background(), testChain())
	if err != nil {
		t.Fatalf("expected stale price, got error: %v", err)
	}
	if price.Sign() <= 0 {
		t.Fatalf("unexpected stale price: %s", price)
	}
}

func TestPriceRepositoryMissingNativeEntry(t *testing.T) {
	t.Parallel()

	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"0x82aF49447D8a07e3bd95BD0d56f35241523fBab1":"1"}`), nil
		}),
	}
	repo := newPriceRepository(client, time.Minute, newTestLogger())

	_, err := repo.NativePrice(context.Background(), testChain())
	if !errors.Is(err, ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice, got %v", err)
	}

	noFeed := testChain()
	noFeed.priceURL = ""
	if _, err := repo.NativePrice(context.Background(), noFeed); !errors.Is(err, ErrNoPrice) {
		t.Fatalf("expected ErrNoPrice for chain without feed, got %v", err)
	}
}
