package rewardboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoPrice is returned when no price is known for the native asset.
var ErrNoPrice = errors.New("native price unavailable")

var priceLogger = NewLogger("price-oracle")

// PriceOracle supplies the current native-asset price as a fixed-point integer.
type PriceOracle interface {
	NativePrice(ctx context.Context, chain Chain) (*big.Int, error)
}

type priceCacheEntry struct {
	value    *big.Int
	storedAt time.Time
}

// priceRepository fetches `{price-url}` (token address -> price string) and
// keeps the native token's price per chain. A failed refresh falls back to
// the last good value.
type priceRepository struct {
	client *http.Client
	ttl    time.Duration
	logger Logger
	now    func() time.Time

	mu    sync.Mutex
	cache map[int64]priceCacheEntry
}

// NewPriceOracle wires the production price feed.
func NewPriceOracle(cfg Config) PriceOracle {
	return newPriceRepository(newUpstreamHTTPClient(cfg.RateLimit, nil, cfg.Cache.FetchTimeout), cfg.Cache.PriceTTL, priceLogger)
}

func newPriceRepository(client *http.Client, ttl time.Duration, logger Logger) *priceRepository {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	return &priceRepository{
		client: client,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
		cache:  make(map[int64]priceCacheEntry),
	}
}

func (r *priceRepository) NativePrice(ctx context.Context, chain Chain) (*big.Int, error) {
	if r == nil {
		return nil, ErrNoPrice
	}
	if chain.PriceURL() == "" {
		return nil, fmt.Errorf("chain %d has no price feed: %w", chain.ID, ErrNoPrice)
	}
	if price, ok := r.cached(chain.ID); ok {
		return price, nil
	}

	price, err := r.fetch(ctx, chain)
	if err != nil {
		incrementOutcome(priceFetchCounts, chain.ID, fetchOutcomeError)
		r.mu.Lock()
		defer r.mu.Unlock()
		if entry, ok := r.cache[chain.ID]; ok {
			r.logf("price refresh failed chain=%d err=%v (serving stale)", chain.ID, err)
			return new(big.Int).Set(entry.value), nil
		}
		return nil, err
	}

	incrementOutcome(priceFetchCounts, chain.ID, fetchOutcomeOK)
	r.store(chain.ID, price)
	return new(big.Int).Set(price), nil
}

func (r *priceRepository) cached(chainID int64) (*big.Int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.cache[chainID]
	if !ok {
		return nil, false
	}
	if r.now().Sub(entry.storedAt) > r.ttl {
		return nil, false
	}
	return new(big.Int).Set(entry.value), true
}

func (r *priceRepository) store(chainID int64, price *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache[chainID] = priceCacheEntry{
		value:    new(big.Int).Set(price),
		storedAt: r.now(),
	}
}

func (r *priceRepository) fetch(ctx context.Context, chain Chain) (*big.Int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chain.PriceURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("price status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var prices map[string]json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&prices); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}

	price, err := nativePriceFrom(prices)
	if err != nil {
		return nil, fmt.Errorf("chain %d: %w", chain.ID, err)
	}
	return price, nil
}

// nativePriceFrom picks the zero-address entry, whatever the key's casing.
func nativePriceFrom(prices map[string]json.RawMessage) (*big.Int, error) {
	zero := common.Address{}
	for key, raw := range prices {
		if !common.IsHexAddress(key) || common.HexToAddress(key) != zero {
			continue
		}
		var amount Amount
		if err := json.Unmarshal(raw, &amount); err != nil {
			return nil, fmt.Errorf("parse native price: %w", err)
		}
		if amount.Sign() <= 0 {
			return nil, ErrNoPrice
		}
		return amount.Int(), nil
	}
	return nil, ErrNoPrice
}

func (r *priceRepository) logf(format string, args ...any) {
	if r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
