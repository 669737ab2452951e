package rewardboard

import (
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// walletSummaryCache memoizes a wallet's folded totals for one payload of a
// chain. Entries are keyed by the payload fetch time so a refresh never
// serves totals computed from older weeks.
type walletSummaryCache struct {
	mu    sync.Mutex
	store *lru.Cache[string, walletSummaryEntry]
}

type walletSummaryEntry struct {
	totals    UserAggregate
	expiresAt time.Time
}

func newWalletSummaryCache(maxEntries int) *walletSummaryCache {
	if maxEntries <= 0 {
		return nil
	}
	store, err := lru.New[string, walletSummaryEntry](maxEntries)
	if err != nil {
		return nil
	}
	return &walletSummaryCache{
		store: store,
	}
}

func walletSummaryKey(chainID int64, account string, fetchedAt time.Time) string {
	if account == "" || fetchedAt.IsZero() {
		return ""
	}
	return strconv.FormatInt(chainID, 10) + ":" + strings.ToLower(account) + ":" + strconv.FormatInt(fetchedAt.UnixNano(), 10)
}

func (c *walletSummaryCache) Get(key string, now time.Time) (UserAggregate, bool) {
	if c == nil || key == "" {
		return UserAggregate{}, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.store.Get(key)
	if !ok {
		return UserAggregate{}, false
	}
	if now.After(entry.expiresAt) {
		c.store.Remove(key)
		return UserAggregate{}, false
	}
	return entry.totals, true
}

func (c *walletSummaryCache) Add(key string, totals UserAggregate, expiresAt time.Time) {
	if c == nil || key == "" || expiresAt.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Add(key, walletSummaryEntry{
		totals:    totals,
		expiresAt: expiresAt,
	})
}
