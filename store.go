package rewardboard

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const failureBackoff = 5 * time.Second

var storeLogger = NewLogger("rewards-store")

// StoreOptions tunes a RewardsStore.
type StoreOptions struct {
	TTL             time.Duration
	MaxEntries      int
	FetchTimeout    time.Duration
	JanitorInterval time.Duration
	Tracker         PageTracker
	Logger          Logger
}

// RewardsStore keeps the latest rewards payload per chain. Reads of a stale
// chain return the previous data immediately and revalidate in the
// background; reads of a chain with no data wait for the fetch or for ctx.
// Concurrent refreshes of one chain collapse into a single upstream request.
type RewardsStore struct {
	registry *ChainRegistry
	fetcher  RewardsFetcher
	opts     StoreOptions
	fresh    *ttlCache[RewardsState]
	group    singleflight.Group
	now      func() time.Time

	mu     sync.Mutex
	chains map[int64]*chainEntry
}

type chainEntry struct {
	state   RewardsState
	retryAt time.Time
	tracked bool
}

// NewRewardsStore builds a store over the given fetcher.
func NewRewardsStore(registry *ChainRegistry, fetcher RewardsFetcher, opts StoreOptions) *RewardsStore {
	if opts.TTL <= 0 {
		opts.TTL = defaultRewardsTTL
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = defaultRewardsMaxEntries
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.JanitorInterval <= 0 {
		opts.JanitorInterval = defaultJanitorInterval
	}
	if opts.Logger == nil {
		opts.Logger = storeLogger
	}
	return &RewardsStore{
		registry: registry,
		fetcher:  fetcher,
		opts:     opts,
		fresh:    newTTLCache[RewardsState](opts.MaxEntries, opts.TTL),
		now:      time.Now,
		chains:   make(map[int64]*chainEntry),
	}
}

// Get returns what is known about the chain. Fetch failures never surface as
// errors here; they set RewardsState.Failed. Only an unknown chain errors.
func (s *RewardsStore) Get(ctx context.Context, chainID int64) (RewardsState, error) {
	chain, err := s.registry.Lookup(chainID)
	if err != nil {
		return RewardsState{}, err
	}
	key := strconv.FormatInt(chainID, 10)
	if state, ok := s.fresh.Get(key); ok {
		return state, nil
	}

	current, backingOff := s.snapshot(chainID)
	if backingOff {
		return current, nil
	}

	done := s.group.DoChan(key, func() (any, error) {
		s.refresh(chain)
		return nil, nil
	})
	if current.HasData() {
		return current, nil
	}

	select {
	case <-done:
	case <-ctx.Done():
	}
	state, _ := s.snapshot(chainID)
	return state, nil
}

// Run warms every configured chain and sweeps expired entries until ctx is done.
func (s *RewardsStore) Run(ctx context.Context) {
	for _, chain := range s.registry.All() {
		chain := chain
		s.group.DoChan(strconv.FormatInt(chain.ID, 10), func() (any, error) {
			s.refresh(chain)
			return nil, nil
		})
	}

	ticker := time.NewTicker(s.opts.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if purged := s.fresh.PurgeExpired(now); purged > 0 {
				s.opts.Logger.Printf("rewards cache purged=%d", purged)
			}
		}
	}
}

func (s *RewardsStore) snapshot(chainID int64) (RewardsState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.chains[chainID]
	if !ok {
		return RewardsState{ChainID: chainID}, false
	}
	backingOff := entry.state.Failed && s.now().Before(entry.retryAt)
	return entry.state, backingOff
}

func (s *RewardsStore) refresh(chain Chain) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.FetchTimeout)
	defer cancel()

	started := s.now()
	payload, err := s.fetcher.FetchRewards(ctx, chain)
	now := s.now()

	var (
		track  bool
		traits map[string]string
	)

	s.mu.Lock()
	entry, ok := s.chains[chain.ID]
	if !ok {
		entry = &chainEntry{state: RewardsState{ChainID: chain.ID}}
		s.chains[chain.ID] = entry
	}
	switch {
	case err != nil:
		entry.state.Failed = true
		entry.retryAt = now.Add(failureBackoff)
		incrementOutcome(rewardsFetchCounts, chain.ID, fetchOutcomeError)
		s.opts.Logger.Printf("rewards fetch failed chain=%d err=%v", chain.ID, err)
	case payload.Message != "":
		entry.state.Failed = true
		entry.state.Message = payload.Message
		entry.retryAt = now.Add(failureBackoff)
		incrementOutcome(rewardsFetchCounts, chain.ID, fetchOutcomeMessage)
		s.opts.Logger.Printf("rewards backend message chain=%d message=%q", chain.ID, payload.Message)
	default:
		entry.state = RewardsState{
			ChainID:   chain.ID,
			Weeks:     payload.Weeks,
			Loaded:    true,
			FetchedAt: now,
		}
		entry.retryAt = time.Time{}
		s.fresh.Add(strconv.FormatInt(chain.ID, 10), entry.state)
		if !entry.tracked {
			entry.tracked = true
			track = true
			traits = pageTraits(payload.Weeks)
		}
		incrementOutcome(rewardsFetchCounts, chain.ID, fetchOutcomeOK)
		s.opts.Logger.Printf("rewards loaded chain=%d weeks=%d took=%s", chain.ID, len(payload.Weeks), now.Sub(started))
	}
	s.mu.Unlock()

	if track && s.opts.Tracker != nil {
		s.opts.Tracker.TrackPage(chain.ID, traits)
	}
}
