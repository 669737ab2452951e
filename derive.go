package rewardboard

import (
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const (
	msgFetchingRewards = "Fetching rewards"
	msgFailedFetching  = "Failed fetching rewards"
	msgNoRewards       = "No rewards for network"
)

// AggregateUser folds the account's entries across all weeks. Weeks without
// an entry for the account contribute nothing.
//
// UnclaimedRewards sums Amount for entries whose Claimed flag is set. The
// backend names the flag this way; the sum is kept as served.
func AggregateUser(weeks []RewardWeek, account string) UserAggregate {
	totals := UserAggregate{
		TotalTradingVolume: NewAmount(0),
		TotalRewards:       NewAmount(0),
		UnclaimedRewards:   NewAmount(0),
	}
	for _, week := range weeks {
		idx := findTrader(week.Traders, account)
		if idx < 0 {
			continue
		}
		trader := week.Traders[idx]
		totals.TotalTradingVolume = totals.TotalTradingVolume.Add(trader.Volume)
		totals.TotalRewards = totals.TotalRewards.Add(trader.Reward)
		if trader.Claimed {
			totals.UnclaimedRewards = totals.UnclaimedRewards.Add(trader.Amount)
		}
	}
	return totals
}

// SelectWeek returns a copy of the week addressed by the 1-based selection
// with traders ordered by volume, highest first.
func SelectWeek(weeks []RewardWeek, selectedWeek int) (RewardWeek, bool) {
	if selectedWeek <= 0 {
		return RewardWeek{}, false
	}
	key := strconv.Itoa(selectedWeek - 1)
	for _, week := range weeks {
		if week.Week != key {
			continue
		}
		selected := cloneWeek(week)
		sortByVolume(selected.Traders)
		return selected, true
	}
	return RewardWeek{}, false
}

// LookupUserRank finds the account within an already sorted week. When the
// account has no entry a zero-valued placeholder without a position is returned.
func LookupUserRank(week RewardWeek, account string) Trader {
	idx := findTrader(week.Traders, account)
	if idx < 0 {
		return Trader{
			Volume: NewAmount(0),
			Reward: NewAmount(0),
		}
	}
	entry := week.Traders[idx]
	position := idx
	entry.Position = &position
	return entry
}

// ConvertToDisplay multiplies a token quantity by the fixed-point price.
func ConvertToDisplay(price *big.Int, quantity Amount) *big.Int {
	if price == nil {
		return nil
	}
	return new(big.Int).Mul(price, quantity.Int())
}

// LatestWeek returns the 1-based selection of the most recent week, or 0 when
// the list is empty or its last index is not a non-negative integer.
func LatestWeek(weeks []RewardWeek) int {
	if len(weeks) == 0 {
		return 0
	}
	last, ok := weekIndex(weeks[len(weeks)-1])
	if !ok {
		return 0
	}
	return last + 1
}

// weekIndex parses the zero-based week key the backend serves.
func weekIndex(week RewardWeek) (int, bool) {
	idx, err := strconv.Atoi(strings.TrimSpace(week.Week))
	if err != nil || idx < 0 {
		return 0, false
	}
	return idx, true
}

// ReconcileSelection heals the requested selection against the current state:
// without data nothing is selected, and a missing or unknown week falls back
// to the latest one.
func ReconcileSelection(state RewardsState, selectedWeek int) int {
	if !state.HasData() {
		return 0
	}
	if selectedWeek > 0 {
		if _, ok := SelectWeek(state.Weeks, selectedWeek); ok {
			return selectedWeek
		}
	}
	return LatestWeek(state.Weeks)
}

// StatusMessage resolves the single status line shown above the panels.
func StatusMessage(state RewardsState, selectedWeek int) string {
	switch {
	case !state.HasData():
		return msgFetchingRewards
	case state.Failed:
		return msgFailedFetching
	case len(state.Weeks) == 0:
		return msgNoRewards
	default:
		return "Week " + strconv.Itoa(selectedWeek)
	}
}

func sortByVolume(traders []Trader) {
	sort.SliceStable(traders, func(i, j int) bool {
		return traders[i].Volume.Cmp(traders[j].Volume) > 0
	})
}

func findTrader(traders []Trader, account string) int {
	for i, trader := range traders {
		if sameAddress(trader.UserAddress, account) {
			return i
		}
	}
	return -1
}

func sameAddress(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return a == b
}
