package rewardboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// RewardWeek is one period's leaderboard and reward snapshot.
type RewardWeek struct {
	Week    string   `json:"week"`
	Traders []Trader `json:"traders"`
}

// Trader is one user's volume and reward data within a week.
type Trader struct {
	UserAddress string `json:"user_address"`
	Volume      Amount `json:"volume"`
	Reward      Amount `json:"reward"`
	Claimed     bool   `json:"claimed"`
	Amount      Amount `json:"amount"`
	Position    *int   `json:"position,omitempty"`
}

// UnmarshalJSON tolerates numeric week indexes.
func (w *RewardWeek) UnmarshalJSON(data []byte) error {
	var raw struct {
		Week    json.RawMessage `json:"week"`
		Traders []Trader        `json:"traders"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	week := bytes.TrimSpace(raw.Week)
	switch {
	case len(week) == 0 || bytes.Equal(week, []byte("null")):
		w.Week = ""
	case week[0] == '"':
		if err := json.Unmarshal(week, &w.Week); err != nil {
			return fmt.Errorf("decode week: %w", err)
		}
	default:
		var n json.Number
		if err := json.Unmarshal(week, &n); err != nil {
			return fmt.Errorf("decode week: %w", err)
		}
		w.Week = n.String()
	}
	w.Traders = raw.Traders
	return nil
}

// UserAggregate holds a wallet's totals folded over every week.
type UserAggregate struct {
	TotalTradingVolume Amount `json:"totalTradingVolume"`
	TotalRewards       Amount `json:"totalRewards"`
	UnclaimedRewards   Amount `json:"unclaimedRewards"`
}

// RewardsPayload is the decoded body of the rewards endpoint. Message is set
// when the backend answered with an error object instead of a week list.
type RewardsPayload struct {
	Weeks   []RewardWeek
	Message string
}

// RewardsState is what the store knows about a chain at a point in time.
type RewardsState struct {
	ChainID   int64
	Weeks     []RewardWeek
	Loaded    bool
	Failed    bool
	Message   string
	FetchedAt time.Time
}

// HasData reports whether the backend has answered, either with a week list
// or with an error message.
func (s RewardsState) HasData() bool {
	return s.Loaded || s.Message != ""
}

func cloneWeek(week RewardWeek) RewardWeek {
	traders := make([]Trader, len(week.Traders))
	for i, trader := range week.Traders {
		traders[i] = trader
		if trader.Position != nil {
			pos := *trader.Position
			traders[i].Position = &pos
		}
	}
	return RewardWeek{Week: week.Week, Traders: traders}
}
