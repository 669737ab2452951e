package rewardboard

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// View selects which panel the page renders.
type View string

const (
	ViewPersonal    View = "Personal"
	ViewLeaderboard View = "Leaderboard"
)

// ParseView maps a request value to a View; anything unrecognised is Personal.
func ParseView(raw string) View {
	if strings.EqualFold(strings.TrimSpace(raw), string(ViewLeaderboard)) {
		return ViewLeaderboard
	}
	return ViewPersonal
}

// SwitchView toggles between the two panels.
func SwitchView(current View) View {
	if current == ViewPersonal {
		return ViewLeaderboard
	}
	return ViewPersonal
}

// Header is the title block shown above a panel.
type Header struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

var viewHeaders = map[View]Header{
	ViewPersonal: {
		Title:       "Trader Rewards",
		Description: "Be in the top 50 % of traders to earn weekly rewards.",
	},
	ViewLeaderboard: {
		Title:       "Rewards Leaderboard",
		Description: "Weekly user rankings by volume.",
	},
}

// WeekOption is one entry of the week selector.
type WeekOption struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

// DisplayAmount is a display-currency value in raw fixed point and rendered form.
type DisplayAmount struct {
	Raw       Amount `json:"raw"`
	Formatted string `json:"formatted"`
}

// PageRequest carries the viewer's choices.
type PageRequest struct {
	ChainID int64
	Account string
	Week    int
	View    View
}

// Page is everything the rewards view renders.
type Page struct {
	ChainID        int64          `json:"chainId"`
	View           View           `json:"view"`
	NextView       View           `json:"nextView"`
	Header         Header         `json:"header"`
	RewardsMessage string         `json:"rewardsMessage"`
	SelectedWeek   int            `json:"selectedWeek,omitempty"`
	Weeks          []WeekOption   `json:"weeks"`
	Account        string         `json:"account,omitempty"`
	Active         bool           `json:"active"`
	UserData       *UserAggregate `json:"userData,omitempty"`
	UserWeekData   *Trader        `json:"userWeekData,omitempty"`
	WeekData       *RewardWeek    `json:"weekData,omitempty"`

	RewardAmount      *DisplayAmount `json:"rewardAmountEth,omitempty"`
	TotalRewardAmount *DisplayAmount `json:"totalRewardAmountEth,omitempty"`
	UnclaimedRewards  *DisplayAmount `json:"unclaimedRewardsEth,omitempty"`
}

// PageAssembler turns a rewards state and a price into a Page.
type PageAssembler struct {
	displayDecimals int32
	summaries       *walletSummaryCache
	summaryTTL      time.Duration
	now             func() time.Time
}

// NewPageAssembler builds an assembler. summaryEntries bounds the wallet
// summary cache; zero disables it.
func NewPageAssembler(display DisplayConfig, summaryEntries int, summaryTTL time.Duration) *PageAssembler {
	return &PageAssembler{
		displayDecimals: display.PriceDecimals + display.TokenDecimals,
		summaries:       newWalletSummaryCache(summaryEntries),
		summaryTTL:      summaryTTL,
		now:             time.Now,
	}
}

// Build derives the page. The selection is reconciled against the state
// first, so a missing or unknown week resolves to the latest one.
func (a *PageAssembler) Build(req PageRequest, state RewardsState, price *big.Int) Page {
	view := req.View
	if view != ViewLeaderboard {
		view = ViewPersonal
	}
	selected := ReconcileSelection(state, req.Week)

	page := Page{
		ChainID:        req.ChainID,
		View:           view,
		NextView:       SwitchView(view),
		Header:         viewHeaders[view],
		RewardsMessage: StatusMessage(state, selected),
		SelectedWeek:   selected,
		Weeks:          weekOptions(state.Weeks),
		Account:        req.Account,
		Active:         req.Account != "",
	}
	if !state.HasData() {
		return page
	}

	totals := a.aggregate(state, req.Account)
	page.UserData = &totals

	var userWeek *Trader
	if state.Message == "" {
		if week, ok := SelectWeek(state.Weeks, selected); ok {
			entry := LookupUserRank(week, req.Account)
			userWeek = &entry
			page.UserWeekData = userWeek
			if view == ViewLeaderboard {
				page.WeekData = &week
			}
		}
	}

	reward := a.display(nil)
	if price != nil && userWeek != nil {
		reward = a.display(ConvertToDisplay(price, userWeek.Reward))
	}
	page.RewardAmount = reward

	if price != nil {
		page.TotalRewardAmount = a.display(ConvertToDisplay(price, totals.TotalRewards))
		page.UnclaimedRewards = a.display(ConvertToDisplay(price, totals.UnclaimedRewards))
	}
	return page
}

func (a *PageAssembler) aggregate(state RewardsState, account string) UserAggregate {
	key := walletSummaryKey(state.ChainID, account, state.FetchedAt)
	now := a.now()
	if totals, ok := a.summaries.Get(key, now); ok {
		walletSummaryHits.Add(1)
		return totals
	}
	totals := AggregateUser(state.Weeks, account)
	a.summaries.Add(key, totals, now.Add(a.summaryTTL))
	return totals
}

func (a *PageAssembler) display(v *big.Int) *DisplayAmount {
	if v == nil {
		v = new(big.Int)
	}
	return &DisplayAmount{
		Raw:       AmountFromBig(v),
		Formatted: formatDisplay(v, a.displayDecimals),
	}
}

// formatDisplay renders a fixed-point value with two decimals.
func formatDisplay(v *big.Int, decimals int32) string {
	if v == nil {
		return "0.00"
	}
	return decimal.NewFromBigInt(v, -decimals).StringFixed(2)
}

func weekOptions(weeks []RewardWeek) []WeekOption {
	options := make([]WeekOption, 0, len(weeks))
	for _, week := range weeks {
		idx, ok := weekIndex(week)
		if !ok {
			continue
		}
		options = append(options, WeekOption{
			Value: idx + 1,
			Label: "Week " + strconv.Itoa(idx+1),
		})
	}
	return options
}
