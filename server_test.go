package rewardboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type stubPriceOracle struct {
	price *big.Int
	err   error
}

func (s stubPriceOracle) NativePrice(context.Context, Chain) (*big.Int, error) {
	return s.price, s.err
}

func newTestServer(t *testing.T, fetcher RewardsFetcher, prices PriceOracle) *httptest.Server {
	t.Helper()
	registry := testRegistry()
	store := NewRewardsStore(registry, fetcher, StoreOptions{
		TTL:          time.Minute,
		FetchTimeout: time.Second,
		Logger:       newTestLogger(),
	})
	assembler := testAssembler()
	ts := httptest.NewServer(NewServer(registry, store, prices, assembler, newTestLogger()))
	t.Cleanup(ts.Close)
	return ts
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("failed to GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			t.Fatalf("failed to decode %q: %v", body, err)
		}
	}
	return resp.StatusCode
}

func TestServerIndexAndHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &stubRewardsFetcher{}, nil)

	tests := []struct {
		path string
		want string
	}{
		{path: "/", want: "rewardboard"},
		{path: "/healthz", want: "ok"},
		{path: "/debug/vars", want: "app_http_responses_total"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			resp, err := http.Get(ts.URL + tt.path)
			if err != nil {
				t.Fatalf("failed to GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("unexpected status: got %d, want %d", resp.StatusCode, http.StatusOK)
			}
			bodyBytes, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("failed to read body: %v", err)
			}
			if !strings.Contains(string(bodyBytes), tt.want) {
				t.Fatalf("body missing %q: %q", tt.want, bodyBytes)
			}
		})
	}
}

func TestServerPersonalPage(t *testing.T) {
	t.Parallel()

	fetcher := &stubRewardsFetcher{payload: RewardsPayload{Weeks: sampleWeeks()}}
	ts := newTestServer(t, fetcher, stubPriceOracle{price: ethPrice(2000)})

	var page Page
	status := getJSON(t, ts.URL+"/api/rewards/42161?account="+alice, &page)
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if page.RewardsMessage != "Week 3" || page.SelectedWeek != 3 {
		t.Fatalf("unexpected selection: %q week=%d", page.RewardsMessage, page.SelectedWeek)
	}
	if page.UserData == nil || page.UserData.TotalTradingVolume.String() != "400" {
		t.Fatalf("unexpected user data: %#v", page.UserData)
	}
	if page.TotalRewardAmount == nil || page.TotalRewardAmount.Formatted != "0.00" {
		// 40 wei of reward at 2000 USD rounds to zero cents
		t.Fatalf("unexpected total reward amount: %#v", page.TotalRewardAmount)
	}
	if page.WeekData != nil {
		t.Fatal("personal page should not include the leaderboard")
	}
}

func TestServerLeaderboardPage(t *testing.T) {
	t.Parallel()

	fetcher := &stubRewardsFetcher{payload: RewardsPayload{Weeks: sampleWeeks()}}
	ts := newTestServer(t, fetcher, stubPriceOracle{err: ErrNoPrice})

	var page Page
	status := getJSON(t, ts.URL+"/api/rewards/42161?view=leaderboard&week=1&account="+bob, &page)
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if page.View != ViewLeaderboard || page.NextView != ViewPersonal {
		t.Fatalf("unexpected views: %s -> %s", page.View, page.NextView)
	}
	if page.WeekData == nil || page.WeekData.Week != "0" {
		t.Fatalf("unexpected week data: %#v", page.WeekData)
	}
	if page.WeekData.Traders[0].UserAddress != alice {
		t.Fatalf("leaderboard not sorted: %#v", page.WeekData.Traders)
	}
	if page.UserWeekData == nil || page.UserWeekData.Position == nil || *page.UserWeekData.Position != 1 {
		t.Fatalf("unexpected rank: %#v", page.UserWeekData)
	}
	if page.TotalRewardAmount != nil {
		t.Fatal("display totals must be unset without a price")
	}
}

func TestServerFailedFetchStatus(t *testing.T) {
	t.Parallel()

	fetcher := &stubRewardsFetcher{err: errors.New("dial tcp: refused")}
	ts := newTestServer(t, fetcher, nil)

	var weeks weeksResponse
	status := getJSON(t, ts.URL+"/api/rewards/42161/weeks", &weeks)
	if status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	if weeks.RewardsMessage != "Fetching rewards" {
		t.Fatalf("no data must read as fetching, got %q", weeks.RewardsMessage)
	}
}

func TestServerEmptyRewards(t *testing.T) {
	t.Parallel()

	fetcher := &stubRewardsFetcher{payload: RewardsPayload{Weeks: []RewardWeek{}}}
	ts := newTestServer(t, fetcher, nil)

	var weeks weeksResponse
	getJSON(t, ts.URL+"/api/rewards/42161/weeks", &weeks)
	if weeks.RewardsMessage != "No rewards for network" {
		t.Fatalf("unexpected message %q", weeks.RewardsMessage)
	}
	if len(weeks.Weeks) != 0 || weeks.SelectedWeek != 0 {
		t.Fatalf("unexpected weeks: %#v", weeks)
	}
}

func TestServerRejectsBadRequests(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &stubRewardsFetcher{payload: RewardsPayload{Weeks: sampleWeeks()}}, nil)

	tests := []struct {
		path string
		want int
	}{
		{path: "/api/rewards/abc", want: http.StatusBadRequest},
		{path: "/api/rewards/42161?week=0", want: http.StatusBadRequest},
		{path: "/api/rewards/42161?account=alice", want: http.StatusBadRequest},
		{path: "/api/rewards/1", want: http.StatusNotFound},
		{path: "/api/rewards/1/weeks", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			var body map[string]string
			if got := getJSON(t, ts.URL+tt.path, &body); got != tt.want {
				t.Fatalf("unexpected status: got %d want %d", got, tt.want)
			}
			if body["error"] == "" {
				t.Fatalf("expected error body, got %#v", body)
			}
		})
	}
}

func TestServerListsChains(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, &stubRewardsFetcher{}, nil)

	var chains []chainSummary
	getJSON(t, ts.URL+"/api/chains", &chains)
	if len(chains) != 1 || chains[0].ID != 42161 || chains[0].Name != "arbitrum" {
		t.Fatalf("unexpected chains: %#v", chains)
	}
}
