package rewardboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	rewardsPath          = "/rewards"
	maxRewardsBodyBytes  = 16 << 20
	defaultMaxRetries429 = 3
)

var rewardsLogger = NewLogger("rewards-client")

// RewardsFetcher loads the weekly rewards of a chain.
type RewardsFetcher interface {
	FetchRewards(ctx context.Context, chain Chain) (RewardsPayload, error)
}

// HTTPRewardsClient reads `{server}/rewards` from the chain's rewards server.
type HTTPRewardsClient struct {
	HTTPClient *http.Client
	Logger     Logger
	// MaxRetries bounds the number of 429 retries; zero means the default.
	MaxRetries int
}

// NewHTTPRewardsClient wires the upstream client used in production.
func NewHTTPRewardsClient(cfg Config) *HTTPRewardsClient {
	return &HTTPRewardsClient{
		HTTPClient: newUpstreamHTTPClient(cfg.RateLimit, nil, cfg.Cache.FetchTimeout),
		Logger:     rewardsLogger,
	}
}

func (c *HTTPRewardsClient) logger() Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return rewardsLogger
}

func (c *HTTPRewardsClient) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: defaultFetchTimeout}
}

// FetchRewards returns either the week list or the backend's error message.
func (c *HTTPRewardsClient) FetchRewards(ctx context.Context, chain Chain) (RewardsPayload, error) {
	endpoint := chain.ServerURL(rewardsPath)
	c.logger().Printf("rewards request chain=%d url=%s", chain.ID, endpoint)

	resp, err := c.doGet(ctx, endpoint)
	if err != nil {
		return RewardsPayload{}, fmt.Errorf("rewards request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRewardsBodyBytes))
	if err != nil {
		return RewardsPayload{}, fmt.Errorf("read rewards response: %w", err)
	}

	if resp.StatusCode >= 300 {
		if msg := decodeMessage(body); msg != "" {
			return RewardsPayload{Message: msg}, nil
		}
		snippet := body
		if len(snippet) > 2048 {
			snippet = snippet[:2048]
		}
		return RewardsPayload{}, fmt.Errorf("rewards status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return decodeRewardsPayload(body)
}

func decodeRewardsPayload(body []byte) (RewardsPayload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return RewardsPayload{}, fmt.Errorf("rewards response empty")
	}
	switch trimmed[0] {
	case '[':
		var weeks []RewardWeek
		if err := json.Unmarshal(trimmed, &weeks); err != nil {
			return RewardsPayload{}, fmt.Errorf("decode rewards response: %w", err)
		}
		if weeks == nil {
			weeks = []RewardWeek{}
		}
		return RewardsPayload{Weeks: weeks}, nil
	case '{':
		if msg := decodeMessage(trimmed); msg != "" {
			return RewardsPayload{Message: msg}, nil
		}
		return RewardsPayload{}, fmt.Errorf("rewards response object without message")
	default:
		return RewardsPayload{}, fmt.Errorf("unexpected rewards response: %.64s", string(trimmed))
	}
}

func decodeMessage(body []byte) string {
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(bytes.TrimSpace(body), &obj); err != nil {
		return ""
	}
	return strings.TrimSpace(obj.Message)
}

func (c *HTTPRewardsClient) doGet(ctx context.Context, endpoint string) (*http.Response, error) {
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries429
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient().Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRetries {
			if delay, ok := retryAfterDelay(resp.Header.Get("Retry-After"), c.retryLimit()); ok {
				c.logger().Printf("rewards 429 url=%s attempt=%d retryAfter=%s", endpoint, attempt+1, delay)
				resp.Body.Close()
				timer := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return nil, ctx.Err()
				case <-timer.C:
					continue
				}
			}
		}

		return resp, nil
	}
}

func (c *HTTPRewardsClient) retryLimit() time.Duration {
	if timeout := c.httpClient().Timeout; timeout > 0 {
		return timeout
	}
	return defaultFetchTimeout
}

// retryAfterDelay parses a Retry-After header, clamped to [0, limit].
func retryAfterDelay(value string, limit time.Duration) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil && secs >= 0 {
		if secs >= limit.Seconds() {
			return limit, true
		}
		return time.Duration(secs * float64(time.Second)), true
	}

	if when, err := http.ParseTime(value); err == nil {
		return min(max(time.Until(when), 0), limit), true
	}

	return 0, false
}
