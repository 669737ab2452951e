package rewardboard

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	rewardsMaxEntriesEnv = "REWARDBOARD_CACHE_REWARDS_MAX_ENTRIES"
	rewardsTTLEnv        = "REWARDBOARD_CACHE_REWARDS_TTL"
	accountMaxEntriesEnv = "REWARDBOARD_CACHE_ACCOUNT_MAX_ENTRIES"
	priceTTLEnv          = "REWARDBOARD_CACHE_PRICE_TTL"
	cacheJanitorEnv      = "REWARDBOARD_CACHE_JANITOR_INTERVAL"
	fetchTimeoutEnv      = "REWARDBOARD_FETCH_TIMEOUT"
)

const (
	defaultListenAddr        = ":8080"
	defaultRewardsMaxEntries = 64
	defaultRewardsTTL        = time.Minute
	defaultAccountMaxEntries = 1000
	defaultPriceTTL          = 30 * time.Second
	defaultJanitorInterval   = time.Minute
	defaultFetchTimeout      = 15 * time.Second
	defaultRateLimit         = 5
	defaultRateBurst         = 5
	defaultPriceDecimals     = 30
	defaultTokenDecimals     = 18
)

// Config is the service configuration, loaded from YAML and overridden by the environment.
type Config struct {
	Listen    string          `yaml:"listen"`
	Chains    []ChainConfig   `yaml:"chains"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate-limit"`
	Display   DisplayConfig   `yaml:"display"`
	Log       LogConfig       `yaml:"log"`
}

// ChainConfig describes one supported network.
type ChainConfig struct {
	ID        int64  `yaml:"id"`
	Name      string `yaml:"name"`
	ServerURL string `yaml:"server-url"`
	PriceURL  string `yaml:"price-url"`
}

// CacheConfig sizes the in-memory caches.
type CacheConfig struct {
	RewardsMaxEntries int           `yaml:"rewards-max-entries"`
	RewardsTTL        time.Duration `yaml:"rewards-ttl"`
	AccountMaxEntries int           `yaml:"account-max-entries"`
	PriceTTL          time.Duration `yaml:"price-ttl"`
	JanitorInterval   time.Duration `yaml:"janitor-interval"`
	FetchTimeout      time.Duration `yaml:"fetch-timeout"`
}

// RateLimitConfig bounds requests per upstream host.
type RateLimitConfig struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// DisplayConfig sets the fixed-point scales used for display conversion.
type DisplayConfig struct {
	PriceDecimals int32 `yaml:"price-decimals"`
	TokenDecimals int32 `yaml:"token-decimals"`
}

// LoadConfig reads the YAML file at path (skipped when empty), applies
// environment overrides and defaults, then validates the result.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("unmarshal config yaml: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(ListenAddrEnv)); v != "" {
		c.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv(LogLevelEnv)); v != "" {
		c.Log.Level = v
	}
	c.Cache.RewardsMaxEntries = loadIntEnv(rewardsMaxEntriesEnv, c.Cache.RewardsMaxEntries)
	c.Cache.RewardsTTL = loadDurationEnv(rewardsTTLEnv, c.Cache.RewardsTTL)
	c.Cache.AccountMaxEntries = loadIntEnv(accountMaxEntriesEnv, c.Cache.AccountMaxEntries)
	c.Cache.PriceTTL = loadDurationEnv(priceTTLEnv, c.Cache.PriceTTL)
	c.Cache.JanitorInterval = loadDurationEnv(cacheJanitorEnv, c.Cache.JanitorInterval)
	c.Cache.FetchTimeout = loadDurationEnv(fetchTimeoutEnv, c.Cache.FetchTimeout)
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = defaultListenAddr
	}
	if c.Cache.RewardsMaxEntries == 0 {
		c.Cache.RewardsMaxEntries = defaultRewardsMaxEntries
	}
	if c.Cache.RewardsTTL == 0 {
		c.Cache.RewardsTTL = defaultRewardsTTL
	}
	if c.Cache.AccountMaxEntries == 0 {
		c.Cache.AccountMaxEntries = defaultAccountMaxEntries
	}
	if c.Cache.PriceTTL == 0 {
		c.Cache.PriceTTL = defaultPriceTTL
	}
	if c.Cache.JanitorInterval == 0 {
		c.Cache.JanitorInterval = defaultJanitorInterval
	}
	if c.Cache.FetchTimeout == 0 {
		c.Cache.FetchTimeout = defaultFetchTimeout
	}
	if c.RateLimit.Rate <= 0 {
		c.RateLimit.Rate = defaultRateLimit
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = defaultRateBurst
	}
	if c.Display.PriceDecimals == 0 {
		c.Display.PriceDecimals = defaultPriceDecimals
	}
	if c.Display.TokenDecimals == 0 {
		c.Display.TokenDecimals = defaultTokenDecimals
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("config: no chains configured")
	}
	seen := make(map[int64]struct{}, len(c.Chains))
	for _, chain := range c.Chains {
		if chain.ID <= 0 {
			return fmt.Errorf("config: chain %q has invalid id %d", chain.Name, chain.ID)
		}
		if _, ok := seen[chain.ID]; ok {
			return fmt.Errorf("config: chain %d configured twice", chain.ID)
		}
		seen[chain.ID] = struct{}{}
		if strings.TrimSpace(chain.ServerURL) == "" {
			return fmt.Errorf("config: chain %d has no server-url", chain.ID)
		}
	}
	if c.Display.PriceDecimals < 0 || c.Display.TokenDecimals < 0 {
		return fmt.Errorf("config: display decimals must not be negative")
	}
	return nil
}

func loadIntEnv(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	num, err := strconv.Atoi(value)
	if err != nil || num < 0 {
		return fallback
	}
	return num
}

func loadDurationEnv(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	dur, err := time.ParseDuration(value)
	if err != nil || dur < 0 {
		return fallback
	}
	return dur
}
