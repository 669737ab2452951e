package rewardboard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownChain is returned for chain ids missing from the registry.
var ErrUnknownChain = errors.New("unknown chain")

// Chain is a network served by the rewards backend.
type Chain struct {
	ID        int64
	Name      string
	serverURL string
	priceURL  string
}

// ServerURL joins the chain's rewards server base with path.
func (c Chain) ServerURL(path string) string {
	base := strings.TrimRight(c.serverURL, "/")
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

// PriceURL is the endpoint serving token prices for the chain.
func (c Chain) PriceURL() string {
	return c.priceURL
}

// ChainRegistry resolves chain ids to their endpoints.
type ChainRegistry struct {
	chains map[int64]Chain
}

// NewChainRegistry builds a registry from configuration.
func NewChainRegistry(configs []ChainConfig) *ChainRegistry {
	chains := make(map[int64]Chain, len(configs))
	for _, cfg := range configs {
		name := cfg.Name
		if name == "" {
			name = fmt.Sprintf("chain-%d", cfg.ID)
		}
		chains[cfg.ID] = Chain{
			ID:        cfg.ID,
			Name:      name,
			serverURL: strings.TrimSpace(cfg.ServerURL),
			priceURL:  strings.TrimSpace(cfg.PriceURL),
		}
	}
	return &ChainRegistry{chains: chains}
}

// Lookup returns the chain or ErrUnknownChain.
func (r *ChainRegistry) Lookup(id int64) (Chain, error) {
	if r != nil {
		if chain, ok := r.chains[id]; ok {
			return chain, nil
		}
	}
	return Chain{}, fmt.Errorf("chain %d: %w", id, ErrUnknownChain)
}

// All lists the chains ordered by id.
func (r *ChainRegistry) All() []Chain {
	if r == nil {
		return nil
	}
	out := make([]Chain, 0, len(r.chains))
	for _, chain := range r.chains {
		out = append(out, chain)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
