package rewardboard

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const pricePeekTimeout = 3 * time.Second

var serverLogger = NewLogger("http")

// Server exposes the rewards pages over HTTP.
type Server struct {
	registry  *ChainRegistry
	store     *RewardsStore
	prices    PriceOracle
	assembler *PageAssembler
	logger    Logger
}

// NewServer constructs the HTTP handler serving the rewards API.
func NewServer(registry *ChainRegistry, store *RewardsStore, prices PriceOracle, assembler *PageAssembler, logger Logger) http.Handler {
	if logger == nil {
		logger = serverLogger
	}
	s := &Server{
		registry:  registry,
		store:     store,
		prices:    prices,
		assembler: assembler,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "rewardboard")
	})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	mux.Handle("GET /debug/vars", expvar.Handler())
	mux.HandleFunc("GET /api/chains", s.handleChains)
	mux.HandleFunc("GET /api/rewards/{chainID}", s.handlePage)
	mux.HandleFunc("GET /api/rewards/{chainID}/weeks", s.handleWeeks)

	return withResponseMetrics(mux, appResponseCounts)
}

type chainSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	chains := s.registry.All()
	out := make([]chainSummary, 0, len(chains))
	for _, chain := range chains {
		out = append(out, chainSummary{ID: chain.ID, Name: chain.Name})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	req, err := parsePageRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	state, ok := s.loadState(w, r, req.ChainID)
	if !ok {
		return
	}

	price := s.nativePrice(r.Context(), req.ChainID, state)
	writeJSON(w, http.StatusOK, s.assembler.Build(req, state, price))
}

type weeksResponse struct {
	ChainID        int64        `json:"chainId"`
	RewardsMessage string       `json:"rewardsMessage"`
	SelectedWeek   int          `json:"selectedWeek,omitempty"`
	Weeks          []WeekOption `json:"weeks"`
}

func (s *Server) handleWeeks(w http.ResponseWriter, r *http.Request) {
	chainID, err := parseChainID(r.PathValue("chainID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	state, ok := s.loadState(w, r, chainID)
	if !ok {
		return
	}
	selected := ReconcileSelection(state, 0)
	writeJSON(w, http.StatusOK, weeksResponse{
		ChainID:        chainID,
		RewardsMessage: StatusMessage(state, selected),
		SelectedWeek:   selected,
		Weeks:          weekOptions(state.Weeks),
	})
}

func (s *Server) loadState(w http.ResponseWriter, r *http.Request, chainID int64) (RewardsState, bool) {
	state, err := s.store.Get(r.Context(), chainID)
	if err != nil {
		if errors.Is(err, ErrUnknownChain) {
			writeError(w, http.StatusNotFound, err)
			return RewardsState{}, false
		}
		s.logger.Printf("rewards state chain=%d err=%v", chainID, err)
		writeError(w, http.StatusInternalServerError, err)
		return RewardsState{}, false
	}
	return state, true
}

// nativePrice returns nil whenever no conversion should happen.
func (s *Server) nativePrice(ctx context.Context, chainID int64, state RewardsState) *big.Int {
	if s.prices == nil || !state.HasData() {
		return nil
	}
	chain, err := s.registry.Lookup(chainID)
	if err != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pricePeekTimeout)
	defer cancel()
	price, err := s.prices.NativePrice(ctx, chain)
	if err != nil {
		s.logger.Printf("native price chain=%d err=%v", chainID, err)
		return nil
	}
	return price
}

func parsePageRequest(r *http.Request) (PageRequest, error) {
	chainID, err := parseChainID(r.PathValue("chainID"))
	if err != nil {
		return PageRequest{}, err
	}

	q := r.URL.Query()
	req := PageRequest{
		ChainID: chainID,
		View:    ParseView(q.Get("view")),
	}

	if account := strings.TrimSpace(q.Get("account")); account != "" {
		if !common.IsHexAddress(account) {
			return PageRequest{}, fmt.Errorf("invalid account %q", account)
		}
		req.Account = account
	}

	if raw := strings.TrimSpace(q.Get("week")); raw != "" {
		week, err := strconv.Atoi(raw)
		if err != nil || week < 1 {
			return PageRequest{}, fmt.Errorf("invalid week %q", raw)
		}
		req.Week = week
	}
	return req, nil
}

func parseChainID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid chain id %q", raw)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		serverLogger.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
