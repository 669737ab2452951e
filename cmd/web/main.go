package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/monjuik/rewardboard"
)

func main() {
	if err := run(context.Background(), os.Getenv(rewardboard.ConfigPathEnv)); err != nil {
		log.Printf("rewardboard: %v", err)
		os.Exit(1)
	}
}

// run serves until ctx is cancelled or the listener fails. Buffered log
// entries are flushed before it returns.
func run(ctx context.Context, configPath string) error {
	cfg, err := rewardboard.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := rewardboard.ConfigureLogging(cfg.Log); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer rewardboard.SyncLogging()
	logger := rewardboard.NewLogger("web")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := rewardboard.NewChainRegistry(cfg.Chains)
	store := rewardboard.NewRewardsStore(registry, rewardboard.NewHTTPRewardsClient(cfg), rewardboard.StoreOptions{
		TTL:             cfg.Cache.RewardsTTL,
		MaxEntries:      cfg.Cache.RewardsMaxEntries,
		FetchTimeout:    cfg.Cache.FetchTimeout,
		JanitorInterval: cfg.Cache.JanitorInterval,
		Tracker:         rewardboard.NewLogPageTracker(nil),
	})
	go store.Run(ctx)

	assembler := rewardboard.NewPageAssembler(cfg.Display, cfg.Cache.AccountMaxEntries, cfg.Cache.RewardsTTL)
	handler := rewardboard.NewServer(registry, store, rewardboard.NewPriceOracle(cfg), assembler, nil)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Printf("shutdown: %v", err)
		}
	}()

	logger.Printf("listening at %s chains=%d", cfg.Listen, len(cfg.Chains))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("server stopped: %v", err)
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
