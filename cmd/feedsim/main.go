// Command feedsim serves simulated football-data.org matches for local runs.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/scoreline/internal/feedsim"
	"github.com/okian/scoreline/pkg/logger"
)

// Default configuration constants.
const (
	defaultMatches      = 8
	defaultTick         = 5 * time.Second
	defaultReadTimeout  = 5 * time.Second
	defaultShutdownWait = 5 * time.Second
)

func main() {
	var (
		addr       = flag.String("addr", ":9090", "Listen address")
		matches    = flag.Int("matches", defaultMatches, "Number of simulated fixtures")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed for a reproducible run")
		goalChance = flag.Float64("goal-chance", 0.015, "Per-minute scoring probability per team")
		tick       = flag.Duration("tick", defaultTick, "Wall-clock time per simulated minute")
		apiKey     = flag.String("key", "", "Require this X-Auth-Token")
		limitEvery = flag.Int("rate-limit-every", 0, "Answer every nth request with 429 (0 = never)")
		limitReset = flag.Int("rate-limit-reset", 60, "Seconds advertised in X-RequestCounter-Reset")
		logFormat  = flag.String("log-format", logger.FormatText, "Log format: text or json")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.Named("feedsim")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sim := feedsim.NewSimulator(feedsim.WithMatches(*matches), feedsim.WithSeed(*seed), feedsim.WithGoalChance(*goalChance))
	handler := feedsim.NewServer(sim, feedsim.WithAPIKey(*apiKey), feedsim.WithRateLimitEvery(*limitEvery, *limitReset))

	srv := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: defaultReadTimeout,
	}

	go func() {
		t := time.NewTicker(*tick)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				sim.Advance(1)
				if sim.Done() {
					log.Info(ctx, "all simulated matches finished")
					return
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownWait)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info(ctx, "feed simulator listening",
		logger.String("addr", *addr),
		logger.Int("matches", *matches),
		logger.Int64("seed", *seed),
		logger.Duration("tick", *tick),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(ctx, "feed simulator stopped", logger.Error(err))
		os.Exit(1)
	}
	req, limited := handler.Stats()
	log.Info(ctx, "feed simulator stopped", logger.Int("requests", req), logger.Int("rate_limited", limited))
}
