// cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/andrewlind/stockdash/cache"
	"github.com/andrewlind/stockdash/internal/config"
	"github.com/andrewlind/stockdash/internal/jobs"
	"github.com/andrewlind/stockdash/internal/stocks"
	"github.com/andrewlind/stockdash/marketdata"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("config error")
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("component", "worker").Logger()

	// Worker shares the disk tier with the api process; its memory tier
	// is its own. Concurrent writes for the same key are idempotent
	// overwrites of equivalent data.
	store, err := cache.New(cfg.CacheDir, cache.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("cache init error")
	}

	var clientOpts []marketdata.Option
	if cfg.ProviderURL != "" {
		clientOpts = append(clientOpts, marketdata.WithBaseURL(cfg.ProviderURL))
	}
	service := stocks.NewService(store, marketdata.New(clientOpts...), stocks.TTLs{
		History:    cfg.HistoryTTL,
		Profile:    cfg.ProfileTTL,
		Financials: cfg.FinancialsTTL,
	}, logger)

	redis := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	srv := asynq.NewServer(redis, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			"default": 5,
		},
	})

	mux := asynq.NewServeMux()

	mux.HandleFunc(jobs.TaskCacheSweep, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.CacheSweepPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("bad sweep payload")
			return err
		}
		ttl := cfg.LongestTTL()
		if p.TTLSeconds > 0 {
			ttl = time.Duration(p.TTLSeconds) * time.Second
		}
		res := store.SweepExpired(ttl)
		logger.Info().Str("job_id", p.JobID).Int("memory", res.Memory).Int("disk", res.Disk).Msg("sweep done")
		return nil
	})

	mux.HandleFunc(jobs.TaskWarmStocks, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.WarmStocksPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("bad warm payload")
			return err
		}
		start := time.Now()
		service.Warm(ctx, p.Symbols, p.Period)
		logger.Info().Str("job_id", p.JobID).Int("symbols", len(p.Symbols)).Dur("duration", time.Since(start)).Msg("warm done")
		return nil
	})

	scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{})
	sweepTask, err := jobs.NewCacheSweepTask(0)
	if err != nil {
		logger.Fatal().Err(err).Msg("build sweep task")
	}
	if _, err := scheduler.Register(cfg.SweepSchedule, sweepTask); err != nil {
		logger.Fatal().Err(err).Msg("register sweep schedule")
	}
	warmTask, err := jobs.NewWarmStocksTask(cfg.Watchlist, cfg.DefaultPeriod)
	if err != nil {
		logger.Fatal().Err(err).Msg("build warm task")
	}
	if _, err := scheduler.Register(cfg.WarmSchedule, warmTask); err != nil {
		logger.Fatal().Err(err).Msg("register warm schedule")
	}

	logger.Info().Msg("worker running")
	var g errgroup.Group
	g.Go(func() error { return srv.Run(mux) })
	g.Go(scheduler.Run)
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("worker error")
	}
}
