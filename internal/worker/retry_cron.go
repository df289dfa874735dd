package worker

// retry_cron.go
// Background goroutine that moves due jobs from the retry ZSet back onto the
// cierre queue. Members are scored by the unix timestamp of their next
// attempt, so a single ZRANGEBYSCORE per tick picks up everything due.

import (
	"context"
	"strconv"
	"time"

	"novapos/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10
)

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	RDB *redis.Client
	CB  *infra.CircuitBreaker
}

// StartRetryCron launches a background goroutine that ticks every 30s and
// re-enqueues due retries. It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	// If CB is open the relay is still down — leave the jobs parked so each
	// re-delivery does not burn an attempt against a known failure.
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	now := strconv.FormatInt(time.Now().Unix(), 10)
	due, err := cfg.RDB.ZRangeByScore(ctx, RetryZSet, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   now,
		Count: retryBatchSize,
	}).Result()
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query retry set")
		return
	}
	if len(due) == 0 {
		return
	}

	log.Info().Int("count", len(due)).Msg("retry_cron: re-enqueueing due jobs")

	for _, member := range due {
		// Remove before re-enqueue so a crash duplicates nothing; losing one
		// re-delivery is acceptable, double-sending the report is not.
		removed, err := cfg.RDB.ZRem(ctx, RetryZSet, member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := cfg.RDB.LPush(ctx, QueueCierre, member).Err(); err != nil {
			log.Error().Err(err).Msg("retry_cron: failed to re-enqueue job")
		}
	}
}
