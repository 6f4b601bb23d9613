package worker

// retry_cron.go
// Background goroutine that periodically moves ingestion jobs from the DLQ
// back to their queue. Jobs that failed permanently, or were already replayed
// MaxReplays times, are archived instead. Uses the store Circuit Breaker to
// avoid replaying into a downed database.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cobranzas/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryBatchSize = 10

	// MaxReplays is how many times a job may come back from the DLQ.
	MaxReplays = 3

	// ArchivoSuffix names the list holding DLQ entries that are never replayed.
	ArchivoSuffix = ":archivo"
)

// RetryCronConfig holds all dependencies for the replay goroutine.
type RetryCronConfig struct {
	RDB       *redis.Client
	CB        *infra.CircuitBreaker // optional
	Intervalo time.Duration
	Queues    []string // default: QueueMovimientos
}

// StartRetryCron launches a background goroutine that replays a batch of DLQ
// entries every tick. It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	if len(cfg.Queues) == 0 {
		cfg.Queues = []string{QueueMovimientos}
	}
	go func() {
		ticker := time.NewTicker(cfg.Intervalo)
		defer ticker.Stop()

		log.Info().Strs("queues", cfg.Queues).Dur("intervalo", cfg.Intervalo).Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				for _, q := range cfg.Queues {
					processRetries(ctx, cfg, q)
				}
			}
		}
	}()
}

// reintentable reports whether a DLQ entry goes back to its queue.
func reintentable(e DLQEntry) bool {
	return !e.Permanente && e.Replays < MaxReplays && e.JobType != "desconocido"
}

func processRetries(ctx context.Context, cfg RetryCronConfig, queue string) {
	// If CB is open, skip entirely; replayed jobs would fail again
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	dlqKey := DLQPrefix + queue
	replayed, archived := 0, 0
	for i := 0; i < retryBatchSize; i++ {
		// Check CB state before each job; it may have tripped mid-batch
		if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
			break
		}

		raw, err := cfg.RDB.RPop(ctx, dlqKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			log.Error().Err(err).Str("dlq_key", dlqKey).Msg("retry_cron: failed to pop DLQ entry")
			return
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil || !reintentable(entry) {
			if perr := cfg.RDB.LPush(ctx, dlqKey+ArchivoSuffix, raw).Err(); perr != nil {
				log.Error().Err(perr).Str("dlq_key", dlqKey).Msg("retry_cron: failed to archive entry")
			}
			archived++
			continue
		}

		job := Job{Type: entry.JobType, Payload: entry.Payload, Replays: entry.Replays + 1}
		if err := pushJob(ctx, cfg.RDB, entry.OriginalQueue, job); err != nil {
			// put it back where it was and stop for this tick
			_ = cfg.RDB.RPush(ctx, dlqKey, raw).Err()
			log.Error().Err(err).Str("queue", entry.OriginalQueue).Msg("retry_cron: failed to requeue job")
			return
		}
		replayed++
	}

	if replayed > 0 || archived > 0 {
		log.Info().
			Str("queue", queue).
			Int("replayed", replayed).
			Int("archived", archived).
			Msg("retry_cron: DLQ batch processed")
	}
}
