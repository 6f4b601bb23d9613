package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueMovimientos = "jobs:movimientos"
	QueueEmail       = "jobs:email"

	// MaxJobAttempts is how many times a job runs before it goes to the DLQ.
	MaxJobAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	// Replays counts how many times the job came back from the DLQ.
	Replays int `json:"replays,omitempty"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueMovimiento pushes a cash event ingestion job to Redis.
func (d *Dispatcher) EnqueueMovimiento(ctx context.Context, payload MovimientoJobPayload) error {
	return d.enqueue(ctx, QueueMovimientos, "movimiento", payload)
}

// EnqueueEmail pushes an email job to Redis.
func (d *Dispatcher) EnqueueEmail(ctx context.Context, payload EmailJobPayload) error {
	return d.enqueue(ctx, QueueEmail, "email", payload)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return pushJob(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func pushJob(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// WorkerHandlers routes each job type to its processor.
type WorkerHandlers struct {
	Movimientos *MovimientoWorker
	Email       *EmailWorker
}

func (h *WorkerHandlers) handle(ctx context.Context, job Job) error {
	switch job.Type {
	case "movimiento":
		if h.Movimientos == nil {
			return fmt.Errorf("no movimiento handler")
		}
		return h.Movimientos.Process(ctx, job.Payload)
	case "email":
		if h.Email == nil {
			return fmt.Errorf("no email handler")
		}
		return h.Email.Process(ctx, job.Payload)
	}
	return fmt.Errorf("unknown job type %q", job.Type)
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP, so idle workers cost no CPU.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, id int) {
	queues := []string{QueueMovimientos, QueueEmail}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, rdb, handlers, result[0], result[1])
		}
	}
}

// processJob runs one job. A failed job is pushed back with one more attempt
// until MaxJobAttempts, then moved to the DLQ.
func processJob(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, rdb, queue, Job{Type: "desconocido", Payload: json.RawMessage(raw)}, "invalid envelope: "+err.Error(), true)
		return
	}
	job.Attempts++

	err := handlers.handle(ctx, job)
	if err == nil {
		log.Debug().Str("type", job.Type).Str("queue", queue).Msg("job processed")
		return
	}
	if permanente := esPermanente(err); permanente || job.Attempts >= MaxJobAttempts {
		SendToDLQ(ctx, rdb, queue, job, err.Error(), permanente)
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempts", job.Attempts).Msg("job failed, requeueing")
	if perr := pushJob(ctx, rdb, queue, job); perr != nil {
		log.Error().Err(perr).Str("queue", queue).Msg("failed to requeue job")
	}
}
