package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueCierre = "jobs:cierre_caja"

	// RetryZSet holds delayed re-deliveries: member = encoded job,
	// score = unix timestamp of the next attempt.
	RetryZSet = "retry:cierre_caja"
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// CierreJobPayload is enqueued after every durable cierre. Attempt counts
// deliveries so the retry path can give up into the DLQ.
type CierreJobPayload struct {
	SesionID   uuid.UUID `json:"sesion_id"`
	ComercioID uuid.UUID `json:"comercio_id"`
	Attempt    int       `json:"attempt"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// NotificarCierre emits the "sesión cerrada" domain event as a queue job.
// Satisfies service.CierreNotifier.
func (d *Dispatcher) NotificarCierre(ctx context.Context, comercioID, sesionID uuid.UUID) error {
	return d.enqueue(ctx, QueueCierre, "cierre_caja", CierreJobPayload{
		SesionID:   sesionID,
		ComercioID: comercioID,
		Attempt:    1,
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	job := Job{Type: jobType, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// ScheduleRetry parks a job for re-delivery after the given delay.
// The retry cron moves due members back onto the queue.
func (d *Dispatcher) ScheduleRetry(ctx context.Context, jobType string, payload interface{}, delay time.Duration) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.ZAdd(ctx, RetryZSet, redis.Z{
		Score:  float64(time.Now().Add(delay).Unix()),
		Member: string(encoded),
	}).Err()
}

// WorkerHandlers wires each job type to its processor.
type WorkerHandlers struct {
	Cierre *CierreWorker
}

// StartWorkerPool launches numWorkers goroutines consuming the cierre queue.
// Each goroutine blocks on BRPOP — zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, handlers, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, handlers *WorkerHandlers, id int) {
	queues := []string{QueueCierre}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, handlers, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, handlers *WorkerHandlers, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}
	switch job.Type {
	case "cierre_caja":
		handlers.Cierre.Process(ctx, job.Payload)
	default:
		log.Warn().Str("type", job.Type).Str("queue", queue).Msg("unknown job type")
	}
}
