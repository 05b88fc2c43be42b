package fulfillment

import (
	"context"
	"time"

	"github.com/cassiomorais/billingbridge/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/billingbridge/internal/infrastructure/redis"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type Consumer interface {
	Read(ctx context.Context) ([]redis.XMessage, error)
	Ack(ctx context.Context, messageID string) error
	ClaimIdle(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error)
}

type DeadLetterQueue interface {
	PublishToDLQ(ctx context.Context, id, app, reason string, payload []byte) error
}

type Deliverer interface {
	Deliver(ctx context.Context, rec Record, payload []byte) error
}

type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFunc returns the lock guarding the delivery of one record.
type LockFunc func(recordID string) Lock

type RelayConfig struct {
	ClaimInterval time.Duration
	ClaimMinIdle  time.Duration
	ReadBackoff   time.Duration
}

// Relay moves records from the fulfillment stream to the apps. A message is
// acked once it was delivered or parked in the DLQ.
type Relay struct {
	consumer  Consumer
	dlq       DeadLetterQueue
	deliverer Deliverer
	lock      LockFunc
	cfg       RelayConfig
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

func NewRelay(
	consumer Consumer,
	dlq DeadLetterQueue,
	deliverer Deliverer,
	lock LockFunc,
	cfg RelayConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Relay {
	if cfg.ReadBackoff <= 0 {
		cfg.ReadBackoff = time.Second
	}
	return &Relay{
		consumer:  consumer,
		dlq:       dlq,
		deliverer: deliverer,
		lock:      lock,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run processes messages until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	var claimTick <-chan time.Time
	if r.cfg.ClaimInterval > 0 {
		ticker := time.NewTicker(r.cfg.ClaimInterval)
		defer ticker.Stop()
		claimTick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-claimTick:
			r.claim(ctx)
			continue
		default:
		}

		messages, err := r.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error().Err(err).Msg("Failed to read from stream")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.cfg.ReadBackoff):
			}
			continue
		}

		for _, msg := range messages {
			r.Handle(ctx, msg)
		}
	}
}

func (r *Relay) claim(ctx context.Context) {
	messages, err := r.consumer.ClaimIdle(ctx, r.cfg.ClaimMinIdle)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to claim idle messages")
		return
	}
	if len(messages) > 0 {
		r.logger.Info().Int("count", len(messages)).Msg("Claimed idle fulfillment messages")
	}
	for _, msg := range messages {
		r.Handle(ctx, msg)
	}
}

// Handle delivers one stream message.
func (r *Relay) Handle(ctx context.Context, msg redis.XMessage) {
	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.WorkerProcessingDuration.WithLabelValues(infraRedis.FulfillmentStream).Observe(time.Since(start).Seconds())
		}
	}()

	raw, _ := msg.Values[infraRedis.FieldPayload].(string)
	app, _ := msg.Values[infraRedis.FieldApp].(string)
	id, _ := msg.Values[infraRedis.FieldID].(string)
	log := observability.WithFields(r.logger, "message_id", msg.ID, "fulfillment_id", id, "app", app)

	rec, err := DecodeRecord([]byte(raw))
	if err != nil {
		log.Error().Err(err).Msg("Malformed fulfillment message")
		if r.deadLetter(ctx, log, id, app, "malformed: "+err.Error(), []byte(raw)) {
			r.ack(ctx, log, msg.ID, "malformed")
		}
		return
	}

	lock := r.lock(rec.ID)
	acquired, err := lock.Acquire(ctx)
	if err != nil || !acquired {
		log.Warn().Err(err).Msg("Could not acquire lock, leaving message pending")
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to release lock")
		}
	}()

	if err := r.deliverer.Deliver(ctx, rec, []byte(raw)); err != nil {
		if ctx.Err() != nil {
			// Shutting down; the message stays pending for another consumer.
			return
		}
		log.Error().Err(err).Str("user_id", rec.UserID).Msg("Fulfillment delivery failed, moving to DLQ")
		if !r.deadLetter(ctx, log, rec.ID, rec.App, err.Error(), []byte(raw)) {
			return
		}
		r.ack(ctx, log, msg.ID, "dead_lettered")
		return
	}

	log.Info().Str("user_id", rec.UserID).Str("session_id", rec.SessionID).Msg("Fulfillment delivered")
	r.ack(ctx, log, msg.ID, "success")
}

func (r *Relay) deadLetter(ctx context.Context, log zerolog.Logger, id, app, reason string, payload []byte) bool {
	if err := r.dlq.PublishToDLQ(ctx, id, app, reason, payload); err != nil {
		log.Error().Err(err).Msg("Failed to publish to DLQ")
		return false
	}
	return true
}

func (r *Relay) ack(ctx context.Context, log zerolog.Logger, messageID, status string) {
	if err := r.consumer.Ack(ctx, messageID); err != nil {
		log.Error().Err(err).Msg("Failed to ack message")
	}
	if r.metrics != nil {
		r.metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.FulfillmentStream, status).Inc()
	}
}
