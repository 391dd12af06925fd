package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"ledger/internal/domain"
	kafkaInfra "ledger/internal/infrastructure/kafka"
	"ledger/internal/util"
)

type OutboxRepository interface {
	GetPendingMessages(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	UpdateMessageStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OutboxMessageStatus) error
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(q domain.Querier) error) error
}

type Metrics interface {
	IncrOutbox(result string)
}

type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	BatchSize    int
}

// Processor publishes pending outbox messages to Kafka. A batch is claimed
// with FOR UPDATE SKIP LOCKED, so several instances can run side by side.
type Processor struct {
	tx            Transactor
	outboxRepo    OutboxRepository
	kafkaProducer kafkaInfra.Producer
	breaker       *gobreaker.CircuitBreaker
	metrics       Metrics
	cfg           Config
	logger        *zap.Logger
}

func NewProcessor(
	tx Transactor,
	outboxRepo OutboxRepository,
	kafkaProducer kafkaInfra.Producer,
	breaker *gobreaker.CircuitBreaker,
	metrics Metrics,
	cfg Config,
	logger *zap.Logger,
) *Processor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	return &Processor{
		tx:            tx,
		outboxRepo:    outboxRepo,
		kafkaProducer: kafkaProducer,
		breaker:       breaker,
		metrics:       metrics,
		cfg:           cfg,
		logger:        logger,
	}
}

// Start polls until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) error {
	p.logger.Info("Starting outbox processor...", zap.Duration("poll_interval", p.cfg.PollInterval))
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped.")
			return nil
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.Error("Failed to process outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch publishes up to BatchSize pending messages and returns how
// many were marked SENT. Publishing stops at the first Kafka failure; the
// rest of the batch stays PENDING for the next poll.
func (p *Processor) ProcessBatch(ctx context.Context) (int, error) {
	pollCtx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
	defer cancel()

	sent := 0
	err := p.tx.WithinTx(pollCtx, func(q domain.Querier) error {
		sent = 0
		messages, err := p.outboxRepo.GetPendingMessages(pollCtx, q, p.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			p.logger.Debug("No pending outbox messages found.")
			return nil
		}
		p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

		for _, msg := range messages {
			if !json.Valid(msg.Payload) {
				p.logger.Error("Outbox message has invalid payload, marking FAILED", zap.String("message_id", msg.ID))
				if err := p.outboxRepo.UpdateMessageStatusTx(pollCtx, q, msg.ID, domain.OutboxStatusFailed); err != nil {
					return err
				}
				p.metrics.IncrOutbox("failed")
				continue
			}

			_, err := p.breaker.Execute(func() (interface{}, error) {
				return nil, p.kafkaProducer.Produce(pollCtx, msg.AggregateID, msg.EventType, msg.Payload)
			})
			if err != nil {
				p.metrics.IncrOutbox("retry")
				p.logger.Warn("Failed to publish outbox message, will retry",
					zap.String("message_id", msg.ID),
					zap.String("event_type", msg.EventType),
					zap.Error(err))
				return nil
			}

			if err := p.outboxRepo.UpdateMessageStatusTx(pollCtx, q, msg.ID, domain.OutboxStatusSent); err != nil {
				return err
			}
			p.metrics.IncrOutbox("sent")
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		p.logger.Info("Outbox messages published", zap.Int("count", sent))
	}
	return sent, nil
}

// NewLedgerEventMessage wraps event into a PENDING outbox message.
func NewLedgerEventMessage(event domain.LedgerEvent) (*domain.OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	return &domain.OutboxMessage{
		ID:          util.GenerateUUID(),
		AggregateID: event.AccountID,
		EventType:   event.Type,
		Payload:     payload,
		Status:      domain.OutboxStatusPending,
		CreatedAt:   event.Timestamp,
	}, nil
}
