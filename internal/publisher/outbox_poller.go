package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fjod/go_cart/storefront/internal/ledger"
	"github.com/segmentio/kafka-go"
)

const (
	StockAdjustmentTopic       = "stock-adjustments"
	EventStockAdjustmentFailed = "StockAdjustmentFailed"
	EventTypeHeader            = "event_type"
)

type Outbox interface {
	GetUnpublished(ctx context.Context, queuedLease time.Duration, limit int) ([]*ledger.Adjustment, error)
	MarkQueued(ctx context.Context, id string) error
	StaleSessions(ctx context.Context, lease time.Duration, limit int) ([]string, error)
}

// SessionRecoverer finishes a checkout session whose processing was abandoned.
type SessionRecoverer interface {
	Resume(ctx context.Context, sessionID string) error
}

type RecoverFunc func(ctx context.Context, sessionID string) error

func (f RecoverFunc) Resume(ctx context.Context, sessionID string) error {
	return f(ctx, sessionID)
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	batchSize    int
	eventTick    time.Duration
	recoveryTick time.Duration
	lease        time.Duration
	queuedLease  time.Duration
	repo         Outbox
	recoverer    SessionRecoverer
	writer       messageWriter
	log          *slog.Logger
}

// NewOutboxPoller publishes failed stock adjustments to Kafka every
// eventTick. Queued adjustments left unsettled for longer than five minutes
// are published again. recoverer may be nil, which disables stuck session recovery.
func NewOutboxPoller(repo Outbox, recoverer SessionRecoverer, eventTick time.Duration, log *slog.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  StockAdjustmentTopic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{
		batchSize:    100,
		eventTick:    eventTick,
		recoveryTick: 30 * time.Second,
		lease:        2 * time.Minute,
		queuedLease:  5 * time.Minute,
		repo:         repo,
		recoverer:    recoverer,
		writer:       w,
		log:          log,
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	recoveryTicker := time.NewTicker(p.recoveryTick)
	defer eventTicker.Stop()
	defer recoveryTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublished(ctx)
		case <-recoveryTicker.C:
			p.recoverStuckSessions(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublished(ctx context.Context) {
	rows, err := p.repo.GetUnpublished(ctx, p.queuedLease, p.batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to fetch unpublished adjustments", "error", err)
		return
	}

	for _, row := range rows {
		if err := p.publish(ctx, row); err != nil {
			p.log.ErrorContext(ctx, "failed to publish adjustment", "adjustment_id", row.ID, "error", err)
			continue
		}
		if err := p.repo.MarkQueued(ctx, row.ID); err != nil {
			p.log.ErrorContext(ctx, "failed to mark adjustment as queued", "adjustment_id", row.ID, "error", err)
		}
	}
}

// recoverStuckSessions picks up sessions that were claimed but never
// completed, e.g. because the process died mid webhook.
func (p *OutboxPoller) recoverStuckSessions(ctx context.Context) {
	if p.recoverer == nil {
		return
	}
	ids, err := p.repo.StaleSessions(ctx, p.lease, p.batchSize)
	if err != nil {
		p.log.ErrorContext(ctx, "failed to get stuck sessions", "error", err)
		return
	}
	for _, id := range ids {
		p.log.InfoContext(ctx, "recovering stuck session", "session_id", id)
		if err := p.recoverer.Resume(ctx, id); err != nil {
			p.log.ErrorContext(ctx, "failed to recover session", "session_id", id, "error", err)
			continue
		}
		p.log.InfoContext(ctx, "session recovered", "session_id", id)
	}
}

func (p *OutboxPoller) publish(ctx context.Context, row *ledger.Adjustment) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(row.ProductID), // per product ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: EventTypeHeader, Value: []byte(EventStockAdjustmentFailed)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
