package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/inventory"
	"github.com/fjod/go_cart/storefront/internal/ledger"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/segmentio/kafka-go"
)

type Ledger interface {
	GetAdjustment(ctx context.Context, id string) (*ledger.Adjustment, error)
	MarkApplied(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error) error
	MarkDead(ctx context.Context, id string, cause error) error
}

type StockWriter interface {
	Decrement(ctx context.Context, adj domain.StockAdjustment) (*domain.StockAdjustmentResult, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// StockAdjustmentConsumer re-applies stock decrements that failed while an
// order was materialized.
type StockAdjustmentConsumer struct {
	ledger      Ledger
	stock       StockWriter
	reader      messageReader
	maxAttempts int
	log         *slog.Logger
}

func NewStockAdjustmentConsumer(l Ledger, stock StockWriter, maxAttempts int, log *slog.Logger, brokers ...string) *StockAdjustmentConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    publisher.StockAdjustmentTopic,
		GroupID:  "storefront-stock",
		MaxBytes: 10e6, // 10MB
	})
	return &StockAdjustmentConsumer{
		ledger:      l,
		stock:       stock,
		reader:      reader,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

func (c *StockAdjustmentConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *StockAdjustmentConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", "error", err)
	}
}

func (c *StockAdjustmentConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		c.log.ErrorContext(ctx, "error reading message", "error", err)
		return
	}
	c.handle(ctx, m)
}

func (c *StockAdjustmentConsumer) handle(ctx context.Context, m kafka.Message) {
	if eventType(m) != publisher.EventStockAdjustmentFailed {
		c.log.WarnContext(ctx, "skipping unknown event", "event_type", eventType(m), "offset", m.Offset)
		return
	}

	var event ledger.Adjustment
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.log.ErrorContext(ctx, "error parsing message", "offset", m.Offset, "error", err)
		return
	}

	// the row is the source of truth; the message may be a redelivery
	row, err := c.ledger.GetAdjustment(ctx, event.ID)
	if err != nil {
		c.log.ErrorContext(ctx, "failed to load adjustment", "adjustment_id", event.ID, "error", err)
		return
	}
	log := c.log.With("adjustment_id", row.ID, "order_number", row.OrderNumber, "product_id", row.ProductID)

	if row.State == ledger.StateApplied || row.State == ledger.StateDead {
		log.InfoContext(ctx, "adjustment already settled, skipping", "state", row.State)
		return
	}

	res, err := c.stock.Decrement(ctx, domain.StockAdjustment{
		ProductID: row.ProductID,
		Color:     row.Color,
		Size:      row.Size,
		Quantity:  row.Quantity,
	})
	if err == nil {
		if markErr := c.ledger.MarkApplied(ctx, row.ID); markErr != nil {
			log.ErrorContext(ctx, "failed to mark adjustment applied", "error", markErr)
			return
		}
		log.InfoContext(ctx, "retried stock adjustment applied",
			"attempt", row.Attempts+1,
			"new_quantity", res.NewQuantity,
			"shortfall", res.Shortfall,
		)
		return
	}

	// attempts counts the failure being recorded now
	if inventory.IsRetryable(err) && row.Attempts+1 < c.maxAttempts {
		if markErr := c.ledger.MarkFailed(ctx, row.ID, err); markErr != nil {
			log.ErrorContext(ctx, "failed to re-enqueue adjustment", "error", markErr)
			return
		}
		log.WarnContext(ctx, "stock adjustment failed, re-enqueued", "attempt", row.Attempts+1, "error", err)
		return
	}

	if markErr := c.ledger.MarkDead(ctx, row.ID, err); markErr != nil {
		log.ErrorContext(ctx, "failed to mark adjustment dead", "error", markErr)
		return
	}
	log.ErrorContext(ctx, "stock adjustment is dead",
		"attempt", row.Attempts+1,
		"color", row.Color,
		"size", row.Size,
		"quantity", row.Quantity,
		"error", err,
	)
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == publisher.EventTypeHeader {
			return string(h.Value)
		}
	}
	return ""
}
