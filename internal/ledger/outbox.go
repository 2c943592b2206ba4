package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Adjustment states. A row is pending until the materializer has tried it,
// failed rows are picked up by the outbox poller and become queued once
// published, and dead rows are never retried.
const (
	StatePending = "pending"
	StateApplied = "applied"
	StateFailed  = "failed"
	StateQueued  = "queued"
	StateDead    = "dead"
)

var ErrAdjustmentNotFound = errors.New("stock adjustment not found")

type Adjustment struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	OrderNumber string    `json:"order_number"`
	LineIndex   int       `json:"line_index"`
	ProductID   string    `json:"product_id"`
	Color       string    `json:"color,omitempty"`
	Size        string    `json:"size"`
	Quantity    int       `json:"quantity"`
	State       string    `json:"state"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

const adjustmentColumns = `id, session_id, order_number, line_index, product_id, color, size, quantity, state, attempts, last_error, created_at`

// RecordAdjustments stores one pending row per order line. Rows that already
// exist for the session are left untouched, so a resumed run keeps the
// progress of the first one.
func (r *Repository) RecordAdjustments(ctx context.Context, adjustments []Adjustment) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	query := r.rebind(`
		INSERT INTO stock_adjustment_outbox
			(id, session_id, order_number, line_index, product_id, color, size, quantity, state, attempts, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, '', ?, ?)
		ON CONFLICT (session_id, line_index) DO NOTHING`)

	for _, a := range adjustments {
		id := a.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, query,
			id, a.SessionID, a.OrderNumber, a.LineIndex, a.ProductID, a.Color, a.Size, a.Quantity, StatePending, now, now,
		); err != nil {
			return fmt.Errorf("failed to record adjustment: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit adjustments: %w", err)
	}
	return nil
}

// AdjustmentsForSession returns the session's rows ordered by line.
func (r *Repository) AdjustmentsForSession(ctx context.Context, sessionID string) ([]*Adjustment, error) {
	return r.queryAdjustments(ctx, `SELECT `+adjustmentColumns+` FROM stock_adjustment_outbox
		WHERE session_id = ? ORDER BY line_index`, sessionID)
}

// GetUnpublished returns failed rows waiting to be handed to the retry queue,
// plus queued rows that nobody settled within queuedLease. The consumer
// commits its offset before handling a message, so a queued row whose
// handling was cut short would otherwise never be retried.
func (r *Repository) GetUnpublished(ctx context.Context, queuedLease time.Duration, limit int) ([]*Adjustment, error) {
	cutoff := time.Now().Add(-queuedLease).UnixMilli()
	return r.queryAdjustments(ctx, `SELECT `+adjustmentColumns+` FROM stock_adjustment_outbox
		WHERE state = ? OR (state = ? AND updated_at <= ?)
		ORDER BY created_at LIMIT ?`, StateFailed, StateQueued, cutoff, limit)
}

func (r *Repository) GetAdjustment(ctx context.Context, id string) (*Adjustment, error) {
	rows, err := r.queryAdjustments(ctx, `SELECT `+adjustmentColumns+` FROM stock_adjustment_outbox WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrAdjustmentNotFound
	}
	return rows[0], nil
}

func (r *Repository) queryAdjustments(ctx context.Context, query string, args ...any) ([]*Adjustment, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer rows.Close()

	var out []*Adjustment
	for rows.Next() {
		var (
			a         Adjustment
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.SessionID, &a.OrderNumber, &a.LineIndex, &a.ProductID, &a.Color,
			&a.Size, &a.Quantity, &a.State, &a.Attempts, &a.LastError, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		a.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate adjustments: %w", err)
	}
	return out, nil
}

func (r *Repository) MarkApplied(ctx context.Context, id string) error {
	return r.setState(ctx, id, StateApplied, "", false)
}

// MarkFailed records a failed attempt and makes the row eligible for the
// retry queue.
func (r *Repository) MarkFailed(ctx context.Context, id string, cause error) error {
	return r.setState(ctx, id, StateFailed, errString(cause), true)
}

func (r *Repository) MarkDead(ctx context.Context, id string, cause error) error {
	return r.setState(ctx, id, StateDead, errString(cause), true)
}

func (r *Repository) MarkQueued(ctx context.Context, id string) error {
	return r.setState(ctx, id, StateQueued, "", false)
}

func (r *Repository) setState(ctx context.Context, id, state, lastError string, countAttempt bool) error {
	inc := 0
	if countAttempt {
		inc = 1
	}
	var (
		res sql.Result
		err error
	)
	if lastError != "" {
		res, err = r.db.ExecContext(ctx, r.rebind(`
			UPDATE stock_adjustment_outbox SET state = ?, attempts = attempts + ?, last_error = ?, updated_at = ?
			WHERE id = ?`), state, inc, lastError, time.Now().UnixMilli(), id)
	} else {
		res, err = r.db.ExecContext(ctx, r.rebind(`
			UPDATE stock_adjustment_outbox SET state = ?, attempts = attempts + ?, updated_at = ?
			WHERE id = ?`), state, inc, time.Now().UnixMilli(), id)
	}
	if err != nil {
		return fmt.Errorf("failed to update adjustment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAdjustmentNotFound
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
