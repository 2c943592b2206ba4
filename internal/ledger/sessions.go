package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type ClaimState int

const (
	// ClaimAcquired means this caller is the first to see the session.
	ClaimAcquired ClaimState = iota
	// ClaimResumed means an earlier claim went stale and this caller took it over.
	ClaimResumed
	// ClaimCompleted means the session was fully processed before.
	ClaimCompleted
	// ClaimInProgress means another caller holds a live claim.
	ClaimInProgress
)

func (s ClaimState) String() string {
	switch s {
	case ClaimAcquired:
		return "acquired"
	case ClaimResumed:
		return "resumed"
	case ClaimCompleted:
		return "completed"
	case ClaimInProgress:
		return "in_progress"
	}
	return "unknown"
}

const (
	sessionClaimed   = "claimed"
	sessionCompleted = "completed"
)

var ErrSessionNotClaimed = errors.New("session is not claimed")

type ClaimResult struct {
	State   ClaimState
	OrderID string
}

// Claim records that sessionID is being processed. A claim older than lease
// that never completed is treated as abandoned and handed to the caller.
func (r *Repository) Claim(ctx context.Context, sessionID, orderNumber string, lease time.Duration) (*ClaimResult, error) {
	now := time.Now()
	res, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO processed_sessions (session_id, order_number, status, claimed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO NOTHING`),
		sessionID, orderNumber, sessionClaimed, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to claim session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return &ClaimResult{State: ClaimAcquired}, nil
	}

	var (
		status    string
		orderID   string
		claimedAt int64
	)
	err = r.db.QueryRowContext(ctx, r.rebind(`
		SELECT status, order_id, claimed_at FROM processed_sessions WHERE session_id = ?`),
		sessionID).Scan(&status, &orderID, &claimedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read session claim: %w", err)
	}

	if status == sessionCompleted {
		return &ClaimResult{State: ClaimCompleted, OrderID: orderID}, nil
	}
	if now.Sub(time.UnixMilli(claimedAt)) < lease {
		return &ClaimResult{State: ClaimInProgress, OrderID: orderID}, nil
	}

	// take over the stale claim unless someone else just did
	res, err = r.db.ExecContext(ctx, r.rebind(`
		UPDATE processed_sessions SET claimed_at = ?
		WHERE session_id = ? AND status = ? AND claimed_at = ?`),
		now.UnixMilli(), sessionID, sessionClaimed, claimedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to resume session claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return &ClaimResult{State: ClaimResumed, OrderID: orderID}, nil
	}
	return &ClaimResult{State: ClaimInProgress, OrderID: orderID}, nil
}

// SetOrderID attaches the created order to a live claim.
func (r *Repository) SetOrderID(ctx context.Context, sessionID, orderID string) error {
	return r.updateClaim(ctx, `UPDATE processed_sessions SET order_id = ? WHERE session_id = ? AND status = ?`,
		orderID, sessionID, sessionClaimed)
}

func (r *Repository) Complete(ctx context.Context, sessionID string) error {
	return r.updateClaim(ctx, `UPDATE processed_sessions SET status = ?, completed_at = ? WHERE session_id = ? AND status = ?`,
		sessionCompleted, time.Now().UnixMilli(), sessionID, sessionClaimed)
}

// Release drops an unfinished claim so a redelivery starts from scratch.
func (r *Repository) Release(ctx context.Context, sessionID string) error {
	return r.updateClaim(ctx, `DELETE FROM processed_sessions WHERE session_id = ? AND status = ?`,
		sessionID, sessionClaimed)
}

func (r *Repository) updateClaim(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.rebind(query), args...)
	if err != nil {
		return fmt.Errorf("failed to update session claim: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrSessionNotClaimed
	}
	return nil
}

// SessionStatus returns the stored status of a session, or sql.ErrNoRows.
func (r *Repository) SessionStatus(ctx context.Context, sessionID string) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT status FROM processed_sessions WHERE session_id = ?`), sessionID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session status: %w", err)
	}
	return status, nil
}

// StaleSessions lists claims that were taken longer than lease ago and never
// completed, oldest first.
func (r *Repository) StaleSessions(ctx context.Context, lease time.Duration, limit int) ([]string, error) {
	cutoff := time.Now().Add(-lease).UnixMilli()
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT session_id FROM processed_sessions
		WHERE status = ? AND claimed_at <= ?
		ORDER BY claimed_at LIMIT ?`), sessionClaimed, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
