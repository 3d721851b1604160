// Package postgres provides an optional queryable secondary repository for
// execution events, complementing the canonical JSONL audit log — a
// Postgres outage or absence never blocks the execution path, since the
// router writes to audit.Log regardless of whether this repo is wired in.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// OrderEvent mirrors audit.Event in relational form for ad-hoc querying
// (e.g. "show me every ORDER_FAIL for EURUSD last week") that a flat JSONL
// file can't serve efficiently.
type OrderEvent struct {
	ID            int64                  `db:"id"`
	Timestamp     time.Time              `db:"ts"`
	Type          string                 `db:"type"`
	CorrelationID string                 `db:"correlation_id"`
	Symbol        string                 `db:"symbol"`
	Status        string                 `db:"status"`
	LatencyMs     float64                `db:"latency_ms"`
	Extra         map[string]interface{} `db:"extra"`
	CreatedAt     time.Time              `db:"created_at"`
}

// OrdersRepo is the queryable secondary store for execution events.
type OrdersRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewOrdersRepo wraps an existing *sqlx.DB (caller owns its lifecycle).
func NewOrdersRepo(db *sqlx.DB, timeout time.Duration) *OrdersRepo {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OrdersRepo{db: db, timeout: timeout}
}

// Insert records one execution event.
func (r *OrdersRepo) Insert(ctx context.Context, ev OrderEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	extraJSON, err := json.Marshal(ev.Extra)
	if err != nil {
		return fmt.Errorf("marshal extra: %w", err)
	}

	query := `
		INSERT INTO order_events (ts, type, correlation_id, symbol, status, latency_ms, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err = r.db.QueryRowxContext(ctx, query,
		ev.Timestamp, ev.Type, ev.CorrelationID, ev.Symbol, ev.Status, ev.LatencyMs, extraJSON).
		Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			return fmt.Errorf("insert order event (pq code %s): %w", pqErr.Code, err)
		}
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}

// ListBySymbol returns recent events for symbol, most recent first.
func (r *OrdersRepo) ListBySymbol(ctx context.Context, symbol string, limit int) ([]OrderEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, ts, type, correlation_id, symbol, status, latency_ms, extra, created_at
		FROM order_events
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2`

	rows, err := r.db.QueryxContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query order events by symbol: %w", err)
	}
	defer rows.Close()

	return scanOrderEvents(rows)
}

// CountByType returns event counts grouped by type within a time range.
func (r *OrdersRepo) CountByType(ctx context.Context, from, to time.Time) (map[string]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT type, COUNT(*)
		FROM order_events
		WHERE ts >= $1 AND ts <= $2
		GROUP BY type
		ORDER BY type`

	rows, err := r.db.QueryxContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("count order events by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var t string
		var c int64
		if err := rows.Scan(&t, &c); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		counts[t] = c
	}
	return counts, nil
}

func scanOrderEvents(rows *sqlx.Rows) ([]OrderEvent, error) {
	var out []OrderEvent
	for rows.Next() {
		ev, err := scanOrderEventRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order events: %w", err)
	}
	return out, nil
}

func scanOrderEventRow(rows *sqlx.Rows) (*OrderEvent, error) {
	var ev OrderEvent
	var extraJSON []byte
	if err := rows.Scan(&ev.ID, &ev.Timestamp, &ev.Type, &ev.CorrelationID, &ev.Symbol, &ev.Status, &ev.LatencyMs, &extraJSON, &ev.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, err
	}
	if len(extraJSON) > 0 {
		if err := json.Unmarshal(extraJSON, &ev.Extra); err != nil {
			return nil, fmt.Errorf("unmarshal extra: %w", err)
		}
	} else {
		ev.Extra = make(map[string]interface{})
	}
	return &ev, nil
}
