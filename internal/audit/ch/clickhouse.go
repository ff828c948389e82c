package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"bookledger/internal/audit"
)

// ClickHouseSink implements audit.Sink on the transaction_events table
type ClickHouseSink struct {
	conn clickhouse.Conn
}

// NewClickHouseSink creates a new ClickHouse audit sink
func NewClickHouseSink(host string, port int, database, user, password string, useTLS bool) (*ClickHouseSink, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
		DialTimeout: 10 * time.Second,
	}

	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseSink{conn: conn}, nil
}

// Initialize is a no-op - the transaction_events table is managed via migrations
func (s *ClickHouseSink) Initialize(ctx context.Context) error {
	return nil
}

// Write appends a batch of events to transaction_events
func (s *ClickHouseSink) Write(ctx context.Context, events []audit.Event) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO transaction_events (transaction_id, action, kind, book_id, title, author, status, occurred_at)`)
	if err != nil {
		return fmt.Errorf("failed to prepare audit batch: %w", err)
	}

	for _, ev := range events {
		if err := batch.Append(
			ev.TransactionID.String(),
			string(ev.Action),
			ev.Kind,
			ev.BookID,
			ev.Title,
			ev.Author,
			ev.Status,
			ev.OccurredAt,
		); err != nil {
			return fmt.Errorf("failed to append audit event: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send audit batch: %w", err)
	}
	return nil
}

// LastEvents returns the last N events
func (s *ClickHouseSink) LastEvents(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, `SELECT transaction_id, action, kind, book_id, title, author, status, occurred_at
		FROM transaction_events ORDER BY occurred_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get last audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			ev     audit.Event
			id     string
			action string
		)
		if err := rows.Scan(&id, &action, &ev.Kind, &ev.BookID, &ev.Title, &ev.Author, &ev.Status, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		ev.TransactionID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid transaction id %q: %w", id, err)
		}
		ev.Action = audit.Action(action)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit events: %w", err)
	}
	return events, nil
}

// Close closes the database connection
func (s *ClickHouseSink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
