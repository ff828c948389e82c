// Package audit ships transaction lifecycle events to an append-only store.
//
// The audit trail is write-only from the service's point of view: it is never
// read back to rebuild the catalog.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookledger/internal/models"
)

// Action says what happened to a transaction
type Action string

const (
	ActionRecorded Action = "recorded"
	ActionUndone   Action = "undone"
)

// Event is one row of the audit trail
type Event struct {
	TransactionID uuid.UUID
	Action        Action
	Kind          string
	BookID        int64
	Title         string
	Author        string
	Status        string // captured status, set for delete transactions only
	OccurredAt    time.Time
}

// EventFrom builds the audit event for a transaction
func EventFrom(action Action, tx models.Transaction, at time.Time) Event {
	ev := Event{
		TransactionID: tx.ID,
		Action:        action,
		Kind:          tx.Kind.String(),
		BookID:        tx.BookID,
		OccurredAt:    at.UTC(),
	}
	if tx.Kind == models.KindDeleted {
		ev.Title = tx.Title
		ev.Author = tx.Author
		ev.Status = tx.Status.String()
	}
	return ev
}

// Sink defines the interface for audit storage backends
type Sink interface {
	// Write appends a batch of events. Implementations must not retain the slice.
	Write(ctx context.Context, events []Event) error

	// LastEvents returns up to limit events, newest first
	LastEvents(ctx context.Context, limit int) ([]Event, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
