package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the circulation state of a book
type Status int

const (
	StatusAvailable Status = iota
	StatusIssued
)

// String returns the display name of the status
func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "Available"
	case StatusIssued:
		return "Issued"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText encodes the status as its display name
func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case StatusAvailable, StatusIssued:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
}

// UnmarshalText decodes a status from its display name
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Available":
		*s = StatusAvailable
	case "Issued":
		*s = StatusIssued
	default:
		return fmt.Errorf("unknown status %q", string(text))
	}
	return nil
}

// Book represents a book in the catalog
type Book struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Status Status `json:"status"`
}

// TransactionKind identifies which mutation a transaction records
type TransactionKind int

const (
	KindIssued TransactionKind = iota + 1
	KindReturned
	KindDeleted
)

// String returns the lower-case kind name used in logs and audit rows
func (k TransactionKind) String() string {
	switch k {
	case KindIssued:
		return "issue"
	case KindReturned:
		return "return"
	case KindDeleted:
		return "delete"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Transaction is a reversible record of one successful mutation.
//
// Issued and Returned transactions only carry BookID. Deleted transactions also
// capture Title, Author and Status because the record is gone from the catalog.
type Transaction struct {
	ID         uuid.UUID
	Kind       TransactionKind
	BookID     int64
	Title      string
	Author     string
	Status     Status
	RecordedAt time.Time
}

// NewIssued records that a book was issued
func NewIssued(bookID int64) Transaction {
	return newTransaction(KindIssued, bookID)
}

// NewReturned records that a book was returned
func NewReturned(bookID int64) Transaction {
	return newTransaction(KindReturned, bookID)
}

// NewDeleted records that a book was removed, keeping its full state for restoration
func NewDeleted(book Book) Transaction {
	tx := newTransaction(KindDeleted, book.ID)
	tx.Title = book.Title
	tx.Author = book.Author
	tx.Status = book.Status
	return tx
}

func newTransaction(kind TransactionKind, bookID int64) Transaction {
	return Transaction{
		ID:         uuid.New(),
		Kind:       kind,
		BookID:     bookID,
		RecordedAt: time.Now().UTC(),
	}
}

// String renders the transaction as a short human readable line
func (t Transaction) String() string {
	switch t.Kind {
	case KindDeleted:
		return fmt.Sprintf("delete book %d ('%s' by %s, %s)", t.BookID, t.Title, t.Author, t.Status)
	default:
		return fmt.Sprintf("%s book %d", t.Kind, t.BookID)
	}
}
