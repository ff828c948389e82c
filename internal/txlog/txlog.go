// Package txlog implements the last-in-first-out log of undoable transactions.
package txlog

import (
	"iter"

	"bookledger/internal/models"
)

// Log stores transactions in the order they were recorded.
// It is not safe for concurrent use.
type Log struct {
	entries []models.Transaction
}

// New creates an empty log
func New() *Log {
	return &Log{}
}

// Push appends a transaction to the tail
func (l *Log) Push(tx models.Transaction) {
	l.entries = append(l.entries, tx)
}

// Pop removes and returns the most recent transaction
func (l *Log) Pop() (models.Transaction, bool) {
	if len(l.entries) == 0 {
		return models.Transaction{}, false
	}
	idx := len(l.entries) - 1
	tx := l.entries[idx]
	l.entries[idx] = models.Transaction{}
	l.entries = l.entries[:idx]
	return tx, true
}

// IsEmpty reports whether there is anything to undo
func (l *Log) IsEmpty() bool {
	return len(l.entries) == 0
}

// Len returns the number of recorded transactions
func (l *Log) Len() int {
	return len(l.entries)
}

// MostRecentFirst yields the recorded transactions from newest to oldest
// without modifying the log.
func (l *Log) MostRecentFirst() iter.Seq[models.Transaction] {
	return func(yield func(models.Transaction) bool) {
		for i := len(l.entries) - 1; i >= 0; i-- {
			if !yield(l.entries[i]) {
				return
			}
		}
	}
}
