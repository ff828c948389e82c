// Package library ties the book catalog and the transaction log together.
//
// Every successful delete, issue or return records a transaction describing
// how to reverse it. UndoTransaction pops the most recent one and applies the
// inverse directly to the catalog. Undo is single-level: it is never recorded
// itself and cannot be redone. Inserting a book is not undoable.
package library

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"bookledger/internal/audit"
	"bookledger/internal/catalog"
	"bookledger/internal/metrics"
	"bookledger/internal/models"
	"bookledger/internal/txlog"
)

var (
	// ErrNotFound is returned when no book with the given id is in the catalog.
	ErrNotFound = errors.New("book not found")
	// ErrInvalidStateTransition is returned when issuing a book that is not
	// available or returning a book that is not issued.
	ErrInvalidStateTransition = errors.New("invalid status transition")
	// ErrEmptyLog is returned when there is nothing to undo.
	ErrEmptyLog = errors.New("no transactions to undo")
)

// Operation names used in logs and metrics
const (
	OpInsert = "insert"
	OpDelete = "delete"
	OpIssue  = "issue"
	OpReturn = "return"
	OpUndo   = "undo"
	OpSearch = "search"
)

// Publisher receives audit events. It must not block.
type Publisher interface {
	Publish(ev audit.Event)
}

// Service is the library facade. All methods are safe for concurrent use; each
// runs under a single lock so find-then-mutate sequences are atomic.
type Service struct {
	mu      sync.Mutex
	catalog *catalog.Catalog
	log     *txlog.Log

	logger    *zap.Logger
	metrics   *metrics.Collector
	publisher Publisher
	now       func() time.Time
}

// Option configures optional collaborators of a Service
type Option func(*Service)

// WithMetrics records operation outcomes on the collector
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithAudit publishes recorded and undone transactions to p
func WithAudit(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a service with an empty catalog and transaction log
func NewService(logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		catalog: catalog.New(),
		log:     txlog.New(),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InsertBook adds an available book. Ids are not checked for uniqueness and
// the insert is not recorded in the transaction log.
func (s *Service) InsertBook(id int64, title, author string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.catalog.Insert(id, title, author)
	s.logger.Info("Book added",
		zap.Int64("book_id", id),
		zap.String("title", title),
		zap.String("author", author),
	)
	s.observe(OpInsert, nil)
}

// DeleteBook removes a book and records its full state so it can be restored
func (s *Service) DeleteBook(id int64) (models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.catalog.Remove(id)
	if !ok {
		err := fmt.Errorf("book %d: %w", id, ErrNotFound)
		s.logger.Info("Book not found for delete", zap.Int64("book_id", id))
		s.observe(OpDelete, err)
		return models.Book{}, err
	}

	s.record(models.NewDeleted(book))
	s.logger.Info("Book deleted",
		zap.Int64("book_id", id),
		zap.String("title", book.Title),
	)
	s.observe(OpDelete, nil)
	return book, nil
}

// IssueBook lends out an available book
func (s *Service) IssueBook(id int64) (models.Book, error) {
	return s.changeStatus(OpIssue, id, models.StatusAvailable, models.StatusIssued, models.NewIssued)
}

// ReturnBook accepts an issued book back
func (s *Service) ReturnBook(id int64) (models.Book, error) {
	return s.changeStatus(OpReturn, id, models.StatusIssued, models.StatusAvailable, models.NewReturned)
}

func (s *Service) changeStatus(op string, id int64, from, to models.Status, newTx func(int64) models.Transaction) (models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.catalog.Find(id)
	if !ok {
		err := fmt.Errorf("book %d: %w", id, ErrNotFound)
		s.logger.Info("Book not found", zap.String("operation", op), zap.Int64("book_id", id))
		s.observe(op, err)
		return models.Book{}, err
	}
	if book.Status != from {
		err := fmt.Errorf("book %d is %s: %w", id, book.Status, ErrInvalidStateTransition)
		s.logger.Info("Book status does not allow operation",
			zap.String("operation", op),
			zap.Int64("book_id", id),
			zap.Stringer("status", book.Status),
		)
		s.observe(op, err)
		return models.Book{}, err
	}

	book.Status = to
	s.record(newTx(id))
	s.logger.Info("Book status changed",
		zap.String("operation", op),
		zap.Int64("book_id", id),
		zap.String("title", book.Title),
		zap.Stringer("status", to),
	)
	s.observe(op, nil)
	return *book, nil
}

// UndoOutcome describes what an undo did
type UndoOutcome struct {
	Transaction models.Transaction
	// Book is the state of the affected record after the undo.
	// It is the zero value when Applied is false.
	Book models.Book
	// Applied is false when an issue or return was undone but the book had
	// since been removed from the catalog, so nothing changed.
	Applied bool
}

// Describe renders the outcome as a single narration line
func (o UndoOutcome) Describe() string {
	if !o.Applied {
		return fmt.Sprintf("Undo %s: book %d is no longer in the catalog, nothing changed.", o.Transaction.Kind, o.Transaction.BookID)
	}
	switch o.Transaction.Kind {
	case models.KindDeleted:
		return fmt.Sprintf("Undo: Book '%s' restored.", o.Book.Title)
	default:
		return fmt.Sprintf("Undo: Book '%s' status set to %s.", o.Book.Title, o.Book.Status)
	}
}

// UndoTransaction reverses the most recent recorded transaction.
//
// Issue and return are reversed by overwriting the status without checking the
// current one. Delete is reversed by inserting the captured record again as the
// newest entry with its captured status.
func (s *Service) UndoTransaction() (UndoOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.log.Pop()
	if !ok {
		s.logger.Info("No transactions to undo")
		s.observe(OpUndo, ErrEmptyLog)
		return UndoOutcome{}, ErrEmptyLog
	}

	outcome := UndoOutcome{Transaction: tx}
	switch tx.Kind {
	case models.KindIssued:
		outcome.Book, outcome.Applied = s.forceStatus(tx.BookID, models.StatusAvailable)
	case models.KindReturned:
		outcome.Book, outcome.Applied = s.forceStatus(tx.BookID, models.StatusIssued)
	case models.KindDeleted:
		s.catalog.Insert(tx.BookID, tx.Title, tx.Author)
		outcome.Book, outcome.Applied = s.forceStatus(tx.BookID, tx.Status)
	}

	s.publish(audit.ActionUndone, tx)
	s.logger.Info("Transaction undone",
		zap.String("transaction_id", tx.ID.String()),
		zap.Stringer("kind", tx.Kind),
		zap.Int64("book_id", tx.BookID),
		zap.Bool("applied", outcome.Applied),
	)
	s.observe(OpUndo, nil)
	return outcome, nil
}

func (s *Service) forceStatus(id int64, status models.Status) (models.Book, bool) {
	book, ok := s.catalog.Find(id)
	if !ok {
		return models.Book{}, false
	}
	book.Status = status
	return *book, true
}

// SearchBook returns a copy of the newest book with the given id
func (s *Service) SearchBook(id int64) (models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.catalog.Find(id)
	if !ok {
		err := fmt.Errorf("book %d: %w", id, ErrNotFound)
		s.observe(OpSearch, err)
		return models.Book{}, err
	}
	s.observe(OpSearch, nil)
	return *book, nil
}

// DisplayBooks returns every book, newest first
func (s *Service) DisplayBooks() []models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Collect(s.catalog.All())
}

// ViewTransactions returns the undoable transactions, most recent first
func (s *Service) ViewTransactions() []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Collect(s.log.MostRecentFirst())
}

func (s *Service) record(tx models.Transaction) {
	s.log.Push(tx)
	s.publish(audit.ActionRecorded, tx)
}

func (s *Service) publish(action audit.Action, tx models.Transaction) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(audit.EventFrom(action, tx, s.now()))
}

// observe must be called with s.mu held
func (s *Service) observe(op string, err error) {
	s.metrics.ObserveOperation(op, outcomeOf(err))
	s.metrics.SetSizes(s.catalog.Len(), s.log.Len())
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrInvalidStateTransition):
		return metrics.OutcomeInvalidState
	case errors.Is(err, ErrEmptyLog):
		return metrics.OutcomeEmptyLog
	default:
		return metrics.OutcomeError
	}
}
