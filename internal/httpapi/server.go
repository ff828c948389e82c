// Package httpapi exposes the library service as a small JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bookledger/internal/audit"
	"bookledger/internal/library"
	"bookledger/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 1000
)

// AuditReader reads back the audit trail, newest first
type AuditReader interface {
	LastEvents(ctx context.Context, limit int) ([]audit.Event, error)
}

// Server handles HTTP requests for the library
type Server struct {
	library  *library.Service
	gatherer prometheus.Gatherer
	audit    AuditReader
	logger   *zap.Logger
}

// Option configures optional routes of a Server
type Option func(*Server)

// WithAuditReader serves GET /transactions/audit from r
func WithAuditReader(r AuditReader) Option {
	return func(s *Server) { s.audit = r }
}

// NewServer creates the HTTP handlers. gatherer may be nil, in which case
// /metrics is not registered.
func NewServer(svc *library.Service, gatherer prometheus.Gatherer, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		library:  svc,
		gatherer: gatherer,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRoutes registers the API routes on the provided mux
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /books", s.handleListBooks)
	mux.HandleFunc("POST /books", s.handleInsertBook)
	mux.HandleFunc("GET /books/{id}", s.handleSearchBook)
	mux.HandleFunc("DELETE /books/{id}", s.handleDeleteBook)
	mux.HandleFunc("POST /books/{id}/issue", s.handleIssueBook)
	mux.HandleFunc("POST /books/{id}/return", s.handleReturnBook)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("POST /transactions/undo", s.handleUndo)
	if s.audit != nil {
		mux.HandleFunc("GET /transactions/audit", s.handleAuditTrail)
	}

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns a new mux with all routes registered
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

type insertBookRequest struct {
	ID     *int64 `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

type transactionView struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	BookID     int64     `json:"book_id"`
	Title      string    `json:"title,omitempty"`
	Author     string    `json:"author,omitempty"`
	Status     string    `json:"status,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type undoView struct {
	Transaction transactionView `json:"transaction"`
	Applied     bool            `json:"applied"`
	Book        *models.Book    `json:"book,omitempty"`
	Message     string          `json:"message"`
}

type auditEventView struct {
	TransactionID string    `json:"transaction_id"`
	Action        string    `json:"action"`
	Kind          string    `json:"kind"`
	BookID        int64     `json:"book_id"`
	Title         string    `json:"title,omitempty"`
	Author        string    `json:"author,omitempty"`
	Status        string    `json:"status,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type errorView struct {
	Error string `json:"error"`
}

func newTransactionView(tx models.Transaction) transactionView {
	v := transactionView{
		ID:         tx.ID.String(),
		Kind:       tx.Kind.String(),
		BookID:     tx.BookID,
		RecordedAt: tx.RecordedAt,
	}
	if tx.Kind == models.KindDeleted {
		v.Title = tx.Title
		v.Author = tx.Author
		v.Status = tx.Status.String()
	}
	return v
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books := s.library.DisplayBooks()
	if books == nil {
		books = []models.Book{}
	}
	s.writeJSON(w, http.StatusOK, books)
}

func (s *Server) handleInsertBook(w http.ResponseWriter, r *http.Request) {
	var req insertBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ID == nil {
		s.writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	s.library.InsertBook(*req.ID, req.Title, req.Author)
	s.writeJSON(w, http.StatusCreated, models.Book{
		ID:     *req.ID,
		Title:  req.Title,
		Author: req.Author,
		Status: models.StatusAvailable,
	})
}

func (s *Server) handleSearchBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	book, err := s.library.SearchBook(id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	book, err := s.library.DeleteBook(id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleIssueBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	book, err := s.library.IssueBook(id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleReturnBook(w http.ResponseWriter, r *http.Request) {
	id, ok := s.bookID(w, r)
	if !ok {
		return
	}
	book, err := s.library.ReturnBook(id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs := s.library.ViewTransactions()
	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, newTransactionView(tx))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.library.UndoTransaction()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	view := undoView{
		Transaction: newTransactionView(outcome.Transaction),
		Applied:     outcome.Applied,
		Message:     outcome.Describe(),
	}
	if outcome.Applied {
		book := outcome.Book
		view.Book = &book
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAuditLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxAuditLimit))
			return
		}
		limit = n
	}

	events, err := s.audit.LastEvents(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to read audit trail", zap.Error(err), zap.Int("limit", limit))
		s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	views := make([]auditEventView, 0, len(events))
	for _, ev := range events {
		views = append(views, auditEventView{
			TransactionID: ev.TransactionID.String(),
			Action:        string(ev.Action),
			Kind:          ev.Kind,
			BookID:        ev.BookID,
			Title:         ev.Title,
			Author:        ev.Author,
			Status:        ev.Status,
			OccurredAt:    ev.OccurredAt,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

// bookID parses the {id} path value, writing a 400 on failure
func (s *Server) bookID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid book id: "+raw)
		return 0, false
	}
	return id, true
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, library.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, library.ErrInvalidStateTransition), errors.Is(err, library.ErrEmptyLog):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("Unexpected service error", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorView{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to encode response", zap.Error(err))
	}
}
