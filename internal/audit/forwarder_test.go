package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bookledger/internal/audit"
	"bookledger/internal/audit/stubs"
	"bookledger/internal/models"
)

type failingSink struct {
	*stubs.MockSink
}

func (f failingSink) Write(ctx context.Context, events []audit.Event) error {
	return errors.New("connection refused")
}

// slowSink holds the first Write until released and records the state of the
// context each Write saw once it resumed
type slowSink struct {
	*stubs.MockSink
	entered chan struct{}
	release chan struct{}

	mu      sync.Mutex
	ctxErrs []error
}

func newSlowSink() *slowSink {
	return &slowSink{
		MockSink: stubs.NewMockSink(),
		entered:  make(chan struct{}, 1),
		release:  make(chan struct{}),
	}
}

func (s *slowSink) Write(ctx context.Context, events []audit.Event) error {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release

	s.mu.Lock()
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MockSink.Write(ctx, events)
}

func TestEventFrom(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))

	issued := models.NewIssued(7)
	ev := audit.EventFrom(audit.ActionRecorded, issued, at)
	assert.Equal(t, issued.ID, ev.TransactionID)
	assert.Equal(t, audit.ActionRecorded, ev.Action)
	assert.Equal(t, "issue", ev.Kind)
	assert.Equal(t, int64(7), ev.BookID)
	assert.Empty(t, ev.Status)
	assert.Equal(t, time.UTC, ev.OccurredAt.Location())

	deleted := models.NewDeleted(models.Book{ID: 3, Title: "Algorithms", Author: "Carol", Status: models.StatusIssued})
	ev = audit.EventFrom(audit.ActionUndone, deleted, at)
	assert.Equal(t, "delete", ev.Kind)
	assert.Equal(t, "Algorithms", ev.Title)
	assert.Equal(t, "Carol", ev.Author)
	assert.Equal(t, "Issued", ev.Status)
}

func TestForwarder_FlushesOnShutdown(t *testing.T) {
	sink := stubs.NewMockSink()
	fwd := audit.NewForwarder(sink, 16, zap.NewNop())

	for id := int64(1); id <= 3; id++ {
		fwd.Publish(audit.EventFrom(audit.ActionRecorded, models.NewIssued(id), time.Now()))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, fwd.Run(ctx))

	events := sink.Events()
	require.Len(t, events, 3)
	assert.Equal(t, int64(1), events[0].BookID)
	assert.Equal(t, int64(3), events[2].BookID)
	assert.Zero(t, fwd.Dropped())
}

func TestForwarder_WritesWhileRunning(t *testing.T) {
	sink := stubs.NewMockSink()
	// A buffer of 2 also caps the batch size at 2, so the first batch is written
	// without waiting for the flush ticker.
	fwd := audit.NewForwarder(sink, 2, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx) }()

	fwd.Publish(audit.EventFrom(audit.ActionRecorded, models.NewIssued(1), time.Now()))
	assert.Eventually(t, func() bool {
		fwd.Publish(audit.EventFrom(audit.ActionRecorded, models.NewReturned(1), time.Now()))
		return len(sink.Events()) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestForwarder_DropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := stubs.NewMockSink()
	fwd := audit.NewForwarder(sink, 1, zap.New(core))

	fwd.Publish(audit.EventFrom(audit.ActionRecorded, models.NewIssued(1), time.Now()))
	fwd.Publish(audit.EventFrom(audit.ActionRecorded, models.NewIssued(2), time.Now()))

	assert.Equal(t, int64(1), fwd.Dropped())
	assert.Equal(t, 1, logs.FilterMessage("Audit buffer full, dropping event").Len())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, fwd.Run(ctx))

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].BookID)
}

func TestForwarder_SinkErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	fwd := audit.NewForwarder(failingSink{stubs.NewMockSink()}, 4, zap.New(core))

	fwd.Publish(audit.EventFrom(audit.ActionRecorded, models.NewIssued(1), time.Now()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, fwd.Run(ctx))

	entries := logs.FilterMessage("Failed to write audit events").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["event_count"])
}

func TestForwarder_BatchInFlightSurvivesCancel(t *testing.T) {
	sink := newSlowSink()
	// Buffer of 1 makes every event a full batch, written from the run loop
	fwd := audit.NewForwarder(sink, 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Run(ctx) }()

	fwd.Publish(audit.EventFrom(audit.ActionRecorded, models.NewIssued(1), time.Now()))

	select {
	case <-sink.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("forwarder never wrote the batch")
	}
	cancel()
	close(sink.release)
	require.NoError(t, <-done)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.NotEmpty(t, sink.ctxErrs)
	for _, err := range sink.ctxErrs {
		assert.NoError(t, err)
	}

	events := sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].BookID)
}
