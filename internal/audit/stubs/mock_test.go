package stubs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"bookledger/internal/audit"
)

func TestMockSink_Write(t *testing.T) {
	sink := NewMockSink()
	ctx := context.Background()

	if err := sink.Initialize(ctx); err != nil {
		t.Fatalf("Failed to initialize sink: %v", err)
	}

	events := []audit.Event{
		{TransactionID: uuid.New(), Action: audit.ActionRecorded, Kind: "issue", BookID: 1},
		{TransactionID: uuid.New(), Action: audit.ActionRecorded, Kind: "return", BookID: 1},
	}
	if err := sink.Write(ctx, events); err != nil {
		t.Fatalf("Failed to write events: %v", err)
	}

	// The caller may reuse its slice after Write returns
	events[0].BookID = 99

	stored := sink.Events()
	if len(stored) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(stored))
	}
	if stored[0].BookID != 1 {
		t.Errorf("Expected stored event to be unaffected by caller changes, got book %d", stored[0].BookID)
	}
	if stored[1].Kind != "return" {
		t.Errorf("Expected second event kind 'return', got '%s'", stored[1].Kind)
	}
}

func TestMockSink_LastEvents(t *testing.T) {
	sink := NewMockSink()
	ctx := context.Background()

	now := time.Now()
	for i := 0; i < 5; i++ {
		ev := audit.Event{
			TransactionID: uuid.New(),
			Action:        audit.ActionRecorded,
			Kind:          "issue",
			BookID:        int64(i),
			OccurredAt:    now.Add(time.Duration(i) * time.Second),
		}
		if err := sink.Write(ctx, []audit.Event{ev}); err != nil {
			t.Fatalf("Failed to write event: %v", err)
		}
	}

	events, err := sink.LastEvents(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to get last events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(events))
	}

	// Events should be in reverse chronological order
	if events[0].BookID != 4 || events[2].BookID != 2 {
		t.Errorf("Expected books 4..2, got %d..%d", events[0].BookID, events[2].BookID)
	}

	all, err := sink.LastEvents(ctx, 100)
	if err != nil {
		t.Fatalf("Failed to get last events: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("Expected limit to be capped at 5, got %d", len(all))
	}
}

func TestMockSink_Close(t *testing.T) {
	sink := NewMockSink()
	if sink.Closed() {
		t.Fatal("Expected new sink to be open")
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Failed to close sink: %v", err)
	}
	if !sink.Closed() {
		t.Error("Expected sink to be closed")
	}
}

func TestMockSink_LastEventsNonPositiveLimit(t *testing.T) {
	sink := NewMockSink()
	ctx := context.Background()

	ev := audit.Event{TransactionID: uuid.New(), Action: audit.ActionRecorded, Kind: "issue", BookID: 1}
	if err := sink.Write(ctx, []audit.Event{ev}); err != nil {
		t.Fatalf("Failed to write event: %v", err)
	}

	for _, limit := range []int{0, -1} {
		events, err := sink.LastEvents(ctx, limit)
		if err != nil {
			t.Fatalf("Failed to get last events with limit %d: %v", limit, err)
		}
		if len(events) != 0 {
			t.Errorf("Expected no events for limit %d, got %d", limit, len(events))
		}
	}
}
