package audit

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	defaultBatchSize     = 64
	defaultFlushInterval = time.Second
	flushTimeout         = 5 * time.Second
)

// Forwarder buffers events in memory and writes them to a Sink in batches.
// Publish never blocks: when the buffer is full the event is dropped.
type Forwarder struct {
	sink          Sink
	events        chan Event
	batchSize     int
	flushInterval time.Duration
	logger        *zap.Logger
	dropped       atomic.Int64
}

// NewForwarder creates a forwarder with room for buffer pending events
func NewForwarder(sink Sink, buffer int, logger *zap.Logger) *Forwarder {
	if buffer < 1 {
		buffer = 1
	}
	batchSize := defaultBatchSize
	if buffer < batchSize {
		batchSize = buffer
	}
	return &Forwarder{
		sink:          sink,
		events:        make(chan Event, buffer),
		batchSize:     batchSize,
		flushInterval: defaultFlushInterval,
		logger:        logger,
	}
}

// Publish queues an event for the sink
func (f *Forwarder) Publish(ev Event) {
	select {
	case f.events <- ev:
	default:
		f.dropped.Add(1)
		f.logger.Warn("Audit buffer full, dropping event",
			zap.String("transaction_id", ev.TransactionID.String()),
			zap.String("action", string(ev.Action)),
			zap.Int64("book_id", ev.BookID),
		)
	}
}

// Dropped returns how many events were discarded because the buffer was full
func (f *Forwarder) Dropped() int64 {
	return f.dropped.Load()
}

// Run drains the buffer into the sink until ctx is done, then flushes whatever
// is still queued and returns.
//
// Writes are not tied to ctx: a batch already taken from the buffer is
// written even if ctx is cancelled while it is in flight.
func (f *Forwarder) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.flushInterval)
	defer ticker.Stop()

	writeCtx := context.WithoutCancel(ctx)
	batch := make([]Event, 0, f.batchSize)
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-f.events:
					batch = append(batch, ev)
				default:
					f.flush(writeCtx, batch)
					return nil
				}
			}
		case ev := <-f.events:
			batch = append(batch, ev)
			if len(batch) >= f.batchSize {
				f.flush(writeCtx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				f.flush(writeCtx, batch)
				batch = batch[:0]
			}
		}
	}
}

func (f *Forwarder) flush(ctx context.Context, batch []Event) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()

	if err := f.sink.Write(ctx, batch); err != nil {
		f.logger.Error("Failed to write audit events",
			zap.Error(err),
			zap.Int("event_count", len(batch)),
		)
		return
	}
	f.logger.Debug("Audit events written", zap.Int("event_count", len(batch)))
}
