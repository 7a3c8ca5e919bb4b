// Package buffer batches incoming listings so channels get grouped drops
// instead of a message per webhook.
package buffer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"auction-sniper/internal/clock"
	"auction-sniper/internal/models"
)

const (
	// BatchSize is the flush threshold and the maximum batch length.
	BatchSize = 4
	// FlushTimeout flushes a short batch that has been waiting too long.
	FlushTimeout = 30 * time.Second
	// tickInterval is how often Run checks the flush conditions.
	tickInterval = 1 * time.Second
	// itemPacing is the delay between deliveries within one batch.
	itemPacing = 3 * time.Second
)

// Buffer accumulates listing payloads and releases them in paced batches.
type Buffer struct {
	mu        sync.Mutex
	pending   []models.ListingPayload
	lastFlush time.Time

	clk clock.Clock
	log *zap.SugaredLogger
}

func New(clk clock.Clock, log *zap.SugaredLogger) *Buffer {
	return &Buffer{clk: clk, log: log}
}

// Submit queues one payload and returns the new queue depth. The timeout
// clock starts when the queue goes from empty to non-empty.
func (b *Buffer) Submit(p models.ListingPayload) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		b.lastFlush = b.clk.Now()
	}
	b.pending = append(b.pending, p)
	return len(b.pending)
}

// Depth returns the current queue length.
func (b *Buffer) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// TakeBatch removes and returns the next batch if one is due: either the
// queue reached BatchSize, or it is non-empty and FlushTimeout has passed
// since it last went non-empty. Returns nil when nothing is due.
func (b *Buffer) TakeBatch(now time.Time) []models.ListingPayload {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.pending) == 0 {
		return nil
	}
	if len(b.pending) < BatchSize && now.Sub(b.lastFlush) < FlushTimeout {
		return nil
	}

	n := len(b.pending)
	if n > BatchSize {
		n = BatchSize
	}
	batch := make([]models.ListingPayload, n)
	copy(batch, b.pending[:n])
	b.pending = b.pending[n:]
	b.lastFlush = now
	return batch
}

// Run drives the flush loop until ctx is cancelled. Each due batch is
// handed to deliver one payload at a time with itemPacing between them.
// A panic in deliver loses at most the current batch.
func (b *Buffer) Run(ctx context.Context, deliver func(models.ListingPayload)) {
	for {
		b.clk.Sleep(ctx, tickInterval)
		if ctx.Err() != nil {
			return
		}
		b.FlushDue(ctx, deliver)
	}
}

// FlushDue runs one flush check: takes the due batch, if any, and delivers
// it paced. Reports whether a batch was flushed.
func (b *Buffer) FlushDue(ctx context.Context, deliver func(models.ListingPayload)) bool {
	batch := b.TakeBatch(b.clk.Now())
	if len(batch) == 0 {
		return false
	}
	b.deliverBatch(ctx, batch, deliver)
	return true
}

func (b *Buffer) deliverBatch(ctx context.Context, batch []models.ListingPayload, deliver func(models.ListingPayload)) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("batch delivery panicked", "recovered", r)
		}
	}()

	for i, p := range batch {
		if i > 0 {
			b.clk.Sleep(ctx, itemPacing)
			if ctx.Err() != nil {
				return
			}
		}
		deliver(p)
	}
	b.log.Debugw("batch delivered", "size", len(batch))
}
