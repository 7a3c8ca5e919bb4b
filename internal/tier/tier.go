// Package tier computes per-user delivery delays from subscription level
// and holds delayed free-tier deliveries until due.
package tier

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"auction-sniper/internal/chat"
	"auction-sniper/internal/clock"
	"auction-sniper/internal/models"
)

const (
	// BaseDelay is the free-tier delivery hold.
	BaseDelay = 8 * time.Hour

	pollInterval = 60 * time.Second
	cooldown     = 5 * time.Minute
)

// DelayFor returns how long a listing is held before reaching a user of
// the given tier. Paying tiers see everything immediately; the free-tier
// hold shortens for high-priority listings.
func DelayFor(tier string, priority float64) time.Duration {
	switch tier {
	case models.TierPro, models.TierElite:
		return 0
	}
	switch {
	case priority >= 100:
		return BaseDelay / 2
	case priority >= 70:
		return BaseDelay * 3 / 4
	default:
		return BaseDelay
	}
}

type entry struct {
	payload  models.ListingPayload
	channels []string
	due      time.Time
	seq      uint64
}

// Queue is the time-ordered delayed-delivery queue. Entries pop in due
// order; equal due times pop in insertion order. Contents are in-memory
// only and do not survive a restart.
type Queue struct {
	mu      sync.Mutex
	entries []entry
	nextSeq uint64

	sender chat.Sender
	clk    clock.Clock
	log    *zap.SugaredLogger
}

func NewQueue(sender chat.Sender, clk clock.Clock, log *zap.SugaredLogger) *Queue {
	return &Queue{sender: sender, clk: clk, log: log}
}

// Push schedules a listing for delivery to the given channels after delay.
func (q *Queue) Push(p models.ListingPayload, delay time.Duration, channels []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry{
		payload:  p,
		channels: append([]string(nil), channels...),
		due:      q.clk.Now().Add(delay),
		seq:      q.nextSeq,
	})
	q.nextSeq++
}

// Len returns the number of queued deliveries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// takeDue snapshots and removes every entry due at or before now, sorted
// by due time then insertion order.
func (q *Queue) takeDue(now time.Time) []entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due, rest []entry
	for _, e := range q.entries {
		if !e.due.After(now) {
			due = append(due, e)
		} else {
			rest = append(rest, e)
		}
	}
	q.entries = rest

	sort.SliceStable(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].seq < due[j].seq
		}
		return due[i].due.Before(due[j].due)
	})
	return due
}

// DrainDue delivers every due entry to its tagged channels. One entry's
// delivery failure is logged and does not block the rest. Returns how many
// entries were processed.
func (q *Queue) DrainDue(now time.Time) int {
	due := q.takeDue(now)
	for _, e := range due {
		msg := chat.FormatListing(e.payload, "delayed drop")
		for _, channel := range e.channels {
			if _, err := q.sender.Send(channel, msg); err != nil {
				q.log.Errorw("delayed delivery failed",
					"channel", channel, "auction_id", e.payload.AuctionID, "err", err)
			}
		}
	}
	return len(due)
}

// Run drains the queue on a fixed cadence until ctx is cancelled. A
// panicking drain triggers a cooldown before the loop resumes.
func (q *Queue) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if ok := q.drainSafely(); !ok {
			q.clk.Sleep(ctx, cooldown)
			continue
		}
		q.clk.Sleep(ctx, pollInterval)
	}
}

func (q *Queue) drainSafely() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("delayed queue drain panicked", "recovered", r)
			ok = false
		}
	}()
	q.DrainDue(q.clk.Now())
	return true
}
