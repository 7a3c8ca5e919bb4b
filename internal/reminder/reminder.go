// Package reminder warns bookmark holders before their auctions end: once
// around the one-hour mark and once in the final minutes.
package reminder

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"auction-sniper/internal/chat"
	"auction-sniper/internal/clock"
	"auction-sniper/internal/store"
)

const cooldown = 5 * time.Minute

// Scheduler scans for due bookmark reminders. Each reminder fires at most
// once: the sent flag flips right after delivery, and the store's tolerant
// query windows mean an end time that slipped past a window while the
// process was down is skipped rather than fired late.
type Scheduler struct {
	store  *store.Store
	sender chat.Sender
	clk    clock.Clock
	log    *zap.SugaredLogger

	backoffUntil time.Time
}

func NewScheduler(st *store.Store, sender chat.Sender, clk clock.Clock, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{store: st, sender: sender, clk: clk, log: log}
}

// Scan runs one reminder pass: the 1h warnings first, then the final ones.
// A single bookmark's failure is logged and the pass continues. Returns an
// error only when a whole query fails.
func (s *Scheduler) Scan(now time.Time) error {
	oneHour, err := s.store.Pending1hReminders(now)
	if err != nil {
		return err
	}
	for _, r := range oneHour {
		s.remind(r, "1h", "⏰ Ends in about 1 hour")
	}

	fiveMin, err := s.store.Pending5mReminders(now)
	if err != nil {
		return err
	}
	for _, r := range fiveMin {
		s.remind(r, "5m", "🚨 Ending in minutes — last chance to bid")
	}
	return nil
}

func (s *Scheduler) remind(r store.PendingReminder, kind, headline string) {
	msg := chat.Message{
		Title:  headline,
		Body:   fmt.Sprintf("%s\nEnds at %s", r.Title, r.AuctionEndTime.UTC().Format("15:04 MST")),
		URL:    r.ZenMarketURL,
		Footer: chat.FooterWithID(r.AuctionID, "bookmark reminder"),
	}

	channel := r.BookmarkChannelID
	if channel == "" {
		channel = chat.UserChannel(r.UserID)
	}
	if _, err := s.sender.Send(channel, msg); err != nil {
		s.log.Errorw("reminder send failed",
			"user_id", r.UserID, "auction_id", r.AuctionID, "kind", kind, "err", err)
		return
	}
	if err := s.store.MarkReminderSent(r.UserID, r.AuctionID, kind); err != nil {
		s.log.Errorw("reminder flag update failed",
			"user_id", r.UserID, "auction_id", r.AuctionID, "kind", kind, "err", err)
	}
}

// ScanNow is the cron entrypoint. A failed scan puts the scheduler into a
// cooldown during which subsequent ticks are skipped.
func (s *Scheduler) ScanNow() {
	now := s.clk.Now()
	if now.Before(s.backoffUntil) {
		return
	}
	if err := s.Scan(now); err != nil {
		s.backoffUntil = now.Add(cooldown)
		s.log.Errorw("reminder scan failed, backing off", "until", s.backoffUntil, "err", err)
	}
}
