package reminder

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"auction-sniper/internal/chat"
	"auction-sniper/internal/clock"
	"auction-sniper/internal/models"
	"auction-sniper/internal/store"
)

func newTestScheduler(t *testing.T) (*Scheduler, *store.Store, *chat.Memory, *clock.Fake) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	st := store.New(db)
	require.NoError(t, st.Migrate())

	sender := chat.NewMemory()
	clk := clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewScheduler(st, sender, clk, zap.NewNop().Sugar()), st, sender, clk
}

func addBookmark(t *testing.T, st *store.Store, userID int64, auctionID string, end time.Time) {
	t.Helper()
	require.NoError(t, st.AddListing(models.ListingPayload{
		AuctionID:    auctionID,
		Title:        "Helmut Lang painter jeans",
		Brand:        "helmut lang",
		PriceJPY:     20000,
		PriceUSD:     130,
		ZenMarketURL: "https://zenmarket.jp/en/auction.aspx?itemCode=" + auctionID,
	}, "msg"))
	require.NoError(t, st.AddBookmark(userID, auctionID, "bm", chat.UserChannel(userID), &end))
}

func TestScan_OneHourReminderFiresOnce(t *testing.T) {
	sched, _, sender, clk := newTestScheduler(t)
	addBookmark(t, sched.store, 1, "r1", clk.Now().Add(60*time.Minute))

	require.NoError(t, sched.Scan(clk.Now()))
	require.Len(t, sender.ByChannel("user:1"), 1)
	assert.Contains(t, sender.ByChannel("user:1")[0].Message.Title, "1 hour")

	// still inside the window, but the flag blocks a re-send
	require.NoError(t, sched.Scan(clk.Now()))
	assert.Len(t, sender.ByChannel("user:1"), 1)
}

func TestScan_FiveMinuteReminder(t *testing.T) {
	sched, _, sender, clk := newTestScheduler(t)
	addBookmark(t, sched.store, 2, "r2", clk.Now().Add(5*time.Minute))

	require.NoError(t, sched.Scan(clk.Now()))
	require.Len(t, sender.ByChannel("user:2"), 1)

	require.NoError(t, sched.Scan(clk.Now()))
	assert.Len(t, sender.ByChannel("user:2"), 1)
}

func TestScan_BothStages(t *testing.T) {
	sched, _, sender, clk := newTestScheduler(t)
	addBookmark(t, sched.store, 3, "r3", clk.Now().Add(60*time.Minute))

	require.NoError(t, sched.Scan(clk.Now()))
	assert.Len(t, sender.ByChannel("user:3"), 1)

	clk.Advance(55 * time.Minute)
	require.NoError(t, sched.Scan(clk.Now()))
	assert.Len(t, sender.ByChannel("user:3"), 2)
}

func TestScan_PastEndTimeFailsOpen(t *testing.T) {
	sched, _, sender, clk := newTestScheduler(t)
	addBookmark(t, sched.store, 4, "r4", clk.Now().Add(-10*time.Minute))

	require.NoError(t, sched.Scan(clk.Now()))
	assert.Empty(t, sender.All())
}

func TestScan_SendFailureRetriesNextScan(t *testing.T) {
	sched, _, sender, clk := newTestScheduler(t)
	addBookmark(t, sched.store, 5, "r5", clk.Now().Add(60*time.Minute))
	sender.FailChannel = map[string]error{"user:5": errors.New("blocked")}

	require.NoError(t, sched.Scan(clk.Now()))
	assert.Empty(t, sender.ByChannel("user:5"))

	// the flag was not set, so the next scan inside the window retries
	sender.FailChannel = nil
	require.NoError(t, sched.Scan(clk.Now()))
	assert.Len(t, sender.ByChannel("user:5"), 1)
}

func TestScan_OneBadBookmarkDoesNotBlockOthers(t *testing.T) {
	sched, _, sender, clk := newTestScheduler(t)
	addBookmark(t, sched.store, 6, "r6", clk.Now().Add(60*time.Minute))
	addBookmark(t, sched.store, 7, "r7", clk.Now().Add(60*time.Minute))
	sender.FailChannel = map[string]error{"user:6": errors.New("blocked")}

	require.NoError(t, sched.Scan(clk.Now()))
	assert.Len(t, sender.ByChannel("user:7"), 1)
}

func TestScanNow_BacksOffAfterFailure(t *testing.T) {
	sched, st, sender, clk := newTestScheduler(t)
	addBookmark(t, st, 8, "r8", clk.Now().Add(60*time.Minute))

	sched.backoffUntil = clk.Now().Add(cooldown)
	sched.ScanNow()
	assert.Empty(t, sender.All(), "ticks during backoff are skipped")

	clk.Advance(cooldown)
	sched.ScanNow()
	assert.Len(t, sender.ByChannel("user:8"), 1)
}
