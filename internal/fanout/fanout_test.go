package fanout

import (
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"auction-sniper/internal/chat"
	"auction-sniper/internal/models"
	"auction-sniper/internal/store"
)

func newTestFanout(t *testing.T) (*Fanout, *store.Store, *chat.Memory) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	st := store.New(db)
	require.NoError(t, st.Migrate())
	sender := chat.NewMemory()
	return New(st, sender, DefaultChannels(), zap.NewNop().Sugar()), st, sender
}

func payload(auctionID string, priceUSD float64) models.ListingPayload {
	return models.ListingPayload{
		AuctionID:    auctionID,
		Title:        "Margiela artisanal jacket",
		Brand:        "maison margiela",
		PriceJPY:     int(priceUSD * 150),
		PriceUSD:     priceUSD,
		ZenMarketURL: "https://zenmarket.jp/en/auction.aspx?itemCode=" + auctionID,
	}
}

func TestDeliver_BudgetListingHitsAllChannels(t *testing.T) {
	fo, st, sender := newTestFanout(t)

	ok := fo.Deliver(payload("f1", 80))
	require.True(t, ok)

	assert.Len(t, sender.ByChannel("auction-alerts"), 1)
	assert.Len(t, sender.ByChannel("budget-steals"), 1)
	assert.Len(t, sender.ByChannel("hourly-drops"), 1)
	assert.Len(t, sender.ByChannel("maison-margiela"), 1)

	exists, err := st.ListingExists("f1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeliver_ExpensiveListingSkipsBudget(t *testing.T) {
	fo, _, sender := newTestFanout(t)

	require.True(t, fo.Deliver(payload("f2", 450)))
	assert.Empty(t, sender.ByChannel("budget-steals"))
	assert.Len(t, sender.ByChannel("hourly-drops"), 1)
}

func TestDeliver_DuplicateRejected(t *testing.T) {
	fo, _, sender := newTestFanout(t)

	require.True(t, fo.Deliver(payload("f3", 80)))
	assert.False(t, fo.Deliver(payload("f3", 80)))
	assert.Len(t, sender.ByChannel("auction-alerts"), 1)
}

func TestDeliver_SpamRejected(t *testing.T) {
	fo, st, sender := newTestFanout(t)

	p := payload("f4", 80)
	p.Brand = "Celine"
	p.Title = "CELINE ladies wallet"
	assert.False(t, fo.Deliver(p))
	assert.Empty(t, sender.All())

	exists, err := st.ListingExists("f4")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeliver_UnknownBrandNoBrandChannel(t *testing.T) {
	fo, _, sender := newTestFanout(t)

	p := payload("f5", 80)
	p.Brand = "some obscure label"
	require.True(t, fo.Deliver(p))
	// main feed only, plus budget and hourly
	assert.Len(t, sender.All(), 3)
}

func TestDeliver_MainSendFailureDropsListing(t *testing.T) {
	fo, st, sender := newTestFanout(t)
	sender.FailChannel = map[string]error{"auction-alerts": errors.New("chat down")}

	assert.False(t, fo.Deliver(payload("f6", 80)))

	exists, err := st.ListingExists("f6")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeliver_BranchFailureIsIsolated(t *testing.T) {
	fo, st, sender := newTestFanout(t)
	sender.FailChannel = map[string]error{"budget-steals": errors.New("channel gone")}

	assert.True(t, fo.Deliver(payload("f7", 80)))
	assert.Len(t, sender.ByChannel("hourly-drops"), 1)

	exists, err := st.ListingExists("f7")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeliver_SizeAlerts(t *testing.T) {
	fo, st, sender := newTestFanout(t)
	require.NoError(t, st.SetUserSizePreferences(11, []string{"m"}))
	require.NoError(t, st.SetUserSizePreferences(12, []string{"xl"}))

	p := payload("f8", 200)
	p.Sizes = []string{"48"}
	require.True(t, fo.Deliver(p))

	alerts := sender.ByChannel("size-alerts")
	require.Len(t, alerts, 1)
	assert.EqualValues(t, 11, alerts[0].Message.MentionUserID)
}

func TestDeliver_NoSizesNoAlerts(t *testing.T) {
	fo, st, sender := newTestFanout(t)
	require.NoError(t, st.SetUserSizePreferences(11, []string{"m"}))

	require.True(t, fo.Deliver(payload("f9", 200)))
	assert.Empty(t, sender.ByChannel("size-alerts"))
}
