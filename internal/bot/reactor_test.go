package bot

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"auction-sniper/internal/chat"
	"auction-sniper/internal/learner"
	"auction-sniper/internal/models"
	"auction-sniper/internal/store"
)

func newTestReactor(t *testing.T) (*Reactor, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	st := store.New(db)
	require.NoError(t, st.Migrate())

	log := zap.NewNop().Sugar()
	return NewReactor(st, learner.New(st, log), log), st
}

func seedListing(t *testing.T, st *store.Store, auctionID string, end *time.Time) {
	t.Helper()
	p := models.ListingPayload{
		AuctionID:    auctionID,
		Title:        "Number Nine kurt cardigan",
		Brand:        "number nine",
		PriceJPY:     60000,
		PriceUSD:     400,
		ZenMarketURL: "https://zenmarket.jp/en/auction.aspx?itemCode=" + auctionID,
		SellerID:     "seller1",
	}
	if end != nil {
		p.AuctionEndTime = end.Format(time.RFC3339)
	}
	require.NoError(t, st.AddListing(p, "msg-1"))
}

func TestHandleReaction_LikeCreatesBookmarkAndLearns(t *testing.T) {
	r, st := newTestReactor(t)
	require.NoError(t, st.SetUserProxyPreference(1, "zenmarket"))
	end := time.Now().UTC().Add(3 * time.Hour)
	seedListing(t, st, "b1", &end)

	r.HandleReaction(chat.ReactionEvent{UserID: 1, AuctionID: "b1", Type: models.ReactionLike})

	// bookmark exists, addressed to the user's direct channel
	rows, err := st.GetUserBookmarks(1, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b1", rows[0].AuctionID)

	// preferences learned
	pref, err := st.BrandPreference(1, "number nine")
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, 1, pref.Likes)

	seller, err := st.SellerPreference(1, "seller1")
	require.NoError(t, err)
	require.NotNil(t, seller)
	assert.Equal(t, 1.0, seller.TrustScore)
}

func TestHandleReaction_DislikeNoBookmark(t *testing.T) {
	r, st := newTestReactor(t)
	require.NoError(t, st.SetUserProxyPreference(1, "zenmarket"))
	seedListing(t, st, "b2", nil)

	r.HandleReaction(chat.ReactionEvent{UserID: 1, AuctionID: "b2", Type: models.ReactionDislike})

	rows, err := st.GetUserBookmarks(1, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)

	pref, err := st.BrandPreference(1, "number nine")
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, 1, pref.Dislikes)
}

func TestHandleReaction_RequiresSetup(t *testing.T) {
	r, st := newTestReactor(t)
	seedListing(t, st, "b3", nil)

	r.HandleReaction(chat.ReactionEvent{UserID: 2, AuctionID: "b3", Type: models.ReactionLike})

	total, _, _, err := st.ReactionSummary(2)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestHandleReaction_UnknownListingIgnored(t *testing.T) {
	r, st := newTestReactor(t)
	require.NoError(t, st.SetUserProxyPreference(1, "zenmarket"))

	r.HandleReaction(chat.ReactionEvent{UserID: 1, AuctionID: "ghost", Type: models.ReactionLike})

	total, _, _, err := st.ReactionSummary(1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestHandleReaction_ToggleEndsWithSingleLike(t *testing.T) {
	r, st := newTestReactor(t)
	require.NoError(t, st.SetUserProxyPreference(1, "zenmarket"))
	seedListing(t, st, "b4", nil)

	for _, typ := range []string{models.ReactionLike, models.ReactionDislike, models.ReactionLike} {
		r.HandleReaction(chat.ReactionEvent{UserID: 1, AuctionID: "b4", Type: typ})
	}

	pref, err := st.BrandPreference(1, "number nine")
	require.NoError(t, err)
	assert.Equal(t, 1, pref.Likes)
	assert.Equal(t, 0, pref.Dislikes)
}
