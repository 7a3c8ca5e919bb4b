package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"auction-sniper/internal/buffer"
	"auction-sniper/internal/chat"
	"auction-sniper/internal/clock"
	"auction-sniper/internal/models"
	"auction-sniper/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Store, *buffer.Buffer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	st := store.New(db)
	require.NoError(t, st.Migrate())

	buf := buffer.New(clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)), zap.NewNop().Sugar())

	r := gin.New()
	NewHandler(st, buf, chat.NewMemory()).RegisterRoutes(r)
	return r, st, buf
}

func doJSON(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

const validBody = `{
	"auction_id": "w1",
	"title": "Yohji Yamamoto pour homme gabardine coat",
	"brand": "yohji yamamoto",
	"price_jpy": 52000,
	"price_usd": 340,
	"zenmarket_url": "https://zenmarket.jp/en/auction.aspx?itemCode=w1"
}`

func TestWebhook_QueuesListing(t *testing.T) {
	r, _, buf := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/webhook", validBody)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status     string `json:"status"`
		BufferSize int    `json:"buffer_size"`
		AuctionID  string `json:"auction_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "queued", resp.Status)
	assert.Equal(t, 1, resp.BufferSize)
	assert.Equal(t, "w1", resp.AuctionID)
	assert.Equal(t, 1, buf.Depth())
}

func TestWebhook_MissingRequiredField(t *testing.T) {
	r, _, buf := newTestRouter(t)

	w := doJSON(r, http.MethodPost, "/webhook", `{"auction_id": "w2", "title": "no brand"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
	assert.Equal(t, 0, buf.Depth(), "rejected payloads never enter the buffer")
}

func TestWebhook_MalformedJSON(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := doJSON(r, http.MethodPost, "/webhook", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCheckDuplicate(t *testing.T) {
	r, st, _ := newTestRouter(t)
	require.NoError(t, st.AddListing(models.ListingPayload{
		AuctionID: "w3", Title: "t", Brand: "b", PriceJPY: 1000, PriceUSD: 7,
		ZenMarketURL: "https://zenmarket.jp/en/auction.aspx?itemCode=w3",
	}, "msg"))

	w := doJSON(r, http.MethodGet, "/check_duplicate/w3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"exists": true, "auction_id": "w3"}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/check_duplicate/unseen", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"exists": false, "auction_id": "unseen"}`, w.Body.String())
}

func TestStats(t *testing.T) {
	r, st, buf := newTestRouter(t)
	require.NoError(t, st.AddListing(models.ListingPayload{
		AuctionID: "w4", Title: "t", Brand: "b", PriceJPY: 1000, PriceUSD: 7,
		ZenMarketURL: "https://zenmarket.jp/en/auction.aspx?itemCode=w4",
	}, "msg"))
	require.NoError(t, st.SetUserProxyPreference(1, "zenmarket"))
	buf.Submit(models.ListingPayload{AuctionID: "w5"})

	w := doJSON(r, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		TotalListings  int64 `json:"total_listings"`
		TotalReactions int64 `json:"total_reactions"`
		ActiveUsers    int64 `json:"active_users"`
		BufferSize     int   `json:"buffer_size"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.TotalListings)
	assert.EqualValues(t, 0, resp.TotalReactions)
	assert.EqualValues(t, 1, resp.ActiveUsers)
	assert.Equal(t, 1, resp.BufferSize)
}

func TestHealth(t *testing.T) {
	r, _, _ := newTestRouter(t)

	w := doJSON(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Status      string `json:"status"`
		ChatAlive   bool   `json:"chat_alive"`
		BufferAlive bool   `json:"buffer_alive"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.ChatAlive)
	assert.True(t, resp.BufferAlive)
}
