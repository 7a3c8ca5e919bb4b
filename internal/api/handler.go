package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"auction-sniper/internal/buffer"
	"auction-sniper/internal/chat"
	"auction-sniper/internal/models"
	"auction-sniper/internal/store"
)

type Handler struct {
	store  *store.Store
	buffer *buffer.Buffer
	sender chat.Sender
}

func NewHandler(st *store.Store, buf *buffer.Buffer, sender chat.Sender) *Handler {
	return &Handler{store: st, buffer: buf, sender: sender}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/webhook", h.Webhook)
	r.GET("/check_duplicate/:auction_id", h.CheckDuplicate)
	r.GET("/stats", h.GetStats)
	r.GET("/health", h.Health)
}

// Webhook 接收一条抓取到的拍卖并入队
func (h *Handler) Webhook(c *gin.Context) {
	var payload models.ListingPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	depth := h.buffer.Submit(payload)

	c.JSON(http.StatusOK, gin.H{
		"status":      "queued",
		"buffer_size": depth,
		"auction_id":  payload.AuctionID,
	})
}

// CheckDuplicate 查询某个拍卖是否已投递过
func (h *Handler) CheckDuplicate(c *gin.Context) {
	auctionID := c.Param("auction_id")

	exists, err := h.store.ListingExists(auctionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"exists":     exists,
		"auction_id": auctionID,
	})
}

// GetStats 获取统计信息
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.store.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_listings":  stats.TotalListings,
		"total_reactions": stats.TotalReactions,
		"active_users":    stats.ActiveUsers,
		"buffer_size":     h.buffer.Depth(),
	})
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	chatAlive := h.sender != nil && h.sender.Healthy()

	status := "ok"
	code := http.StatusOK
	if !chatAlive {
		status = "degraded"
	}

	c.JSON(code, gin.H{
		"status":       status,
		"chat_alive":   chatAlive,
		"buffer_alive": h.buffer != nil,
		"buffer_size":  h.buffer.Depth(),
	})
}
