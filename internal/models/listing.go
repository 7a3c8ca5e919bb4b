package models

import (
	"strings"
	"time"
)

// Reaction types stored per (user, auction).
const (
	ReactionLike    = "like"
	ReactionDislike = "dislike"
)

// Subscription tiers. Free users receive delayed deliveries.
const (
	TierFree  = "free"
	TierPro   = "pro"
	TierElite = "elite"
)

// Listing is one scraped auction record. Immutable after first fan-out
// except for the message locator; auction_id is globally unique.
type Listing struct {
	ID            uint   `gorm:"primaryKey" json:"-"`
	AuctionID     string `gorm:"uniqueIndex;size:100" json:"auction_id"`
	Title         string `json:"title"`
	Brand         string `gorm:"index;size:100" json:"brand"`
	PriceJPY      int    `json:"price_jpy"`
	PriceUSD      float64 `json:"price_usd"`
	SellerID      string  `gorm:"size:100" json:"seller_id"`
	ZenMarketURL  string  `json:"zenmarket_url"`
	YahooURL      string  `json:"yahoo_url"`
	ImageURL      string  `json:"image_url"`
	DealQuality   float64 `gorm:"default:0.5" json:"deal_quality"`
	PriorityScore float64 `json:"priority_score"`
	// MessageID is the main-channel message this listing was delivered as.
	// Reactions are resolved back to the listing through it.
	MessageID string     `gorm:"index;size:100" json:"message_id"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	CreatedAt time.Time  `gorm:"index" json:"created_at"`
}

// ListingPayload is the webhook submission format. Required fields mirror
// the scraper contract; everything else is optional enrichment.
type ListingPayload struct {
	AuctionID      string   `json:"auction_id" binding:"required"`
	Title          string   `json:"title" binding:"required"`
	Brand          string   `json:"brand" binding:"required"`
	PriceJPY       int      `json:"price_jpy" binding:"required"`
	PriceUSD       float64  `json:"price_usd" binding:"required"`
	ZenMarketURL   string   `json:"zenmarket_url" binding:"required"`
	YahooURL       string   `json:"yahoo_url"`
	ImageURL       string   `json:"image_url"`
	SellerID       string   `json:"seller_id"`
	DealQuality    float64  `json:"deal_quality"`
	Priority       float64  `json:"priority"`
	Sizes          []string `json:"sizes"`
	AuctionEndTime string   `json:"auction_end_time"`
}

// EndTimeUTC parses the optional auction_end_time field. Scrapers send
// RFC3339, sometimes with a bare "Z" suffix.
func (p ListingPayload) EndTimeUTC() *time.Time {
	if p.AuctionEndTime == "" {
		return nil
	}
	raw := strings.Replace(p.AuctionEndTime, "Z", "+00:00", 1)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// Reaction holds the single most recent like/dislike per (user, auction).
// The store replaces rather than appends.
type Reaction struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       int64     `gorm:"uniqueIndex:idx_reaction_user_auction;index"`
	AuctionID    string    `gorm:"uniqueIndex:idx_reaction_user_auction;index;size:100"`
	ReactionType string    `gorm:"size:20"`
	CreatedAt    time.Time
}

// Bookmark is a user's saved reference to a liked listing. Reminder flags
// only ever go false -> true.
type Bookmark struct {
	ID                uint       `gorm:"primaryKey"`
	UserID            int64      `gorm:"uniqueIndex:idx_bookmark_user_auction;index"`
	AuctionID         string     `gorm:"uniqueIndex:idx_bookmark_user_auction;index;size:100"`
	BookmarkMessageID string     `gorm:"size:100"`
	BookmarkChannelID string     `gorm:"size:100"`
	AuctionEndTime    *time.Time `gorm:"index"`
	Reminder1hSent    bool `gorm:"column:reminder_1h_sent"`
	Reminder5mSent    bool `gorm:"column:reminder_5m_sent"`
	CreatedAt         time.Time
}

// UserPreference is per-user setup state.
type UserPreference struct {
	UserID               int64  `gorm:"primaryKey"`
	ProxyService         string `gorm:"size:50;default:zenmarket"`
	SetupComplete        bool
	NotificationsEnabled bool   `gorm:"default:true"`
	BookmarkMethod       string `gorm:"size:20;default:private_channel"`
	// Sizes is a comma-joined list of normalized size tokens.
	Sizes             string
	SizeAlertsEnabled bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SizeList splits the stored size tokens.
func (u UserPreference) SizeList() []string {
	if u.Sizes == "" {
		return nil
	}
	return strings.Split(u.Sizes, ",")
}

// SellerPreference tracks per-(user, seller) reaction counts.
// TrustScore = likes/(likes+dislikes); missing rows read as 0.5 at the
// call sites, so the column carries no DB default — a default would
// shadow a legitimate stored 0 (gorm omits zero-valued columns on insert).
type SellerPreference struct {
	ID         uint   `gorm:"primaryKey"`
	UserID     int64  `gorm:"uniqueIndex:idx_seller_pref;index"`
	SellerID   string `gorm:"uniqueIndex:idx_seller_pref;size:100"`
	Likes      int
	Dislikes   int
	TrustScore float64
	UpdatedAt  time.Time
}

// BrandPreference tracks per-(user, brand) reaction counts plus a running
// mean of liked prices. PreferenceScore has no DB default for the same
// reason as SellerPreference.TrustScore.
type BrandPreference struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          int64  `gorm:"uniqueIndex:idx_brand_pref;index"`
	Brand           string `gorm:"uniqueIndex:idx_brand_pref;size:100"`
	Likes           int
	Dislikes        int
	PreferenceScore float64
	AvgLikedPrice   float64
	UpdatedAt       time.Time
}

// ItemPreference holds per-user bounds learned from likes only.
type ItemPreference struct {
	UserID          int64   `gorm:"primaryKey"`
	MaxPriceUSD     float64
	MinQualityScore float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Subscription maps a user to a tier with an expiry.
type Subscription struct {
	UserID     int64  `gorm:"primaryKey"`
	Tier       string `gorm:"size:20;default:free"`
	UpgradedAt time.Time
	ExpiresAt  *time.Time
}

// ScraperStat is one ingest cycle summary, reported by the feed poller
// and surfaced through the stats command.
type ScraperStat struct {
	ID               uint      `gorm:"primaryKey"`
	Timestamp        time.Time `gorm:"index"`
	TotalFound       int
	QualityFiltered  int
	Sent             int
	ErrorsCount      int
	KeywordsSearched int
}

// All returns every entity for AutoMigrate.
func All() []any {
	return []any{
		&Listing{}, &Reaction{}, &Bookmark{}, &UserPreference{},
		&SellerPreference{}, &BrandPreference{}, &ItemPreference{},
		&Subscription{}, &ScraperStat{},
	}
}
