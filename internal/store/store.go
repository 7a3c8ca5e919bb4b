// Package store is the gorm-backed persistence layer. Every operation is a
// point lookup or single-row write so callers can treat store calls as fast
// and synchronous.
package store

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"auction-sniper/internal/models"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates all tables.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(models.All()...)
}

// --- Listings ---

// AddListing persists a delivered listing keyed by its main-channel message
// id. Re-adding the same auction refreshes the title and locator only.
func (s *Store) AddListing(p models.ListingPayload, messageID string) error {
	listing := models.Listing{
		AuctionID:     p.AuctionID,
		Title:         p.Title,
		Brand:         p.Brand,
		PriceJPY:      p.PriceJPY,
		PriceUSD:      p.PriceUSD,
		SellerID:      sellerOrUnknown(p.SellerID),
		ZenMarketURL:  p.ZenMarketURL,
		YahooURL:      p.YahooURL,
		ImageURL:      p.ImageURL,
		DealQuality:   qualityOrDefault(p.DealQuality),
		PriorityScore: p.Priority,
		MessageID:     messageID,
		EndTime:       p.EndTimeUTC(),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "auction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "message_id"}),
	}).Create(&listing).Error
	if err != nil {
		return fmt.Errorf("add listing %s: %w", p.AuctionID, err)
	}
	return nil
}

func (s *Store) GetListing(auctionID string) (*models.Listing, error) {
	var l models.Listing
	err := s.db.Where("auction_id = ?", auctionID).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", auctionID, err)
	}
	return &l, nil
}

// ListingExists is the single source of truth for duplicate suppression.
func (s *Store) ListingExists(auctionID string) (bool, error) {
	var count int64
	err := s.db.Model(&models.Listing{}).Where("auction_id = ?", auctionID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check duplicate %s: %w", auctionID, err)
	}
	return count > 0, nil
}

// --- Reactions ---

// AddReaction replaces any prior reaction by the same user on the same
// auction (delete-then-insert) and returns the replaced reaction type, if
// any, so the learner can undo its contribution.
func (s *Store) AddReaction(userID int64, auctionID, reactionType string) (string, error) {
	var prev string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Reaction
		err := tx.Where("user_id = ? AND auction_id = ?", userID, auctionID).First(&existing).Error
		if err == nil {
			prev = existing.ReactionType
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&models.Reaction{
			UserID:       userID,
			AuctionID:    auctionID,
			ReactionType: reactionType,
		}).Error
	})
	if err != nil {
		return "", fmt.Errorf("add reaction %s/%d: %w", auctionID, userID, err)
	}
	return prev, nil
}

// ReactionSummary returns total/likes/dislikes for a user.
func (s *Store) ReactionSummary(userID int64) (total, likes, dislikes int64, err error) {
	base := s.db.Model(&models.Reaction{}).Where("user_id = ?", userID)
	if err = base.Count(&total).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("reaction summary: %w", err)
	}
	base.Session(&gorm.Session{}).Where("reaction_type = ?", models.ReactionLike).Count(&likes)
	dislikes = total - likes
	return total, likes, dislikes, nil
}

// ReactionExport joins a user's reactions with their listings, newest first.
type ReactionExportRow struct {
	ReactionType string
	CreatedAt    time.Time
	Title        string
	Brand        string
	PriceJPY     int
	PriceUSD     float64
	SellerID     string
	ZenMarketURL string
	YahooURL     string
	AuctionID    string
	DealQuality  float64
	Priority     float64
}

func (s *Store) ReactionExport(userID int64) ([]ReactionExportRow, error) {
	var rows []ReactionExportRow
	err := s.db.Model(&models.Reaction{}).
		Select(`reactions.reaction_type, reactions.created_at, listings.title, listings.brand,
			listings.price_jpy, listings.price_usd, listings.seller_id, listings.zen_market_url,
			listings.yahoo_url, listings.auction_id, listings.deal_quality,
			listings.priority_score AS priority`).
		Joins("JOIN listings ON listings.auction_id = reactions.auction_id").
		Where("reactions.user_id = ?", userID).
		Order("reactions.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("reaction export: %w", err)
	}
	return rows, nil
}

// --- Bookmarks ---

// AddBookmark upserts the (user, auction) bookmark row. Reminder flags are
// left untouched on conflict so an already-reminded bookmark never regresses.
func (s *Store) AddBookmark(userID int64, auctionID, messageID, channelID string, endTime *time.Time) error {
	bm := models.Bookmark{
		UserID:            userID,
		AuctionID:         auctionID,
		BookmarkMessageID: messageID,
		BookmarkChannelID: channelID,
		AuctionEndTime:    endTime,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "auction_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"bookmark_message_id", "bookmark_channel_id"}),
	}).Create(&bm).Error
	if err != nil {
		return fmt.Errorf("add bookmark %s/%d: %w", auctionID, userID, err)
	}
	return nil
}

type BookmarkView struct {
	AuctionID    string
	Title        string
	Brand        string
	PriceUSD     float64
	ZenMarketURL string
	CreatedAt    time.Time
}

func (s *Store) GetUserBookmarks(userID int64, limit int) ([]BookmarkView, error) {
	var rows []BookmarkView
	err := s.db.Model(&models.Bookmark{}).
		Select(`bookmarks.auction_id, listings.title, listings.brand, listings.price_usd,
			listings.zen_market_url, bookmarks.created_at`).
		Joins("JOIN listings ON listings.auction_id = bookmarks.auction_id").
		Where("bookmarks.user_id = ?", userID).
		Order("bookmarks.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("get bookmarks: %w", err)
	}
	return rows, nil
}

func (s *Store) ClearUserBookmarks(userID int64) (int64, error) {
	res := s.db.Where("user_id = ?", userID).Delete(&models.Bookmark{})
	if res.Error != nil {
		return 0, fmt.Errorf("clear bookmarks: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// PendingReminder is one bookmark due for a warning, joined with the
// listing fields the notification needs.
type PendingReminder struct {
	UserID            int64
	AuctionID         string
	BookmarkChannelID string
	Title             string
	ZenMarketURL      string
	AuctionEndTime    time.Time
}

// Pending1hReminders finds bookmarks ending 55-65 minutes from now whose
// 1h warning has not been sent. The tolerant window means a missed scan
// never fires late: an end time already inside 55 minutes simply falls
// through to the 5m pass or to nothing.
func (s *Store) Pending1hReminders(now time.Time) ([]PendingReminder, error) {
	return s.pendingReminders(now.Add(55*time.Minute), now.Add(65*time.Minute), "reminder_1h_sent")
}

// Pending5mReminders finds bookmarks ending within the next 10 minutes
// whose final warning has not been sent.
func (s *Store) Pending5mReminders(now time.Time) ([]PendingReminder, error) {
	return s.pendingReminders(now, now.Add(10*time.Minute), "reminder_5m_sent")
}

func (s *Store) pendingReminders(from, to time.Time, flagColumn string) ([]PendingReminder, error) {
	var rows []PendingReminder
	err := s.db.Model(&models.Bookmark{}).
		Select(`bookmarks.user_id, bookmarks.auction_id, bookmarks.bookmark_channel_id,
			listings.title, listings.zen_market_url, bookmarks.auction_end_time`).
		Joins("JOIN listings ON listings.auction_id = bookmarks.auction_id").
		Where("bookmarks.auction_end_time IS NOT NULL").
		Where("bookmarks.auction_end_time >= ? AND bookmarks.auction_end_time <= ?", from, to).
		Where(flagColumn+" = ?", false).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("pending reminders: %w", err)
	}
	return rows, nil
}

// MarkReminderSent flips one reminder flag. kind is "1h" or "5m".
func (s *Store) MarkReminderSent(userID int64, auctionID, kind string) error {
	column := "reminder_1h_sent"
	if kind == "5m" {
		column = "reminder_5m_sent"
	}
	err := s.db.Model(&models.Bookmark{}).
		Where("user_id = ? AND auction_id = ?", userID, auctionID).
		Update(column, true).Error
	if err != nil {
		return fmt.Errorf("mark reminder %s sent: %w", kind, err)
	}
	return nil
}

// --- User preferences ---

// UserProxyPreference returns the user's proxy service and setup state,
// defaulting to zenmarket / not set up.
func (s *Store) UserProxyPreference(userID int64) (string, bool, error) {
	var pref models.UserPreference
	err := s.db.Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "zenmarket", false, nil
	}
	if err != nil {
		return "zenmarket", false, fmt.Errorf("get proxy preference: %w", err)
	}
	return pref.ProxyService, pref.SetupComplete, nil
}

// SetUserProxyPreference records the choice and marks setup complete.
func (s *Store) SetUserProxyPreference(userID int64, proxyService string) error {
	pref := models.UserPreference{
		UserID:        userID,
		ProxyService:  proxyService,
		SetupComplete: true,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"proxy_service", "setup_complete", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("set proxy preference: %w", err)
	}
	return nil
}

func (s *Store) UserSizePreferences(userID int64) ([]string, bool, error) {
	var pref models.UserPreference
	err := s.db.Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get size preferences: %w", err)
	}
	return pref.SizeList(), pref.SizeAlertsEnabled, nil
}

// SetUserSizePreferences stores the size list; an empty list disables
// alerts.
func (s *Store) SetUserSizePreferences(userID int64, sizeTokens []string) error {
	pref := models.UserPreference{
		UserID:            userID,
		Sizes:             strings.Join(sizeTokens, ","),
		SizeAlertsEnabled: len(sizeTokens) > 0,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sizes", "size_alerts_enabled", "updated_at"}),
	}).Create(&pref).Error
	if err != nil {
		return fmt.Errorf("set size preferences: %w", err)
	}
	return nil
}

// UsersWithSizeAlerts lists users who opted into size alerts.
func (s *Store) UsersWithSizeAlerts() ([]int64, error) {
	var ids []int64
	err := s.db.Model(&models.UserPreference{}).
		Where("size_alerts_enabled = ?", true).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("users with size alerts: %w", err)
	}
	return ids, nil
}

// --- Learned preferences ---

func (s *Store) SellerPreference(userID int64, sellerID string) (*models.SellerPreference, error) {
	var pref models.SellerPreference
	err := s.db.Where("user_id = ? AND seller_id = ?", userID, sellerID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get seller preference: %w", err)
	}
	return &pref, nil
}

func (s *Store) SaveSellerPreference(pref *models.SellerPreference) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "seller_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"likes", "dislikes", "trust_score", "updated_at"}),
	}).Create(pref).Error
	if err != nil {
		return fmt.Errorf("save seller preference: %w", err)
	}
	return nil
}

func (s *Store) BrandPreference(userID int64, brand string) (*models.BrandPreference, error) {
	var pref models.BrandPreference
	err := s.db.Where("user_id = ? AND brand = ?", userID, brand).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get brand preference: %w", err)
	}
	return &pref, nil
}

func (s *Store) SaveBrandPreference(pref *models.BrandPreference) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "brand"}},
		DoUpdates: clause.AssignmentColumns([]string{"likes", "dislikes", "preference_score", "avg_liked_price", "updated_at"}),
	}).Create(pref).Error
	if err != nil {
		return fmt.Errorf("save brand preference: %w", err)
	}
	return nil
}

func (s *Store) TopBrandPreferences(userID int64, limit int) ([]models.BrandPreference, error) {
	var prefs []models.BrandPreference
	err := s.db.Where("user_id = ?", userID).
		Order("preference_score DESC").
		Limit(limit).
		Find(&prefs).Error
	if err != nil {
		return nil, fmt.Errorf("top brand preferences: %w", err)
	}
	return prefs, nil
}

func (s *Store) ItemPreference(userID int64) (*models.ItemPreference, error) {
	var pref models.ItemPreference
	err := s.db.Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item preference: %w", err)
	}
	return &pref, nil
}

func (s *Store) SaveItemPreference(pref *models.ItemPreference) error {
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"max_price_usd", "min_quality_score", "updated_at"}),
	}).Create(pref).Error
	if err != nil {
		return fmt.Errorf("save item preference: %w", err)
	}
	return nil
}

// --- Subscriptions ---

// UserTier resolves a user's current tier. Expired subscriptions fall back
// to free.
func (s *Store) UserTier(userID int64, now time.Time) (string, error) {
	var sub models.Subscription
	err := s.db.Where("user_id = ?", userID).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.TierFree, nil
	}
	if err != nil {
		return models.TierFree, fmt.Errorf("get tier: %w", err)
	}
	if sub.ExpiresAt != nil && sub.ExpiresAt.Before(now) {
		return models.TierFree, nil
	}
	return sub.Tier, nil
}

func (s *Store) SetUserTier(userID int64, tier string, expiresAt *time.Time) error {
	sub := models.Subscription{
		UserID:     userID,
		Tier:       tier,
		UpgradedAt: time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier", "upgraded_at", "expires_at"}),
	}).Create(&sub).Error
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	return nil
}

// --- Stats & maintenance ---

type Stats struct {
	TotalListings  int64 `json:"total_listings"`
	TotalReactions int64 `json:"total_reactions"`
	ActiveUsers    int64 `json:"active_users"`
}

func (s *Store) Stats() (Stats, error) {
	var st Stats
	if err := s.db.Model(&models.Listing{}).Count(&st.TotalListings).Error; err != nil {
		return st, fmt.Errorf("stats: %w", err)
	}
	s.db.Model(&models.Reaction{}).Count(&st.TotalReactions)
	s.db.Model(&models.UserPreference{}).Where("setup_complete = ?", true).Count(&st.ActiveUsers)
	return st, nil
}

func (s *Store) RecordScraperStat(stat models.ScraperStat) error {
	if stat.Timestamp.IsZero() {
		stat.Timestamp = time.Now().UTC()
	}
	if err := s.db.Create(&stat).Error; err != nil {
		return fmt.Errorf("record scraper stat: %w", err)
	}
	return nil
}

func (s *Store) RecentScraperStats(limit int) ([]models.ScraperStat, error) {
	var stats []models.ScraperStat
	err := s.db.Order("timestamp DESC").Limit(limit).Find(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("recent scraper stats: %w", err)
	}
	return stats, nil
}

// PurgeRecentListings removes listings created within the window, plus
// orphaned reactions and bookmarks. Admin-only escape hatch for broken
// duplicate detection.
func (s *Store) PurgeRecentListings(since time.Time) (int64, error) {
	res := s.db.Where("created_at > ?", since).Delete(&models.Listing{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge recent listings: %w", res.Error)
	}
	s.deleteOrphans()
	return res.RowsAffected, nil
}

// PurgeAllListings removes every listing and all reactions.
func (s *Store) PurgeAllListings() (int64, error) {
	res := s.db.Where("1 = 1").Delete(&models.Listing{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge all listings: %w", res.Error)
	}
	s.db.Where("1 = 1").Delete(&models.Reaction{})
	s.db.Where("1 = 1").Delete(&models.Bookmark{})
	return res.RowsAffected, nil
}

func (s *Store) deleteOrphans() {
	s.db.Where("auction_id NOT IN (?)",
		s.db.Model(&models.Listing{}).Select("auction_id")).Delete(&models.Reaction{})
	s.db.Where("auction_id NOT IN (?)",
		s.db.Model(&models.Listing{}).Select("auction_id")).Delete(&models.Bookmark{})
}

func sellerOrUnknown(sellerID string) string {
	if sellerID == "" {
		return "unknown"
	}
	return sellerID
}

func qualityOrDefault(q float64) float64 {
	if q == 0 {
		return 0.5
	}
	return q
}
