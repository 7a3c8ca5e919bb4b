// Package learner turns reaction events into per-user seller/brand/item
// preference scores and ranks listings against them.
package learner

import (
	"go.uber.org/zap"

	"auction-sniper/internal/models"
	"auction-sniper/internal/store"
)

// Relevance score weights. Brand affinity dominates, seller trust and the
// listing's own deal quality split the rest.
const (
	brandWeight   = 0.4
	sellerWeight  = 0.3
	qualityWeight = 0.3

	showThreshold = 0.4
	neutralScore  = 0.5
)

type Learner struct {
	store *store.Store
	log   *zap.SugaredLogger
}

func New(st *store.Store, log *zap.SugaredLogger) *Learner {
	return &Learner{store: st, log: log}
}

// Learn applies one reaction event. prevType is the reaction this one
// replaced ("" if none); its contribution is removed first so toggling
// like/dislike never double-counts. The three sub-updates target
// independent entities: a failure in one is logged and the rest still run.
func (l *Learner) Learn(userID int64, listing *models.Listing, reactionType, prevType string) {
	if prevType == reactionType {
		return
	}
	liked := reactionType == models.ReactionLike

	if err := l.updateSellerPreference(userID, listing, liked, prevType); err != nil {
		l.log.Errorw("seller preference update failed", "user_id", userID, "auction_id", listing.AuctionID, "err", err)
	}
	if err := l.updateBrandPreference(userID, listing, liked, prevType); err != nil {
		l.log.Errorw("brand preference update failed", "user_id", userID, "auction_id", listing.AuctionID, "err", err)
	}
	if liked {
		if err := l.updateItemPreference(userID, listing); err != nil {
			l.log.Errorw("item preference update failed", "user_id", userID, "auction_id", listing.AuctionID, "err", err)
		}
	}
}

func (l *Learner) updateSellerPreference(userID int64, listing *models.Listing, liked bool, prevType string) error {
	sellerID := listing.SellerID
	if sellerID == "" {
		sellerID = "unknown"
	}

	pref, err := l.store.SellerPreference(userID, sellerID)
	if err != nil {
		return err
	}
	if pref == nil {
		pref = &models.SellerPreference{UserID: userID, SellerID: sellerID, TrustScore: neutralScore}
	}

	applyCounts(&pref.Likes, &pref.Dislikes, liked, prevType)
	pref.TrustScore = ratio(pref.Likes, pref.Dislikes)
	return l.store.SaveSellerPreference(pref)
}

func (l *Learner) updateBrandPreference(userID int64, listing *models.Listing, liked bool, prevType string) error {
	pref, err := l.store.BrandPreference(userID, listing.Brand)
	if err != nil {
		return err
	}
	if pref == nil {
		pref = &models.BrandPreference{UserID: userID, Brand: listing.Brand, PreferenceScore: neutralScore}
	}

	applyCounts(&pref.Likes, &pref.Dislikes, liked, prevType)
	pref.PreferenceScore = ratio(pref.Likes, pref.Dislikes)

	if liked {
		// Running mean over liked prices; the first like seeds it.
		if pref.Likes <= 1 {
			pref.AvgLikedPrice = listing.PriceUSD
		} else {
			n := float64(pref.Likes)
			pref.AvgLikedPrice = (pref.AvgLikedPrice*(n-1) + listing.PriceUSD) / n
		}
	}

	return l.store.SaveBrandPreference(pref)
}

func (l *Learner) updateItemPreference(userID int64, listing *models.Listing) error {
	pref, err := l.store.ItemPreference(userID)
	if err != nil {
		return err
	}
	if pref == nil {
		pref = &models.ItemPreference{
			UserID:          userID,
			MaxPriceUSD:     listing.PriceUSD,
			MinQualityScore: listing.DealQuality,
		}
		return l.store.SaveItemPreference(pref)
	}

	if listing.PriceUSD > pref.MaxPriceUSD {
		pref.MaxPriceUSD = listing.PriceUSD
	}
	if listing.DealQuality < pref.MinQualityScore {
		pref.MinQualityScore = listing.DealQuality
	}
	return l.store.SaveItemPreference(pref)
}

// Relevance scores a listing for a user. Listings above the user's learned
// price ceiling or below their quality floor are rejected outright; the
// rest pass if the weighted score clears the threshold. Missing preference
// data degrades to neutral, never to an error.
func (l *Learner) Relevance(userID int64, listing *models.Listing) (bool, float64) {
	brandScore := neutralScore
	if pref, err := l.store.BrandPreference(userID, listing.Brand); err == nil && pref != nil {
		brandScore = pref.PreferenceScore
	}

	sellerScore := neutralScore
	if pref, err := l.store.SellerPreference(userID, listing.SellerID); err == nil && pref != nil {
		sellerScore = pref.TrustScore
	}

	if pref, err := l.store.ItemPreference(userID); err == nil && pref != nil {
		if listing.PriceUSD > pref.MaxPriceUSD || listing.DealQuality < pref.MinQualityScore {
			return false, 0
		}
	}

	score := brandWeight*brandScore + sellerWeight*sellerScore + qualityWeight*listing.DealQuality
	return score >= showThreshold, score
}

// applyCounts removes the replaced reaction's tally, then adds the new one.
func applyCounts(likes, dislikes *int, liked bool, prevType string) {
	switch prevType {
	case models.ReactionLike:
		if *likes > 0 {
			*likes--
		}
	case models.ReactionDislike:
		if *dislikes > 0 {
			*dislikes--
		}
	}
	if liked {
		*likes++
	} else {
		*dislikes++
	}
}

func ratio(likes, dislikes int) float64 {
	total := likes + dislikes
	if total == 0 {
		return neutralScore
	}
	return float64(likes) / float64(total)
}
