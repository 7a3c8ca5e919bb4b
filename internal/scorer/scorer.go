// Package scorer estimates deal quality and delivery priority for listings
// that arrive without them (feed ingress has no scraper-side scoring).
package scorer

import (
	"strings"

	"auction-sniper/internal/models"
)

// Reference price bands in USD. Below the steal line a listing is close to
// maximum quality; above the ceiling it bottoms out.
const (
	stealPriceUSD   = 50.0
	ceilingPriceUSD = 800.0
)

var hypeTerms = []string{
	"archive", "runway", "rare", "sample", "fw", "ss",
	"アーカイブ", "ランウェイ", "サンプル",
}

type Scorer struct{}

func New() *Scorer { return &Scorer{} }

// Score fills DealQuality and Priority on payloads that lack them. Values
// already set by the submitter are left alone.
func (s *Scorer) Score(p *models.ListingPayload) {
	if p.DealQuality == 0 {
		p.DealQuality = dealQuality(p.PriceUSD)
	}
	if p.Priority == 0 {
		p.Priority = priority(*p)
	}
}

// dealQuality maps price onto [0.1, 0.95], linear between the bands.
func dealQuality(priceUSD float64) float64 {
	switch {
	case priceUSD <= 0:
		return 0.5
	case priceUSD <= stealPriceUSD:
		return 0.95
	case priceUSD >= ceilingPriceUSD:
		return 0.1
	default:
		frac := (priceUSD - stealPriceUSD) / (ceilingPriceUSD - stealPriceUSD)
		return 0.95 - frac*(0.95-0.1)
	}
}

// priority is a 0-150 urgency score: base from deal quality, boosted by
// budget pricing, hype terms in the title, and size metadata.
func priority(p models.ListingPayload) float64 {
	score := dealQuality(p.PriceUSD) * 100

	if p.PriceUSD > 0 && p.PriceUSD <= 100 {
		score += 20
	}
	title := strings.ToLower(p.Title)
	for _, term := range hypeTerms {
		if strings.Contains(title, term) {
			score += 15
			break
		}
	}
	if len(p.Sizes) > 0 {
		score += 10
	}

	if score > 150 {
		score = 150
	}
	return score
}
