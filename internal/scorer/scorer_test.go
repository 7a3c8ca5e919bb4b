package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"auction-sniper/internal/models"
)

func TestScore_FillsMissingValues(t *testing.T) {
	s := New()

	p := models.ListingPayload{Title: "plain tee", PriceUSD: 425}
	s.Score(&p)
	assert.InDelta(t, 0.525, p.DealQuality, 0.01)
	assert.Greater(t, p.Priority, 0.0)
}

func TestScore_KeepsSubmitterValues(t *testing.T) {
	s := New()

	p := models.ListingPayload{Title: "t", PriceUSD: 425, DealQuality: 0.9, Priority: 120}
	s.Score(&p)
	assert.Equal(t, 0.9, p.DealQuality)
	assert.Equal(t, 120.0, p.Priority)
}

func TestDealQuality_Bands(t *testing.T) {
	assert.Equal(t, 0.95, dealQuality(30))
	assert.Equal(t, 0.1, dealQuality(1200))
	assert.Equal(t, 0.5, dealQuality(0))

	mid := dealQuality(425)
	assert.Greater(t, mid, 0.1)
	assert.Less(t, mid, 0.95)
}

func TestPriority_Boosts(t *testing.T) {
	plain := priority(models.ListingPayload{Title: "plain tee", PriceUSD: 425})
	hyped := priority(models.ListingPayload{Title: "archive runway piece", PriceUSD: 425})
	assert.Greater(t, hyped, plain)

	sized := priority(models.ListingPayload{Title: "plain tee", PriceUSD: 425, Sizes: []string{"m"}})
	assert.Greater(t, sized, plain)

	budget := priority(models.ListingPayload{Title: "plain tee", PriceUSD: 80})
	assert.Greater(t, budget, plain)

	capped := priority(models.ListingPayload{Title: "archive runway", PriceUSD: 20, Sizes: []string{"m"}})
	assert.LessOrEqual(t, capped, 150.0)
}
