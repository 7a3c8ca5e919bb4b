// Package fetcher polls auction search feeds and submits new listings to
// the batch buffer, as a fallback ingress next to the webhook.
package fetcher

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"auction-sniper/internal/buffer"
	"auction-sniper/internal/models"
	"auction-sniper/internal/scorer"
	"auction-sniper/internal/store"
)

const pollInterval = 1 * time.Hour

// DefaultJPYPerUSD converts feed prices when no rate is configured.
const DefaultJPYPerUSD = 150.0

// Feed is one brand search feed to poll.
type Feed struct {
	Brand string
	URL   string
}

// ParseFeeds reads a "brand|url,brand|url" config string. Entries without
// a brand tag are skipped.
func ParseFeeds(raw string) []Feed {
	var feeds []Feed
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		brand, url, ok := strings.Cut(part, "|")
		if !ok || brand == "" || url == "" {
			continue
		}
		feeds = append(feeds, Feed{Brand: strings.TrimSpace(brand), URL: strings.TrimSpace(url)})
	}
	return feeds
}

type Fetcher struct {
	feeds     []Feed
	buffer    *buffer.Buffer
	store     *store.Store
	scorer    *scorer.Scorer
	parser    *gofeed.Parser
	jpyPerUSD float64
	log       *zap.SugaredLogger
}

func New(feeds []Feed, buf *buffer.Buffer, st *store.Store, jpyPerUSD float64, log *zap.SugaredLogger) *Fetcher {
	if jpyPerUSD <= 0 {
		jpyPerUSD = DefaultJPYPerUSD
	}
	return &Fetcher{
		feeds:     feeds,
		buffer:    buf,
		store:     st,
		scorer:    scorer.New(),
		parser:    gofeed.NewParser(),
		jpyPerUSD: jpyPerUSD,
		log:       log,
	}
}

// Run polls every feed once per interval until ctx is cancelled.
func (f *Fetcher) Run(ctx context.Context) {
	f.PollOnce(ctx)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.PollOnce(ctx)
		}
	}
}

// PollOnce fetches all feeds, submits listings not yet delivered, and
// records one scraper stat row for the cycle.
func (f *Fetcher) PollOnce(ctx context.Context) {
	stat := models.ScraperStat{
		Timestamp:        time.Now().UTC(),
		KeywordsSearched: len(f.feeds),
	}

	for _, feed := range f.feeds {
		found, queued, err := f.pollFeed(ctx, feed)
		stat.TotalFound += found
		stat.QualityFiltered += found - queued
		stat.Sent += queued
		if err != nil {
			stat.ErrorsCount++
			f.log.Errorw("feed poll failed", "brand", feed.Brand, "url", feed.URL, "err", err)
		}
	}

	if err := f.store.RecordScraperStat(stat); err != nil {
		f.log.Errorw("scraper stat insert failed", "err", err)
	}
}

func (f *Fetcher) pollFeed(ctx context.Context, feed Feed) (found, queued int, err error) {
	parsed, err := f.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return 0, 0, err
	}

	for _, entry := range parsed.Items {
		found++
		payload, ok := f.toPayload(feed.Brand, entry)
		if !ok {
			continue
		}
		exists, err := f.store.ListingExists(payload.AuctionID)
		if err != nil || exists {
			continue
		}
		f.buffer.Submit(payload)
		queued++
	}
	return found, queued, nil
}

var (
	auctionLinkPattern = regexp.MustCompile(`/auction/([A-Za-z0-9]+)`)
	pricePattern       = regexp.MustCompile(`([0-9][0-9,]*)\s*(?:円|yen)`)
)

// toPayload maps a feed entry onto the webhook payload shape. Entries
// without a recognizable auction id or price are dropped.
func (f *Fetcher) toPayload(brand string, entry *gofeed.Item) (models.ListingPayload, bool) {
	auctionID := auctionIDFromLink(entry.Link)
	if auctionID == "" {
		return models.ListingPayload{}, false
	}
	priceJPY := priceFromEntry(entry)
	if priceJPY <= 0 {
		return models.ListingPayload{}, false
	}

	p := models.ListingPayload{
		AuctionID:    auctionID,
		Title:        entry.Title,
		Brand:        brand,
		PriceJPY:     priceJPY,
		PriceUSD:     float64(priceJPY) / f.jpyPerUSD,
		ZenMarketURL: "https://zenmarket.jp/en/auction.aspx?itemCode=" + auctionID,
		YahooURL:     entry.Link,
	}
	if entry.Image != nil {
		p.ImageURL = entry.Image.URL
	}
	f.scorer.Score(&p)
	return p, true
}

func auctionIDFromLink(link string) string {
	if m := auctionLinkPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	return ""
}

// priceFromEntry looks for a yen amount in the title, then the description.
func priceFromEntry(entry *gofeed.Item) int {
	for _, text := range []string{entry.Title, entry.Description} {
		m := pricePattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err == nil && n > 0 {
			return n
		}
	}
	return 0
}
