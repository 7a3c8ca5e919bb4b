// Package chat abstracts the community chat platform. Core components only
// see the Sender interface; the telebot adapter and the in-memory fake both
// implement it.
package chat

import (
	"fmt"
	"regexp"
	"strings"

	"auction-sniper/internal/models"
)

// Message is a rendered notification. When AuctionID is set the footer
// carries an "ID: <auction_id>" tag and the transport attaches like/dislike
// controls; reactions are resolved back through ParseAuctionID, so the
// embedding and parsing patterns must stay in sync.
type Message struct {
	Title     string
	Body      string
	URL       string
	ImageURL  string
	Footer    string
	AuctionID string
	// MentionUserID, when non-zero, addresses the message to one user.
	MentionUserID int64
}

// Sender delivers a message to a named channel and returns the platform
// message identifier used as the listing locator.
type Sender interface {
	Send(channel string, msg Message) (string, error)
	Healthy() bool
}

// ReactionEvent is a like/dislike resolved from a delivered listing.
type ReactionEvent struct {
	UserID    int64
	AuctionID string
	// Type is models.ReactionLike or models.ReactionDislike.
	Type string
}

// Proxy services users can buy through. The chosen service decides which
// link leads in their notifications.
type ProxyService struct {
	Name        string
	URLTemplate string
}

var proxyOrder = []string{"zenmarket", "buyee", "yahoo_japan"}

var Proxies = map[string]ProxyService{
	"zenmarket":   {Name: "ZenMarket", URLTemplate: "https://zenmarket.jp/en/auction.aspx?itemCode=%s"},
	"buyee":       {Name: "Buyee", URLTemplate: "https://buyee.jp/item/yahoo/auction/%s"},
	"yahoo_japan": {Name: "Yahoo Japan Direct", URLTemplate: "https://page.auctions.yahoo.co.jp/jp/auction/%s"},
}

// ProxyURL builds a buy link for an auction through the given proxy
// service, defaulting to zenmarket for unknown services.
func ProxyURL(auctionID, proxyService string) string {
	p, ok := Proxies[proxyService]
	if !ok {
		p = Proxies["zenmarket"]
	}
	clean := strings.TrimPrefix(auctionID, "yahoo_")
	return fmt.Sprintf(p.URLTemplate, clean)
}

var auctionIDPattern = regexp.MustCompile(`ID: (\w+)`)

// FooterWithID renders the footer line carrying the auction id tag.
func FooterWithID(auctionID, extra string) string {
	if extra == "" {
		return fmt.Sprintf("ID: %s", auctionID)
	}
	return fmt.Sprintf("%s | ID: %s", extra, auctionID)
}

// ParseAuctionID recovers the auction id embedded by FooterWithID.
func ParseAuctionID(footer string) (string, bool) {
	m := auctionIDPattern.FindStringSubmatch(footer)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FormatListing renders a listing payload into a channel message.
func FormatListing(p models.ListingPayload, footerExtra string) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "¥%d (~$%.2f)\n", p.PriceJPY, p.PriceUSD)
	fmt.Fprintf(&b, "%s\n", brandDisplay(p.Brand))
	fmt.Fprintf(&b, "Quality: %.0f%% | Priority: %.0f\n", qualityOrDefault(p.DealQuality)*100, p.Priority)
	fmt.Fprintf(&b, "Seller: %s\n", sellerOrUnknown(p.SellerID))
	if len(p.Sizes) > 0 {
		fmt.Fprintf(&b, "Sizes: %s\n", strings.Join(p.Sizes, ", "))
	}
	b.WriteString("Links: ")
	for i, key := range proxyOrder {
		if i > 0 {
			b.WriteString(" | ")
		}
		fmt.Fprintf(&b, "%s <%s>", Proxies[key].Name, ProxyURL(p.AuctionID, key))
	}

	return Message{
		Title:     truncate(p.Title, 100),
		Body:      b.String(),
		URL:       p.ZenMarketURL,
		ImageURL:  p.ImageURL,
		Footer:    FooterWithID(p.AuctionID, footerExtra),
		AuctionID: p.AuctionID,
	}
}

func brandDisplay(brand string) string {
	words := strings.Fields(strings.ReplaceAll(brand, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
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
