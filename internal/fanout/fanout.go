// Package fanout routes an incoming listing to the community channels it
// belongs in: the main feed, a per-brand channel, size alerts, budget
// steals, and the hourly digest.
package fanout

import (
	"strings"

	"go.uber.org/zap"

	"auction-sniper/internal/chat"
	"auction-sniper/internal/models"
	"auction-sniper/internal/sizes"
	"auction-sniper/internal/spam"
	"auction-sniper/internal/store"
)

// BudgetCeilingUSD is the inclusive cutoff for the budget-steals channel.
const BudgetCeilingUSD = 100.0

// Channels names the delivery targets. Brand maps a normalized brand to
// its dedicated channel; brands without an entry only hit the main feed.
type Channels struct {
	Main       string
	Budget     string
	Hourly     string
	SizeAlerts string
	Brand      map[string]string
}

// DefaultChannels mirrors the community's channel layout.
func DefaultChannels() Channels {
	return Channels{
		Main:       "auction-alerts",
		Budget:     "budget-steals",
		Hourly:     "hourly-drops",
		SizeAlerts: "size-alerts",
		Brand: map[string]string{
			"vetements":          "vetements",
			"alyx":               "alyx",
			"balenciaga":         "balenciaga",
			"bottega veneta":     "bottega-veneta",
			"celine":             "celine",
			"chrome hearts":      "chrome-hearts",
			"comme des garcons":  "comme-des-garcons",
			"gosha rubchinskiy":  "gosha-rubchinskiy",
			"helmut lang":        "helmut-lang",
			"hood by air":        "hood-by-air",
			"miu miu":            "miu-miu",
			"hysteric glamour":   "hysteric-glamour",
			"junya watanabe":     "junya-watanabe",
			"kiko kostadinov":    "kiko-kostadinov",
			"maison margiela":    "maison-margiela",
			"martine rose":       "martine-rose",
			"prada":              "prada",
			"raf simons":         "raf-simons",
			"rick owens":         "rick-owens",
			"undercover":         "undercover",
			"jean paul gaultier": "jean-paul-gaultier",
			"yohji yamamoto":     "yohji-yamamoto",
			"anonymous club":     "anonymous-club",
		},
	}
}

type Fanout struct {
	store    *store.Store
	sender   chat.Sender
	log      *zap.SugaredLogger
	channels Channels
}

func New(st *store.Store, sender chat.Sender, channels Channels, log *zap.SugaredLogger) *Fanout {
	return &Fanout{store: st, sender: sender, log: log, channels: channels}
}

// Deliver pushes one listing through the full pipeline. The main-feed send
// and the store insert are the gate: if either fails the listing is
// dropped. The remaining channels are best-effort copies; a failure in one
// is logged and the others still run. Returns whether the listing was
// delivered and recorded.
func (f *Fanout) Deliver(p models.ListingPayload) bool {
	if spam.IsSpam(p.Title, p.Brand) {
		f.log.Infow("listing rejected as spam", "auction_id", p.AuctionID, "title", p.Title)
		return false
	}

	exists, err := f.store.ListingExists(p.AuctionID)
	if err != nil {
		f.log.Errorw("duplicate check failed", "auction_id", p.AuctionID, "err", err)
		return false
	}
	if exists {
		f.log.Debugw("duplicate listing skipped", "auction_id", p.AuctionID)
		return false
	}

	msg := chat.FormatListing(p, "")
	messageID, err := f.sender.Send(f.channels.Main, msg)
	if err != nil {
		f.log.Errorw("main channel send failed", "auction_id", p.AuctionID, "err", err)
		return false
	}
	if err := f.store.AddListing(p, messageID); err != nil {
		f.log.Errorw("listing insert failed", "auction_id", p.AuctionID, "err", err)
		return false
	}

	f.deliverBrand(p, msg)
	f.deliverSizeAlerts(p)
	if p.PriceUSD <= BudgetCeilingUSD {
		f.sendCopy(f.channels.Budget, p, msg)
	}
	f.sendCopy(f.channels.Hourly, p, msg)

	return true
}

func (f *Fanout) deliverBrand(p models.ListingPayload, msg chat.Message) {
	key := strings.ToLower(strings.TrimSpace(p.Brand))
	channel, ok := f.channels.Brand[key]
	if !ok {
		return
	}
	f.sendCopy(channel, p, msg)
}

// deliverSizeAlerts pings every size-subscribed user whose sizes intersect
// the listing's, one mention per user in the size-alerts channel.
func (f *Fanout) deliverSizeAlerts(p models.ListingPayload) {
	if len(p.Sizes) == 0 {
		return
	}
	listingSizes := sizes.NormalizeAll(p.Sizes)

	userIDs, err := f.store.UsersWithSizeAlerts()
	if err != nil {
		f.log.Errorw("size alert lookup failed", "auction_id", p.AuctionID, "err", err)
		return
	}

	for _, userID := range userIDs {
		prefs, enabled, err := f.store.UserSizePreferences(userID)
		if err != nil {
			f.log.Errorw("size preference lookup failed", "user_id", userID, "err", err)
			continue
		}
		if !enabled || !sizes.Match(listingSizes, prefs) {
			continue
		}
		msg := chat.FormatListing(p, "size match")
		msg.MentionUserID = userID
		if _, err := f.sender.Send(f.channels.SizeAlerts, msg); err != nil {
			f.log.Errorw("size alert send failed", "user_id", userID, "auction_id", p.AuctionID, "err", err)
		}
	}
}

func (f *Fanout) sendCopy(channel string, p models.ListingPayload, msg chat.Message) {
	if _, err := f.sender.Send(channel, msg); err != nil {
		f.log.Errorw("channel copy failed", "channel", channel, "auction_id", p.AuctionID, "err", err)
	}
}
