// Package bot is the chat command surface: user setup, size preferences,
// bookmark management, stats, export, and the reaction flow that feeds the
// preference learner.
package bot

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"

	"auction-sniper/internal/chat"
	"auction-sniper/internal/clock"
	"auction-sniper/internal/learner"
	"auction-sniper/internal/models"
	"auction-sniper/internal/sizes"
	"auction-sniper/internal/store"
)

type Bot struct {
	*Reactor
	tg     *chat.Telegram
	clk    clock.Clock
	admins map[int64]bool

	proxyBtn telebot.Btn
}

func New(tg *chat.Telegram, st *store.Store, ln *learner.Learner, clk clock.Clock, adminIDs []int64, log *zap.SugaredLogger) *Bot {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	b := &Bot{
		Reactor:  NewReactor(st, ln, log),
		tg:       tg,
		clk:      clk,
		admins:   admins,
		proxyBtn: telebot.Btn{Unique: "setup_proxy"},
	}
	b.register()
	tg.OnReaction(b.HandleReaction)
	return b
}

func (b *Bot) register() {
	tb := b.tg.Bot()

	tb.Handle("/start", b.cmdSetup)
	tb.Handle("/setup", b.cmdSetup)
	tb.Handle(&b.proxyBtn, b.onProxyChosen)

	tb.Handle("/sizes", b.cmdSizes)
	tb.Handle("/mysizes", b.cmdMySizes)
	tb.Handle("/clearsizes", b.cmdClearSizes)

	tb.Handle("/bookmarks", b.cmdBookmarks)
	tb.Handle("/clearbookmarks", b.cmdClearBookmarks)

	tb.Handle("/stats", b.cmdStats)
	tb.Handle("/export", b.cmdExport)
	tb.Handle("/mytier", b.cmdMyTier)

	tb.Handle("/purgerecent", b.cmdPurgeRecent)
	tb.Handle("/purgeall", b.cmdPurgeAll)
	tb.Handle("/scraperstats", b.cmdScraperStats)
	tb.Handle("/settier", b.cmdSetTier)
}

// Reactor is the like/dislike pipeline, kept separate from the transport
// wiring: look up the listing, store the reaction (replacing any previous
// one), update learned preferences, and on a like create the bookmark
// immediately.
type Reactor struct {
	store   *store.Store
	learner *learner.Learner
	log     *zap.SugaredLogger
}

func NewReactor(st *store.Store, ln *learner.Learner, log *zap.SugaredLogger) *Reactor {
	return &Reactor{store: st, learner: ln, log: log}
}

func (r *Reactor) HandleReaction(ev chat.ReactionEvent) {
	_, setupDone, err := r.store.UserProxyPreference(ev.UserID)
	if err != nil {
		r.log.Errorw("setup lookup failed", "user_id", ev.UserID, "err", err)
		return
	}
	if !setupDone {
		r.log.Debugw("reaction from user without setup ignored", "user_id", ev.UserID)
		return
	}

	listing, err := r.store.GetListing(ev.AuctionID)
	if err != nil {
		r.log.Errorw("listing lookup failed", "auction_id", ev.AuctionID, "err", err)
		return
	}
	if listing == nil {
		r.log.Warnw("reaction for unknown listing", "auction_id", ev.AuctionID)
		return
	}

	prev, err := r.store.AddReaction(ev.UserID, ev.AuctionID, ev.Type)
	if err != nil {
		r.log.Errorw("reaction insert failed", "user_id", ev.UserID, "auction_id", ev.AuctionID, "err", err)
		return
	}

	r.learner.Learn(ev.UserID, listing, ev.Type, prev)

	if ev.Type == models.ReactionLike {
		channel := chat.UserChannel(ev.UserID)
		if err := r.store.AddBookmark(ev.UserID, ev.AuctionID, listing.MessageID, channel, listing.EndTime); err != nil {
			r.log.Errorw("bookmark create failed", "user_id", ev.UserID, "auction_id", ev.AuctionID, "err", err)
		}
	}
}

func (b *Bot) cmdSetup(c telebot.Context) error {
	markup := &telebot.ReplyMarkup{}
	var row []telebot.Btn
	for _, key := range []string{"zenmarket", "buyee", "yahoo_japan"} {
		row = append(row, markup.Data(chat.Proxies[key].Name, b.proxyBtn.Unique, key))
	}
	markup.Inline(markup.Row(row...))
	return c.Send("Which proxy service do you buy through? Links in your alerts will lead there.", markup)
}

func (b *Bot) onProxyChosen(c telebot.Context) error {
	key := strings.TrimSpace(c.Callback().Data)
	if _, ok := chat.Proxies[key]; !ok {
		return c.Respond(&telebot.CallbackResponse{Text: "Unknown service"})
	}
	if err := b.store.SetUserProxyPreference(c.Sender().ID, key); err != nil {
		b.log.Errorw("proxy preference save failed", "user_id", c.Sender().ID, "err", err)
		return c.Respond(&telebot.CallbackResponse{Text: "Something went wrong, try again"})
	}
	if err := c.Respond(&telebot.CallbackResponse{Text: "Saved"}); err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("Setup complete — links will use %s. React 👍/👎 on drops to tune your feed, and try /sizes for size alerts.", chat.Proxies[key].Name))
}

func (b *Bot) cmdSizes(c telebot.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return c.Send("Usage: /sizes m l 48 — sets your sizes and enables size alerts. /clearsizes turns them off.")
	}
	normalized := sizes.NormalizeAll(args)
	if err := b.store.SetUserSizePreferences(c.Sender().ID, normalized); err != nil {
		b.log.Errorw("size preference save failed", "user_id", c.Sender().ID, "err", err)
		return c.Send("Couldn't save your sizes, try again.")
	}
	return c.Send("Size alerts on for: " + strings.Join(normalized, ", "))
}

func (b *Bot) cmdMySizes(c telebot.Context) error {
	prefs, enabled, err := b.store.UserSizePreferences(c.Sender().ID)
	if err != nil {
		b.log.Errorw("size preference lookup failed", "user_id", c.Sender().ID, "err", err)
		return c.Send("Couldn't load your sizes, try again.")
	}
	if !enabled || len(prefs) == 0 {
		return c.Send("No size alerts set. Use /sizes m l 48 to enable them.")
	}
	return c.Send("Your sizes: " + strings.Join(prefs, ", "))
}

func (b *Bot) cmdClearSizes(c telebot.Context) error {
	if err := b.store.SetUserSizePreferences(c.Sender().ID, nil); err != nil {
		b.log.Errorw("size preference clear failed", "user_id", c.Sender().ID, "err", err)
		return c.Send("Couldn't clear your sizes, try again.")
	}
	return c.Send("Size alerts off.")
}

func (b *Bot) cmdBookmarks(c telebot.Context) error {
	rows, err := b.store.GetUserBookmarks(c.Sender().ID, 10)
	if err != nil {
		b.log.Errorw("bookmark lookup failed", "user_id", c.Sender().ID, "err", err)
		return c.Send("Couldn't load your bookmarks, try again.")
	}
	if len(rows) == 0 {
		return c.Send("No bookmarks yet — like a drop to save it.")
	}

	var sb strings.Builder
	sb.WriteString("🔖 Your bookmarks:\n")
	for i, r := range rows {
		fmt.Fprintf(&sb, "%d. %s (%s, $%.0f)\n%s\n", i+1, r.Title, r.Brand, r.PriceUSD, r.ZenMarketURL)
	}
	return c.Send(sb.String())
}

func (b *Bot) cmdClearBookmarks(c telebot.Context) error {
	n, err := b.store.ClearUserBookmarks(c.Sender().ID)
	if err != nil {
		b.log.Errorw("bookmark clear failed", "user_id", c.Sender().ID, "err", err)
		return c.Send("Couldn't clear your bookmarks, try again.")
	}
	return c.Send(fmt.Sprintf("Removed %d bookmark(s).", n))
}

func (b *Bot) cmdStats(c telebot.Context) error {
	userID := c.Sender().ID
	total, likes, dislikes, err := b.store.ReactionSummary(userID)
	if err != nil {
		b.log.Errorw("reaction summary failed", "user_id", userID, "err", err)
		return c.Send("Couldn't load your stats, try again.")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Your reactions: %d total (👍 %d / 👎 %d)\n", total, likes, dislikes)

	brands, err := b.store.TopBrandPreferences(userID, 5)
	if err == nil && len(brands) > 0 {
		sb.WriteString("Top brands:\n")
		for _, p := range brands {
			fmt.Fprintf(&sb, "  %s — %.0f%% (avg liked $%.0f)\n", p.Brand, p.PreferenceScore*100, p.AvgLikedPrice)
		}
	}
	return c.Send(sb.String())
}

func (b *Bot) cmdExport(c telebot.Context) error {
	rows, err := b.store.ReactionExport(c.Sender().ID)
	if err != nil {
		b.log.Errorw("reaction export failed", "user_id", c.Sender().ID, "err", err)
		return c.Send("Couldn't build your export, try again.")
	}
	if len(rows) == 0 {
		return c.Send("Nothing to export yet.")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"reaction", "reacted_at", "title", "brand", "price_jpy", "price_usd", "seller_id", "zenmarket_url", "auction_id"})
	for _, r := range rows {
		w.Write([]string{
			r.ReactionType,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.Title,
			r.Brand,
			strconv.Itoa(r.PriceJPY),
			fmt.Sprintf("%.2f", r.PriceUSD),
			r.SellerID,
			r.ZenMarketURL,
			r.AuctionID,
		})
	}
	w.Flush()

	doc := &telebot.Document{
		File:     telebot.FromReader(&buf),
		FileName: "reactions.csv",
		MIME:     "text/csv",
	}
	return c.Send(doc)
}

func (b *Bot) cmdMyTier(c telebot.Context) error {
	tier, err := b.store.UserTier(c.Sender().ID, b.clk.Now())
	if err != nil {
		b.log.Errorw("tier lookup failed", "user_id", c.Sender().ID, "err", err)
		return c.Send("Couldn't load your tier, try again.")
	}
	switch tier {
	case models.TierFree:
		return c.Send("Tier: free — drops arrive with a delay. Pro/elite get them instantly.")
	default:
		return c.Send("Tier: " + tier + " — instant drops.")
	}
}

func (b *Bot) cmdSetTier(c telebot.Context) error {
	if !b.admins[c.Sender().ID] {
		return c.Send("Admins only.")
	}
	args := c.Args()
	if len(args) < 2 {
		return c.Send("Usage: /settier <user_id> <free|pro|elite> [days]")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return c.Send("Bad user id.")
	}
	tier := args[1]
	switch tier {
	case models.TierFree, models.TierPro, models.TierElite:
	default:
		return c.Send("Tier must be free, pro or elite.")
	}

	var expires *time.Time
	if len(args) > 2 {
		days, err := strconv.Atoi(args[2])
		if err != nil || days <= 0 {
			return c.Send("Bad day count.")
		}
		t := b.clk.Now().Add(time.Duration(days) * 24 * time.Hour)
		expires = &t
	}

	if err := b.store.SetUserTier(userID, tier, expires); err != nil {
		b.log.Errorw("tier update failed", "user_id", userID, "err", err)
		return c.Send("Tier update failed.")
	}
	return c.Send(fmt.Sprintf("User %d is now %s.", userID, tier))
}

func (b *Bot) cmdScraperStats(c telebot.Context) error {
	if !b.admins[c.Sender().ID] {
		return c.Send("Admins only.")
	}
	stats, err := b.store.RecentScraperStats(10)
	if err != nil {
		b.log.Errorw("scraper stats lookup failed", "err", err)
		return c.Send("Couldn't load scraper stats.")
	}
	if len(stats) == 0 {
		return c.Send("No scraper runs recorded yet.")
	}

	var sb strings.Builder
	sb.WriteString("🕷 Recent scraper runs:\n")
	for _, s := range stats {
		fmt.Fprintf(&sb, "%s — found %d, sent %d, errors %d (%d feeds)\n",
			s.Timestamp.Format("01-02 15:04"), s.TotalFound, s.Sent, s.ErrorsCount, s.KeywordsSearched)
	}
	return c.Send(sb.String())
}

func (b *Bot) cmdPurgeRecent(c telebot.Context) error {
	if !b.admins[c.Sender().ID] {
		return c.Send("Admins only.")
	}
	hours := 1
	if args := c.Args(); len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
			hours = n
		}
	}
	n, err := b.store.PurgeRecentListings(b.clk.Now().Add(-time.Duration(hours) * time.Hour))
	if err != nil {
		b.log.Errorw("purge recent failed", "err", err)
		return c.Send("Purge failed.")
	}
	return c.Send(fmt.Sprintf("Purged %d listing(s) from the last %dh.", n, hours))
}

func (b *Bot) cmdPurgeAll(c telebot.Context) error {
	if !b.admins[c.Sender().ID] {
		return c.Send("Admins only.")
	}
	n, err := b.store.PurgeAllListings()
	if err != nil {
		b.log.Errorw("purge all failed", "err", err)
		return c.Send("Purge failed.")
	}
	return c.Send(fmt.Sprintf("Purged %d listing(s).", n))
}
