package chat

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/telebot.v3"
)

// Channel names prefixed with "user:" address a user's direct chat instead
// of a named community chat. Bookmark channels use this form.
const directPrefix = "user:"

// UserChannel returns the channel name addressing one user directly.
func UserChannel(userID int64) string {
	return directPrefix + strconv.FormatInt(userID, 10)
}

// Telegram delivers messages through a telebot bot. Topic channels map to
// chat ids via the configured chats table; like/dislike inline buttons
// carry the auction id as callback data and surface as ReactionEvents.
type Telegram struct {
	bot        *telebot.Bot
	chats      map[string]int64
	log        *zap.SugaredLogger
	onReaction func(ReactionEvent)

	likeBtn    telebot.Btn
	dislikeBtn telebot.Btn
}

// NewTelegram connects the bot. chats maps channel names (auction-alerts,
// budget-steals, ...) to Telegram chat ids.
func NewTelegram(token string, chats map[string]int64, log *zap.SugaredLogger) (*Telegram, error) {
	b, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}

	t := &Telegram{
		bot:        b,
		chats:      chats,
		log:        log,
		likeBtn:    telebot.Btn{Text: "👍", Unique: "react_like"},
		dislikeBtn: telebot.Btn{Text: "👎", Unique: "react_dislike"},
	}

	b.Handle(&t.likeBtn, t.handleReaction("like"))
	b.Handle(&t.dislikeBtn, t.handleReaction("dislike"))

	return t, nil
}

// OnReaction registers the consumer of reaction events. Must be called
// before Start.
func (t *Telegram) OnReaction(fn func(ReactionEvent)) {
	t.onReaction = fn
}

// Bot exposes the underlying telebot instance so the command layer can
// register its handlers on the same connection.
func (t *Telegram) Bot() *telebot.Bot { return t.bot }

// Start begins long polling. Blocks until Stop.
func (t *Telegram) Start() { t.bot.Start() }

func (t *Telegram) Stop() { t.bot.Stop() }

func (t *Telegram) Healthy() bool { return t.bot != nil && t.bot.Me != nil }

func (t *Telegram) Send(channel string, msg Message) (string, error) {
	recipient, err := t.recipient(channel)
	if err != nil {
		return "", err
	}

	var opts []interface{}
	if msg.AuctionID != "" {
		markup := &telebot.ReplyMarkup{}
		like := markup.Data(t.likeBtn.Text, t.likeBtn.Unique, msg.AuctionID)
		dislike := markup.Data(t.dislikeBtn.Text, t.dislikeBtn.Unique, msg.AuctionID)
		markup.Inline(markup.Row(like, dislike))
		opts = append(opts, markup)
	}

	sent, err := t.bot.Send(recipient, renderText(msg), opts...)
	if err != nil {
		return "", fmt.Errorf("send to %s: %w", channel, err)
	}
	return strconv.Itoa(sent.ID), nil
}

func (t *Telegram) recipient(channel string) (telebot.Recipient, error) {
	if id, ok := strings.CutPrefix(channel, directPrefix); ok {
		userID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad direct channel %q", channel)
		}
		return &telebot.User{ID: userID}, nil
	}
	chatID, ok := t.chats[channel]
	if !ok {
		return nil, fmt.Errorf("no chat configured for channel %q", channel)
	}
	return &telebot.Chat{ID: chatID}, nil
}

func (t *Telegram) handleReaction(reactionType string) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		auctionID := strings.TrimSpace(c.Callback().Data)
		if auctionID == "" || t.onReaction == nil {
			return c.Respond()
		}
		t.onReaction(ReactionEvent{
			UserID:    c.Sender().ID,
			AuctionID: auctionID,
			Type:      reactionType,
		})
		return c.Respond(&telebot.CallbackResponse{Text: "Noted 👌"})
	}
}

func renderText(msg Message) string {
	var b strings.Builder
	if msg.Title != "" {
		b.WriteString(msg.Title)
		b.WriteString("\n")
	}
	if msg.URL != "" {
		b.WriteString(msg.URL)
		b.WriteString("\n")
	}
	if msg.Body != "" {
		b.WriteString(msg.Body)
		b.WriteString("\n")
	}
	if msg.Footer != "" {
		b.WriteString(msg.Footer)
	}
	return strings.TrimRight(b.String(), "\n")
}
