package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"auction-sniper/internal/api"
	"auction-sniper/internal/bot"
	"auction-sniper/internal/buffer"
	"auction-sniper/internal/chat"
	"auction-sniper/internal/clock"
	"auction-sniper/internal/fanout"
	"auction-sniper/internal/fetcher"
	"auction-sniper/internal/learner"
	"auction-sniper/internal/models"
	"auction-sniper/internal/reminder"
	"auction-sniper/internal/store"
	"auction-sniper/internal/tier"
)

// Channels that only exist for free-tier members; delayed copies land here.
var freeTierChannels = []string{"daily-digest", "budget-steals"}

func main() {
	logger := newLogger()
	defer logger.Sync()
	sugar := logger.Sugar()

	// 初始化数据库
	db, err := openDB()
	if err != nil {
		log.Fatal("Failed to connect database:", err)
	}
	st := store.New(db)
	if err := st.Migrate(); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	clk := clock.Real{}
	ln := learner.New(st, sugar)

	// 连接聊天平台；没有token时降级为内存sender，健康检查仍可用
	var sender chat.Sender
	var tg *chat.Telegram
	if token := os.Getenv("BOT_TOKEN"); token != "" {
		tg, err = chat.NewTelegram(token, parseChatMap(os.Getenv("CHANNEL_CHATS")), sugar)
		if err != nil {
			log.Fatal("Failed to connect chat platform:", err)
		}
		sender = tg
		bot.New(tg, st, ln, clk, parseIDList(os.Getenv("ADMIN_IDS")), sugar)
	} else {
		sugar.Warn("BOT_TOKEN not set, running degraded with in-memory sender")
		m := chat.NewMemory()
		m.Down = true
		sender = m
	}

	buf := buffer.New(clk, sugar)
	fo := fanout.New(st, sender, fanout.DefaultChannels(), sugar)
	delayed := tier.NewQueue(sender, clk, sugar)

	// Background tasks stop on SIGINT/SIGTERM; in-flight deliveries finish,
	// queued-but-undelivered items are lost (queues are not durable).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 批量投递：立即走fan-out，免费档延迟副本入队
	go buf.Run(ctx, func(p models.ListingPayload) {
		if !fo.Deliver(p) {
			return
		}
		delay := tier.DelayFor(models.TierFree, p.Priority)
		delayed.Push(p, delay, freeTierChannels)
	})
	go delayed.Run(ctx)

	// 书签提醒每分钟扫一次
	rem := reminder.NewScheduler(st, sender, clk, sugar)
	cr := cron.New()
	cr.AddFunc("* * * * *", rem.ScanNow)
	cr.Start()

	// RSS兜底抓取
	if raw := os.Getenv("FEED_URLS"); raw != "" {
		rate, _ := strconv.ParseFloat(os.Getenv("JPY_PER_USD"), 64)
		ft := fetcher.New(fetcher.ParseFeeds(raw), buf, st, rate, sugar)
		go ft.Run(ctx)
	}

	if tg != nil {
		go tg.Start()
	}
	go func() {
		<-ctx.Done()
		cr.Stop()
		if tg != nil {
			tg.Stop()
		}
	}()

	// 启动HTTP服务
	r := gin.Default()
	handler := api.NewHandler(st, buf, sender)
	handler.RegisterRoutes(r)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	sugar.Infow("server starting", "port", port)
	r.Run(":" + port)
}

func newLogger() *zap.Logger {
	if os.Getenv("LOG_MODE") == "dev" {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	logger, _ := zap.NewProduction()
	return logger
}

func openDB() (*gorm.DB, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	}
	return gorm.Open(sqlite.Open("auction_tracking.db"), &gorm.Config{})
}

// parseChatMap reads "auction-alerts=-1001,budget-steals=-1002" into the
// channel name → chat id table.
func parseChatMap(raw string) map[string]int64 {
	chats := make(map[string]int64)
	for _, part := range strings.Split(raw, ",") {
		name, id, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		chatID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		chats[name] = chatID
	}
	return chats
}

func parseIDList(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
