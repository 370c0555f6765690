package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"voicecoach/internal/accounts"
	"voicecoach/internal/config"
	"voicecoach/internal/conversation"
	"voicecoach/internal/dialogue"
	"voicecoach/internal/scheduler"
	"voicecoach/internal/telephony"
	"voicecoach/pkg/logger"
	"voicecoach/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	// Redis is optional; without it the concurrent-call cap is not enforced.
	var rdb *redis.Client
	var limiter telephony.CallLimiter = telephony.NopCallLimiter{}
	if cfg.RedisEnabled() {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		limiter = telephony.NewRedisCallLimiter(rdb, cfg.Calls.MaxConcurrent)
	} else {
		log.Warn("redis not configured, outbound call cap disabled")
	}

	store := accounts.NewPostgresRepo(db)
	twilio := telephony.NewTwilioClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
	ai := dialogue.NewClient(cfg.OpenAI.APIKey, cfg.Calls.DialogueTimeout, cfg.Calls.TranscribeTimeout)

	// Slots are bound to placed call ids so any terminal event for a call we
	// placed releases exactly its own slot.
	slots := telephony.NewSlotTracker(limiter)

	sessions := conversation.NewTable()
	engine := conversation.NewEngine(sessions, store, ai, ai, twilio, slots)

	sched := scheduler.New(store, twilio, slots, scheduler.Config{
		Tick:           cfg.Calls.SchedulerTick,
		FromNumber:     cfg.Twilio.FromNumber,
		WebhookBaseURL: cfg.Twilio.WebhookBaseURL,
	}, log)

	svc := accounts.NewService(store, sched)

	if err := sched.Start(); err != nil {
		log.Error("scheduler start failed", "err", err)
		os.Exit(1)
	}
	defer sched.Stop()

	// Safety net for calls whose terminal webhook never arrives.
	go sessions.RunSweeper(rootCtx, time.Minute, cfg.Calls.SessionIdleTTL, slots.Release, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, db, engine, svc)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
