package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nuanyu/companion/backend/internal/cache"
	"github.com/nuanyu/companion/backend/internal/config"
	"github.com/nuanyu/companion/backend/internal/handler"
	"github.com/nuanyu/companion/backend/internal/service/ai"
	chatservice "github.com/nuanyu/companion/backend/internal/service/chat"
	"github.com/nuanyu/companion/backend/internal/service/moderation"
	"github.com/nuanyu/companion/backend/internal/service/notify"
	"github.com/nuanyu/companion/backend/internal/service/plan"
	"github.com/nuanyu/companion/backend/internal/service/progression"
	"github.com/nuanyu/companion/backend/internal/service/quota"
	"github.com/nuanyu/companion/backend/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	companionStore := storage.NewCompanionStore(db)
	messageStore := storage.NewMessageStore(db)
	quotaStore := storage.NewQuotaStore(db)
	progressStore := storage.NewProgressStore(db)

	if err := companionStore.EnsureSeed(ctx); err != nil {
		log.Printf("warning: failed to seed companions: %v", err)
	}

	var progressCache cache.ProgressCache
	if cfg.Redis.Enabled() {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Cache.ProgressTTL)
		if err != nil {
			log.Printf("warning: redis unavailable (%v), falling back to in-process cache", err)
			progressCache = cache.NewMemoryCache(cfg.Cache.ProgressTTL)
		} else {
			log.Println("progress cache backed by redis")
			progressCache = redisCache
		}
	} else {
		progressCache = cache.NewMemoryCache(cfg.Cache.ProgressTTL)
	}

	// Initialize the reply service; without model credentials the engine
	// still runs, serving fallback lines only.
	var replyService *ai.ReplyService
	if cfg.AI.Enabled() {
		replyService, err = ai.NewReplyService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing with fallback replies only - 请检查 Ark 模型相关环境变量")
			replyService = ai.NewReplyServiceWithChain(nil, cfg.AI.ReplyTimeout())
		} else {
			log.Println("AI reply service initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，将只使用预设回复")
		replyService = ai.NewReplyServiceWithChain(nil, cfg.AI.ReplyTimeout())
	}

	planService := plan.NewStaticService(plan.Plan{DailyLimit: cfg.Quota.FreeDailyLimit})
	quotaLedger := quota.NewLedger(quotaStore)
	intimacyLedger := progression.NewLedger()
	milestoneEngine := progression.NewEngine(intimacyLedger)
	hub := notify.NewHub()

	pipeline := chatservice.NewPipeline(
		companionStore,
		messageStore,
		progressStore,
		progressCache,
		moderation.NewGate(),
		planService,
		quotaLedger,
		replyService,
		intimacyLedger,
		milestoneEngine,
		hub,
	)

	router := handler.NewRouter(pipeline, companionStore, hub)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("companion backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
