package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/zipgallery/zipgallery/internal/auth"
	"github.com/zipgallery/zipgallery/internal/config"
	"github.com/zipgallery/zipgallery/internal/gallery"
	"github.com/zipgallery/zipgallery/internal/handler"
	"github.com/zipgallery/zipgallery/internal/history"
	"github.com/zipgallery/zipgallery/internal/imghost"
	"github.com/zipgallery/zipgallery/internal/keepalive"
	"github.com/zipgallery/zipgallery/internal/keypool"
	"github.com/zipgallery/zipgallery/internal/middleware"
	"github.com/zipgallery/zipgallery/internal/normalize"
	"github.com/zipgallery/zipgallery/internal/rcache"
	"github.com/zipgallery/zipgallery/internal/service"
	"github.com/zipgallery/zipgallery/internal/session"
	"github.com/zipgallery/zipgallery/internal/stats"
	"github.com/zipgallery/zipgallery/internal/store"
	"github.com/zipgallery/zipgallery/internal/ws"
)

func main() {
	// ── Configuration ──
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// ── Redis (published-gallery cache) ──
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	log.Println("connected to Redis at", cfg.Redis.Addr)

	// ── SQL Store (batch log, accounts) ──
	st, err := store.NewStore(cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	log.Println("database initialised")

	// ── Upload history (sqlite) ──
	histDB, err := history.NewDB(cfg.History.Path)
	if err != nil {
		log.Fatalf("failed to init upload history: %v", err)
	}
	log.Printf("upload history at %s", cfg.History.Path)

	// ── Shared state ──
	accounts := auth.NewAccountService(st.DB())
	cache := rcache.New(rdb, cfg.Batch.CacheTTL)
	pool := keypool.New(cfg.ImageHost.Keys)
	sessions := session.NewStore()

	tracker := stats.NewTracker()
	if agg, err := histDB.GetAggregateStats(); err == nil {
		tracker.LoadHistoricalStats(agg.TotalUploads, agg.TotalBatches, agg.TodayUploads)
	} else {
		log.Printf("failed to load historical stats: %v", err)
	}

	total, _, _ := pool.Counts()
	log.Printf("credential pool seeded with %d keys", total)

	// ── Pipeline components ──
	host := imghost.NewClient(cfg.ImageHost.Endpoint, cfg.ImageHost.UploadTimeout,
		cfg.ImageHost.MaxRetries, cfg.ImageHost.RetryDelay, imghost.DefaultClassifier())
	normalizer := normalize.New(cfg.Batch.MaxImageDim, cfg.Batch.JPEGQuality)
	publisher := gallery.NewPublisher(gallery.NewClient(cfg.Publisher.Endpoint,
		cfg.Publisher.AccessToken, cfg.Publisher.Author))

	// ── WebSocket Hub ──
	hub := ws.NewHub()

	// ── Batch Service ──
	// jobCtx bounds background batch jobs; cancelled on shutdown so
	// suspended batches stop waiting for credentials.
	jobCtx, jobCancel := context.WithCancel(ctx)
	defer jobCancel()

	svc := service.NewBatchService(jobCtx, sessions, pool, host, normalizer,
		publisher, cache, st, histDB, tracker, hub, cfg)
	hub.SetTextHandler(svc.HandleText)

	// ── Keep-alive self-ping (free-tier hosts idle out) ──
	if cfg.Server.ExternalURL != "" {
		go keepalive.Run(jobCtx, &http.Client{Timeout: 30 * time.Second},
			cfg.Server.ExternalURL+"/health", cfg.Server.KeepaliveInterval)
	}

	// ── Gin Router ──
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.Logger())

	h := handler.NewHandler(svc, hub, sessions, pool, tracker, histDB, cfg)
	authHandler := handler.NewAuthHandler(accounts)
	accountHandler := handler.NewAccountHandler(accounts)
	adminHandler := handler.NewAdminHandler(pool, cfg)

	// Register routes with API key authentication
	authHandler.RegisterRoutes(r)
	h.RegisterRoutes(r, middleware.APIKeyAuth(accounts))
	accountHandler.RegisterRoutes(r.Group("/api/v1", middleware.APIKeyAuth(accounts)))

	// Register admin routes with admin token authentication
	adminHandler.RegisterRoutes(r.Group("/api/v1/admin", middleware.AdminTokenAuth(cfg.Server.AdminToken)))

	// ── HTTP Server with graceful shutdown ──
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: r,
	}

	go func() {
		log.Printf("server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	// ── Graceful Shutdown ──
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	jobCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	histDB.Close()
	rdb.Close()
	log.Println("server exited cleanly")
}
