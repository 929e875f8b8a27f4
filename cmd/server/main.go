package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/footyshares/club-engine/internal/config"
	"github.com/footyshares/club-engine/internal/metrics"
	"github.com/footyshares/club-engine/internal/settle"
	"github.com/footyshares/club-engine/internal/store"
	"github.com/footyshares/club-engine/internal/trade"
	"github.com/footyshares/club-engine/internal/ws"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- WebSocket hub ---
	hub := ws.NewHub()
	go hub.Run()

	// --- Settlement engine + sweeper ---
	settler := settle.NewEngine(st, cfg.TransferRate, cfg.MinMarketCap, cfg.TradeRetries, hub)
	sweeper, err := settle.NewSweeper(settler, cfg.SettleSweep)
	if err != nil {
		slog.Error("invalid SETTLE_SWEEP spec", "err", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// --- Trade service ---
	tradeSvc := trade.NewService(st, cfg, settler, hub)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"club-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time updates.
		r.Get("/ws", hub.HandleWS)

		// Club management.
		r.Get("/clubs", tradeSvc.ListClubs)
		r.Post("/clubs", tradeSvc.CreateClub)
		r.Get("/clubs/{clubID}", tradeSvc.GetClub)
		r.Get("/clubs/{clubID}/price", tradeSvc.GetPrice)
		r.Get("/clubs/{clubID}/orders", tradeSvc.GetClubOrders)
		r.Post("/clubs/{clubID}/lock", tradeSvc.LockClub)
		r.Post("/clubs/{clubID}/unlock", tradeSvc.UnlockClub)

		// Trade execution.
		r.Post("/trade", tradeSvc.ExecuteTrade)

		// Wallets, orders, portfolios.
		r.Get("/users/{userID}/wallet", tradeSvc.GetWallet)
		r.Post("/users/{userID}/wallet/credit", tradeSvc.CreditWallet)
		r.Get("/users/{userID}/orders", tradeSvc.GetUserOrders)
		r.Get("/portfolio/{userID}", tradeSvc.GetPortfolio)

		// Fixtures and settlement.
		r.Get("/fixtures", tradeSvc.ListFixtures)
		r.Post("/fixtures", tradeSvc.CreateFixture)
		r.Get("/fixtures/{fixtureID}", tradeSvc.GetFixture)
		r.Post("/fixtures/{fixtureID}/result", tradeSvc.RecordResult)
		r.Post("/fixtures/{fixtureID}/apply", tradeSvc.ApplyFixture)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("club-engine listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down club-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("club-engine stopped")
}
