package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"trading-gatewayv1/config"
	"trading-gatewayv1/internal/api"
	"trading-gatewayv1/internal/coinbase"
	"trading-gatewayv1/internal/execution"
	"trading-gatewayv1/internal/logger"
	"trading-gatewayv1/internal/metrics"
	"trading-gatewayv1/internal/news"
	"trading-gatewayv1/internal/notification"
	"trading-gatewayv1/internal/resolve"
	"trading-gatewayv1/internal/session"
	"trading-gatewayv1/pkg/smartconnect"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[gateway] starting...")

	// ---- Load config from env ----
	cfg := config.Load()
	loc := cfg.Location()

	slogger := logger.Init("order-gateway", slog.LevelInfo)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Context for graceful shutdown ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Order journal (SQLite, off hot path) ----
	os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755)
	journal, err := execution.NewJournal(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[gateway] journal init failed: %v", err)
	}
	defer journal.Close()
	health.SetSQLiteOK(true)
	log.Println("[gateway] order journal ready")

	// ---- Resolution cache (Redis, optional) ----
	var cache *resolve.Cache
	cache, err = resolve.NewCache(resolve.CacheConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[gateway] WARNING: redis init failed: %v (continuing without resolve cache)", err)
		health.SetRedisConnected(false)
		cache = nil
	} else {
		health.SetRedisConnected(true)
		defer cache.Close()
		log.Println("[gateway] resolve cache ready")
	}

	// ---- Broker adapter + session management ----
	broker := smartconnect.New(smartconnect.Config{APIKey: cfg.AngelAPIKey})
	store := session.NewStore()
	auth := session.NewAuthenticator(broker, store, session.Credentials{
		APIKey:     cfg.AngelAPIKey,
		ClientCode: cfg.AngelClientCode,
		PIN:        cfg.AngelPIN,
		TOTPSecret: cfg.AngelTOTPSecret,
	}, loc, slogger)

	auth.OnCacheHit = prom.SessionCacheHits.Inc
	auth.OnLogin = func(err error) {
		prom.LoginsTotal.Inc()
		if err != nil {
			prom.LoginFailures.Inc()
		}
	}

	resolver := resolve.New(broker, cache, slogger)
	resolver.OnCacheHit = prom.ResolveCacheHits.Inc

	// ---- Alert channels ----
	var notifier notification.Notifier
	var backends []notification.Notifier
	if cfg.NotifyWebhookURL != "" {
		backends = append(backends, notification.NewWebhookNotifier(cfg.NotifyWebhookURL))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		backends = append(backends, notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}
	switch len(backends) {
	case 0:
		notifier = nil
	case 1:
		notifier = backends[0]
	default:
		notifier = notification.NewMulti(backends...)
	}

	// ---- Order engine ----
	rec := execution.NewReconciler(broker, cfg.ReconcileAttempts, cfg.ReconcileDelay, prom, slogger)
	exec := execution.NewExecutor(execution.ExecutorConfig{
		Broker:     broker,
		Auth:       auth,
		Resolver:   resolver,
		Reconciler: rec,
		Journal:    journal,
		Notifier:   notifier,
		Metrics:    prom,
		Health:     health,
		Logger:     slogger,
	})

	// ---- Coinbase (optional) ----
	var crypto api.CryptoService
	cb := coinbase.NewClient(cfg.CoinbaseAPIBase, cfg.CoinbaseKeyName, cfg.CoinbasePrivateKey)
	if cb.Enabled() {
		crypto = cb
		log.Println("[gateway] coinbase surface enabled")
	} else {
		log.Println("[gateway] coinbase credentials not set, crypto routes disabled")
	}

	// ---- HTTP server ----
	hub := api.NewHub()
	srv := api.NewServer(api.ServerConfig{
		Orders:  exec,
		Crypto:  crypto,
		Journal: journal,
		News:    news.NewFetcher(),
		Hub:     hub,
		Logger:  slogger,
	})

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("[gateway] http listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[gateway] http server failed: %v", err)
		}
	}()

	// ---- Wait for shutdown signal ----
	<-ctx.Done()
	log.Println("[gateway] shutdown signal received, draining...")
	stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[gateway] http shutdown: %v", err)
	}
	if err := auth.Close(shutdownCtx); err != nil {
		log.Printf("[gateway] session release: %v", err)
	}
	hub.Close()
	metricsSrv.Stop(shutdownCtx)
	log.Println("[gateway] stopped")
}
