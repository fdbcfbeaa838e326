package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ucp-ap2-commerce/config"
	"ucp-ap2-commerce/internal/merchant/ap2agent"
	pgStorage "ucp-ap2-commerce/internal/merchant/adapter/storage/postgres"
	redisStorage "ucp-ap2-commerce/internal/merchant/adapter/storage/redis"
	"ucp-ap2-commerce/internal/merchant/checkout"
	"ucp-ap2-commerce/internal/merchant/discovery"
	"ucp-ap2-commerce/internal/merchant/httpapi"
	"ucp-ap2-commerce/internal/merchant/ports"
	"ucp-ap2-commerce/internal/merchant/requestlog"
	"ucp-ap2-commerce/internal/merchant/stepup"
	"ucp-ap2-commerce/pkg/logger"
)

func main() {
	cfg, err := config.LoadMerchant("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("merchant_id", cfg.Merchant.ID).
		Msg("starting merchant service")

	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("postgres connected")

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()
	log.Info().Msg("redis connected")

	sessions := pgStorage.NewSessionStore(pool)
	challenges := stepup.NewRedisChallengeStore(rdb)

	keys := ap2agent.NewKeyRegistry()
	stepUpPolicy := ap2agent.StepUpPolicy{
		Enabled:         cfg.StepUp.Enabled,
		ThresholdSmall:  cfg.StepUp.ThresholdSmall,
		ThresholdLarge:  cfg.StepUp.ThresholdLarge,
		AmountThreshold: cfg.StepUp.AmountThreshold,
		DemoMode:        cfg.StepUp.DemoMode,
		ChallengeTTL:    cfg.StepUp.ChallengeTTL,
		MaxAttempts:     cfg.StepUp.MaxAttempts,
		MerchantID:      cfg.Merchant.ID,
	}
	var signer ports.ReceiptSigner = ap2agent.NoopSigner{}
	if cfg.StepUp.SigningEndpoint != "" {
		signer = ap2agent.NewHTTPSigner(cfg.StepUp.SigningEndpoint)
	}
	agent := ap2agent.New(keys, signer, stepUpPolicy)

	catalog := discovery.NewFixtureCatalog()
	publisher := discovery.NewPublisher(cfg.Merchant, cfg.StepUp, cfg.Merchant.URL)

	checkoutSvc := checkout.New(sessions, catalog, agent,
		checkout.WithChallengeStore(challenges),
		checkout.WithCatalogCheck(false),
	)

	recorder := requestlog.New(nil, log)

	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	router := httpapi.SetupRouter(httpapi.RouterDeps{
		Checkout:  checkoutSvc,
		Publisher: publisher,
		Catalog:   catalog,
		Keys:      keys,
		Checkers:  []ports.HealthChecker{pgHealth, redisHealth},
		Recorder:  recorder,
		Logger:    log,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router,
	}

	go func() {
		log.Info().Str("addr", cfg.Server.Addr()).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down merchant service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("merchant service exited")
}
