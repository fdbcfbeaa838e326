package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ucp-ap2-commerce/config"
	"ucp-ap2-commerce/internal/shopper/ap2agent"
	pgStorage "ucp-ap2-commerce/internal/shopper/adapter/storage/postgres"
	"ucp-ap2-commerce/internal/shopper/credentials"
	"ucp-ap2-commerce/internal/shopper/discovery"
	"ucp-ap2-commerce/internal/shopper/httpapi"
	"ucp-ap2-commerce/internal/shopper/orchestrator"
	"ucp-ap2-commerce/internal/shopper/ports"
	"ucp-ap2-commerce/internal/shopper/tokenization"
	"ucp-ap2-commerce/internal/shopper/ucpclient"
	"ucp-ap2-commerce/pkg/logger"
)

func main() {
	cfg, err := config.LoadShopper("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("merchant_base_url", cfg.Merchant.BaseURL).
		Msg("starting shopper service")

	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("postgres connected")

	users := pgStorage.NewUserStore(pool)
	creds := pgStorage.NewCredentialStore(pool)
	instruments := pgStorage.NewInstrumentStore(pool)
	mandates := pgStorage.NewMandateStore(pool)
	pgHealth := pgStorage.NewHealthCheck(pool)

	cipher, err := credentials.NewPANCipher(cfg.Encryption.KeyHex)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PAN cipher")
	}
	vault := credentials.NewDeviceKeyVault()

	var tokenizer ports.TokenizationAdapter = tokenization.NoopAdapter{}
	if cfg.Tokenization.Enabled {
		privKey, err := loadRSAPrivateKey(cfg.Tokenization.PrivateKeyPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load tokenization private key")
		}
		tokenizer = tokenization.NewOAuth1Adapter(cfg.Tokenization.BaseURL, cfg.Tokenization.ConsumerKey, privKey, cfg.Tokenization.Sandbox)
		log.Info().Bool("sandbox", cfg.Tokenization.Sandbox).Msg("network tokenization adapter enabled")
	}

	provider := credentials.New(users, creds, instruments, tokenizer, cipher, vault, log)
	consumerAgent := ap2agent.New(provider)
	disco := discovery.New(cfg.Merchant.BaseURL, cfg.Merchant.Timeout)
	ucpClient := ucpclient.New(cfg.Merchant.BaseURL, ucpclient.WithTimeout(cfg.Merchant.Timeout))
	orch := orchestrator.New(ucpClient, disco, consumerAgent, provider, mandates, tokenizer, log)

	router := httpapi.SetupRouter(httpapi.RouterDeps{
		Provider:     provider,
		Orchestrator: orch,
		Checkers:     []ports.HealthChecker{pgHealth},
		Logger:       log,
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
	log.Info().Msg("shutting down shopper service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("shopper service exited")
}

func loadRSAPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key file: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found in %s", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is not RSA")
	}
	return key, nil
}
