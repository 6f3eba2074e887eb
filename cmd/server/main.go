package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/otc-market/otc-market/internal/api/http"
	"github.com/otc-market/otc-market/internal/application/approval"
	"github.com/otc-market/otc-market/internal/application/conversation"
	"github.com/otc-market/otc-market/internal/application/ledger"
	"github.com/otc-market/otc-market/internal/application/pricing"
	"github.com/otc-market/otc-market/internal/config"
	"github.com/otc-market/otc-market/internal/domain/order"
	"github.com/otc-market/otc-market/internal/domain/request"
	"github.com/otc-market/otc-market/internal/domain/seller"
	"github.com/otc-market/otc-market/internal/domain/session"
	"github.com/otc-market/otc-market/internal/infrastructure/console"
	"github.com/otc-market/otc-market/internal/infrastructure/memstore"
	"github.com/otc-market/otc-market/internal/infrastructure/postgres"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()

	var (
		sellerStore  seller.Store
		orderStore   order.Store
		requestStore request.Store
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db error: %v", err)
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool, "internal/migrations"); err != nil {
			log.Fatalf("migration error: %v", err)
		}
		sellerStore = postgres.NewSellerRepository(pool)
		orderStore = postgres.NewOrderRepository(pool)
		requestStore = postgres.NewRequestRepository(pool)
	} else {
		logger.Warn().Msg("no database configured, marketplace state will not survive restarts")
		mem := memstore.New()
		sellerStore = mem
		orderStore = mem
		requestStore = mem
	}

	marketLedger := ledger.New(sellerStore, orderStore, requestStore, cfg.ReservationTTL, logger)
	if err := marketLedger.Load(ctx); err != nil {
		log.Fatalf("ledger load error: %v", err)
	}

	tier := pricing.TierConfig{
		Threshold: cfg.CommissionThreshold,
		FlatFee:   cfg.CommissionFlatFee,
		PctRate:   cfg.CommissionPctRate,
	}
	pricer := pricing.NewEngine(tier)
	rates := pricing.NewRateSource()
	if cfg.SettlementRate.IsPositive() {
		rates.Set(cfg.SettlementRate)
	}

	sessions := session.NewStore()
	gateway := console.NewGateway(logger)
	coordinator := approval.NewCoordinator(marketLedger, sessions, gateway, logger)
	engine := conversation.NewEngine(sessions, marketLedger, pricer, rates, coordinator, gateway,
		cfg.AdminUserID, cfg.AdminContact, tier, logger)

	apiServer := httpapi.NewServer(marketLedger, coordinator, engine, rates, cfg.AdminTokenHash, logger)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// background reservation-expiry sweep
	if cfg.ReservationTTL > 0 {
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				released := marketLedger.ReleaseExpired(context.Background(), time.Now().UTC())
				if len(released) > 0 {
					coordinator.NotifyExpired(context.Background(), released)
				}
			}
		}()
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	logger.Info().Msg("server stopped")
}
