package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zivra/zivra-custody/internal/api"
	"github.com/zivra/zivra-custody/internal/app"
	"github.com/zivra/zivra-custody/internal/authgate"
	"github.com/zivra/zivra-custody/internal/chainrpc"
	"github.com/zivra/zivra-custody/internal/config"
	"github.com/zivra/zivra-custody/internal/custody"
	"github.com/zivra/zivra-custody/internal/fees"
	"github.com/zivra/zivra-custody/internal/guardian"
	"github.com/zivra/zivra-custody/internal/logger"
	"github.com/zivra/zivra-custody/internal/notify"
	"github.com/zivra/zivra-custody/internal/pipeline"
	"github.com/zivra/zivra-custody/internal/policy"
	"github.com/zivra/zivra-custody/internal/recovery"
	"github.com/zivra/zivra-custody/internal/sealer"
	"github.com/zivra/zivra-custody/internal/storage"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Init(); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize database
	store, err := storage.New(cfg.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	slog.Info("connected to database")

	// Initialize the shard sealer
	seal, err := sealer.New(&sealer.Config{
		Provider:          cfg.SealerProvider,
		LocalMasterKeyHex: cfg.SealerLocalKeyHex,
		AWSKMSKeyID:       cfg.SealerAWSKeyID,
		AWSKMSRegion:      cfg.SealerAWSRegion,
		VaultAddress:      cfg.SealerVaultAddress,
		VaultToken:        cfg.SealerVaultToken,
		VaultTransitKey:   cfg.SealerVaultKey,
	})
	if err != nil {
		slog.Error("failed to initialize sealer", "error", err)
		os.Exit(1)
	}

	slog.Info("initialized sealer", "provider", cfg.SealerProvider)

	custodySvc := custody.NewService(seal)

	// Repositories
	wallets := storage.NewWalletRepository(store)
	shards := storage.NewShardRepository(store)
	guardians := storage.NewGuardianRepository(store)
	policies := storage.NewPolicyRepository(store)
	recoveries := storage.NewRecoveryRepository(store)
	txs := storage.NewTransactionRepository(store)
	audit := storage.NewAuditRepository(store)

	// Domain services
	policyEngine := policy.NewEngine(policies, txs, guardians)
	guardianRegistry := guardian.NewRegistry(guardians)
	recoveryCoord := recovery.NewCoordinator(
		store, recoveries, guardians, wallets, shards, audit,
		custodySvc, notify.NewLogNotifier(),
	)

	// Chain clients; the registry only carries families we can reach.
	var clients []chainrpc.Client
	if cfg.EVMRPCURL != "" {
		evm, err := chainrpc.NewEVMClient(cfg.EVMRPCURL)
		if err != nil {
			slog.Error("failed to connect to EVM RPC", "error", err)
			os.Exit(1)
		}
		defer evm.Close()
		clients = append(clients, evm)
		slog.Info("connected to EVM RPC", "url", cfg.EVMRPCURL)
	}
	registry := chainrpc.NewRegistry(clients...)

	prices := fees.NewPriceCache(fees.NewStaticPriceSource(nil), cfg.PriceCacheTTL)
	estimator := fees.NewEstimator(registry, prices)

	gate := authgate.NewGate(authgate.DefaultMaxAge)
	pipe := pipeline.New(store, wallets, shards, txs, audit, policyEngine, custodySvc, registry, gate)

	walletService := app.NewWalletService(store, custodySvc)

	// Initialize API server
	server := api.NewServer(cfg, walletService, guardianRegistry, policyEngine, recoveryCoord, pipe, estimator, store)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	slog.Info("server started", "port", cfg.Port)

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Wait for either server error or shutdown signal
	select {
	case err := <-serverErrors:
		slog.Error("server error", "error", err)
		os.Exit(1)

	case sig := <-shutdown:
		slog.Info("received shutdown signal", "signal", sig.String())

		// Create a context with timeout for shutdown
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("error during shutdown", "error", err)
			slog.Warn("forcing shutdown")
		}

		slog.Info("server stopped")
	}
}
