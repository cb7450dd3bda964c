// Package api is the HTTP boundary of the custody subsystem. Handlers are
// thin projections of the domain services; no business logic lives here.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zivra/zivra-custody/internal/app"
	"github.com/zivra/zivra-custody/internal/config"
	"github.com/zivra/zivra-custody/internal/fees"
	"github.com/zivra/zivra-custody/internal/guardian"
	"github.com/zivra/zivra-custody/internal/middleware"
	"github.com/zivra/zivra-custody/internal/pipeline"
	"github.com/zivra/zivra-custody/internal/policy"
	"github.com/zivra/zivra-custody/internal/recovery"
	"github.com/zivra/zivra-custody/internal/storage"
)

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	wallets    *app.WalletService
	guardians  *guardian.Registry
	policies   *policy.Engine
	recovery   *recovery.Coordinator
	pipeline   *pipeline.Pipeline
	estimator  *fees.Estimator
	store      *storage.Store
	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	wallets *app.WalletService,
	guardians *guardian.Registry,
	policies *policy.Engine,
	recoveryCoord *recovery.Coordinator,
	pipe *pipeline.Pipeline,
	estimator *fees.Estimator,
	store *storage.Store,
) *Server {
	return &Server{
		config:    cfg,
		wallets:   wallets,
		guardians: guardians,
		policies:  policies,
		recovery:  recoveryCoord,
		pipeline:  pipe,
		estimator: estimator,
		store:     store,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Unauthenticated endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Owner-scoped API; the identity provider asserts the owner upstream.
	authed := http.NewServeMux()

	authed.HandleFunc("POST /v1/wallets", s.handleCreateWallet)
	authed.HandleFunc("GET /v1/wallets/status", s.handleWalletStatus)
	authed.HandleFunc("POST /v1/wallets/shards/validate", s.handleValidateShard)

	authed.HandleFunc("GET /v1/guardians", s.handleListGuardians)
	authed.HandleFunc("POST /v1/guardians", s.handleAddGuardian)
	authed.HandleFunc("DELETE /v1/guardians/{id}", s.handleRemoveGuardian)

	authed.HandleFunc("GET /v1/policies", s.handleListPolicies)
	authed.HandleFunc("POST /v1/policies", s.handleCreatePolicy)
	authed.HandleFunc("DELETE /v1/policies/{id}", s.handleDeletePolicy)

	authed.HandleFunc("POST /v1/recovery", s.handleInitiateRecovery)
	authed.HandleFunc("POST /v1/recovery/{id}/votes", s.handleVoteOnRecovery)
	authed.HandleFunc("GET /v1/recovery/status", s.handleRecoveryStatus)
	authed.HandleFunc("DELETE /v1/recovery", s.handleCancelRecovery)

	authed.HandleFunc("POST /v1/transactions/simulate", s.handleSimulate)
	authed.HandleFunc("POST /v1/transactions", s.handleSendTransaction)
	authed.HandleFunc("GET /v1/transactions", s.handleListTransactions)
	authed.HandleFunc("GET /v1/transactions/{id}/status", s.handleTransactionStatus)

	authed.HandleFunc("POST /v1/fees/estimate", s.handleEstimateFees)
	authed.HandleFunc("GET /v1/fees/rates", s.handleFeeRates)

	mux.Handle("/v1/", middleware.OwnerAuth(authed))

	rateLimiter := middleware.NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst, s.config.RateLimitEnabled)

	s.httpServer = &http.Server{
		Addr: fmt.Sprintf(":%d", s.config.Port),
		Handler: middleware.RequestID(
			middleware.Metrics(
				middleware.LimitBody(
					rateLimiter.Limit(mux)))),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
