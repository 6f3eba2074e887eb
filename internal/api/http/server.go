package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/otc-market/otc-market/internal/application/approval"
	"github.com/otc-market/otc-market/internal/application/conversation"
	"github.com/otc-market/otc-market/internal/application/ledger"
	"github.com/otc-market/otc-market/internal/application/pricing"
)

// Server exposes the operational surface: order listing, pending approvals,
// the admin approve/reject actions and the settlement-rate override. It is
// an alternative entry point to the same coordinator the chat channel uses.
type Server struct {
	ledger         *ledger.Ledger
	coordinator    *approval.Coordinator
	engine         *conversation.Engine
	rates          *pricing.RateSource
	adminTokenHash string
	logger         zerolog.Logger
}

func NewServer(l *ledger.Ledger, coordinator *approval.Coordinator, engine *conversation.Engine, rates *pricing.RateSource, adminTokenHash string, logger zerolog.Logger) *Server {
	return &Server{
		ledger:         l,
		coordinator:    coordinator,
		engine:         engine,
		rates:          rates,
		adminTokenHash: adminTokenHash,
		logger:         logger.With().Str("service", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/orders", s.handleListOrders)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/sellers/pending", s.handlePendingSellers)
			r.Post("/sellers/{sellerID}/approve", s.handleSellerDecision(true))
			r.Post("/sellers/{sellerID}/reject", s.handleSellerDecision(false))
			r.Delete("/orders/{sellerID}", s.handleWithdrawOrder)
			r.Get("/requests/pending", s.handlePendingRequests)
			r.Post("/requests/{requestID}/approve", s.handleRequestDecision(true))
			r.Post("/requests/{requestID}/reject", s.handleRequestDecision(false))
			r.Put("/rate", s.handleSetRate)
			r.Get("/rate", s.handleGetRate)
			r.Post("/events", s.handleInjectEvent)
		})
	})

	return r
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	})
}
