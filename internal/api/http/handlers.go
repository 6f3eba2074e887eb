package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/otc-market/otc-market/internal/application/pricing"
	"github.com/otc-market/otc-market/internal/domain/chat"
	"github.com/otc-market/otc-market/internal/domain/order"
	"github.com/otc-market/otc-market/internal/domain/request"
)

type orderView struct {
	SellerID        int64  `json:"sellerId"`
	AmountAvailable string `json:"amountAvailable"`
	Rate            string `json:"rate"`
	PublishedAt     string `json:"publishedAt"`
}

func (s *Server) handleListOrders(w http.ResponseWriter, _ *http.Request) {
	active := s.ledger.ListActiveOrders()
	views := make([]orderView, 0, len(active))
	for _, o := range active {
		views = append(views, orderView{
			SellerID:        o.SellerID,
			AmountAvailable: pricing.Round(o.AmountAvailable).String(),
			Rate:            o.Rate.String(),
			PublishedAt:     o.PublishedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": views})
}

func (s *Server) handlePendingSellers(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"sellers": s.ledger.PendingSellers()})
}

func (s *Server) handlePendingRequests(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"requests": s.ledger.PendingBuyRequests()})
}

func (s *Server) handleSellerDecision(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := strconv.ParseInt(chi.URLParam(r, "sellerID"), 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid seller id")
			return
		}
		var applied bool
		if approve {
			applied, err = s.coordinator.ApproveSeller(r.Context(), sellerID)
		} else {
			applied, err = s.coordinator.RejectSeller(r.Context(), sellerID)
		}
		if err != nil {
			respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		profile := s.ledger.GetSeller(sellerID)
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"applied":  applied,
			"approved": profile != nil && profile.Approved,
		})
	}
}

func (s *Server) handleRequestDecision(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := uuid.Parse(chi.URLParam(r, "requestID"))
		if err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request id")
			return
		}
		if approve {
			err = s.coordinator.ApproveRequest(r.Context(), requestID)
		} else {
			err = s.coordinator.RejectRequest(r.Context(), requestID)
		}
		switch {
		case errors.Is(err, request.ErrAlreadyProcessed):
			respondError(w, http.StatusConflict, "ALREADY_PROCESSED", "request already decided")
		case errors.Is(err, request.ErrNotFound):
			respondError(w, http.StatusNotFound, "NOT_FOUND", "request not found")
		case err != nil:
			s.logger.Error().Err(err).Str("request", requestID.String()).Msg("request decision failed")
			respondError(w, http.StatusInternalServerError, "INTERNAL", "decision failed")
		default:
			respondJSON(w, http.StatusOK, map[string]string{"status": "applied"})
		}
	}
}

func (s *Server) handleSetRate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rate string `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}
	rate, err := decimal.NewFromString(body.Rate)
	if err != nil || !rate.IsPositive() {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "rate must be a positive number")
		return
	}
	s.rates.Set(rate)
	respondJSON(w, http.StatusOK, map[string]string{"rate": rate.String()})
}

func (s *Server) handleGetRate(w http.ResponseWriter, _ *http.Request) {
	if rate, ok := s.rates.Override(); ok {
		respondJSON(w, http.StatusOK, map[string]interface{}{"rate": rate.String(), "override": true})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"rate": nil, "override": false})
}

// handleWithdrawOrder removes a seller's listing. Buyers holding displaced
// reservations are notified after the ledger mutation is durable.
func (s *Server) handleWithdrawOrder(w http.ResponseWriter, r *http.Request) {
	sellerID, err := strconv.ParseInt(chi.URLParam(r, "sellerID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid seller id")
		return
	}
	displaced, err := s.ledger.WithdrawOrder(r.Context(), sellerID)
	switch {
	case errors.Is(err, order.ErrUnknownOrder):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no order for seller")
	case err != nil:
		s.logger.Error().Err(err).Int64("seller", sellerID).Msg("order withdrawal failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "withdrawal failed")
	default:
		s.coordinator.NotifyDisplaced(r.Context(), displaced)
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "withdrawn",
			"displaced": len(displaced),
		})
	}
}

// handleInjectEvent feeds a chat event into the conversation engine. Meant
// for operational testing when no real transport is attached.
func (s *Server) handleInjectEvent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID  int64  `json:"userId"`
		Kind    string `json:"kind"`
		Payload string `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}
	ev := chat.Event{UserID: body.UserID, Kind: chat.Kind(strings.ToUpper(body.Kind)), Payload: body.Payload}
	switch ev.Kind {
	case chat.KindText, chat.KindPhoto, chat.KindButton:
	default:
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "kind must be text, photo or button")
		return
	}
	if err := s.engine.HandleEvent(r.Context(), ev); err != nil {
		s.logger.Error().Err(err).Int64("user", ev.UserID).Msg("injected event failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "event handling failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "handled"})
}
