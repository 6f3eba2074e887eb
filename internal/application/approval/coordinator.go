package approval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/otc-market/otc-market/internal/application/ledger"
	"github.com/otc-market/otc-market/internal/application/pricing"
	"github.com/otc-market/otc-market/internal/domain/chat"
	"github.com/otc-market/otc-market/internal/domain/seller"
	"github.com/otc-market/otc-market/internal/domain/session"
	"github.com/otc-market/otc-market/internal/i18n"
)

// Callback actions the admin can take, delivered as "action:targetId".
const (
	ActionApproveSeller  = "approve_seller"
	ActionRejectSeller   = "reject_seller"
	ActionApproveRequest = "approve_request"
	ActionRejectRequest  = "reject_request"
)

// Coordinator applies admin approve/reject decisions exactly once. The
// ledger mutation is durable before anyone is notified; a failed
// notification never rolls the decision back.
type Coordinator struct {
	ledger   *ledger.Ledger
	sessions *session.Store
	gateway  chat.Gateway
	logger   zerolog.Logger
}

func NewCoordinator(l *ledger.Ledger, sessions *session.Store, gateway chat.Gateway, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		ledger:   l,
		sessions: sessions,
		gateway:  gateway,
		logger:   logger.With().Str("service", "approval").Logger(),
	}
}

// HandleAction dispatches an "action:targetId" callback.
func (c *Coordinator) HandleAction(ctx context.Context, payload string) error {
	action, target, ok := strings.Cut(payload, ":")
	if !ok {
		return fmt.Errorf("malformed admin action: %q", payload)
	}
	switch action {
	case ActionApproveSeller, ActionRejectSeller:
		sellerID, err := strconv.ParseInt(target, 10, 64)
		if err != nil {
			return fmt.Errorf("malformed seller id %q: %w", target, err)
		}
		if action == ActionApproveSeller {
			_, err = c.ApproveSeller(ctx, sellerID)
		} else {
			_, err = c.RejectSeller(ctx, sellerID)
		}
		return err
	case ActionApproveRequest, ActionRejectRequest:
		requestID, err := uuid.Parse(target)
		if err != nil {
			return fmt.Errorf("malformed request id %q: %w", target, err)
		}
		if action == ActionApproveRequest {
			return c.ApproveRequest(ctx, requestID)
		}
		return c.RejectRequest(ctx, requestID)
	default:
		return fmt.Errorf("unknown admin action: %q", action)
	}
}

// ApproveSeller enables the seller's order flow. The returned bool is false
// when the registration was already decided; the prior decision stands and
// nobody is re-notified.
func (c *Coordinator) ApproveSeller(ctx context.Context, sellerID int64) (bool, error) {
	return c.decideSeller(ctx, sellerID, true)
}

// RejectSeller leaves the seller unapproved.
func (c *Coordinator) RejectSeller(ctx context.Context, sellerID int64) (bool, error) {
	return c.decideSeller(ctx, sellerID, false)
}

func (c *Coordinator) decideSeller(ctx context.Context, sellerID int64, approve bool) (bool, error) {
	var (
		profile *seller.Profile
		applied bool
		err     error
	)
	if approve {
		profile, applied, err = c.ledger.ApproveSeller(ctx, sellerID)
	} else {
		profile, applied, err = c.ledger.RejectSeller(ctx, sellerID)
	}
	if err != nil {
		return false, err
	}
	if !applied {
		c.logger.Info().
			Int64("seller", sellerID).
			Bool("prior_approved", profile.Approved).
			Msg("seller decision repeated, reporting prior outcome")
		return false, nil
	}

	key := "seller_rejected"
	if approve {
		key = "seller_approved"
	}
	c.notify(ctx, sellerID, i18n.T(c.langFor(sellerID), key), nil)
	return true, nil
}

// ApproveRequest commits the buyer's reservation and notifies both parties.
func (c *Coordinator) ApproveRequest(ctx context.Context, requestID uuid.UUID) error {
	settled, err := c.ledger.SettleBuyRequest(ctx, requestID, true)
	if err != nil {
		return err
	}

	c.notify(ctx, settled.BuyerID, i18n.T(c.langFor(settled.BuyerID), "payment_confirmed"), nil)
	sellerMsg := i18n.Tf(c.langFor(settled.SellerID), "notify_seller_release",
		pricing.Round(settled.Amount).String(), settled.PayoutAddress)
	c.notify(ctx, settled.SellerID, sellerMsg, nil)
	return nil
}

// RejectRequest releases the reservation; only the buyer hears about it.
func (c *Coordinator) RejectRequest(ctx context.Context, requestID uuid.UUID) error {
	settled, err := c.ledger.SettleBuyRequest(ctx, requestID, false)
	if err != nil {
		return err
	}
	c.notify(ctx, settled.BuyerID, i18n.T(c.langFor(settled.BuyerID), "payment_rejected"), nil)
	return nil
}

// NotifyExpired tells buyers their expired holds were released.
func (c *Coordinator) NotifyExpired(ctx context.Context, holds []ledger.ReleasedHold) {
	for _, h := range holds {
		c.notify(ctx, h.BuyerID, i18n.T(c.langFor(h.BuyerID), "reservation_expired"), nil)
	}
}

// NotifyDisplaced tells buyers their holds were dropped because the seller
// replaced or withdrew the offer.
func (c *Coordinator) NotifyDisplaced(ctx context.Context, holds []ledger.ReleasedHold) {
	for _, h := range holds {
		c.notify(ctx, h.BuyerID, i18n.T(c.langFor(h.BuyerID), "offer_withdrawn"), nil)
	}
}

func (c *Coordinator) langFor(userID int64) string {
	return c.sessions.Get(userID).Lang
}

func (c *Coordinator) notify(ctx context.Context, userID int64, text string, keyboard chat.Keyboard) {
	if err := c.gateway.Send(ctx, userID, text, keyboard); err != nil {
		c.logger.Warn().Err(err).Int64("user", userID).Msg("notification delivery failed")
	}
}
