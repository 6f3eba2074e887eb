package request

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrAlreadyProcessed is returned for a decision on a terminal request.
	ErrAlreadyProcessed = errors.New("buy request already processed")

	// ErrNotFound is returned when no request exists for the id.
	ErrNotFound = errors.New("buy request not found")
)

// Status of a buy request. Advances strictly forward; Rejected and Approved
// are terminal.
type Status string

const (
	StatusAwaitingEvidence Status = "AWAITING_EVIDENCE"
	StatusPendingAdmin     Status = "PENDING_ADMIN"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanAdvanceTo reports whether a transition from s to t moves strictly forward.
func (s Status) CanAdvanceTo(t Status) bool {
	rank := map[Status]int{
		StatusAwaitingEvidence: 0,
		StatusPendingAdmin:     1,
		StatusApproved:         2,
		StatusRejected:         2,
	}
	rs, ok := rank[s]
	if !ok {
		return false
	}
	rt, ok := rank[t]
	if !ok {
		return false
	}
	return rt > rs
}

// BuyRequest captures one buyer's claim against a seller's order, from
// amount confirmation through the admin's decision.
type BuyRequest struct {
	RequestID        uuid.UUID       `json:"requestId"`
	BuyerID          int64           `json:"buyerId"`
	SellerID         int64           `json:"sellerId"`
	ReservationID    uuid.UUID       `json:"reservationId"`
	Amount           decimal.Decimal `json:"amount"`
	Commission       decimal.Decimal `json:"commission"`
	Total            decimal.Decimal `json:"total"`
	TotalSettlement  decimal.Decimal `json:"totalSettlement"`
	PayoutAddress    string          `json:"payoutAddress"`
	Evidence         string          `json:"evidence,omitempty"`
	Status           Status          `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	DecidedAt        *time.Time      `json:"decidedAt,omitempty"`
}

// Store persists buy requests.
type Store interface {
	SaveRequest(ctx context.Context, r *BuyRequest) error
	LoadRequests(ctx context.Context) ([]*BuyRequest, error)
}
