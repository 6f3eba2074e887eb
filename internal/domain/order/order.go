package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientLiquidity is returned when a reservation would overcommit
	// the order's remaining amount.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrUnknownOrder is returned when no active order exists for the seller.
	ErrUnknownOrder = errors.New("unknown order")

	// ErrUnknownReservation is returned for commit/release of a reservation
	// that does not exist or was already settled.
	ErrUnknownReservation = errors.New("unknown reservation")
)

// CommissionType selects how a seller's fee is computed.
type CommissionType string

const (
	CommissionPercent    CommissionType = "PERCENT"
	CommissionFixed      CommissionType = "FIXED"
	CommissionTiered     CommissionType = "TIERED"
	CommissionExpression CommissionType = "EXPRESSION"
)

// CommissionPolicy is the fee rule attached to a sell order. Value carries
// the percent rate or the flat fee depending on Type; Expression carries a
// fee formula over "amount" for CommissionExpression policies.
type CommissionPolicy struct {
	Type       CommissionType  `json:"type"`
	Value      decimal.Decimal `json:"value"`
	Expression string          `json:"expression,omitempty"`
}

// Reservation is a provisional hold against an order's available amount,
// pending the admin's decision on the buy request that created it.
type Reservation struct {
	ReservationID uuid.UUID       `json:"reservationId"`
	SellerID      int64           `json:"sellerId"`
	BuyerID       int64           `json:"buyerId"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"createdAt"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
}

// Order is a seller's published offer. One active order per seller; a new
// publish replaces the previous one.
type Order struct {
	SellerID        int64            `json:"sellerId"`
	PublishedAmount decimal.Decimal  `json:"publishedAmount"`
	AmountAvailable decimal.Decimal  `json:"amountAvailable"`
	Rate            decimal.Decimal  `json:"rate"`
	Commission      CommissionPolicy `json:"commission"`
	PayoutAccount   string           `json:"payoutAccount"`
	PublishedAt     time.Time        `json:"publishedAt"`
	Reservations    []*Reservation   `json:"reservations,omitempty"`
}

// Reserved returns the sum of active holds against the order.
func (o *Order) Reserved() decimal.Decimal {
	total := decimal.Zero
	for _, r := range o.Reservations {
		total = total.Add(r.Amount)
	}
	return total
}

// Store persists orders together with their active reservations.
type Store interface {
	SaveOrder(ctx context.Context, o *Order) error
	DeleteOrder(ctx context.Context, sellerID int64) error
	LoadOrders(ctx context.Context) ([]*Order, error)
}
