package seller

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateRegistration is returned when a profile already exists for the user.
var ErrDuplicateRegistration = errors.New("seller already registered")

// ErrNotApproved is returned when an operation requires an approved seller.
var ErrNotApproved = errors.New("seller not approved")

// Profile represents a seller's registration record. Profiles are never
// deleted; a seller leaves the marketplace by having no active order.
type Profile struct {
	SellerID      int64     `json:"sellerId"`
	Name          string    `json:"name"`
	Contact       string    `json:"contact"`
	PayoutAccount string    `json:"payoutAccount"`
	Approved      bool      `json:"approved"`
	Decided       bool      `json:"decided"`
	Lang          string    `json:"lang"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

// Store persists seller profiles.
type Store interface {
	SaveProfile(ctx context.Context, p *Profile) error
	LoadProfiles(ctx context.Context) ([]*Profile, error)
}
