package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/otc-market/otc-market/internal/domain/order"
	"github.com/otc-market/otc-market/internal/domain/request"
	"github.com/otc-market/otc-market/internal/domain/seller"
)

// Ledger is the single shared mutable marketplace state: seller profiles,
// active sell orders and buy requests. All mutations are serialized behind
// one mutex and persisted through the stores before they become visible,
// so no caller ever observes a half-applied change.
type Ledger struct {
	mu sync.Mutex

	sellers  map[int64]*seller.Profile
	orders   map[int64]*order.Order
	requests map[uuid.UUID]*request.BuyRequest

	sellerStore  seller.Store
	orderStore   order.Store
	requestStore request.Store

	reservationTTL time.Duration
	logger         zerolog.Logger
}

func New(sellerStore seller.Store, orderStore order.Store, requestStore request.Store, reservationTTL time.Duration, logger zerolog.Logger) *Ledger {
	return &Ledger{
		sellers:        make(map[int64]*seller.Profile),
		orders:         make(map[int64]*order.Order),
		requests:       make(map[uuid.UUID]*request.BuyRequest),
		sellerStore:    sellerStore,
		orderStore:     orderStore,
		requestStore:   requestStore,
		reservationTTL: reservationTTL,
		logger:         logger.With().Str("service", "ledger").Logger(),
	}
}

// Load restores the durable collections at startup.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	profiles, err := l.sellerStore.LoadProfiles(ctx)
	if err != nil {
		return fmt.Errorf("load sellers: %w", err)
	}
	for _, p := range profiles {
		l.sellers[p.SellerID] = p
	}

	orders, err := l.orderStore.LoadOrders(ctx)
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	for _, o := range orders {
		l.orders[o.SellerID] = o
	}

	requests, err := l.requestStore.LoadRequests(ctx)
	if err != nil {
		return fmt.Errorf("load requests: %w", err)
	}
	for _, r := range requests {
		l.requests[r.RequestID] = r
	}

	l.logger.Info().
		Int("sellers", len(l.sellers)).
		Int("orders", len(l.orders)).
		Int("requests", len(l.requests)).
		Msg("ledger state loaded")
	return nil
}

// RegisterSeller records a new unapproved profile. An existing approved or
// still-pending profile fails with ErrDuplicateRegistration; a previously
// rejected seller may register again.
func (l *Ledger) RegisterSeller(ctx context.Context, p *seller.Profile) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.sellers[p.SellerID]; ok {
		if existing.Approved || !existing.Decided {
			return seller.ErrDuplicateRegistration
		}
	}

	cp := *p
	cp.Approved = false
	cp.Decided = false
	if cp.RegisteredAt.IsZero() {
		cp.RegisteredAt = time.Now().UTC()
	}
	if err := l.sellerStore.SaveProfile(ctx, &cp); err != nil {
		return fmt.Errorf("persist seller: %w", err)
	}
	l.sellers[cp.SellerID] = &cp
	l.logger.Info().Int64("seller", cp.SellerID).Msg("seller registered")
	return nil
}

// ApproveSeller marks the profile approved. The returned bool is false when
// a decision was already recorded; the profile then reports the prior
// decision and nothing is re-applied.
func (l *Ledger) ApproveSeller(ctx context.Context, sellerID int64) (*seller.Profile, bool, error) {
	return l.decideSeller(ctx, sellerID, true)
}

// RejectSeller marks the profile decided without approval.
func (l *Ledger) RejectSeller(ctx context.Context, sellerID int64) (*seller.Profile, bool, error) {
	return l.decideSeller(ctx, sellerID, false)
}

func (l *Ledger) decideSeller(ctx context.Context, sellerID int64, approve bool) (*seller.Profile, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.sellers[sellerID]
	if !ok {
		return nil, false, fmt.Errorf("seller not found: %d", sellerID)
	}
	if p.Decided {
		prior := *p
		return &prior, false, nil
	}

	cp := *p
	cp.Decided = true
	cp.Approved = approve
	if err := l.sellerStore.SaveProfile(ctx, &cp); err != nil {
		return nil, false, fmt.Errorf("persist seller: %w", err)
	}
	l.sellers[sellerID] = &cp
	l.logger.Info().Int64("seller", sellerID).Bool("approved", approve).Msg("seller decided")
	result := cp
	return &result, true, nil
}

// GetSeller returns a copy of the profile, or nil.
func (l *Ledger) GetSeller(sellerID int64) *seller.Profile {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.sellers[sellerID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// PublishOrder puts a seller's offer on the market, replacing any prior
// order for that seller. Holds against the replaced order are displaced:
// their buy requests are rejected and the released holds are returned so
// the buyers can be told. Fails with seller.ErrNotApproved for sellers
// without an approved profile.
func (l *Ledger) PublishOrder(ctx context.Context, o *order.Order) ([]ReleasedHold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.sellers[o.SellerID]
	if !ok || !p.Approved {
		return nil, seller.ErrNotApproved
	}

	var prior []*order.Reservation
	if existing, ok := l.orders[o.SellerID]; ok {
		prior = existing.Reservations
	}

	cp := *o
	cp.PublishedAmount = o.PublishedAmount
	cp.AmountAvailable = o.PublishedAmount
	cp.Reservations = nil
	if cp.PublishedAt.IsZero() {
		cp.PublishedAt = time.Now().UTC()
	}
	if err := l.orderStore.SaveOrder(ctx, &cp); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	l.orders[cp.SellerID] = &cp
	displaced := l.rejectHoldsLocked(ctx, prior)
	l.logger.Info().
		Int64("seller", cp.SellerID).
		Str("amount", cp.PublishedAmount.String()).
		Str("rate", cp.Rate.String()).
		Int("displaced", len(displaced)).
		Msg("order published")
	return displaced, nil
}

// WithdrawOrder takes a seller's offer off the market. Active holds are
// displaced the same way a republish displaces them.
func (l *Ledger) WithdrawOrder(ctx context.Context, sellerID int64) ([]ReleasedHold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[sellerID]
	if !ok {
		return nil, order.ErrUnknownOrder
	}
	if err := l.orderStore.DeleteOrder(ctx, sellerID); err != nil {
		return nil, fmt.Errorf("delete order: %w", err)
	}
	delete(l.orders, sellerID)
	displaced := l.rejectHoldsLocked(ctx, o.Reservations)
	l.logger.Info().
		Int64("seller", sellerID).
		Int("displaced", len(displaced)).
		Msg("order withdrawn")
	return displaced, nil
}

// rejectHoldsLocked turns orphaned reservations into released holds,
// rejecting any buy request still pending on them. The holds themselves
// are already gone with the order record that carried them.
func (l *Ledger) rejectHoldsLocked(ctx context.Context, reservations []*order.Reservation) []ReleasedHold {
	released := make([]ReleasedHold, 0, len(reservations))
	for _, res := range reservations {
		hold := ReleasedHold{SellerID: res.SellerID, BuyerID: res.BuyerID, Amount: res.Amount}
		if r := l.requestForReservationLocked(res.ReservationID); r != nil && !r.Status.Terminal() {
			rejected, err := l.advanceRequestLocked(ctx, r.RequestID, request.StatusRejected)
			if err != nil {
				l.logger.Warn().Err(err).Str("request", r.RequestID.String()).Msg("could not reject displaced request")
			} else {
				hold.Request = rejected
			}
		}
		released = append(released, hold)
	}
	return released
}

// ListActiveOrders returns orders of approved sellers with remaining
// availability, oldest publication first. Order is stable for equal
// publish times by seller id.
func (l *Ledger) ListActiveOrders() []*order.Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	active := make([]*order.Order, 0, len(l.orders))
	for sid, o := range l.orders {
		p, ok := l.sellers[sid]
		if !ok || !p.Approved {
			continue
		}
		if !o.AmountAvailable.IsPositive() {
			continue
		}
		cp := *o
		active = append(active, &cp)
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].PublishedAt.Equal(active[j].PublishedAt) {
			return active[i].SellerID < active[j].SellerID
		}
		return active[i].PublishedAt.Before(active[j].PublishedAt)
	})
	return active
}

// GetOrder returns a copy of the seller's active order, or nil.
func (l *Ledger) GetOrder(sellerID int64) *order.Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.orders[sellerID]
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

// ReserveAmount places a provisional hold against the seller's order. The
// check and the decrement happen under one lock so concurrent buyers can
// never jointly overcommit the order.
func (l *Ledger) ReserveAmount(ctx context.Context, sellerID, buyerID int64, amount decimal.Decimal) (*order.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[sellerID]
	if !ok {
		return nil, order.ErrUnknownOrder
	}
	if !amount.IsPositive() || amount.GreaterThan(o.AmountAvailable) {
		return nil, order.ErrInsufficientLiquidity
	}

	res := &order.Reservation{
		ReservationID: uuid.New(),
		SellerID:      sellerID,
		BuyerID:       buyerID,
		Amount:        amount,
		CreatedAt:     time.Now().UTC(),
	}
	if l.reservationTTL > 0 {
		deadline := res.CreatedAt.Add(l.reservationTTL)
		res.ExpiresAt = &deadline
	}

	cp := cloneOrder(o)
	cp.AmountAvailable = cp.AmountAvailable.Sub(amount)
	cp.Reservations = append(cp.Reservations, res)
	if err := l.orderStore.SaveOrder(ctx, cp); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	l.orders[sellerID] = cp
	l.logger.Info().
		Int64("seller", sellerID).
		Int64("buyer", buyerID).
		Str("amount", amount.String()).
		Str("reservation", res.ReservationID.String()).
		Msg("amount reserved")
	rc := *res
	return &rc, nil
}

// CommitReservation settles a hold permanently: the reserved amount stays
// deducted from availability.
func (l *Ledger) CommitReservation(ctx context.Context, reservationID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settleReservationLocked(ctx, reservationID, false)
}

// ReleaseReservation drops a hold and returns its amount to availability.
func (l *Ledger) ReleaseReservation(ctx context.Context, reservationID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.settleReservationLocked(ctx, reservationID, true)
}

func (l *Ledger) settleReservationLocked(ctx context.Context, reservationID uuid.UUID, release bool) error {
	for sid, o := range l.orders {
		idx := -1
		for i, r := range o.Reservations {
			if r.ReservationID == reservationID {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		cp := cloneOrder(o)
		res := cp.Reservations[idx]
		cp.Reservations = append(cp.Reservations[:idx], cp.Reservations[idx+1:]...)
		if release {
			cp.AmountAvailable = cp.AmountAvailable.Add(res.Amount)
		}
		if err := l.orderStore.SaveOrder(ctx, cp); err != nil {
			return fmt.Errorf("persist order: %w", err)
		}
		l.orders[sid] = cp
		l.logger.Info().
			Int64("seller", sid).
			Str("reservation", reservationID.String()).
			Bool("released", release).
			Msg("reservation settled")
		return nil
	}
	return order.ErrUnknownReservation
}

// RecordBuyRequest persists a new buy request. The reservation it claims
// must still be live; a hold displaced by a republish or withdrawal in the
// meantime fails with order.ErrUnknownReservation.
func (l *Ledger) RecordBuyRequest(ctx context.Context, r *request.BuyRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.reservationLiveLocked(r.ReservationID) {
		return order.ErrUnknownReservation
	}

	cp := *r
	if cp.RequestID == uuid.Nil {
		cp.RequestID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	if err := l.requestStore.SaveRequest(ctx, &cp); err != nil {
		return fmt.Errorf("persist request: %w", err)
	}
	l.requests[cp.RequestID] = &cp
	r.RequestID = cp.RequestID
	r.CreatedAt = cp.CreatedAt
	l.logger.Info().
		Str("request", cp.RequestID.String()).
		Int64("buyer", cp.BuyerID).
		Int64("seller", cp.SellerID).
		Msg("buy request recorded")
	return nil
}

// AttachEvidence stores the payment proof reference on a pending request.
func (l *Ledger) AttachEvidence(ctx context.Context, requestID uuid.UUID, evidence string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.requests[requestID]
	if !ok {
		return request.ErrNotFound
	}
	if r.Status.Terminal() {
		return request.ErrAlreadyProcessed
	}

	cp := *r
	cp.Evidence = evidence
	if err := l.requestStore.SaveRequest(ctx, &cp); err != nil {
		return fmt.Errorf("persist request: %w", err)
	}
	l.requests[requestID] = &cp
	return nil
}

// GetBuyRequest returns a copy of the request, or nil.
func (l *Ledger) GetBuyRequest(requestID uuid.UUID) *request.BuyRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.requests[requestID]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

// PendingBuyRequests returns requests awaiting the admin, oldest first.
func (l *Ledger) PendingBuyRequests() []*request.BuyRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	pending := make([]*request.BuyRequest, 0)
	for _, r := range l.requests {
		if r.Status == request.StatusPendingAdmin {
			cp := *r
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending
}

// PendingSellers returns undecided registrations, oldest first.
func (l *Ledger) PendingSellers() []*seller.Profile {
	l.mu.Lock()
	defer l.mu.Unlock()
	pending := make([]*seller.Profile, 0)
	for _, p := range l.sellers {
		if !p.Decided {
			cp := *p
			pending = append(pending, &cp)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].RegisteredAt.Before(pending[j].RegisteredAt)
	})
	return pending
}

// AdvanceBuyRequestStatus moves a request strictly forward. Terminal
// requests fail with request.ErrAlreadyProcessed.
func (l *Ledger) AdvanceBuyRequestStatus(ctx context.Context, requestID uuid.UUID, status request.Status) (*request.BuyRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.advanceRequestLocked(ctx, requestID, status)
}

func (l *Ledger) advanceRequestLocked(ctx context.Context, requestID uuid.UUID, status request.Status) (*request.BuyRequest, error) {
	r, ok := l.requests[requestID]
	if !ok {
		return nil, request.ErrNotFound
	}
	if r.Status.Terminal() {
		return nil, request.ErrAlreadyProcessed
	}
	if !r.Status.CanAdvanceTo(status) {
		return nil, fmt.Errorf("invalid status transition %s -> %s", r.Status, status)
	}

	cp := *r
	cp.Status = status
	if status.Terminal() {
		now := time.Now().UTC()
		cp.DecidedAt = &now
	}
	if err := l.requestStore.SaveRequest(ctx, &cp); err != nil {
		return nil, fmt.Errorf("persist request: %w", err)
	}
	l.requests[requestID] = &cp
	result := cp
	return &result, nil
}

// SettleBuyRequest applies the admin decision atomically: status advance
// plus reservation commit (approve) or release (reject) under one lock.
// If the request record cannot be persisted after the order mutation, the
// prior order record is written back so no half-applied state survives.
func (l *Ledger) SettleBuyRequest(ctx context.Context, requestID uuid.UUID, approve bool) (*request.BuyRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.requests[requestID]
	if !ok {
		return nil, request.ErrNotFound
	}
	if r.Status.Terminal() {
		return nil, request.ErrAlreadyProcessed
	}

	prior := cloneOrder(l.orders[r.SellerID])
	if err := l.settleReservationLocked(ctx, r.ReservationID, !approve); err != nil {
		return nil, err
	}

	status := request.StatusApproved
	if !approve {
		status = request.StatusRejected
	}
	settled, err := l.advanceRequestLocked(ctx, requestID, status)
	if err != nil {
		if prior != nil {
			if restoreErr := l.orderStore.SaveOrder(ctx, prior); restoreErr == nil {
				l.orders[prior.SellerID] = prior
			}
		}
		return nil, err
	}
	return settled, nil
}

// ReleasedHold describes a reservation dropped outside the normal
// settle path: expired, or displaced by a republish or withdrawal.
type ReleasedHold struct {
	SellerID int64
	BuyerID  int64
	Amount   decimal.Decimal
	Request  *request.BuyRequest
}

// ReleaseExpired drops reservations past their deadline, rejecting any buy
// request still pending on them, and reports what was released so the
// holders can be notified.
func (l *Ledger) ReleaseExpired(ctx context.Context, now time.Time) []ReleasedHold {
	l.mu.Lock()
	defer l.mu.Unlock()

	released := make([]ReleasedHold, 0)
	for _, o := range l.orders {
		for _, res := range o.Reservations {
			if res.ExpiresAt == nil || res.ExpiresAt.After(now) {
				continue
			}
			hold := ReleasedHold{SellerID: res.SellerID, BuyerID: res.BuyerID, Amount: res.Amount}
			if err := l.settleReservationLocked(ctx, res.ReservationID, true); err != nil {
				l.logger.Warn().Err(err).Str("reservation", res.ReservationID.String()).Msg("expiry sweep could not release hold")
				continue
			}
			if r := l.requestForReservationLocked(res.ReservationID); r != nil && !r.Status.Terminal() {
				rejected, err := l.advanceRequestLocked(ctx, r.RequestID, request.StatusRejected)
				if err != nil {
					l.logger.Warn().Err(err).Str("request", r.RequestID.String()).Msg("expiry sweep could not reject request")
				} else {
					hold.Request = rejected
				}
			}
			released = append(released, hold)
		}
	}
	return released
}

func (l *Ledger) reservationLiveLocked(reservationID uuid.UUID) bool {
	if reservationID == uuid.Nil {
		return false
	}
	for _, o := range l.orders {
		for _, r := range o.Reservations {
			if r.ReservationID == reservationID {
				return true
			}
		}
	}
	return false
}

func (l *Ledger) requestForReservationLocked(reservationID uuid.UUID) *request.BuyRequest {
	for _, r := range l.requests {
		if r.ReservationID == reservationID {
			return r
		}
	}
	return nil
}

func cloneOrder(o *order.Order) *order.Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Reservations = make([]*order.Reservation, len(o.Reservations))
	for i, r := range o.Reservations {
		rc := *r
		cp.Reservations[i] = &rc
	}
	return &cp
}
