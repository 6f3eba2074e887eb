package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/otc-market/otc-market/internal/domain/order"
	"github.com/otc-market/otc-market/internal/domain/request"
	"github.com/otc-market/otc-market/internal/domain/seller"
)

// Store is an in-memory persistence adapter. It backs tests and local runs
// where no database is configured; records survive only for the process
// lifetime.
type Store struct {
	mu       sync.RWMutex
	sellers  map[int64]seller.Profile
	orders   map[int64]order.Order
	requests map[uuid.UUID]request.BuyRequest
}

func New() *Store {
	return &Store{
		sellers:  make(map[int64]seller.Profile),
		orders:   make(map[int64]order.Order),
		requests: make(map[uuid.UUID]request.BuyRequest),
	}
}

func (s *Store) SaveProfile(_ context.Context, p *seller.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sellers[p.SellerID] = *p
	return nil
}

func (s *Store) LoadProfiles(_ context.Context) ([]*seller.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*seller.Profile, 0, len(s.sellers))
	for _, p := range s.sellers {
		cp := p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) SaveOrder(_ context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	cp.Reservations = make([]*order.Reservation, len(o.Reservations))
	for i, r := range o.Reservations {
		rc := *r
		cp.Reservations[i] = &rc
	}
	s.orders[o.SellerID] = cp
	return nil
}

func (s *Store) DeleteOrder(_ context.Context, sellerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, sellerID)
	return nil
}

func (s *Store) LoadOrders(_ context.Context) ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		cp := o
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) SaveRequest(_ context.Context, r *request.BuyRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.RequestID] = *r
	return nil
}

func (s *Store) LoadRequests(_ context.Context) ([]*request.BuyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*request.BuyRequest, 0, len(s.requests))
	for _, r := range s.requests {
		cp := r
		out = append(out, &cp)
	}
	return out, nil
}
