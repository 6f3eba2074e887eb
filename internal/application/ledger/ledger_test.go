package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otc-market/otc-market/internal/domain/order"
	"github.com/otc-market/otc-market/internal/domain/request"
	"github.com/otc-market/otc-market/internal/domain/seller"
	"github.com/otc-market/otc-market/internal/infrastructure/memstore"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	mem := memstore.New()
	return New(mem, mem, mem, 0, zerolog.Nop())
}

func registerApprovedSeller(t *testing.T, l *Ledger, sellerID int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, l.RegisterSeller(ctx, &seller.Profile{
		SellerID: sellerID,
		Name:     "Seller",
		Contact:  "+93700000000",
	}))
	_, applied, err := l.ApproveSeller(ctx, sellerID)
	require.NoError(t, err)
	require.True(t, applied)
}

func publishOrder(t *testing.T, l *Ledger, sellerID int64, amount int64) {
	t.Helper()
	_, err := l.PublishOrder(context.Background(), &order.Order{
		SellerID:        sellerID,
		PublishedAmount: decimal.NewFromInt(amount),
		Rate:            decimal.NewFromInt(70),
		Commission: order.CommissionPolicy{
			Type:  order.CommissionPercent,
			Value: decimal.NewFromInt(1),
		},
		PayoutAccount: "TRC20-wallet",
	})
	require.NoError(t, err)
}

func TestRegisterSellerDuplicate(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RegisterSeller(ctx, &seller.Profile{SellerID: 1}))
	err := l.RegisterSeller(ctx, &seller.Profile{SellerID: 1})
	assert.ErrorIs(t, err, seller.ErrDuplicateRegistration)

	// Still pending, so still a duplicate after approval too.
	_, _, err = l.ApproveSeller(ctx, 1)
	require.NoError(t, err)
	err = l.RegisterSeller(ctx, &seller.Profile{SellerID: 1})
	assert.ErrorIs(t, err, seller.ErrDuplicateRegistration)
}

func TestRejectedSellerMayReRegister(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.RegisterSeller(ctx, &seller.Profile{SellerID: 1}))
	_, applied, err := l.RejectSeller(ctx, 1)
	require.NoError(t, err)
	require.True(t, applied)

	assert.NoError(t, l.RegisterSeller(ctx, &seller.Profile{SellerID: 1}))
}

func TestSellerDecisionIdempotent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RegisterSeller(ctx, &seller.Profile{SellerID: 1}))

	p, applied, err := l.ApproveSeller(ctx, 1)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, p.Approved)

	// Second decision reports the prior outcome without re-applying.
	p, applied, err = l.RejectSeller(ctx, 1)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, p.Approved)
}

func TestPublishOrderRequiresApproval(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RegisterSeller(ctx, &seller.Profile{SellerID: 1}))

	_, err := l.PublishOrder(ctx, &order.Order{SellerID: 1, PublishedAmount: decimal.NewFromInt(100)})
	assert.ErrorIs(t, err, seller.ErrNotApproved)
}

func TestPublishReplacesPriorOrder(t *testing.T) {
	l := newTestLedger(t)
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 500)
	publishOrder(t, l, 1, 200)

	o := l.GetOrder(1)
	require.NotNil(t, o)
	assert.True(t, o.AmountAvailable.Equal(decimal.NewFromInt(200)))
	assert.Empty(t, o.Reservations)
}

func TestRepublishDisplacesPendingHolds(t *testing.T) {
	l := newTestLedger(t)
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 500)
	ctx := context.Background()

	res, err := l.ReserveAmount(ctx, 1, 9, decimal.NewFromInt(200))
	require.NoError(t, err)
	req := &request.BuyRequest{
		BuyerID: 9, SellerID: 1, ReservationID: res.ReservationID,
		Amount: decimal.NewFromInt(200), Status: request.StatusPendingAdmin,
	}
	require.NoError(t, l.RecordBuyRequest(ctx, req))

	displaced, err := l.PublishOrder(ctx, &order.Order{
		SellerID:        1,
		PublishedAmount: decimal.NewFromInt(400),
		Rate:            decimal.NewFromInt(70),
	})
	require.NoError(t, err)
	require.Len(t, displaced, 1)
	assert.Equal(t, int64(9), displaced[0].BuyerID)
	require.NotNil(t, displaced[0].Request)
	assert.Equal(t, request.StatusRejected, displaced[0].Request.Status)

	// The displaced request is terminal, not stranded.
	assert.Equal(t, request.StatusRejected, l.GetBuyRequest(req.RequestID).Status)
	_, err = l.SettleBuyRequest(ctx, req.RequestID, true)
	assert.ErrorIs(t, err, request.ErrAlreadyProcessed)

	o := l.GetOrder(1)
	assert.True(t, o.AmountAvailable.Equal(decimal.NewFromInt(400)))
	assert.Empty(t, o.Reservations)
}

func TestWithdrawOrder(t *testing.T) {
	l := newTestLedger(t)
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 500)
	ctx := context.Background()

	res, err := l.ReserveAmount(ctx, 1, 9, decimal.NewFromInt(200))
	require.NoError(t, err)
	req := &request.BuyRequest{
		BuyerID: 9, SellerID: 1, ReservationID: res.ReservationID,
		Amount: decimal.NewFromInt(200), Status: request.StatusPendingAdmin,
	}
	require.NoError(t, l.RecordBuyRequest(ctx, req))

	displaced, err := l.WithdrawOrder(ctx, 1)
	require.NoError(t, err)
	require.Len(t, displaced, 1)
	assert.Equal(t, request.StatusRejected, l.GetBuyRequest(req.RequestID).Status)

	assert.Nil(t, l.GetOrder(1))
	assert.Empty(t, l.ListActiveOrders())

	_, err = l.WithdrawOrder(ctx, 1)
	assert.ErrorIs(t, err, order.ErrUnknownOrder)
}

func TestRecordBuyRequestRequiresLiveReservation(t *testing.T) {
	l := newTestLedger(t)
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 500)
	ctx := context.Background()

	err := l.RecordBuyRequest(ctx, &request.BuyRequest{
		BuyerID: 9, SellerID: 1, ReservationID: uuid.New(),
		Amount: decimal.NewFromInt(200),
	})
	assert.ErrorIs(t, err, order.ErrUnknownReservation)
}

func TestListActiveOrdersFiltersAndSorts(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	registerApprovedSeller(t, l, 1)
	registerApprovedSeller(t, l, 2)
	require.NoError(t, l.RegisterSeller(ctx, &seller.Profile{SellerID: 3}))

	base := time.Now().UTC()
	_, err := l.PublishOrder(ctx, &order.Order{
		SellerID: 1, PublishedAmount: decimal.NewFromInt(100),
		Rate: decimal.NewFromInt(70), PublishedAt: base.Add(time.Second),
	})
	require.NoError(t, err)
	_, err = l.PublishOrder(ctx, &order.Order{
		SellerID: 2, PublishedAmount: decimal.NewFromInt(100),
		Rate: decimal.NewFromInt(70), PublishedAt: base,
	})
	require.NoError(t, err)

	active := l.ListActiveOrders()
	require.Len(t, active, 2)
	assert.Equal(t, int64(2), active[0].SellerID, "oldest publication first")
	assert.Equal(t, int64(1), active[1].SellerID)

	// Exhausted orders disappear from the listing.
	res, err := l.ReserveAmount(ctx, 2, 9, decimal.NewFromInt(100))
	require.NoError(t, err)
	require.NoError(t, l.CommitReservation(ctx, res.ReservationID))
	active = l.ListActiveOrders()
	require.Len(t, active, 1)
	assert.Equal(t, int64(1), active[0].SellerID)
}

func TestReserveAmountInsufficientLiquidity(t *testing.T) {
	l := newTestLedger(t)
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 500)

	// 600 against a 500-unit order fails before any hold is placed.
	_, err := l.ReserveAmount(context.Background(), 1, 9, decimal.NewFromInt(600))
	assert.ErrorIs(t, err, order.ErrInsufficientLiquidity)
}

func TestConcurrentReservationsNeverOvercommit(t *testing.T) {
	l := newTestLedger(t)
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 500)
	ctx := context.Background()

	// 300 and 250 against 500; exactly one succeeds.
	amounts := []int64{300, 250}
	errs := make([]error, len(amounts))
	var wg sync.WaitGroup
	for i, amt := range amounts {
		wg.Add(1)
		go func(i int, amt int64) {
			defer wg.Done()
			_, errs[i] = l.ReserveAmount(ctx, 1, int64(100+i), decimal.NewFromInt(amt))
		}(i, amt)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, order.ErrInsufficientLiquidity)
			failures++
		}
	}
	assert.Equal(t, 1, failures, "exactly one of the two reservations must fail")

	o := l.GetOrder(1)
	assert.True(t, o.AmountAvailable.Add(o.Reserved()).Equal(decimal.NewFromInt(500)),
		"available + reserved must equal the published amount")
}

func TestLiquidityInvariantUnderContention(t *testing.T) {
	l := newTestLedger(t)
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 100)
	ctx := context.Background()

	// 20 buyers each want 10 units of a 100-unit order: exactly 10 succeed.
	var wg sync.WaitGroup
	var successes int64
	var mu sync.Mutex
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(buyer int64) {
			defer wg.Done()
			if _, err := l.ReserveAmount(ctx, 1, buyer, decimal.NewFromInt(10)); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}(int64(i))
	}
	wg.Wait()

	assert.EqualValues(t, 10, successes)
	o := l.GetOrder(1)
	assert.True(t, o.AmountAvailable.IsZero())
	assert.True(t, o.Reserved().Equal(decimal.NewFromInt(100)))
}

func TestSettleBuyRequestApproveAndReject(t *testing.T) {
	l := newTestLedger(t)
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 500)
	ctx := context.Background()

	res, err := l.ReserveAmount(ctx, 1, 9, decimal.NewFromInt(200))
	require.NoError(t, err)
	req := &request.BuyRequest{
		BuyerID:       9,
		SellerID:      1,
		ReservationID: res.ReservationID,
		Amount:        decimal.NewFromInt(200),
		Status:        request.StatusAwaitingEvidence,
	}
	require.NoError(t, l.RecordBuyRequest(ctx, req))
	_, err = l.AdvanceBuyRequestStatus(ctx, req.RequestID, request.StatusPendingAdmin)
	require.NoError(t, err)

	settled, err := l.SettleBuyRequest(ctx, req.RequestID, true)
	require.NoError(t, err)
	assert.Equal(t, request.StatusApproved, settled.Status)
	require.NotNil(t, settled.DecidedAt)

	o := l.GetOrder(1)
	assert.True(t, o.AmountAvailable.Equal(decimal.NewFromInt(300)), "commit deducts permanently")
	assert.Empty(t, o.Reservations)

	// A rejected second request returns its hold.
	res2, err := l.ReserveAmount(ctx, 1, 10, decimal.NewFromInt(200))
	require.NoError(t, err)
	req2 := &request.BuyRequest{
		BuyerID: 10, SellerID: 1, ReservationID: res2.ReservationID,
		Amount: decimal.NewFromInt(200), Status: request.StatusPendingAdmin,
	}
	require.NoError(t, l.RecordBuyRequest(ctx, req2))

	settled2, err := l.SettleBuyRequest(ctx, req2.RequestID, false)
	require.NoError(t, err)
	assert.Equal(t, request.StatusRejected, settled2.Status)
	o = l.GetOrder(1)
	assert.True(t, o.AmountAvailable.Equal(decimal.NewFromInt(300)), "release restores availability")
}

func TestSettleBuyRequestTerminalRepeats(t *testing.T) {
	l := newTestLedger(t)
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 500)
	ctx := context.Background()

	res, err := l.ReserveAmount(ctx, 1, 9, decimal.NewFromInt(100))
	require.NoError(t, err)
	req := &request.BuyRequest{
		BuyerID: 9, SellerID: 1, ReservationID: res.ReservationID,
		Amount: decimal.NewFromInt(100), Status: request.StatusPendingAdmin,
	}
	require.NoError(t, l.RecordBuyRequest(ctx, req))

	_, err = l.SettleBuyRequest(ctx, req.RequestID, true)
	require.NoError(t, err)

	_, err = l.SettleBuyRequest(ctx, req.RequestID, true)
	assert.ErrorIs(t, err, request.ErrAlreadyProcessed)
	_, err = l.SettleBuyRequest(ctx, req.RequestID, false)
	assert.ErrorIs(t, err, request.ErrAlreadyProcessed)

	o := l.GetOrder(1)
	assert.True(t, o.AmountAvailable.Equal(decimal.NewFromInt(400)), "repeat decisions change nothing")
}

type failingOrderStore struct {
	order.Store
	fail bool
}

func (f *failingOrderStore) SaveOrder(ctx context.Context, o *order.Order) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.SaveOrder(ctx, o)
}

func TestPersistenceFailureLeavesStateUntouched(t *testing.T) {
	mem := memstore.New()
	failing := &failingOrderStore{Store: mem}
	l := New(mem, failing, mem, 0, zerolog.Nop())
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 500)
	ctx := context.Background()

	failing.fail = true
	_, err := l.ReserveAmount(ctx, 1, 9, decimal.NewFromInt(200))
	require.Error(t, err)
	assert.NotErrorIs(t, err, order.ErrInsufficientLiquidity)

	failing.fail = false
	o := l.GetOrder(1)
	assert.True(t, o.AmountAvailable.Equal(decimal.NewFromInt(500)), "failed mutation must not apply")
	assert.Empty(t, o.Reservations)
}

func TestReleaseExpired(t *testing.T) {
	mem := memstore.New()
	l := New(mem, mem, mem, time.Minute, zerolog.Nop())
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 500)
	ctx := context.Background()

	res, err := l.ReserveAmount(ctx, 1, 9, decimal.NewFromInt(200))
	require.NoError(t, err)
	require.NotNil(t, res.ExpiresAt)
	req := &request.BuyRequest{
		BuyerID: 9, SellerID: 1, ReservationID: res.ReservationID,
		Amount: decimal.NewFromInt(200), Status: request.StatusAwaitingEvidence,
	}
	require.NoError(t, l.RecordBuyRequest(ctx, req))

	// Before the deadline nothing happens.
	released := l.ReleaseExpired(ctx, time.Now().UTC())
	assert.Empty(t, released)

	released = l.ReleaseExpired(ctx, time.Now().UTC().Add(2*time.Minute))
	require.Len(t, released, 1)
	assert.Equal(t, int64(9), released[0].BuyerID)
	require.NotNil(t, released[0].Request)
	assert.Equal(t, request.StatusRejected, released[0].Request.Status)

	o := l.GetOrder(1)
	assert.True(t, o.AmountAvailable.Equal(decimal.NewFromInt(500)))
	assert.Empty(t, o.Reservations)
}

func TestLoadRestoresState(t *testing.T) {
	mem := memstore.New()
	l := New(mem, mem, mem, 0, zerolog.Nop())
	registerApprovedSeller(t, l, 1)
	publishOrder(t, l, 1, 500)
	ctx := context.Background()
	res, err := l.ReserveAmount(ctx, 1, 9, decimal.NewFromInt(200))
	require.NoError(t, err)

	// A fresh ledger over the same stores sees the same state.
	restarted := New(mem, mem, mem, 0, zerolog.Nop())
	require.NoError(t, restarted.Load(ctx))

	o := restarted.GetOrder(1)
	require.NotNil(t, o)
	assert.True(t, o.AmountAvailable.Equal(decimal.NewFromInt(300)))
	require.Len(t, o.Reservations, 1)
	assert.Equal(t, res.ReservationID, o.Reservations[0].ReservationID)
	require.NotNil(t, restarted.GetSeller(1))

	require.NoError(t, restarted.ReleaseReservation(ctx, res.ReservationID))
	assert.True(t, restarted.GetOrder(1).AmountAvailable.Equal(decimal.NewFromInt(500)))
}

func TestReleaseUnknownReservation(t *testing.T) {
	l := newTestLedger(t)
	err := l.ReleaseReservation(context.Background(), uuid.New())
	assert.ErrorIs(t, err, order.ErrUnknownReservation)
}
