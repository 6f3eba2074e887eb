package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/otc-market/otc-market/internal/domain/order"
)

// OrderRepository implements order.Store. Reservations travel with their
// order as jsonb so a snapshot load restores holds exactly.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) SaveOrder(ctx context.Context, o *order.Order) error {
	reservations, err := json.Marshal(o.Reservations)
	if err != nil {
		return err
	}
	policy, err := json.Marshal(o.Commission)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders
		(seller_id, published_amount, amount_available, rate, commission, payout_account, published_at, reservations)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (seller_id) DO UPDATE SET
			published_amount=$2, amount_available=$3, rate=$4, commission=$5,
			payout_account=$6, published_at=$7, reservations=$8
	`, o.SellerID, o.PublishedAmount, o.AmountAvailable, o.Rate, policy, o.PayoutAccount, o.PublishedAt, reservations)
	return err
}

func (r *OrderRepository) DeleteOrder(ctx context.Context, sellerID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE seller_id=$1`, sellerID)
	return err
}

func (r *OrderRepository) LoadOrders(ctx context.Context) ([]*order.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seller_id, published_amount, amount_available, rate, commission, payout_account, published_at, reservations
		FROM orders
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*order.Order, 0)
	for rows.Next() {
		var (
			o            order.Order
			published    decimal.Decimal
			available    decimal.Decimal
			rate         decimal.Decimal
			policy       []byte
			reservations []byte
		)
		if err := rows.Scan(&o.SellerID, &published, &available, &rate, &policy, &o.PayoutAccount, &o.PublishedAt, &reservations); err != nil {
			return nil, err
		}
		o.PublishedAmount = published
		o.AmountAvailable = available
		o.Rate = rate
		if err := json.Unmarshal(policy, &o.Commission); err != nil {
			return nil, err
		}
		if len(reservations) > 0 {
			if err := json.Unmarshal(reservations, &o.Reservations); err != nil {
				return nil, err
			}
		}
		orders = append(orders, &o)
	}
	return orders, rows.Err()
}
