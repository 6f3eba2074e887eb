package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otc-market/otc-market/internal/domain/seller"
)

// SellerRepository implements seller.Store.
type SellerRepository struct {
	pool *pgxpool.Pool
}

func NewSellerRepository(pool *pgxpool.Pool) *SellerRepository {
	return &SellerRepository{pool: pool}
}

func (r *SellerRepository) SaveProfile(ctx context.Context, p *seller.Profile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sellers
		(seller_id, name, contact, payout_account, approved, decided, lang, registered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (seller_id) DO UPDATE SET
			name=$2, contact=$3, payout_account=$4, approved=$5, decided=$6, lang=$7, registered_at=$8
	`, p.SellerID, p.Name, p.Contact, p.PayoutAccount, p.Approved, p.Decided, p.Lang, p.RegisteredAt)
	return err
}

func (r *SellerRepository) LoadProfiles(ctx context.Context) ([]*seller.Profile, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT seller_id, name, contact, payout_account, approved, decided, lang, registered_at
		FROM sellers
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := make([]*seller.Profile, 0)
	for rows.Next() {
		var p seller.Profile
		if err := rows.Scan(&p.SellerID, &p.Name, &p.Contact, &p.PayoutAccount, &p.Approved, &p.Decided, &p.Lang, &p.RegisteredAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}
