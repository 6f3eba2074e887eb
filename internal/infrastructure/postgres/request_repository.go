package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/otc-market/otc-market/internal/domain/request"
)

// RequestRepository implements request.Store.
type RequestRepository struct {
	pool *pgxpool.Pool
}

func NewRequestRepository(pool *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{pool: pool}
}

func (r *RequestRepository) SaveRequest(ctx context.Context, br *request.BuyRequest) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO buy_requests
		(request_id, buyer_id, seller_id, reservation_id, amount, commission, total,
		 total_settlement, payout_address, evidence, status, created_at, decided_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (request_id) DO UPDATE SET
			amount=$5, commission=$6, total=$7, total_settlement=$8,
			payout_address=$9, evidence=$10, status=$11, decided_at=$13
	`, br.RequestID, br.BuyerID, br.SellerID, br.ReservationID, br.Amount, br.Commission, br.Total,
		br.TotalSettlement, br.PayoutAddress, br.Evidence, string(br.Status), br.CreatedAt, br.DecidedAt)
	return err
}

func (r *RequestRepository) LoadRequests(ctx context.Context) ([]*request.BuyRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT request_id, buyer_id, seller_id, reservation_id, amount, commission, total,
		       total_settlement, payout_address, evidence, status, created_at, decided_at
		FROM buy_requests
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]*request.BuyRequest, 0)
	for rows.Next() {
		var (
			br     request.BuyRequest
			status string
		)
		if err := rows.Scan(&br.RequestID, &br.BuyerID, &br.SellerID, &br.ReservationID,
			&br.Amount, &br.Commission, &br.Total, &br.TotalSettlement,
			&br.PayoutAddress, &br.Evidence, &status, &br.CreatedAt, &br.DecidedAt); err != nil {
			return nil, err
		}
		br.Status = request.Status(status)
		requests = append(requests, &br)
	}
	return requests, rows.Err()
}
