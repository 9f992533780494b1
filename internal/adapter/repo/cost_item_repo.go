package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// CostItemRepositoryPG implements domain.CostItemRepository.
type CostItemRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewCostItemRepository creates a cost line item repository backed by
// PostgreSQL.
func NewCostItemRepository(pool *pgxpool.Pool) *CostItemRepositoryPG {
	return &CostItemRepositoryPG{pool: pool}
}

// Add inserts one line item. Items are append-only.
func (r *CostItemRepositoryPG) Add(ctx context.Context, item *domain.RequestCostItem) error {
	query := `
INSERT INTO request_cost_items (id, request_id, stage, provider, model, input_tokens, output_tokens, total_tokens, image_count, cost_usd)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err := r.pool.Exec(ctx, query,
		item.ID,
		item.RequestID,
		item.Stage,
		item.Provider,
		item.Model,
		item.InputTokens,
		item.OutputTokens,
		item.TotalTokens,
		item.ImageCount,
		item.CostUSD,
	)
	return err
}

// ListByRequest returns a request's line items in execution order.
func (r *CostItemRepositoryPG) ListByRequest(ctx context.Context, requestID string) ([]domain.RequestCostItem, error) {
	query := `
SELECT id, request_id, stage, provider, model, input_tokens, output_tokens, total_tokens, image_count, cost_usd, created_at
FROM request_cost_items
WHERE request_id = $1
ORDER BY created_at ASC;
`
	rows, err := r.pool.Query(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RequestCostItem
	for rows.Next() {
		var item domain.RequestCostItem
		if err := rows.Scan(
			&item.ID,
			&item.RequestID,
			&item.Stage,
			&item.Provider,
			&item.Model,
			&item.InputTokens,
			&item.OutputTokens,
			&item.TotalTokens,
			&item.ImageCount,
			&item.CostUSD,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

var _ domain.CostItemRepository = (*CostItemRepositoryPG)(nil)
