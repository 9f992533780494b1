package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// RequestLogRepositoryPG implements domain.RequestLogRepository.
type RequestLogRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRequestLogRepository creates a request log repository backed by
// PostgreSQL.
func NewRequestLogRepository(pool *pgxpool.Pool) *RequestLogRepositoryPG {
	return &RequestLogRepositoryPG{pool: pool}
}

// Create inserts the initial log row. Success, cost and latency start at
// their zero values and are written once by Complete or Fail.
func (r *RequestLogRepositoryPG) Create(ctx context.Context, log *domain.RequestLog) error {
	query := `
INSERT INTO request_logs (id, title, user_concept, concept_used, text_provider, text_model, image_provider, image_model, success, error_message, total_cost_usd, latency_ms)
VALUES ($1, $2, $3, '', $4, $5, $6, $7, FALSE, '', 0, 0);
`
	_, err := r.pool.Exec(ctx, query,
		log.ID,
		log.Title,
		log.UserConcept,
		log.TextProvider,
		log.TextModel,
		log.ImageProvider,
		log.ImageModel,
	)
	return err
}

// Complete records the success outcome.
func (r *RequestLogRepositoryPG) Complete(ctx context.Context, id, conceptUsed string, totalCostUSD float64, latencyMS int64) error {
	query := `
UPDATE request_logs
SET success = TRUE,
    concept_used = $2,
    error_message = '',
    total_cost_usd = $3,
    latency_ms = $4
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, id, conceptUsed, totalCostUSD, latencyMS)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Fail records a terminal failure.
func (r *RequestLogRepositoryPG) Fail(ctx context.Context, id, errMsg string, latencyMS int64) error {
	query := `
UPDATE request_logs
SET success = FALSE,
    error_message = $2,
    latency_ms = $3
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, id, errMsg, latencyMS)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID fetches one log row.
func (r *RequestLogRepositoryPG) GetByID(ctx context.Context, id string) (*domain.RequestLog, error) {
	query := `
SELECT id, title, user_concept, concept_used, text_provider, text_model, image_provider, image_model, success, error_message, total_cost_usd, latency_ms, created_at
FROM request_logs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, id)
	log, err := scanRequestLog(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return log, nil
}

// ListRecent returns the newest rows for the admin view.
func (r *RequestLogRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.RequestLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT id, title, user_concept, concept_used, text_provider, text_model, image_provider, image_model, success, error_message, total_cost_usd, latency_ms, created_at
FROM request_logs
ORDER BY created_at DESC
LIMIT $1;
`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.RequestLog
	for rows.Next() {
		log, err := scanRequestLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *log)
	}
	return out, rows.Err()
}

func scanRequestLog(row pgx.Row) (*domain.RequestLog, error) {
	var log domain.RequestLog
	if err := row.Scan(
		&log.ID,
		&log.Title,
		&log.UserConcept,
		&log.ConceptUsed,
		&log.TextProvider,
		&log.TextModel,
		&log.ImageProvider,
		&log.ImageModel,
		&log.Success,
		&log.ErrorMessage,
		&log.TotalCostUSD,
		&log.LatencyMS,
		&log.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &log, nil
}

var _ domain.RequestLogRepository = (*RequestLogRepositoryPG)(nil)
