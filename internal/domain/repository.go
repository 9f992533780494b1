package domain

import "context"

// RequestLogRepository defines persistence for request log rows.
type RequestLogRepository interface {
	Create(ctx context.Context, log *RequestLog) error
	Complete(ctx context.Context, id, conceptUsed string, totalCostUSD float64, latencyMS int64) error
	Fail(ctx context.Context, id, errMsg string, latencyMS int64) error
	GetByID(ctx context.Context, id string) (*RequestLog, error)
	ListRecent(ctx context.Context, limit int) ([]RequestLog, error)
}

// CostItemRepository handles persistence for per-stage cost line items.
type CostItemRepository interface {
	Add(ctx context.Context, item *RequestCostItem) error
	ListByRequest(ctx context.Context, requestID string) ([]RequestCostItem, error)
}
