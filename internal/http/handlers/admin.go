package handlers

import (
	"net/http"
	"strconv"
	"time"

	"server/internal/domain"
)

type adminCostItem struct {
	Stage        string  `json:"stage"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	ImageCount   int     `json:"image_count"`
	CostUSD      float64 `json:"cost_usd"`
}

type adminRequest struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	UserConcept   string          `json:"user_concept,omitempty"`
	ConceptUsed   string          `json:"concept_used,omitempty"`
	TextProvider  string          `json:"text_provider"`
	TextModel     string          `json:"text_model"`
	ImageProvider string          `json:"image_provider"`
	ImageModel    string          `json:"image_model"`
	Success       bool            `json:"success"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	TotalCostUSD  float64         `json:"total_cost_usd"`
	LatencyMS     int64           `json:"latency_ms"`
	CreatedAt     time.Time       `json:"created_at"`
	CostItems     []adminCostItem `json:"cost_items"`
}

// AdminRequests lists recent generation requests with their per-stage cost
// line items for the admin dashboard.
func (a *App) AdminRequests(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	logs, err := a.Logs.ListRecent(r.Context(), limit)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: failed to list request logs")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load request logs")
		return
	}
	items := make([]adminRequest, 0, len(logs))
	for _, log := range logs {
		items = append(items, a.adminView(r, log))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) adminView(r *http.Request, log domain.RequestLog) adminRequest {
	view := adminRequest{
		ID:            log.ID,
		Title:         log.Title,
		UserConcept:   log.UserConcept,
		ConceptUsed:   log.ConceptUsed,
		TextProvider:  log.TextProvider,
		TextModel:     log.TextModel,
		ImageProvider: log.ImageProvider,
		ImageModel:    log.ImageModel,
		Success:       log.Success,
		ErrorMessage:  log.ErrorMessage,
		TotalCostUSD:  log.TotalCostUSD,
		LatencyMS:     log.LatencyMS,
		CreatedAt:     log.CreatedAt,
		CostItems:     []adminCostItem{},
	}
	costItems, err := a.Costs.ListByRequest(r.Context(), log.ID)
	if err != nil {
		a.Logger.Error().Err(err).Str("request_id", log.ID).Msg("handlers: failed to load cost items")
		return view
	}
	for _, item := range costItems {
		view.CostItems = append(view.CostItems, adminCostItem{
			Stage:        string(item.Stage),
			Provider:     item.Provider,
			Model:        item.Model,
			InputTokens:  item.InputTokens,
			OutputTokens: item.OutputTokens,
			TotalTokens:  item.TotalTokens,
			ImageCount:   item.ImageCount,
			CostUSD:      item.CostUSD,
		})
	}
	return view
}
