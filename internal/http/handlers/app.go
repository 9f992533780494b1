package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/pipeline"
)

// GenerateRunner is the pipeline surface the handlers depend on; tests
// substitute a fake.
type GenerateRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// App wires shared dependencies into the handler set.
type App struct {
	Config   *infra.Config
	Logger   zerolog.Logger
	Pipeline GenerateRunner
	Logs     domain.RequestLogRepository
	Costs    domain.CostItemRepository
}

func NewApp(cfg *infra.Config, logger zerolog.Logger, pipe GenerateRunner, logs domain.RequestLogRepository, costs domain.CostItemRepository) *App {
	return &App{
		Config:   cfg,
		Logger:   logger,
		Pipeline: pipe,
		Logs:     logs,
		Costs:    costs,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": message, "code": kind})
}
