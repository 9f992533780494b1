// Package pipeline drives one generation request through its three stages:
// VISION extracts the attributes that must not change, CONCEPT plans the
// studio shot, IMAGE_EDIT re-renders the upload. Stages run strictly in
// order; each one writes its own cost line item as soon as it completes.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"server/internal/catalog"
	"server/internal/domain"
	"server/internal/engine"
	"server/internal/pricing"
)

// EngineSource hands out vendor engines and answers credential presence.
// Satisfied by engine.Registry; faked in tests.
type EngineSource interface {
	Engine(vendor string) (engine.Engine, error)
	HasCredential(vendor string) bool
}

// Request is one inbound generation request after multipart parsing.
type Request struct {
	Title   string
	Concept string
	Image   []byte
	MIME    string
	Config  catalog.EngineConfig
}

// Result is returned to the caller on full pipeline success.
type Result struct {
	ConceptUsed string
	ImageBase64 string
}

type Service struct {
	logs    domain.RequestLogRepository
	costs   domain.CostItemRepository
	engines EngineSource
	logger  zerolog.Logger
}

func NewService(logs domain.RequestLogRepository, costs domain.CostItemRepository, engines EngineSource, logger zerolog.Logger) *Service {
	return &Service{
		logs:    logs,
		costs:   costs,
		engines: engines,
		logger:  logger,
	}
}

// Fallback engines for the vision stage when the configured text pair cannot
// read images, tried in this fixed order.
var visionFallbackOrder = []string{catalog.ProviderOpenAI, catalog.ProviderGemini}

// Image-edit cost is pinned to the cheapest tier so repeated runs price
// identically.
const imageEditQuality = "low"

// Run executes the full pipeline. The log row is created before any other
// work and updated exactly once at the end; cost line items written before a
// failure stay behind as the audit trail of work that actually ran.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	cfg := catalog.Normalize(req.Config)
	logRow := &domain.RequestLog{
		ID:            uuid.NewString(),
		Title:         req.Title,
		UserConcept:   req.Concept,
		TextProvider:  cfg.TextProvider,
		TextModel:     cfg.TextModel,
		ImageProvider: cfg.ImageProvider,
		ImageModel:    cfg.ImageModel,
	}
	if err := s.logs.Create(ctx, logRow); err != nil {
		return nil, fmt.Errorf("create request log: %w", err)
	}
	res, totalCost, err := s.execute(ctx, logRow.ID, cfg, req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		if failErr := s.logs.Fail(ctx, logRow.ID, err.Error(), latency); failErr != nil {
			s.logger.Error().Err(failErr).Str("request_id", logRow.ID).Msg("pipeline: failed to record failure")
		}
		return nil, err
	}
	if doneErr := s.logs.Complete(ctx, logRow.ID, res.ConceptUsed, totalCost, latency); doneErr != nil {
		s.logger.Error().Err(doneErr).Str("request_id", logRow.ID).Msg("pipeline: failed to record completion")
	}
	s.logger.Info().
		Str("request_id", logRow.ID).
		Float64("cost_usd", totalCost).
		Int64("latency_ms", latency).
		Msg("pipeline: request complete")
	return res, nil
}

func (s *Service) execute(ctx context.Context, logID string, cfg catalog.EngineConfig, req Request) (*Result, float64, error) {
	// Unreachable through the HTTP handler (Normalize rewrites the pair),
	// but direct callers get a proper validation error instead of a vendor
	// call that can only fail.
	imageOpt, ok := catalog.Find(cfg.ImageProvider, catalog.KindImage, cfg.ImageModel)
	if !ok || !imageOpt.ImageOutput {
		return nil, 0, domain.NewValidationError(fmt.Sprintf("provider %q cannot generate images", cfg.ImageProvider))
	}

	textVendor := catalog.APIVendor(cfg.TextProvider)
	imageVendor := catalog.APIVendor(cfg.ImageProvider)
	for _, vendor := range []string{textVendor, imageVendor} {
		if !s.engines.HasCredential(vendor) {
			return nil, 0, fmt.Errorf("missing API credential for %s", vendor)
		}
	}

	visionProvider, visionModel, err := s.chooseVisionEngine(cfg)
	if err != nil {
		return nil, 0, err
	}

	var totalCost float64

	attrs, cost, err := s.runVision(ctx, logID, visionProvider, visionModel, req)
	if err != nil {
		return nil, 0, err
	}
	totalCost += cost

	slots, cost, err := s.runConcept(ctx, logID, cfg, req, attrs)
	if err != nil {
		return nil, totalCost, err
	}
	totalCost += cost

	imageB64, cost, err := s.runImageEdit(ctx, logID, cfg, req, attrs, slots)
	if err != nil {
		return nil, totalCost, err
	}
	totalCost += cost

	conceptUsed := coalesce(slots.Summary, req.Concept, defaultConceptPhrase)
	return &Result{ConceptUsed: conceptUsed, ImageBase64: imageB64}, totalCost, nil
}

// chooseVisionEngine returns the provider/model pair serving the vision
// stage. When the configured text pair cannot read images it walks the fixed
// fallback order and takes the first vendor with a credential.
func (s *Service) chooseVisionEngine(cfg catalog.EngineConfig) (string, string, error) {
	if catalog.SupportsImageInput(cfg.TextProvider, cfg.TextModel) {
		return cfg.TextProvider, cfg.TextModel, nil
	}
	for _, provider := range visionFallbackOrder {
		model, ok := catalog.VisionModelFor(provider)
		if !ok {
			continue
		}
		if s.engines.HasCredential(catalog.APIVendor(provider)) {
			return provider, model, nil
		}
	}
	return "", "", fmt.Errorf("text model %s/%s cannot read images and no vision-capable credential is configured", cfg.TextProvider, cfg.TextModel)
}

func (s *Service) runVision(ctx context.Context, logID, provider, model string, req Request) (VisionAttributes, float64, error) {
	vendor := catalog.APIVendor(provider)
	eng, err := s.engines.Engine(vendor)
	if err != nil {
		return VisionAttributes{}, 0, err
	}
	apiModel := catalog.ResolveAPIModel(provider, catalog.KindText, model)
	res, err := eng.GenerateText(ctx, engine.TextRequest{
		Model:  apiModel,
		Prompt: buildVisionPrompt(req.Title),
		Image:  req.Image,
		MIME:   req.MIME,
	})
	if err != nil {
		return VisionAttributes{}, 0, fmt.Errorf("vision stage: %w", err)
	}
	cost := pricing.TextCostUSD(vendor, apiModel, res.Usage)
	s.addCostItem(ctx, logID, domain.StageVision, provider, apiModel, res.Usage, 0, cost)
	attrs, parseErr := parseStagePayload[VisionAttributes](res.Text)
	if parseErr != nil {
		s.logger.Warn().Err(parseErr).Str("request_id", logID).Msg("pipeline: vision output was not valid JSON, using defaults")
		return defaultVisionAttributes(res.Text), cost, nil
	}
	if attrs.ImmutableElements == nil {
		attrs.ImmutableElements = []string{}
	}
	if attrs.DistinguishingFeatures == nil {
		attrs.DistinguishingFeatures = []string{}
	}
	return attrs, cost, nil
}

func (s *Service) runConcept(ctx context.Context, logID string, cfg catalog.EngineConfig, req Request, attrs VisionAttributes) (ConceptSlots, float64, error) {
	vendor := catalog.APIVendor(cfg.TextProvider)
	eng, err := s.engines.Engine(vendor)
	if err != nil {
		return ConceptSlots{}, 0, err
	}
	apiModel := catalog.ResolveAPIModel(cfg.TextProvider, catalog.KindText, cfg.TextModel)
	res, err := eng.GenerateText(ctx, engine.TextRequest{
		Model:  apiModel,
		Prompt: buildConceptPrompt(req.Title, attrs, req.Concept),
	})
	if err != nil {
		return ConceptSlots{}, 0, fmt.Errorf("concept stage: %w", err)
	}
	cost := pricing.TextCostUSD(vendor, apiModel, res.Usage)
	s.addCostItem(ctx, logID, domain.StageConcept, cfg.TextProvider, apiModel, res.Usage, 0, cost)
	slots, parseErr := parseStagePayload[ConceptSlots](res.Text)
	if parseErr != nil {
		s.logger.Warn().Err(parseErr).Str("request_id", logID).Msg("pipeline: concept output was not valid JSON, using defaults")
		return defaultConceptSlots(req.Concept), cost, nil
	}
	return slots, cost, nil
}

func (s *Service) runImageEdit(ctx context.Context, logID string, cfg catalog.EngineConfig, req Request, attrs VisionAttributes, slots ConceptSlots) (string, float64, error) {
	vendor := catalog.APIVendor(cfg.ImageProvider)
	eng, err := s.engines.Engine(vendor)
	if err != nil {
		return "", 0, err
	}
	apiModel := catalog.ResolveAPIModel(cfg.ImageProvider, catalog.KindImage, cfg.ImageModel)
	res, err := eng.EditImage(ctx, engine.ImageEditRequest{
		Model:  apiModel,
		Prompt: buildImageEditPrompt(req.Title, attrs, slots),
		Image:  req.Image,
		MIME:   req.MIME,
	})
	if err != nil {
		return "", 0, fmt.Errorf("image edit stage: %w", err)
	}
	cost := pricing.ImageCostUSD(pricing.ImageCostParams{
		Vendor:     vendor,
		APIModel:   apiModel,
		ImageCount: 1,
		Quality:    imageEditQuality,
		Usage:      res.Usage,
	})
	s.addCostItem(ctx, logID, domain.StageImageEdit, cfg.ImageProvider, apiModel, res.Usage, 1, cost)
	return res.ImageBase64, cost, nil
}

// addCostItem persists one line item. A storage failure here must not sink a
// request the vendors already did the work for, so it only logs.
func (s *Service) addCostItem(ctx context.Context, logID string, stage domain.Stage, provider, model string, usage engine.TokenUsage, imageCount int, cost float64) {
	item := &domain.RequestCostItem{
		ID:           uuid.NewString(),
		RequestID:    logID,
		Stage:        stage,
		Provider:     provider,
		Model:        model,
		InputTokens:  usage.Input,
		OutputTokens: usage.Output,
		TotalTokens:  usage.Total,
		ImageCount:   imageCount,
		CostUSD:      cost,
	}
	if cost == 0 && (usage.Total > 0 || imageCount > 0) {
		s.logger.Warn().Str("provider", provider).Str("model", model).Msg("pipeline: no price configured, recording zero cost")
	}
	if err := s.costs.Add(ctx, item); err != nil {
		s.logger.Error().Err(err).Str("request_id", logID).Str("stage", string(stage)).Msg("pipeline: failed to persist cost line item")
	}
}
