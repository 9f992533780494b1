package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"server/internal/catalog"
	"server/internal/domain"
	"server/internal/engine"
)

type memLogs struct {
	mu   sync.Mutex
	rows map[string]*domain.RequestLog
}

func newMemLogs() *memLogs {
	return &memLogs{rows: make(map[string]*domain.RequestLog)}
}

func (m *memLogs) Create(ctx context.Context, log *domain.RequestLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *log
	m.rows[log.ID] = &cp
	return nil
}

func (m *memLogs) Complete(ctx context.Context, id, conceptUsed string, totalCostUSD float64, latencyMS int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.ConceptUsed = conceptUsed
	row.Success = true
	row.ErrorMessage = ""
	row.TotalCostUSD = totalCostUSD
	row.LatencyMS = latencyMS
	return nil
}

func (m *memLogs) Fail(ctx context.Context, id, errMsg string, latencyMS int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	row.Success = false
	row.ErrorMessage = errMsg
	row.LatencyMS = latencyMS
	return nil
}

func (m *memLogs) GetByID(ctx context.Context, id string) (*domain.RequestLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memLogs) ListRecent(ctx context.Context, limit int) ([]domain.RequestLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RequestLog
	for _, row := range m.rows {
		out = append(out, *row)
	}
	return out, nil
}

func (m *memLogs) single(t *testing.T) *domain.RequestLog {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) != 1 {
		t.Fatalf("want exactly 1 log row, have %d", len(m.rows))
	}
	for _, row := range m.rows {
		cp := *row
		return &cp
	}
	return nil
}

type memCosts struct {
	mu    sync.Mutex
	items []domain.RequestCostItem
}

func (m *memCosts) Add(ctx context.Context, item *domain.RequestCostItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, *item)
	return nil
}

func (m *memCosts) ListByRequest(ctx context.Context, requestID string) ([]domain.RequestCostItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RequestCostItem
	for _, item := range m.items {
		if item.RequestID == requestID {
			out = append(out, item)
		}
	}
	return out, nil
}

// fakeEngine scripts per-call responses keyed by call order.
type fakeEngine struct {
	vendor    string
	mu        sync.Mutex
	textCalls int
	texts     []string
	textErr   error
	usage     engine.TokenUsage
	imageB64  string
	imageErr  error
	editCalls int
}

func (f *fakeEngine) Vendor() string {
	return f.vendor
}

func (f *fakeEngine) GenerateText(ctx context.Context, req engine.TextRequest) (*engine.TextResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return nil, f.textErr
	}
	if f.textCalls >= len(f.texts) {
		return nil, fmt.Errorf("unexpected text call %d", f.textCalls)
	}
	text := f.texts[f.textCalls]
	f.textCalls++
	return &engine.TextResult{Text: text, Usage: f.usage}, nil
}

func (f *fakeEngine) EditImage(ctx context.Context, req engine.ImageEditRequest) (*engine.ImageEditResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.editCalls++
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return &engine.ImageEditResult{ImageBase64: f.imageB64, Usage: f.usage}, nil
}

type fakeSource struct {
	engines     map[string]*fakeEngine
	credentials map[string]bool
}

func (f *fakeSource) Engine(vendor string) (engine.Engine, error) {
	eng, ok := f.engines[vendor]
	if !ok {
		return nil, fmt.Errorf("unknown vendor %q", vendor)
	}
	return eng, nil
}

func (f *fakeSource) HasCredential(vendor string) bool {
	return f.credentials[vendor]
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

const (
	visionJSON  = `{"product_type":"sneaker","immutable_elements":["swoosh logo","blue colorway"],"distinguishing_features":["chunky sole"]}`
	conceptJSON = `{"description":"sneaker on pedestal","background":"light gray","lighting":"softbox","camera_angle":"three-quarter","showcase_feature":"sole","key_detail":"stitching","aspect_ratio":"1:1","summary":"Blue sneaker on a gray pedestal"}`
)

func TestRunSuccessWritesThreeCostItems(t *testing.T) {
	t.Parallel()
	logs := newMemLogs()
	costs := &memCosts{}
	openai := &fakeEngine{
		vendor: engine.VendorOpenAI,
		texts:  []string{visionJSON, conceptJSON},
		usage:  engine.TokenUsage{Input: 1000, Output: 500, Total: 1500},
	}
	google := &fakeEngine{
		vendor:   engine.VendorGoogle,
		imageB64: "cG5nYnl0ZXM=",
		usage:    engine.TokenUsage{Input: 300, Output: 1290, Total: 1590},
	}
	src := &fakeSource{
		engines:     map[string]*fakeEngine{engine.VendorOpenAI: openai, engine.VendorGoogle: google},
		credentials: map[string]bool{engine.VendorOpenAI: true, engine.VendorGoogle: true},
	}
	svc := NewService(logs, costs, src, testLogger())
	res, err := svc.Run(context.Background(), Request{
		Title: "Blue Sneaker",
		Image: []byte("img"),
		MIME:  "image/png",
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.ImageBase64 != "cG5nYnl0ZXM=" {
		t.Fatalf("ImageBase64 = %q", res.ImageBase64)
	}
	if res.ConceptUsed != "Blue sneaker on a gray pedestal" {
		t.Fatalf("ConceptUsed = %q", res.ConceptUsed)
	}
	row := logs.single(t)
	if !row.Success || row.ErrorMessage != "" {
		t.Fatalf("log row = %+v, want success", row)
	}
	if row.ConceptUsed != res.ConceptUsed {
		t.Fatalf("log concept = %q", row.ConceptUsed)
	}
	items, _ := costs.ListByRequest(context.Background(), row.ID)
	if len(items) != 3 {
		t.Fatalf("cost items = %d, want 3", len(items))
	}
	wantStages := []domain.Stage{domain.StageVision, domain.StageConcept, domain.StageImageEdit}
	var sum float64
	for i, item := range items {
		if item.Stage != wantStages[i] {
			t.Fatalf("item %d stage = %s, want %s", i, item.Stage, wantStages[i])
		}
		sum += item.CostUSD
	}
	if diff := row.TotalCostUSD - sum; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("total cost %v != item sum %v", row.TotalCostUSD, sum)
	}
	if items[2].ImageCount != 1 {
		t.Fatalf("image item count = %d", items[2].ImageCount)
	}
}

func TestRunRejectsImageProviderWithoutImageOutput(t *testing.T) {
	t.Parallel()
	logs := newMemLogs()
	costs := &memCosts{}
	openai := &fakeEngine{vendor: engine.VendorOpenAI}
	anthropic := &fakeEngine{vendor: engine.VendorAnthropic}
	src := &fakeSource{
		engines:     map[string]*fakeEngine{engine.VendorOpenAI: openai, engine.VendorAnthropic: anthropic},
		credentials: map[string]bool{engine.VendorOpenAI: true, engine.VendorAnthropic: true},
	}
	svc := NewService(logs, costs, src, testLogger())
	_, totalCost, err := svc.execute(context.Background(), "req-1", catalog.EngineConfig{
		TextProvider:  "openai",
		TextModel:     "gpt-4o-mini",
		ImageProvider: "anthropic",
		ImageModel:    "claude-sonnet",
	}, Request{Title: "x", Image: []byte("i")})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !domain.IsValidation(err) {
		t.Fatalf("error should be a validation error, got %T: %v", err, err)
	}
	if totalCost != 0 {
		t.Fatalf("no cost should accrue, got %v", totalCost)
	}
	if openai.textCalls != 0 || anthropic.editCalls != 0 {
		t.Fatal("no vendor calls may be attempted")
	}
}

func TestRunVisionFallbackNeedsCredential(t *testing.T) {
	t.Parallel()
	logs := newMemLogs()
	costs := &memCosts{}
	anthropic := &fakeEngine{vendor: engine.VendorAnthropic, texts: []string{conceptJSON}}
	google := &fakeEngine{vendor: engine.VendorGoogle, imageB64: "aW1n"}
	src := &fakeSource{
		engines: map[string]*fakeEngine{engine.VendorAnthropic: anthropic, engine.VendorGoogle: google},
		// anthropic + google keys present, openai absent; google still
		// covers the image engine and the vision fallback's second choice.
		credentials: map[string]bool{engine.VendorAnthropic: true, engine.VendorGoogle: true},
	}
	svc := NewService(logs, costs, src, testLogger())
	google.texts = []string{visionJSON}
	res, err := svc.Run(context.Background(), Request{
		Title: "Mug",
		Image: []byte("i"),
		Config: catalog.EngineConfig{
			TextProvider: "anthropic",
			TextModel:    "claude-sonnet",
		},
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res == nil || google.textCalls != 1 || anthropic.textCalls != 1 {
		t.Fatalf("vision should run on the gemini fallback; google=%d anthropic=%d", google.textCalls, anthropic.textCalls)
	}
}

func TestRunVisionFallbackWithoutAnyCredentialFails(t *testing.T) {
	t.Parallel()
	logs := newMemLogs()
	costs := &memCosts{}
	anthropic := &fakeEngine{vendor: engine.VendorAnthropic}
	google := &fakeEngine{vendor: engine.VendorGoogle}
	src := &fakeSource{
		engines:     map[string]*fakeEngine{engine.VendorAnthropic: anthropic, engine.VendorGoogle: google},
		credentials: map[string]bool{engine.VendorAnthropic: true},
	}
	svc := NewService(logs, costs, src, testLogger())
	_, err := svc.Run(context.Background(), Request{
		Title: "Mug",
		Image: []byte("i"),
		Config: catalog.EngineConfig{
			TextProvider: "anthropic",
			TextModel:    "claude-sonnet",
		},
	})
	// Fails at INIT: the image engine (gemini default) has no credential,
	// so nothing is ever dispatched.
	if err == nil {
		t.Fatal("expected configuration error")
	}
	row := logs.single(t)
	if row.Success || row.ErrorMessage == "" {
		t.Fatalf("log row = %+v, want recorded failure", row)
	}
	if anthropic.textCalls != 0 || google.textCalls != 0 {
		t.Fatal("no vendor calls may be attempted")
	}
}

func TestRunImageEditFailureKeepsEarlierCostItems(t *testing.T) {
	t.Parallel()
	logs := newMemLogs()
	costs := &memCosts{}
	openai := &fakeEngine{
		vendor: engine.VendorOpenAI,
		texts:  []string{visionJSON, conceptJSON},
		usage:  engine.TokenUsage{Input: 100, Output: 50, Total: 150},
	}
	google := &fakeEngine{
		vendor:   engine.VendorGoogle,
		imageErr: errors.New("google: status 500: backend exploded"),
	}
	src := &fakeSource{
		engines:     map[string]*fakeEngine{engine.VendorOpenAI: openai, engine.VendorGoogle: google},
		credentials: map[string]bool{engine.VendorOpenAI: true, engine.VendorGoogle: true},
	}
	svc := NewService(logs, costs, src, testLogger())
	_, err := svc.Run(context.Background(), Request{Title: "Lamp", Image: []byte("i")})
	if err == nil {
		t.Fatal("expected error")
	}
	row := logs.single(t)
	if row.Success {
		t.Fatal("log row must record failure")
	}
	if !strings.Contains(row.ErrorMessage, "backend exploded") {
		t.Fatalf("error message should embed the vendor error, got %q", row.ErrorMessage)
	}
	items, _ := costs.ListByRequest(context.Background(), row.ID)
	if len(items) != 2 {
		t.Fatalf("cost items = %d, want VISION and CONCEPT only", len(items))
	}
	if items[0].Stage != domain.StageVision || items[1].Stage != domain.StageConcept {
		t.Fatalf("stages = %v, %v", items[0].Stage, items[1].Stage)
	}
}

func TestRunUnparsableStageOutputFallsBackToDefaults(t *testing.T) {
	t.Parallel()
	logs := newMemLogs()
	costs := &memCosts{}
	openai := &fakeEngine{
		vendor: engine.VendorOpenAI,
		texts:  []string{"the model rambles with no JSON at all", "still no JSON"},
	}
	google := &fakeEngine{vendor: engine.VendorGoogle, imageB64: "aW1n"}
	src := &fakeSource{
		engines:     map[string]*fakeEngine{engine.VendorOpenAI: openai, engine.VendorGoogle: google},
		credentials: map[string]bool{engine.VendorOpenAI: true, engine.VendorGoogle: true},
	}
	svc := NewService(logs, costs, src, testLogger())
	res, err := svc.Run(context.Background(), Request{
		Title:   "Vase",
		Concept: "warm sunset tones",
		Image:   []byte("i"),
	})
	if err != nil {
		t.Fatalf("parse failures must not fail the request: %v", err)
	}
	// No model summary survived, so the user's concept becomes the label.
	if res.ConceptUsed != "warm sunset tones" {
		t.Fatalf("ConceptUsed = %q", res.ConceptUsed)
	}
}

func TestRunWithoutUserConceptUsesFixedPhrase(t *testing.T) {
	t.Parallel()
	logs := newMemLogs()
	costs := &memCosts{}
	openai := &fakeEngine{
		vendor: engine.VendorOpenAI,
		texts:  []string{"no json", "no json"},
	}
	google := &fakeEngine{vendor: engine.VendorGoogle, imageB64: "aW1n"}
	src := &fakeSource{
		engines:     map[string]*fakeEngine{engine.VendorOpenAI: openai, engine.VendorGoogle: google},
		credentials: map[string]bool{engine.VendorOpenAI: true, engine.VendorGoogle: true},
	}
	svc := NewService(logs, costs, src, testLogger())
	res, err := svc.Run(context.Background(), Request{Title: "Vase", Image: []byte("i")})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if res.ConceptUsed != defaultConceptPhrase {
		t.Fatalf("ConceptUsed = %q, want %q", res.ConceptUsed, defaultConceptPhrase)
	}
}
