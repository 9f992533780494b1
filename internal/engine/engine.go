// Package engine adapts the three vendor HTTP APIs behind a single
// two-operation interface. Each vendor gets its own concrete type; callers
// pick one per request through the Registry and never branch on vendor tags
// themselves.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"server/internal/pricing"
)

// Wire vendor ids as the adapters and the pricing table know them.
const (
	VendorOpenAI    = "openai"
	VendorGoogle    = "google"
	VendorAnthropic = "anthropic"
)

// TokenUsage aliases the pricing counters so adapters and the cost table
// speak the same type.
type TokenUsage = pricing.TokenUsage

// TextRequest is a text or vision call. Image and MIME are optional; when
// set, the adapter inlines the image in its vendor's own encoding.
type TextRequest struct {
	Model  string
	Prompt string
	Image  []byte
	MIME   string
}

// TextResult is the normalized shape of a text/vision response.
type TextResult struct {
	Text  string
	Usage TokenUsage
}

// ImageEditRequest asks a vendor to re-render the supplied image per the
// prompt.
type ImageEditRequest struct {
	Model  string
	Prompt string
	Image  []byte
	MIME   string
}

// ImageEditResult carries the first generated image as base64 plus whatever
// usage the vendor reported.
type ImageEditResult struct {
	ImageBase64 string
	Usage       TokenUsage
}

// Engine is the per-vendor capability set. GenerateText serves the vision
// and concept stages, EditImage the final render.
type Engine interface {
	Vendor() string
	GenerateText(ctx context.Context, req TextRequest) (*TextResult, error)
	EditImage(ctx context.Context, req ImageEditRequest) (*ImageEditResult, error)
}

const defaultTimeout = 120 * time.Second

// RegistryOptions configures every vendor client at once. Empty base URLs
// fall back to the public endpoints; a nil HTTPClient gets a shared client
// with a long timeout suited to image generation.
type RegistryOptions struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	GeminiBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicVersion string
	HTTPClient       *http.Client
}

// Registry hands out the engine for a wire vendor id and answers which
// vendor credentials are present. Engines are built once at startup and
// shared read-only across requests.
type Registry struct {
	openai    *OpenAI
	google    *Gemini
	anthropic *Anthropic
}

func NewRegistry(opts RegistryOptions) *Registry {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Registry{
		openai: NewOpenAI(OpenAIOptions{
			APIKey:     opts.OpenAIAPIKey,
			BaseURL:    opts.OpenAIBaseURL,
			HTTPClient: client,
		}),
		google: NewGemini(GeminiOptions{
			APIKey:     opts.GeminiAPIKey,
			BaseURL:    opts.GeminiBaseURL,
			HTTPClient: client,
		}),
		anthropic: NewAnthropic(AnthropicOptions{
			APIKey:     opts.AnthropicAPIKey,
			BaseURL:    opts.AnthropicBaseURL,
			Version:    opts.AnthropicVersion,
			HTTPClient: client,
		}),
	}
}

// Engine returns the adapter for a wire vendor id.
func (r *Registry) Engine(vendor string) (Engine, error) {
	switch vendor {
	case VendorOpenAI:
		return r.openai, nil
	case VendorGoogle:
		return r.google, nil
	case VendorAnthropic:
		return r.anthropic, nil
	default:
		return nil, fmt.Errorf("unknown vendor %q", vendor)
	}
}

// HasCredential reports whether the API key for a wire vendor id is
// configured.
func (r *Registry) HasCredential(vendor string) bool {
	switch vendor {
	case VendorOpenAI:
		return r.openai.apiKey != ""
	case VendorGoogle:
		return r.google.apiKey != ""
	case VendorAnthropic:
		return r.anthropic.apiKey != ""
	default:
		return false
	}
}

func vendorStatusError(vendor string, status int, body []byte) error {
	return fmt.Errorf("%s: status %d: %s", vendor, status, string(body))
}
