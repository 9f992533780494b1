// Package catalog holds the static registry of selectable (provider, model)
// pairs and normalizes user-supplied engine configurations against it.
package catalog

import "strings"

// Providers as the configuration UI names them.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// Kind discriminates text-capable from image-capable catalog entries.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// ModelOption is one catalog entry. Options are defined at startup and never
// mutated.
type ModelOption struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Provider    string `json:"provider"`
	Kind        Kind   `json:"kind"`
	Enabled     bool   `json:"enabled"`
	APIModel    string `json:"-"`
	ImageInput  bool   `json:"image_input"`
	ImageOutput bool   `json:"image_output"`
}

// EngineConfig selects which provider/model pair serves the text stages and
// which serves the image-edit stage. JSON tags match the UI blob.
type EngineConfig struct {
	TextProvider  string `json:"textProvider"`
	TextModel     string `json:"textModel"`
	ImageProvider string `json:"imageProvider"`
	ImageModel    string `json:"imageModel"`
}

const (
	DefaultTextProvider  = ProviderOpenAI
	DefaultTextModel     = "gpt-4o-mini"
	DefaultImageProvider = ProviderGemini
	DefaultImageModel    = "nano-banana"
)

var options = []ModelOption{
	{ID: "gpt-4o-mini", Label: "GPT-4o mini", Provider: ProviderOpenAI, Kind: KindText, Enabled: true, ImageInput: true},
	{ID: "gpt-4o", Label: "GPT-4o", Provider: ProviderOpenAI, Kind: KindText, Enabled: true, ImageInput: true},
	{ID: "gpt-4.1-mini", Label: "GPT-4.1 mini", Provider: ProviderOpenAI, Kind: KindText, Enabled: false, ImageInput: true},
	{ID: "gemini-2.5-flash", Label: "Gemini 2.5 Flash", Provider: ProviderGemini, Kind: KindText, Enabled: true, ImageInput: true},
	{ID: "gemini-2.0-flash", Label: "Gemini 2.0 Flash", Provider: ProviderGemini, Kind: KindText, Enabled: true, ImageInput: true},
	{ID: "claude-sonnet", Label: "Claude Sonnet", Provider: ProviderAnthropic, Kind: KindText, Enabled: true, APIModel: "claude-sonnet-4-20250514"},
	{ID: "claude-haiku", Label: "Claude Haiku", Provider: ProviderAnthropic, Kind: KindText, Enabled: true, APIModel: "claude-3-5-haiku-20241022"},

	{ID: "gpt-image-1", Label: "GPT Image 1", Provider: ProviderOpenAI, Kind: KindImage, Enabled: true, ImageInput: true, ImageOutput: true},
	{ID: "nano-banana", Label: "Nano Banana", Provider: ProviderGemini, Kind: KindImage, Enabled: true, APIModel: "gemini-2.5-flash-image", ImageInput: true, ImageOutput: true},
}

// Options returns the full catalog for the settings UI.
func Options() []ModelOption {
	out := make([]ModelOption, len(options))
	copy(out, options)
	return out
}

// Find returns the enabled catalog entry for the given provider, kind and id.
func Find(provider string, kind Kind, id string) (ModelOption, bool) {
	for _, opt := range options {
		if opt.Enabled && opt.Provider == provider && opt.Kind == kind && opt.ID == id {
			return opt, true
		}
	}
	return ModelOption{}, false
}

// ResolveAPIModel maps a catalog id to the wire model name the vendor API
// expects. Unresolved ids pass through verbatim; the vendor call will then
// report its own error for a genuinely unknown model.
func ResolveAPIModel(provider string, kind Kind, id string) string {
	if opt, ok := Find(provider, kind, id); ok && opt.APIModel != "" {
		return opt.APIModel
	}
	return id
}

// APIVendor maps a UI-facing provider id to the wire-facing vendor id.
func APIVendor(provider string) string {
	if provider == ProviderGemini {
		return "google"
	}
	return provider
}

// Normalize merges a partial configuration onto the defaults and validates
// every pair against the catalog. It always returns a fully valid
// configuration; invalid selections fall back to the documented defaults.
func Normalize(cfg EngineConfig) EngineConfig {
	out := EngineConfig{
		TextProvider:  strings.TrimSpace(cfg.TextProvider),
		TextModel:     strings.TrimSpace(cfg.TextModel),
		ImageProvider: strings.TrimSpace(cfg.ImageProvider),
		ImageModel:    strings.TrimSpace(cfg.ImageModel),
	}
	if out.TextProvider == "" {
		out.TextProvider = DefaultTextProvider
	}
	if out.TextModel == "" {
		out.TextModel = DefaultTextModel
	}
	if out.ImageProvider == "" {
		out.ImageProvider = DefaultImageProvider
	}
	if out.ImageModel == "" {
		out.ImageModel = DefaultImageModel
	}
	if _, ok := Find(out.TextProvider, KindText, out.TextModel); !ok {
		out.TextProvider = DefaultTextProvider
		out.TextModel = DefaultTextModel
	}
	if !providerHasImageOutput(out.ImageProvider) {
		out.ImageProvider = DefaultImageProvider
		out.ImageModel = DefaultImageModel
	}
	if opt, ok := Find(out.ImageProvider, KindImage, out.ImageModel); !ok || !opt.ImageOutput {
		out.ImageProvider = DefaultImageProvider
		out.ImageModel = DefaultImageModel
	}
	return out
}

// SupportsImageInput reports whether the selected text pair can understand
// an uploaded image. Unknown pairs report false so the vision stage falls
// back to a capable engine.
func SupportsImageInput(provider, model string) bool {
	opt, ok := Find(provider, KindText, model)
	return ok && opt.ImageInput
}

// VisionModelFor returns the provider's first enabled text model that
// accepts image input, for use when the vision stage falls back away from
// the configured text engine.
func VisionModelFor(provider string) (string, bool) {
	for _, opt := range options {
		if opt.Enabled && opt.Provider == provider && opt.Kind == KindText && opt.ImageInput {
			return opt.ID, true
		}
	}
	return "", false
}

func providerHasImageOutput(provider string) bool {
	for _, opt := range options {
		if opt.Enabled && opt.Provider == provider && opt.Kind == KindImage && opt.ImageOutput {
			return true
		}
	}
	return false
}
