// Package pricing converts reported vendor usage into USD cost estimates.
// Unknown (vendor, model) pairs deliberately price at 0 instead of failing;
// this keeps an unrecognized model from breaking a request that the vendor
// itself accepted.
package pricing

import "math"

// TokenUsage mirrors the token counters a text-capable vendor call reports.
// Counters are zero-filled when a vendor does not report usage.
type TokenUsage struct {
	Input  int
	Output int
	Total  int
}

type textRate struct {
	inputPerM  float64
	outputPerM float64
}

// Per-1M-token USD rates keyed by wire vendor and wire model.
var textRates = map[string]map[string]textRate{
	"openai": {
		"gpt-4o-mini": {inputPerM: 0.15, outputPerM: 0.60},
		"gpt-4o":      {inputPerM: 2.50, outputPerM: 10.00},
	},
	"google": {
		"gemini-2.5-flash": {inputPerM: 0.30, outputPerM: 2.50},
		"gemini-2.0-flash": {inputPerM: 0.10, outputPerM: 0.40},
	},
	"anthropic": {
		"claude-sonnet-4-20250514":   {inputPerM: 3.00, outputPerM: 15.00},
		"claude-3-5-haiku-20241022":  {inputPerM: 0.80, outputPerM: 4.00},
	},
}

// Per-image USD prices for OpenAI image models, keyed by quality tier.
var openAIImageRates = map[string]map[string]float64{
	"gpt-image-1": {
		"low":    0.011,
		"medium": 0.042,
		"high":   0.167,
	},
}

// Flat price per generated image for Google image models. The output image
// is charged here, so only input tokens are additionally billed as tokens.
var googleImageRates = map[string]float64{
	"gemini-2.5-flash-image": 0.039,
}

const qualityTierFallback = "low"

// TextCostUSD prices a text/vision call. Unknown pairs cost 0.
func TextCostUSD(vendor, apiModel string, usage TokenUsage) float64 {
	rates, ok := textRates[vendor]
	if !ok {
		return 0
	}
	rate, ok := rates[apiModel]
	if !ok {
		return 0
	}
	cost := float64(usage.Input)/1e6*rate.inputPerM + float64(usage.Output)/1e6*rate.outputPerM
	return round6(cost)
}

// ImageCostParams describes one image-generation call for pricing.
type ImageCostParams struct {
	Vendor     string
	APIModel   string
	ImageCount int
	Quality    string
	Usage      TokenUsage
}

// ImageCostUSD prices an image-edit call according to the vendor's policy.
func ImageCostUSD(p ImageCostParams) float64 {
	count := p.ImageCount
	if count <= 0 {
		count = 1
	}
	switch p.Vendor {
	case "openai":
		tiers, ok := openAIImageRates[p.APIModel]
		if !ok {
			return 0
		}
		per, ok := tiers[p.Quality]
		if !ok {
			per = tiers[qualityTierFallback]
		}
		return round6(per * float64(count))
	case "google":
		per, ok := googleImageRates[p.APIModel]
		if !ok {
			return 0
		}
		// Input tokens bill at the cheapest Google text tier; the output
		// image is already covered by the flat per-image price.
		tokens := float64(p.Usage.Input) / 1e6 * cheapestGoogleInputRate()
		return round6(per*float64(count) + tokens)
	default:
		return 0
	}
}

func cheapestGoogleInputRate() float64 {
	cheapest := math.MaxFloat64
	for _, rate := range textRates["google"] {
		if rate.inputPerM < cheapest {
			cheapest = rate.inputPerM
		}
	}
	if cheapest == math.MaxFloat64 {
		return 0
	}
	return cheapest
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
