package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

type GeminiOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// Gemini speaks the generateContent API for both text/vision and image
// output.
type Gemini struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

const (
	geminiDefaultBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	geminiEditAspectRatio = "1:1"
)

func NewGemini(opts GeminiOptions) *Gemini {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Gemini{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
	}
}

func (g *Gemini) Vendor() string {
	return VendorGoogle
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	// Some API revisions emit snake_case; accept both on the way in.
	InlineDataSnake *geminiInlineData `json:"inline_data,omitempty"`
}

func (p geminiPart) inline() *geminiInlineData {
	if p.InlineData != nil {
		return p.InlineData
	}
	return p.InlineDataSnake
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (g *Gemini) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	if g.apiKey == "" {
		return nil, errors.New("google: GEMINI_API_KEY is not configured")
	}
	parts := []geminiPart{{Text: req.Prompt}}
	if len(req.Image) > 0 {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: coalesceMIME(req.MIME),
			Data:     base64.StdEncoding.EncodeToString(req.Image),
		}})
	}
	payload := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
	}
	out, err := g.generateContent(ctx, req.Model, payload)
	if err != nil {
		return nil, err
	}
	text := strings.TrimSpace(collectGeminiText(out))
	if text == "" {
		return nil, errors.New("google: response carried no text parts")
	}
	return &TextResult{
		Text: text,
		Usage: TokenUsage{
			Input:  out.UsageMetadata.PromptTokenCount,
			Output: out.UsageMetadata.CandidatesTokenCount,
			Total:  out.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

func (g *Gemini) EditImage(ctx context.Context, req ImageEditRequest) (*ImageEditResult, error) {
	if g.apiKey == "" {
		return nil, errors.New("google: GEMINI_API_KEY is not configured")
	}
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: req.Prompt},
				{InlineData: &geminiInlineData{
					MimeType: coalesceMIME(req.MIME),
					Data:     base64.StdEncoding.EncodeToString(req.Image),
				}},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &geminiImageConfig{AspectRatio: geminiEditAspectRatio},
		},
	}
	out, err := g.generateContent(ctx, req.Model, payload)
	if err != nil {
		return nil, err
	}
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			if data := part.inline(); data != nil && data.Data != "" {
				return &ImageEditResult{
					ImageBase64: data.Data,
					Usage: TokenUsage{
						Input:  out.UsageMetadata.PromptTokenCount,
						Output: out.UsageMetadata.CandidatesTokenCount,
						Total:  out.UsageMetadata.TotalTokenCount,
					},
				}, nil
			}
		}
	}
	// Gemini sometimes answers an image request with prose; surface it so
	// the caller can see what the model refused or explained.
	if fallback := strings.TrimSpace(collectGeminiText(out)); fallback != "" {
		return nil, fmt.Errorf("google: no image in response, model said: %s", fallback)
	}
	return nil, errors.New("google: no image in response")
}

func (g *Gemini) generateContent(ctx context.Context, model string, payload geminiRequest) (*geminiResponse, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("google: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("google: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("google: http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("google: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, vendorStatusError(VendorGoogle, resp.StatusCode, body)
	}
	var out geminiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("google: decode response: %w", err)
	}
	return &out, nil
}

func collectGeminiText(out *geminiResponse) string {
	sb := &strings.Builder{}
	for _, cand := range out.Candidates {
		for _, part := range cand.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func coalesceMIME(mime string) string {
	if mime == "" {
		return "image/png"
	}
	return mime
}

var _ Engine = (*Gemini)(nil)
