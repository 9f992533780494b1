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
	"strings"
)

type AnthropicOptions struct {
	APIKey     string
	BaseURL    string
	Version    string
	HTTPClient *http.Client
}

// Anthropic serves text through the Messages API. It has no image
// generation, so EditImage is a hard error; the catalog never offers it as
// an image provider.
type Anthropic struct {
	apiKey  string
	baseURL string
	version string
	client  *http.Client
}

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com"
	anthropicDefaultVersion = "2023-06-01"
	anthropicMaxTokens      = 2048
)

func NewAnthropic(opts AnthropicOptions) *Anthropic {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = anthropicDefaultVersion
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Anthropic{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		version: version,
		client:  client,
	}
}

func (a *Anthropic) Vendor() string {
	return VendorAnthropic
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (a *Anthropic) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	if a.apiKey == "" {
		return nil, errors.New("anthropic: ANTHROPIC_API_KEY is not configured")
	}
	content := []anthropicContent{{Type: "text", Text: req.Prompt}}
	if len(req.Image) > 0 {
		content = append(content, anthropicContent{
			Type: "image",
			Source: &anthropicSource{
				Type:      "base64",
				MediaType: coalesceMIME(req.MIME),
				Data:      base64.StdEncoding.EncodeToString(req.Image),
			},
		})
	}
	payload := anthropicRequest{
		Model:     req.Model,
		MaxTokens: anthropicMaxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: content}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("anthropic: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", &buf)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", a.version)
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, vendorStatusError(VendorAnthropic, resp.StatusCode, body)
	}
	var out anthropicResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}
	sb := &strings.Builder{}
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, errors.New("anthropic: response carried no text blocks")
	}
	// The Messages API reports no total field; sum the two it does report.
	return &TextResult{
		Text: text,
		Usage: TokenUsage{
			Input:  out.Usage.InputTokens,
			Output: out.Usage.OutputTokens,
			Total:  out.Usage.InputTokens + out.Usage.OutputTokens,
		},
	}, nil
}

func (a *Anthropic) EditImage(ctx context.Context, req ImageEditRequest) (*ImageEditResult, error) {
	return nil, errors.New("anthropic: image generation is not supported")
}

var _ Engine = (*Anthropic)(nil)
