package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAI talks to the Responses API for text/vision and to the image edits
// endpoint for renders. An empty API key is tolerated here; the pipeline
// checks credentials before dispatching, so the adapter never has to.
type OpenAI struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

const (
	openAIDefaultBaseURL = "https://api.openai.com/v1"
	openAIImageSize      = "1024x1024"
)

func NewOpenAI(opts OpenAIOptions) *OpenAI {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &OpenAI{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		client:  client,
	}
}

func (o *OpenAI) Vendor() string {
	return VendorOpenAI
}

type openAIResponsesRequest struct {
	Model string            `json:"model"`
	Input []openAIInputItem `json:"input"`
}

type openAIInputItem struct {
	Role    string              `json:"role"`
	Content []openAIContentPart `json:"content"`
}

type openAIContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type openAIResponsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage openAIUsage `json:"usage"`
}

type openAIUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type openAIImageEditResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Usage openAIUsage `json:"usage"`
}

func (o *OpenAI) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	content := []openAIContentPart{{Type: "input_text", Text: req.Prompt}}
	if len(req.Image) > 0 {
		mime := req.MIME
		if mime == "" {
			mime = "image/png"
		}
		dataURL := fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(req.Image))
		content = append(content, openAIContentPart{Type: "input_image", ImageURL: dataURL})
	}
	payload := openAIResponsesRequest{
		Model: req.Model,
		Input: []openAIInputItem{{Role: "user", Content: content}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/responses", &buf)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, vendorStatusError(VendorOpenAI, resp.StatusCode, body)
	}
	var out openAIResponsesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	sb := &strings.Builder{}
	for _, item := range out.Output {
		if item.Type != "" && item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				sb.WriteString(part.Text)
			}
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, errors.New("openai: response carried no output text")
	}
	return &TextResult{
		Text: text,
		Usage: TokenUsage{
			Input:  out.Usage.InputTokens,
			Output: out.Usage.OutputTokens,
			Total:  out.Usage.TotalTokens,
		},
	}, nil
}

func (o *OpenAI) EditImage(ctx context.Context, req ImageEditRequest) (*ImageEditResult, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := map[string]string{
		"model":         req.Model,
		"prompt":        req.Prompt,
		"n":             "1",
		"size":          openAIImageSize,
		"output_format": "png",
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("openai: write form field: %w", err)
		}
	}
	filename := "image.png"
	if strings.Contains(req.MIME, "jpeg") {
		filename = "image.jpg"
	}
	part, err := form.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("openai: create form file: %w", err)
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, fmt.Errorf("openai: write image: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("openai: finish form: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/images/edits", &buf)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, vendorStatusError(VendorOpenAI, resp.StatusCode, body)
	}
	var out openAIImageEditResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("openai: decode response: %w", err)
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, errors.New("openai: image edit returned no image data")
	}
	return &ImageEditResult{
		ImageBase64: out.Data[0].B64JSON,
		Usage: TokenUsage{
			Input:  out.Usage.InputTokens,
			Output: out.Usage.OutputTokens,
			Total:  out.Usage.TotalTokens,
		},
	}, nil
}

var _ Engine = (*OpenAI)(nil)
