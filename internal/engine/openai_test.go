package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

func TestOpenAIGenerateTextParsesOutput(t *testing.T) {
	t.Parallel()
	var captured openAIResponsesRequest
	client := fakeClient(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/responses" {
			t.Fatalf("path = %q, want /v1/responses", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("Authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		body := `{"output":[{"type":"message","content":[{"type":"output_text","text":"hello"},{"type":"output_text","text":" world"}]}],"usage":{"input_tokens":10,"output_tokens":4,"total_tokens":14}}`
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}, nil
	})
	o := NewOpenAI(OpenAIOptions{APIKey: "sk-test", BaseURL: "https://api.openai.com/v1", HTTPClient: client})
	res, err := o.GenerateText(context.Background(), TextRequest{
		Model:  "gpt-4o-mini",
		Prompt: "describe",
		Image:  []byte{0x89, 0x50},
		MIME:   "image/png",
	})
	if err != nil {
		t.Fatalf("GenerateText error: %v", err)
	}
	if res.Text != "hello world" {
		t.Fatalf("Text = %q", res.Text)
	}
	if res.Usage.Input != 10 || res.Usage.Output != 4 || res.Usage.Total != 14 {
		t.Fatalf("Usage = %+v", res.Usage)
	}
	if captured.Model != "gpt-4o-mini" {
		t.Fatalf("request model = %q", captured.Model)
	}
	if len(captured.Input) != 1 || len(captured.Input[0].Content) != 2 {
		t.Fatalf("input shape = %+v", captured.Input)
	}
	img := captured.Input[0].Content[1]
	if img.Type != "input_image" || !strings.HasPrefix(img.ImageURL, "data:image/png;base64,") {
		t.Fatalf("image part = %+v", img)
	}
}

func TestOpenAIGenerateTextSurfacesVendorError(t *testing.T) {
	t.Parallel()
	client := fakeClient(func(r *http.Request) (*http.Response, error) {
		body := `{"error":{"message":"model not found"}}`
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader(body))}, nil
	})
	o := NewOpenAI(OpenAIOptions{APIKey: "sk-test", HTTPClient: client})
	_, err := o.GenerateText(context.Background(), TextRequest{Model: "gpt-x", Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 404") || !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("error should embed the raw vendor body, got %q", err)
	}
}

func TestOpenAIEditImageMultipart(t *testing.T) {
	t.Parallel()
	client := fakeClient(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/v1/images/edits" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "gpt-image-1" {
			t.Fatalf("model = %q", got)
		}
		if got := r.FormValue("n"); got != "1" {
			t.Fatalf("n = %q", got)
		}
		if got := r.FormValue("size"); got != "1024x1024" {
			t.Fatalf("size = %q", got)
		}
		file, _, err := r.FormFile("image")
		if err != nil {
			t.Fatalf("image file missing: %v", err)
		}
		defer func() {
			_ = file.Close()
		}()
		data, _ := io.ReadAll(file)
		if string(data) != "rawbytes" {
			t.Fatalf("image payload = %q", data)
		}
		body := `{"data":[{"b64_json":"aW1n"}],"usage":{"input_tokens":50,"output_tokens":1000}}`
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(body))}, nil
	})
	o := NewOpenAI(OpenAIOptions{APIKey: "sk-test", HTTPClient: client})
	res, err := o.EditImage(context.Background(), ImageEditRequest{
		Model:  "gpt-image-1",
		Prompt: "studio render",
		Image:  []byte("rawbytes"),
		MIME:   "image/png",
	})
	if err != nil {
		t.Fatalf("EditImage error: %v", err)
	}
	if res.ImageBase64 != "aW1n" {
		t.Fatalf("ImageBase64 = %q", res.ImageBase64)
	}
	if res.Usage.Input != 50 || res.Usage.Output != 1000 {
		t.Fatalf("Usage = %+v", res.Usage)
	}
}

func TestOpenAIEditImageRequiresImageData(t *testing.T) {
	t.Parallel()
	client := fakeClient(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader(`{"data":[]}`))}, nil
	})
	o := NewOpenAI(OpenAIOptions{APIKey: "sk-test", HTTPClient: client})
	if _, err := o.EditImage(context.Background(), ImageEditRequest{Model: "gpt-image-1", Prompt: "x", Image: []byte("y")}); err == nil {
		t.Fatal("expected error when no image is returned")
	}
}
