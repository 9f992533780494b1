package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"server/internal/catalog"
	"server/internal/domain"
	"server/internal/pipeline"
)

type generateResponse struct {
	ConceptUsed string `json:"concept_used"`
	ImageBase64 string `json:"image_base64"`
}

// Generate accepts a multipart form (image, title, optional concept and
// engineConfig blob) and runs the full pipeline. Input validation happens
// here, before any log row exists; everything after is the pipeline's
// responsibility.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(a.Config.MaxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "title is required")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "image file is required")
		return
	}
	defer func() {
		_ = file.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(file, a.Config.MaxUploadBytes+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "failed to read image upload")
		return
	}
	if len(data) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "image file is empty")
		return
	}
	if int64(len(data)) > a.Config.MaxUploadBytes {
		a.error(w, http.StatusBadRequest, "bad_request", "image file is too large")
		return
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}

	// A malformed engineConfig blob falls back to the defaults rather than
	// rejecting the upload.
	var cfg catalog.EngineConfig
	if blob := r.FormValue("engineConfig"); blob != "" {
		if err := json.Unmarshal([]byte(blob), &cfg); err != nil {
			a.Logger.Debug().Err(err).Msg("handlers: ignoring malformed engineConfig")
			cfg = catalog.EngineConfig{}
		}
	}

	res, err := a.Pipeline.Run(r.Context(), pipeline.Request{
		Title:   title,
		Concept: strings.TrimSpace(r.FormValue("concept")),
		Image:   data,
		MIME:    mime,
		Config:  cfg,
	})
	if err != nil {
		if domain.IsValidation(err) {
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		a.error(w, http.StatusInternalServerError, "generation_failed", err.Error())
		return
	}
	a.json(w, http.StatusOK, generateResponse{
		ConceptUsed: res.ConceptUsed,
		ImageBase64: res.ImageBase64,
	})
}
