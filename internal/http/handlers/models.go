package handlers

import (
	"net/http"

	"server/internal/catalog"
)

// Models exposes the selectable (provider, model) catalog for the settings
// UI.
func (a *App) Models(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"items": catalog.Options()})
}
