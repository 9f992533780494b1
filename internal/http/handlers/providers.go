package handlers

import "net/http"

// Providers reports which vendor credentials are configured so the settings
// UI can disable unavailable choices.
func (a *App) Providers(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]bool{
		"openai":    a.Config.OpenAIAPIKey != "",
		"gemini":    a.Config.GeminiAPIKey != "",
		"anthropic": a.Config.AnthropicAPIKey != "",
	})
}
