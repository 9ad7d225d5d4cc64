package handlers

import (
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/docintel/internal/schema"
)

// HandlePresets lists the built-in schemas, or returns one by name.
func (h *Handler) HandlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/presets"), "/"); name != "" {
		s, ok := schema.Preset(name)
		if !ok {
			h.writeError(w, "Preset not found", http.StatusNotFound)
			return
		}
		h.writeJSON(w, s)
		return
	}

	presets := make(map[string]*schema.Schema)
	for _, name := range schema.PresetNames() {
		s, _ := schema.Preset(name)
		presets[name] = s
	}
	h.writeJSON(w, presets)
}
