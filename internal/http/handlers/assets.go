package handlers

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"

	"github.com/wolfman30/rideclick/internal/picker"
	"github.com/wolfman30/rideclick/pkg/logging"
)

//go:embed assets/oneclick.js
var oneclickJS []byte

//go:embed assets/map.html
var mapPageSource string

var mapPage = template.Must(template.New("map").Parse(mapPageSource))

// AssetsHandler serves the embeddable widget script and the picker page.
type AssetsHandler struct {
	mapsAPIKey    string
	publicBaseURL string
	logger        *logging.Logger
}

func NewAssetsHandler(mapsAPIKey, publicBaseURL string, logger *logging.Logger) *AssetsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AssetsHandler{mapsAPIKey: mapsAPIKey, publicBaseURL: publicBaseURL, logger: logger}
}

// WidgetJS serves the one-click script.
// GET /oneclick.js
func (h *AssetsHandler) WidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(oneclickJS)
}

// MapPage renders the location picker with the maps key.
// GET /map.html
func (h *AssetsHandler) MapPage(w http.ResponseWriter, r *http.Request) {
	if h.mapsAPIKey == "" {
		jsonError(w, "maps are not configured", http.StatusNotFound)
		return
	}
	base := h.publicBaseURL
	if base == "" {
		base = scheme(r) + "://" + r.Host
	}
	estimateURL := base + "/estimate-price"

	var dialog bytes.Buffer
	if err := picker.Dialog(&dialog, picker.DialogData{MapsAPIKey: h.mapsAPIKey, EstimateURL: estimateURL}); err != nil {
		h.logger.Error("failed to render picker dialog", "error", err)
		jsonError(w, "failed to render page", http.StatusInternalServerError)
		return
	}

	var page bytes.Buffer
	err := mapPage.Execute(&page, struct {
		Dialog      template.HTML
		EstimateURL string
	}{
		Dialog:      template.HTML(dialog.String()),
		EstimateURL: estimateURL,
	})
	if err != nil {
		h.logger.Error("failed to render map page", "error", err)
		jsonError(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = page.WriteTo(w)
}
