package api

import (
	"net/http"

	"github.com/phrazzld/audio2srt/internal/api/shared"
)

// HealthHandler handles GET /health. It reports liveness only and never
// touches the engine, so it stays cheap for container probes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{Status: "ok"})
}
