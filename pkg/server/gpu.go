package server

import "net/http"

// handleGPUStatus serves GET /v1/gpu/status (SPEC_FULL.md §6.2), exposing
// C8's per-device holder and per-class queue depth for operational
// visibility.
func (s *Server) handleGPUStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gpu.Status())
}
