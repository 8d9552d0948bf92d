package httphandler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// TrackPageView records a landing page view. Both event and src are required.
func (h *Handler) TrackPageView(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Event) == "" || strings.TrimSpace(req.Src) == "" {
		writeError(w, http.StatusBadRequest, "missing event or src")
		return
	}

	if err := h.funnelSvc.RecordPageView(r.Context(), req.Event, req.Src, r.UserAgent()); err != nil {
		h.logger.Error("failed to record page view", "event", req.Event, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

// TrackMethodNotAllowed rejects reads of the tracking endpoint.
func (h *Handler) TrackMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// RecordLead records a lead for an event. src defaults to "direct".
func (h *Handler) RecordLead(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Event) == "" {
		writeError(w, http.StatusBadRequest, "missing event")
		return
	}

	if err := h.funnelSvc.RecordLead(r.Context(), req.Event, req.Src); err != nil {
		h.logger.Error("failed to record lead", "event", req.Event, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, okResponse{OK: true})
}

// ListLeads returns the most recent leads, newest first.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.funnelSvc.ListLeads(r.Context(), leadListLimit)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		resp = append(resp, toLeadResponse(l))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Metrics returns per-event funnel counts joined with the matching cached
// campaign, if any.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.funnelSvc.Metrics(r.Context())
	if err != nil {
		h.logger.Error("failed to compute funnel metrics", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := MetricsResponse{
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Campaigns: make([]FunnelMetricResponse, 0, len(metrics)),
	}
	for _, m := range metrics {
		resp.Campaigns = append(resp.Campaigns, toFunnelMetricResponse(m))
	}

	writeJSON(w, http.StatusOK, resp)
}
