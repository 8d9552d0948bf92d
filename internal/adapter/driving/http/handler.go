package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/troia/campaignsync/internal/application"
	"github.com/troia/campaignsync/internal/domain/port/driven"
)

const (
	defaultStatusRuns = 20
	maxStatusRuns     = 100
	leadListLimit     = 100
)

// AuthURLBuilder builds the provider's authorization redirect URL.
type AuthURLBuilder interface {
	AuthCodeURL(state string) string
}

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	tokens    *application.TokenService
	authURLs  AuthURLBuilder
	syncSvc   *application.SyncService
	statusSvc *application.StatusService
	funnelSvc *application.FunnelService
	campaigns driven.CampaignStore
	states    *authStates
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. authURLs may
// be nil when no OAuth application is configured; the authorization
// endpoints then answer 503.
func NewHandler(
	tokens *application.TokenService,
	authURLs AuthURLBuilder,
	syncSvc *application.SyncService,
	statusSvc *application.StatusService,
	funnelSvc *application.FunnelService,
	campaigns driven.CampaignStore,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		tokens:    tokens,
		authURLs:  authURLs,
		syncSvc:   syncSvc,
		statusSvc: statusSvc,
		funnelSvc: funnelSvc,
		campaigns: campaigns,
		states:    newAuthStates(authStateTTL),
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. When secret is non-empty the
// dashboard and operator routes require it in the X-Secret header.
func NewServeMux(h *Handler, secret string, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	protect := func(fn http.HandlerFunc) http.Handler {
		return secretMiddleware(secret, fn)
	}

	mux.HandleFunc("GET /api/v1/health", h.Health)

	mux.HandleFunc("GET /api/rd/auth", h.StartAuthorization)
	mux.HandleFunc("GET /api/rd/callback", h.CompleteAuthorization)

	mux.Handle("POST /api/sync/run", protect(h.RunSync))
	mux.Handle("GET /api/sync/status", protect(h.SyncStatus))
	mux.Handle("GET /api/campaigns", protect(h.ListCampaigns))

	mux.Handle("GET /api/metrics", protect(h.Metrics))
	mux.Handle("GET /api/leads", protect(h.ListLeads))
	mux.HandleFunc("POST /api/leads", h.RecordLead)
	mux.HandleFunc("POST /api/track", h.TrackPageView)
	mux.HandleFunc("GET /api/track", h.TrackMethodNotAllowed)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// RunSync performs one sync run and returns its audit record. The run is
// detached from the request context so a client disconnect does not turn it
// into an error run.
func (h *Handler) RunSync(w http.ResponseWriter, r *http.Request) {
	run, err := h.syncSvc.RunNow(context.WithoutCancel(r.Context()))
	if err != nil {
		h.logger.Error("failed to run sync", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toSyncRunResponse(run))
}

// SyncStatus returns recent sync runs, cache freshness and credential state.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	limit := defaultStatusRuns
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxStatusRuns)
	}

	d, err := h.statusSvc.Diagnostics(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to load diagnostics", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toDiagnosticsResponse(d))
}

// ListCampaigns returns every cached campaign, most recently sent first.
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.campaigns.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list campaigns", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]CampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		resp = append(resp, toCampaignResponse(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
