package httphandler

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// authStateTTL bounds how long an operator has to complete the provider's
// consent page.
const authStateTTL = 10 * time.Minute

// authStates holds the pending OAuth state values. Each value is accepted
// once and only before it expires.
type authStates struct {
	mu      sync.Mutex
	pending map[string]time.Time
	ttl     time.Duration
	now     func() time.Time
}

func newAuthStates(ttl time.Duration) *authStates {
	return &authStates{
		pending: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// issue returns a fresh state value and drops expired ones.
func (s *authStates) issue() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for state, expires := range s.pending {
		if !now.Before(expires) {
			delete(s.pending, state)
		}
	}

	state := uuid.NewString()
	s.pending[state] = now.Add(s.ttl)
	return state
}

// consume reports whether state was issued and has not expired, and
// invalidates it either way.
func (s *authStates) consume(state string) bool {
	if state == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.pending[state]
	if !ok {
		return false
	}
	delete(s.pending, state)
	return s.now().Before(expires)
}

// StartAuthorization redirects the operator to the provider's consent page.
func (h *Handler) StartAuthorization(w http.ResponseWriter, r *http.Request) {
	if h.authURLs == nil {
		writeError(w, http.StatusServiceUnavailable, "provider OAuth application not configured")
		return
	}

	http.Redirect(w, r, h.authURLs.AuthCodeURL(h.states.issue()), http.StatusFound)
}

// CompleteAuthorization exchanges the authorization code from the provider's
// redirect and saves the resulting credential. The state must be one issued
// by StartAuthorization.
func (h *Handler) CompleteAuthorization(w http.ResponseWriter, r *http.Request) {
	if h.authURLs == nil {
		writeError(w, http.StatusServiceUnavailable, "provider OAuth application not configured")
		return
	}

	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing code")
		return
	}

	if !h.states.consume(q.Get("state")) {
		h.logger.Warn("provider callback with unknown or expired state")
		writeError(w, http.StatusBadRequest, "invalid state")
		return
	}

	if err := h.tokens.Authorize(r.Context(), code); err != nil {
		h.logger.Error("provider authorization failed", "error", err)
		writeError(w, http.StatusBadGateway, "provider authorization failed")
		return
	}

	writeJSON(w, http.StatusOK, okResponse{
		OK:      true,
		Message: "provider authorized, credential saved",
	})
}
