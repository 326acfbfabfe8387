package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/zkpresence/internal/app"
	"github.com/okian/zkpresence/internal/domain/model"
	"github.com/okian/zkpresence/internal/presentation"
)

// PresenceHandler serves presence results and share links.
type PresenceHandler struct {
	deps Dependencies
}

// NewPresenceHandler creates a new presence handler.
func NewPresenceHandler(deps Dependencies) *PresenceHandler {
	return &PresenceHandler{deps: deps}
}

type shareResponse struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// HandleGetPresence handles GET /presence/{username}.
func (h *PresenceHandler) HandleGetPresence(w http.ResponseWriter, r *http.Request) {
	result, ok := h.score(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleGetShare handles GET /presence/{username}/share.
func (h *PresenceHandler) HandleGetShare(w http.ResponseWriter, r *http.Request) {
	result, ok := h.score(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, shareResponse{
		Text: presentation.ShareText(result),
		URL:  presentation.IntentURL(result),
	})
}

// score writes an error response and returns false when the request cannot
// be scored.
func (h *PresenceHandler) score(w http.ResponseWriter, r *http.Request) (model.PresenceResult, bool) {
	raw, err := usernameParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: invalid username encoding", ErrBadRequest))
		return model.PresenceResult{}, false
	}

	result, err := h.deps.Score(r.Context(), raw)
	switch {
	case err == nil:
		return result, true
	case errors.Is(err, service.ErrEmptyUsername):
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", fmt.Errorf("%w: %w", ErrInternal, err))
	}
	return model.PresenceResult{}, false
}

// usernameParam returns the decoded {username} segment. chi matches on
// RawPath when the request carries one, and on the already decoded Path
// otherwise, so only the former needs unescaping.
func usernameParam(r *http.Request) (string, error) {
	param := chi.URLParam(r, "username")
	if r.URL.RawPath == "" {
		return param, nil
	}
	raw, err := url.PathUnescape(param)
	if err != nil {
		return "", fmt.Errorf("unescape username: %w", err)
	}
	return raw, nil
}
