package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/okian/scoreline/internal/domain/model"
	"github.com/okian/scoreline/internal/domain/types"
)

// MatchesHandler serves the tracked-match view.
type MatchesHandler struct {
	deps Dependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps Dependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

type matchesResponse struct {
	Count   int               `json:"count"`
	Matches []types.MatchView `json:"matches"`
}

// HandleList handles GET /matches. An optional ?status= narrows the list.
func (h *MatchesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := ""
	if q := r.URL.Query().Get("status"); q != "" {
		st := model.ParseStatus(q)
		if st == model.StatusUnknown {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("status %q: %w", q, ErrBadRequest))
			return
		}
		status = st.String()
	}

	all := h.deps.Matches(r.Context())
	out := make([]types.MatchView, 0, len(all))
	for _, m := range all {
		if status == "" || m.Status == status {
			out = append(out, m)
		}
	}
	writeJSON(w, http.StatusOK, matchesResponse{Count: len(out), Matches: out})
}

// HandleGet handles GET /matches/{id}.
func (h *MatchesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	m, err := h.deps.Match(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
