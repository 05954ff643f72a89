package preference

import (
	"encoding/json"
	"errors"
	"net/http"

	"courier/internal/handler/http/auth"
	"courier/internal/handler/http/respond"
	prefUC "courier/internal/usecase/preference"
)

// ReplaceHandler swaps the caller's preferences for the posted set. Pairs
// naming unregistered types or channels are dropped, not rejected, so stale
// UI state never blocks an update.
type ReplaceHandler struct {
	Svc *prefUC.Service
}

func (h ReplaceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respond.SafeError(w, http.StatusUnauthorized, errors.New("unauthorized: no token claims"))
		return
	}

	var req struct {
		// Preferences holds "message_cls|messenger_cls" pair ids, the same
		// ids the matrix cells carry.
		Preferences []string `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, errors.New("malformed request body"))
		return
	}

	kept, err := h.Svc.Replace(r.Context(), claims.RecipientID, req.Preferences)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string][]PairDTO{"installed": toPairDTOs(kept)})
}
