package preference

import (
	"errors"
	"net/http"

	"courier/internal/handler/http/auth"
	"courier/internal/handler/http/respond"
	prefUC "courier/internal/usecase/preference"
)

// SubscriptionsHandler lists the caller's installed preference pairs.
type SubscriptionsHandler struct {
	Svc *prefUC.Service
}

func (h SubscriptionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respond.SafeError(w, http.StatusUnauthorized, errors.New("unauthorized: no token claims"))
		return
	}

	pairs, err := h.Svc.Current(r.Context(), claims.RecipientID)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string][]PairDTO{"subscriptions": toPairDTOs(pairs)})
}
