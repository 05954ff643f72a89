package preference

import (
	"errors"
	"net/http"

	"courier/internal/handler/http/auth"
	"courier/internal/handler/http/respond"
	prefUC "courier/internal/usecase/preference"
)

// MatrixHandler serves the preference table for the authenticated recipient.
type MatrixHandler struct {
	Svc *prefUC.Service
	// Opts narrows what the matrix shows, zero value shows everything
	// subscribable.
	Opts prefUC.MatrixOptions
}

func (h MatrixHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respond.SafeError(w, http.StatusUnauthorized, errors.New("unauthorized: no token claims"))
		return
	}

	matrix, err := h.Svc.BuildMatrix(r.Context(), claims.RecipientID, h.Opts)
	if err != nil {
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, toMatrixDTO(matrix))
}
