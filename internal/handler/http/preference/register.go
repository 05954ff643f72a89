package preference

import (
	"net/http"

	prefUC "courier/internal/usecase/preference"
)

// Register mounts the preference endpoints. Every route acts on the
// authenticated caller, so each one is wrapped in the given authz middleware.
func Register(mux *http.ServeMux, svc *prefUC.Service, opts prefUC.MatrixOptions, authz func(http.Handler) http.Handler) {
	mux.Handle("GET    /preferences", authz(MatrixHandler{Svc: svc, Opts: opts}))
	mux.Handle("PUT    /preferences", authz(ReplaceHandler{Svc: svc}))
	mux.Handle("GET    /subscriptions", authz(SubscriptionsHandler{Svc: svc}))
}
