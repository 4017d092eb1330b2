// Package api assembles the HTTP surface: negotiation, conversation,
// contract, collaborator and template routes under /v1, plus
// admin-only endpoints under /v1/admin.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"dealdesk/pkg/api/handlers"
	"dealdesk/pkg/auth"
)

// Handler returns the fully assembled API router. Caller wraps it with
// the authentication gateway middleware.
func Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(auth.RequireSignedActor)
	handlers.RegisterNegotiations(v1)
	handlers.RegisterContracts(v1)
	handlers.RegisterTemplates(v1)

	admin := v1.PathPrefix("/admin").Subrouter()
	handlers.RegisterAdmin(admin)

	return r
}
