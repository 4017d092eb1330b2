package handlers

import (
	"errors"
	"net/http"

	"dealdesk/pkg/contract"
	"dealdesk/pkg/negotiation"
	"dealdesk/pkg/store"
	"dealdesk/pkg/utils"
)

// writeErr maps domain errors onto HTTP statuses: validation failures
// are 400, missing records 404, lifecycle conflicts 409, everything
// else 500.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, negotiation.ErrValidation), errors.Is(err, contract.ErrValidation):
		utils.JSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, negotiation.ErrInvalidTransition),
		errors.Is(err, negotiation.ErrNotActive),
		errors.Is(err, contract.ErrInvalidTransition),
		errors.Is(err, contract.ErrImmutable),
		errors.Is(err, store.ErrSentimentSet):
		utils.JSONError(w, http.StatusConflict, err.Error())
	default:
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func isAdmin(r *http.Request) bool {
	return r.Header.Get("X-Role-Name") == "admin"
}

func isBackend(r *http.Request) bool {
	role := r.Header.Get("X-Role-Name")
	return role == "backend" || role == "admin"
}
