package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"dealdesk/pkg/models"
	"dealdesk/pkg/store"
	"dealdesk/pkg/utils"
)

// RegisterTemplates registers the read-only template routes.
func RegisterTemplates(r *mux.Router) {
	r.HandleFunc("/templates", listTemplates).Methods(http.MethodGet)
	r.HandleFunc("/templates/{id}", getTemplate).Methods(http.MethodGet)
}

func listTemplates(w http.ResponseWriter, r *http.Request) {
	all, err := store.ListTemplates()
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]models.ContractTemplate, 0, len(all))
	for _, t := range all {
		if !t.Active {
			continue
		}
		out = append(out, t)
	}
	utils.JSONWrite(w, http.StatusOK, struct {
		Templates []models.ContractTemplate `json:"templates"`
	}{Templates: out})
}

func getTemplate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, err := store.GetTemplate(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, t)
}
