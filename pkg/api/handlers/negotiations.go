package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"dealdesk/pkg/auth"
	"dealdesk/pkg/logger"
	"dealdesk/pkg/models"
	"dealdesk/pkg/negotiation"
	"dealdesk/pkg/store"
	"dealdesk/pkg/utils"
)

// RegisterNegotiations registers negotiation and conversation routes
// onto the provided router.
func RegisterNegotiations(r *mux.Router) {
	r.HandleFunc("/negotiations", createNegotiation).Methods(http.MethodPost)
	r.HandleFunc("/negotiations", listNegotiations).Methods(http.MethodGet)
	r.HandleFunc("/negotiations/{id}", getNegotiation).Methods(http.MethodGet)
	r.HandleFunc("/negotiations/{id}/status", transitionNegotiation).Methods(http.MethodPatch)

	r.HandleFunc("/negotiations/{id}/conversations", appendConversationMessage).Methods(http.MethodPost)
	r.HandleFunc("/negotiations/{id}/conversations", listConversation).Methods(http.MethodGet)
}

// createNegotiation handles POST /negotiations. The creator is taken
// from the verified actor and always added to the participant set.
func createNegotiation(w http.ResponseWriter, r *http.Request) {
	var n models.Negotiation
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	actor, code, msg := auth.ResolveActorFromRequest(r, n.CreatedBy)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	n.CreatedBy = actor
	n.Participants = negotiation.NormalizeParticipants(append(n.Participants, actor))
	if err := negotiation.ValidateCreate(n.Title, n.Participants); err != nil {
		writeErr(w, err)
		return
	}
	n.ID = utils.GenNegotiationID()
	n.Status = models.NegotiationActive
	n.CreatedTS = time.Now().UTC().UnixNano()
	n.UpdatedTS = n.CreatedTS
	if err := store.CreateNegotiation(&n); err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("negotiation_created", "negotiation", n.ID, "creator", actor)
	utils.JSONWrite(w, http.StatusCreated, n)
}

// listNegotiations handles GET /negotiations. Results are scoped to
// negotiations the resolved actor participates in; "status" and
// "title" filters are optional.
func listNegotiations(w http.ResponseWriter, r *http.Request) {
	actor, code, msg := auth.ResolveActorFromRequest(r, "")
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	statusQ := r.URL.Query().Get("status")
	titleQ := r.URL.Query().Get("title")

	all, err := store.ListNegotiations()
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]models.Negotiation, 0, len(all))
	for _, n := range all {
		if !participant(n.Participants, actor) && n.CreatedBy != actor {
			continue
		}
		if statusQ != "" && string(n.Status) != statusQ {
			continue
		}
		if titleQ != "" && !strings.Contains(strings.ToLower(n.Title), strings.ToLower(titleQ)) {
			continue
		}
		out = append(out, n)
	}
	utils.JSONWrite(w, http.StatusOK, struct {
		Negotiations []models.Negotiation `json:"negotiations"`
	}{Negotiations: out})
}

// getNegotiation handles GET /negotiations/{id}.
func getNegotiation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actor, code, msg := auth.ResolveActorFromRequest(r, "")
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	n, err := store.GetNegotiation(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !participant(n.Participants, actor) && n.CreatedBy != actor && !isBackend(r) {
		utils.JSONError(w, http.StatusForbidden, "not a participant")
		return
	}
	utils.JSONWrite(w, http.StatusOK, n)
}

// transitionNegotiation handles PATCH /negotiations/{id}/status with a
// body of {"status": "completed"|"cancelled"}.
func transitionNegotiation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Status models.NegotiationStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	actor, code, msg := auth.ResolveActorFromRequest(r, "")
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	if !body.Status.Valid() {
		utils.JSONError(w, http.StatusBadRequest, "invalid status")
		return
	}
	cur, err := store.GetNegotiation(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !participant(cur.Participants, actor) && cur.CreatedBy != actor && !isBackend(r) {
		utils.JSONError(w, http.StatusForbidden, "not a participant")
		return
	}
	n, err := store.TransitionNegotiation(id, body.Status, actor)
	if err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("negotiation_transitioned", "negotiation", id, "status", string(body.Status), "actor", actor)
	utils.JSONWrite(w, http.StatusOK, n)
}

func participant(list []string, actor string) bool {
	for _, p := range list {
		if p == actor {
			return true
		}
	}
	return false
}
