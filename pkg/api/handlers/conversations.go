package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"dealdesk/pkg/analysis"
	"dealdesk/pkg/auth"
	"dealdesk/pkg/logger"
	"dealdesk/pkg/models"
	"dealdesk/pkg/store"
	"dealdesk/pkg/telemetry"
	"dealdesk/pkg/utils"
)

// appendConversationMessage handles POST /negotiations/{id}/conversations.
// Text messages are durable before the handler returns; sentiment
// scoring and assistant suggestions happen asynchronously.
func appendConversationMessage(w http.ResponseWriter, r *http.Request) {
	telemetry.SetRequestOp(r.Context(), "append_message")
	negID := mux.Vars(r)["id"]

	var m models.ConversationMessage
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	actor, code, msg := auth.ResolveActorFromRequest(r, m.Sender)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	m.Sender = actor
	m.Negotiation = negID
	if m.Kind == "" {
		m.Kind = models.KindText
	}
	// clients only author text; ai_suggestion and system entries are
	// produced server-side
	if m.Kind != models.KindText && !isBackend(r) {
		utils.JSONError(w, http.StatusForbidden, "message kind not allowed")
		return
	}
	m.Sentiment = nil

	n, err := store.GetNegotiation(negID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !participant(n.Participants, actor) && n.CreatedBy != actor && !isBackend(r) {
		utils.JSONError(w, http.StatusForbidden, "not a participant")
		return
	}

	span := telemetry.StartSpan(r.Context(), "store.append_message")
	err = store.AppendMessage(&m)
	span()
	if err != nil {
		writeErr(w, err)
		return
	}

	// analysis is best-effort: a full queue never fails the append
	if m.Kind == models.KindText {
		if err := analysis.DefaultQueue.TryEnqueue(&analysis.Job{
			Negotiation: negID,
			MessageID:   m.ID,
			Sender:      m.Sender,
			Body:        []byte(m.Body),
			AIEnabled:   n.AIEnabled,
		}); err != nil {
			logger.Warn("analysis_enqueue_failed", "negotiation", negID, "message", m.ID, "error", err)
		}
	}

	utils.JSONWrite(w, http.StatusCreated, m)
}

// listConversation handles GET /negotiations/{id}/conversations.
// Optional query parameters:
//   - "limit": number of most recent messages to return
//   - "after": exclusive message-id cursor for incremental polling
//
// The response carries an "analyzing" flag so pollers know whether
// sentiment results are still pending.
func listConversation(w http.ResponseWriter, r *http.Request) {
	negID := mux.Vars(r)["id"]
	actor, code, msg := auth.ResolveActorFromRequest(r, "")
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}

	n, err := store.GetNegotiation(negID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !participant(n.Participants, actor) && n.CreatedBy != actor && !isBackend(r) {
		utils.JSONError(w, http.StatusForbidden, "not a participant")
		return
	}

	limit := 0
	if limStr := r.URL.Query().Get("limit"); limStr != "" {
		lim, err := strconv.Atoi(limStr)
		if err != nil || lim < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = lim
	}
	after := r.URL.Query().Get("after")

	msgs, err := store.ListMessages(negID, limit, after)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, struct {
		Negotiation string                       `json:"negotiation"`
		Status      models.NegotiationStatus     `json:"status"`
		Analyzing   bool                         `json:"analyzing"`
		Messages    []models.ConversationMessage `json:"messages"`
	}{
		Negotiation: negID,
		Status:      n.Status,
		Analyzing:   analysis.Pending(negID),
		Messages:    msgs,
	})
}
