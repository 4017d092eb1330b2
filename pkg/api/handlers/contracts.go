package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"dealdesk/pkg/auth"
	"dealdesk/pkg/contract"
	"dealdesk/pkg/logger"
	"dealdesk/pkg/models"
	"dealdesk/pkg/store"
	"dealdesk/pkg/utils"
	"dealdesk/pkg/validation"
)

// RegisterContracts registers contract, collaborator and signature
// routes onto the provided router.
func RegisterContracts(r *mux.Router) {
	r.HandleFunc("/contracts", createContract).Methods(http.MethodPost)
	r.HandleFunc("/contracts", listContracts).Methods(http.MethodGet)
	r.HandleFunc("/contracts/{id}", getContract).Methods(http.MethodGet)
	r.HandleFunc("/contracts/{id}", updateContract).Methods(http.MethodPut)
	r.HandleFunc("/contracts/{id}", deleteContract).Methods(http.MethodDelete)
	r.HandleFunc("/contracts/{id}/status", transitionContract).Methods(http.MethodPatch)

	r.HandleFunc("/contracts/{id}/collaborators", addCollaborator).Methods(http.MethodPost)
	r.HandleFunc("/contracts/{id}/collaborators", listCollaborators).Methods(http.MethodGet)
	r.HandleFunc("/contracts/{id}/signatures", listSignatures).Methods(http.MethodGet)

	r.HandleFunc("/collaborators/{colID}/sign", signCollaborator).Methods(http.MethodPost)
	r.HandleFunc("/collaborators/{colID}/decline", declineCollaborator).Methods(http.MethodPost)
}

// createContract handles POST /contracts. When a template id is
// supplied the payload is checked against the template's required
// fields along with the configured validation rules.
func createContract(w http.ResponseWriter, r *http.Request) {
	var c models.Contract
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	actor, code, msg := auth.ResolveActorFromRequest(r, c.CreatedBy)
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	c.CreatedBy = actor
	c.ID = utils.GenContractID()
	c.Status = models.ContractDraft
	c.CreatedTS = time.Now().UTC().UnixNano()
	c.UpdatedTS = c.CreatedTS
	c.Deleted = false
	c.DeletedTS = 0

	// resolve the template first so a missing type can inherit from it
	var tpl *models.ContractTemplate
	if c.TemplateID != "" {
		t, err := store.GetTemplate(c.TemplateID)
		if err != nil {
			writeErr(w, err)
			return
		}
		tpl = t
		if c.Type == "" {
			c.Type = t.Type
		}
	}
	if err := contract.ValidateCreate(&c); err != nil {
		writeErr(w, err)
		return
	}
	if err := validation.ValidateContract(&c, tpl); err != nil {
		writeErr(w, err)
		return
	}
	if err := store.CreateContract(&c); err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("contract_created", "contract", c.ID, "type", c.Type, "creator", actor)
	utils.JSONWrite(w, http.StatusCreated, c)
}

// listContracts handles GET /contracts, scoped to contracts the actor
// created. Soft-deleted contracts are excluded.
func listContracts(w http.ResponseWriter, r *http.Request) {
	actor, code, msg := auth.ResolveActorFromRequest(r, "")
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	statusQ := r.URL.Query().Get("status")
	all, err := store.ListContracts()
	if err != nil {
		writeErr(w, err)
		return
	}
	out := make([]models.Contract, 0, len(all))
	for _, c := range all {
		if c.Deleted {
			continue
		}
		if c.CreatedBy != actor && !isBackend(r) {
			continue
		}
		if statusQ != "" && string(c.Status) != statusQ {
			continue
		}
		out = append(out, c)
	}
	utils.JSONWrite(w, http.StatusOK, struct {
		Contracts []models.Contract `json:"contracts"`
	}{Contracts: out})
}

func getContract(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, code, msg := auth.ResolveActorFromRequest(r, ""); code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	c, err := store.GetContract(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if c.Deleted {
		utils.JSONError(w, http.StatusNotFound, "not found")
		return
	}
	utils.JSONWrite(w, http.StatusOK, c)
}

// updateContract handles PUT /contracts/{id}; only drafts are mutable.
func updateContract(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Title    string      `json:"title"`
		Data     interface{} `json:"data"`
		Metadata interface{} `json:"metadata"`
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
	existing, err := store.GetContract(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if existing.CreatedBy != actor && !isBackend(r) {
		utils.JSONError(w, http.StatusForbidden, "not the contract owner")
		return
	}
	c, err := store.UpdateContract(id, body.Title, body.Data, body.Metadata)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, c)
}

// deleteContract handles DELETE /contracts/{id} as a soft delete; the
// retention sweeper purges the record later.
func deleteContract(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actor, code, msg := auth.ResolveActorFromRequest(r, "")
	if code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	c, err := store.GetContract(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	if c.CreatedBy != actor && !isAdmin(r) {
		utils.JSONError(w, http.StatusForbidden, "not the contract owner")
		return
	}
	if err := store.SoftDeleteContract(id); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transitionContract handles PATCH /contracts/{id}/status with a body
// of {"status": "pending"|"signed"|"cancelled"}.
func transitionContract(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Status models.ContractStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if _, code, msg := auth.ResolveActorFromRequest(r, ""); code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	if !body.Status.Valid() {
		utils.JSONError(w, http.StatusBadRequest, "invalid status")
		return
	}
	c, err := store.TransitionContract(id, body.Status)
	if err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("contract_transitioned", "contract", id, "status", string(body.Status))
	utils.JSONWrite(w, http.StatusOK, c)
}

// addCollaborator handles POST /contracts/{id}/collaborators.
func addCollaborator(w http.ResponseWriter, r *http.Request) {
	contractID := mux.Vars(r)["id"]
	var col models.Collaborator
	if err := json.NewDecoder(r.Body).Decode(&col); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if _, code, msg := auth.ResolveActorFromRequest(r, ""); code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	col.ID = utils.GenCollaboratorID()
	col.Contract = contractID
	col.Status = models.CollaboratorPending
	col.SignedTS = 0
	col.CreatedTS = time.Now().UTC().UnixNano()
	if err := store.AddCollaborator(&col); err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusCreated, col)
}

func listCollaborators(w http.ResponseWriter, r *http.Request) {
	contractID := mux.Vars(r)["id"]
	if _, code, msg := auth.ResolveActorFromRequest(r, ""); code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	if _, err := store.GetContract(contractID); err != nil {
		writeErr(w, err)
		return
	}
	cols, err := store.ListCollaborators(contractID)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, struct {
		Contract      string                `json:"contract"`
		Collaborators []models.Collaborator `json:"collaborators"`
	}{Contract: contractID, Collaborators: cols})
}

func listSignatures(w http.ResponseWriter, r *http.Request) {
	contractID := mux.Vars(r)["id"]
	if _, code, msg := auth.ResolveActorFromRequest(r, ""); code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	if _, err := store.GetContract(contractID); err != nil {
		writeErr(w, err)
		return
	}
	sigs, err := store.ListSignatures(contractID)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, struct {
		Contract   string             `json:"contract"`
		Signatures []models.Signature `json:"signatures"`
	}{Contract: contractID, Signatures: sigs})
}

// signCollaborator handles POST /collaborators/{colID}/sign. When the
// last outstanding collaborator signs, the contract flips to signed.
func signCollaborator(w http.ResponseWriter, r *http.Request) {
	colID := mux.Vars(r)["colID"]
	var body struct {
		SignatureData string `json:"signature_data"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	if _, code, msg := auth.ResolveActorFromRequest(r, ""); code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	col, err := store.GetCollaborator(colID)
	if err != nil {
		writeErr(w, err)
		return
	}
	sig := &models.Signature{
		ID:            utils.GenSignatureID(),
		Contract:      col.Contract,
		Collaborator:  colID,
		SignatureData: body.SignatureData,
		IPAddress:     r.RemoteAddr,
		UserAgent:     r.UserAgent(),
	}
	if err := store.RecordSignature(sig); err != nil {
		writeErr(w, err)
		return
	}
	logger.Info("collaborator_signed", "contract", col.Contract, "collaborator", colID)
	utils.JSONWrite(w, http.StatusCreated, sig)
}

func declineCollaborator(w http.ResponseWriter, r *http.Request) {
	colID := mux.Vars(r)["colID"]
	if _, code, msg := auth.ResolveActorFromRequest(r, ""); code != 0 {
		utils.JSONError(w, code, msg)
		return
	}
	col, err := store.DeclineCollaborator(colID)
	if err != nil {
		writeErr(w, err)
		return
	}
	utils.JSONWrite(w, http.StatusOK, col)
}
