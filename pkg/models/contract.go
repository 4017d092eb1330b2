package models

// ContractStatus is the lifecycle state of a contract.
type ContractStatus string

const (
	ContractDraft     ContractStatus = "draft"
	ContractPending   ContractStatus = "pending"
	ContractSigned    ContractStatus = "signed"
	ContractCancelled ContractStatus = "cancelled"
)

func (s ContractStatus) Valid() bool {
	switch s {
	case ContractDraft, ContractPending, ContractSigned, ContractCancelled:
		return true
	}
	return false
}

// Terminal reports whether the contract accepts no further status change.
func (s ContractStatus) Terminal() bool {
	return s == ContractSigned || s == ContractCancelled
}

// Contract is a filled-in agreement derived from a template. Data holds
// the structured form payload; its shape is driven by the template and
// checked by the validation rules engine.
type Contract struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Type       string         `json:"type"`
	Status     ContractStatus `json:"status"`
	TemplateID string         `json:"template_id,omitempty"`
	CreatedBy  string         `json:"created_by"`
	Data       interface{}    `json:"data"`
	Metadata   interface{}    `json:"metadata,omitempty"`
	CreatedTS  int64          `json:"created_ts"`
	UpdatedTS  int64          `json:"updated_ts,omitempty"`
	// Deleted marks a contract as soft-deleted; DeletedTS records when.
	// Purge is handled by the retention sweeper.
	Deleted   bool  `json:"deleted,omitempty"`
	DeletedTS int64 `json:"deleted_ts,omitempty"`
}

// CollaboratorStatus tracks per-collaborator sign-off.
type CollaboratorStatus string

const (
	CollaboratorPending  CollaboratorStatus = "pending"
	CollaboratorSigned   CollaboratorStatus = "signed"
	CollaboratorDeclined CollaboratorStatus = "declined"
)

// Collaborator is one party on a contract. Email covers parties without
// an account; OwnershipPct is optional (split-sheet style contracts).
type Collaborator struct {
	ID           string             `json:"id"`
	Contract     string             `json:"contract"`
	UserID       string             `json:"user_id,omitempty"`
	Email        string             `json:"email,omitempty"`
	Name         string             `json:"name"`
	Role         string             `json:"role"`
	OwnershipPct *float64           `json:"ownership_pct,omitempty"`
	Status       CollaboratorStatus `json:"status"`
	SignedTS     int64              `json:"signed_ts,omitempty"`
	CreatedTS    int64              `json:"created_ts"`
}

// Signature is the durable record of one collaborator signing.
type Signature struct {
	ID           string `json:"id"`
	Contract     string `json:"contract"`
	Collaborator string `json:"collaborator"`
	// SignatureData is the base64-encoded drawn/typed signature.
	SignatureData string `json:"signature_data,omitempty"`
	IPAddress     string `json:"ip_address,omitempty"`
	UserAgent     string `json:"user_agent,omitempty"`
	SignedTS      int64  `json:"signed_ts"`
}
