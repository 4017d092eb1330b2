package models

// NegotiationStatus is the lifecycle state of a negotiation.
type NegotiationStatus string

const (
	NegotiationActive    NegotiationStatus = "active"
	NegotiationCompleted NegotiationStatus = "completed"
	NegotiationCancelled NegotiationStatus = "cancelled"
)

// Terminal reports whether no further transitions or message appends are
// permitted from this status.
func (s NegotiationStatus) Terminal() bool {
	return s == NegotiationCompleted || s == NegotiationCancelled
}

// Valid reports whether s is a known status.
func (s NegotiationStatus) Valid() bool {
	switch s {
	case NegotiationActive, NegotiationCompleted, NegotiationCancelled:
		return true
	}
	return false
}

type Negotiation struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Description is free-form and optional.
	Description string `json:"description,omitempty"`
	// Participants is the deduplicated, order-preserving set of
	// participant identifiers supplied at creation.
	Participants []string          `json:"participants"`
	CreatedBy    string            `json:"created_by"`
	Status       NegotiationStatus `json:"status"`
	// AIEnabled marks the negotiation for asynchronous sentiment and
	// suggestion analysis after each text message.
	AIEnabled bool `json:"ai_assistant_enabled"`
	// Created/Updated timestamps (ns).
	CreatedTS int64 `json:"created_ts"`
	UpdatedTS int64 `json:"updated_ts,omitempty"`
}
