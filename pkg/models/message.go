package models

// MessageKind distinguishes who (or what) authored a conversation entry.
type MessageKind string

const (
	KindText         MessageKind = "text"
	KindAISuggestion MessageKind = "ai_suggestion"
	KindSystem       MessageKind = "system"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindAISuggestion, KindSystem:
		return true
	}
	return false
}

// ConversationMessage is one entry in a negotiation's ordered log.
// Messages are immutable once written; the only later write is the
// single sentiment attach performed by the analysis worker.
type ConversationMessage struct {
	ID          string      `json:"id"`
	Negotiation string      `json:"negotiation"`
	Sender      string      `json:"sender"`
	Body        string      `json:"body"`
	Kind        MessageKind `json:"kind"`
	// Sentiment is nil until analysis completes; bounded to [-1, 1].
	Sentiment *float64 `json:"sentiment,omitempty"`
	// TS is the server-assigned creation timestamp (ns).
	TS int64 `json:"ts"`
}
