// Package negotiation holds the negotiation lifecycle rules: which
// status transitions are legal and what a well-formed create request
// looks like. Persistence lives in pkg/store; handlers wire the two.
package negotiation

import (
	"errors"
	"fmt"
	"strings"

	"dealdesk/pkg/models"
)

var (
	// ErrValidation marks malformed or missing caller input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition marks a status change not permitted from the
	// current state. The caller should re-read the record.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotActive marks a message append attempted on a negotiation in
	// a terminal status.
	ErrNotActive = errors.New("negotiation is not active")
)

// NormalizeParticipants trims, drops empties and deduplicates while
// preserving first-seen order.
func NormalizeParticipants(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, p := range in {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ValidateCreate checks a create request. Participants must already be
// normalized.
func ValidateCreate(title string, participants []string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(participants) == 0 {
		return fmt.Errorf("%w: at least one participant is required", ErrValidation)
	}
	return nil
}

// CanTransition reports whether from -> to is a legal lifecycle change.
// The only legal moves are active -> completed and active -> cancelled.
func CanTransition(from, to models.NegotiationStatus) error {
	if !to.Valid() || to == models.NegotiationActive {
		return fmt.Errorf("%w: target status %q not allowed", ErrInvalidTransition, to)
	}
	if from.Terminal() {
		return fmt.Errorf("%w: negotiation already %s", ErrInvalidTransition, from)
	}
	if from != models.NegotiationActive {
		return fmt.Errorf("%w: unknown current status %q", ErrInvalidTransition, from)
	}
	return nil
}

// ValidateAppend checks a message append against the negotiation state
// and the message payload.
func ValidateAppend(n *models.Negotiation, body string, kind models.MessageKind) error {
	if n.Status != models.NegotiationActive {
		return fmt.Errorf("%w: status is %s", ErrNotActive, n.Status)
	}
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("%w: message body is required", ErrValidation)
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown message kind %q", ErrValidation, kind)
	}
	return nil
}
