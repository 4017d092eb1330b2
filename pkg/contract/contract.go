// Package contract holds the contract lifecycle rules: legal status
// moves, create validation and the sign-off bookkeeping that decides
// when a contract counts as fully signed.
package contract

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
	// current state.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrImmutable marks an edit attempted after the draft stage.
	ErrImmutable = errors.New("contract is no longer editable")
)

// transitions maps each status to the set of legal targets. Moves are
// monotonic toward signed or cancelled.
var transitions = map[models.ContractStatus][]models.ContractStatus{
	models.ContractDraft:   {models.ContractPending, models.ContractCancelled},
	models.ContractPending: {models.ContractSigned, models.ContractCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle change.
func CanTransition(from, to models.ContractStatus) error {
	if !to.Valid() || to == models.ContractDraft {
		return fmt.Errorf("%w: target status %q not allowed", ErrInvalidTransition, to)
	}
	for _, t := range transitions[from] {
		if t == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// ValidateCreate checks a contract create request.
func ValidateCreate(c *models.Contract) error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(c.Type) == "" {
		return fmt.Errorf("%w: type is required", ErrValidation)
	}
	if c.Data == nil {
		return fmt.Errorf("%w: data is required", ErrValidation)
	}
	return nil
}

// ValidateCollaborator checks a collaborator add request. existing is
// the current collaborator set; ownership percentages, when present,
// must not exceed 100 in total.
func ValidateCollaborator(col *models.Collaborator, existing []models.Collaborator) error {
	if strings.TrimSpace(col.Name) == "" {
		return fmt.Errorf("%w: collaborator name is required", ErrValidation)
	}
	if strings.TrimSpace(col.Role) == "" {
		return fmt.Errorf("%w: collaborator role is required", ErrValidation)
	}
	if col.OwnershipPct != nil {
		pct := *col.OwnershipPct
		if pct < 0 || pct > 100 {
			return fmt.Errorf("%w: ownership percentage %v out of range", ErrValidation, pct)
		}
		total := pct
		for _, e := range existing {
			if e.OwnershipPct != nil {
				total += *e.OwnershipPct
			}
		}
		if total > 100 {
			return fmt.Errorf("%w: ownership percentages exceed 100%%", ErrValidation)
		}
	}
	return nil
}

// AllSigned reports whether every collaborator in the set has signed.
// An empty set never counts as fully signed.
func AllSigned(cols []models.Collaborator) bool {
	if len(cols) == 0 {
		return false
	}
	for _, c := range cols {
		if c.Status != models.CollaboratorSigned {
			return false
		}
	}
	return true
}
