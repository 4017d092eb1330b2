package contract

import (
	"errors"
	"testing"

	"dealdesk/pkg/models"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.ContractStatus
		ok       bool
	}{
		{models.ContractDraft, models.ContractPending, true},
		{models.ContractDraft, models.ContractCancelled, true},
		{models.ContractDraft, models.ContractSigned, false},
		{models.ContractPending, models.ContractSigned, true},
		{models.ContractPending, models.ContractCancelled, true},
		{models.ContractPending, models.ContractDraft, false},
		{models.ContractSigned, models.ContractCancelled, false},
		{models.ContractCancelled, models.ContractPending, false},
		{models.ContractDraft, models.ContractStatus("archived"), false},
	}
	for _, c := range cases {
		err := CanTransition(c.from, c.to)
		if c.ok && err != nil {
			t.Errorf("%s -> %s should be legal: %v", c.from, c.to, err)
		}
		if !c.ok && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s -> %s should fail with ErrInvalidTransition; got %v", c.from, c.to, err)
		}
	}
}

func TestValidateCreate(t *testing.T) {
	ok := &models.Contract{Title: "t", Type: "split-sheet", Data: map[string]interface{}{}}
	if err := ValidateCreate(ok); err != nil {
		t.Fatalf("valid contract rejected: %v", err)
	}
	for _, c := range []*models.Contract{
		{Type: "split-sheet", Data: map[string]interface{}{}},
		{Title: "t", Data: map[string]interface{}{}},
		{Title: "t", Type: "split-sheet"},
	} {
		if err := ValidateCreate(c); !errors.Is(err, ErrValidation) {
			t.Errorf("incomplete contract %+v should fail; got %v", c, err)
		}
	}
}

func pct(v float64) *float64 { return &v }

func TestValidateCollaborator(t *testing.T) {
	existing := []models.Collaborator{
		{Name: "alice", Role: "songwriter", OwnershipPct: pct(60)},
	}

	if err := ValidateCollaborator(&models.Collaborator{Name: "bob", Role: "producer", OwnershipPct: pct(40)}, existing); err != nil {
		t.Fatalf("40%% on top of 60%% should pass: %v", err)
	}
	if err := ValidateCollaborator(&models.Collaborator{Name: "bob", Role: "producer", OwnershipPct: pct(41)}, existing); !errors.Is(err, ErrValidation) {
		t.Fatalf("41%% on top of 60%% should fail; got %v", err)
	}
	if err := ValidateCollaborator(&models.Collaborator{Name: "bob", Role: "producer", OwnershipPct: pct(-1)}, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative percentage should fail; got %v", err)
	}
	// no percentage is fine regardless of the existing total
	if err := ValidateCollaborator(&models.Collaborator{Name: "bob", Role: "engineer"}, existing); err != nil {
		t.Fatalf("collaborator without ownership rejected: %v", err)
	}
	if err := ValidateCollaborator(&models.Collaborator{Role: "producer"}, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing name should fail; got %v", err)
	}
	if err := ValidateCollaborator(&models.Collaborator{Name: "bob"}, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing role should fail; got %v", err)
	}
}

func TestAllSigned(t *testing.T) {
	if AllSigned(nil) {
		t.Fatal("empty set must not count as fully signed")
	}
	mixed := []models.Collaborator{
		{Status: models.CollaboratorSigned},
		{Status: models.CollaboratorPending},
	}
	if AllSigned(mixed) {
		t.Fatal("pending collaborator should block full sign-off")
	}
	all := []models.Collaborator{
		{Status: models.CollaboratorSigned},
		{Status: models.CollaboratorSigned},
	}
	if !AllSigned(all) {
		t.Fatal("expected fully signed")
	}
}
