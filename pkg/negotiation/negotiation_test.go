package negotiation

import (
	"errors"
	"reflect"
	"testing"

	"dealdesk/pkg/models"
)

func TestNormalizeParticipants(t *testing.T) {
	in := []string{" alice ", "bob", "", "alice", "  ", "carol"}
	got := NormalizeParticipants(in)
	want := []string{"alice", "bob", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeParticipants(%v) = %v; want %v", in, got, want)
	}
}

func TestValidateCreate(t *testing.T) {
	if err := ValidateCreate("deal", []string{"alice"}); err != nil {
		t.Fatalf("valid create rejected: %v", err)
	}
	if err := ValidateCreate("  ", []string{"alice"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank title should fail: %v", err)
	}
	if err := ValidateCreate("deal", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty participants should fail: %v", err)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.NegotiationStatus
		ok       bool
	}{
		{models.NegotiationActive, models.NegotiationCompleted, true},
		{models.NegotiationActive, models.NegotiationCancelled, true},
		{models.NegotiationActive, models.NegotiationActive, false},
		{models.NegotiationCompleted, models.NegotiationCancelled, false},
		{models.NegotiationCancelled, models.NegotiationCompleted, false},
		{models.NegotiationActive, models.NegotiationStatus("archived"), false},
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

func TestValidateAppend(t *testing.T) {
	active := &models.Negotiation{Status: models.NegotiationActive}
	done := &models.Negotiation{Status: models.NegotiationCompleted}

	if err := ValidateAppend(active, "hello", models.KindText); err != nil {
		t.Fatalf("valid append rejected: %v", err)
	}
	if err := ValidateAppend(done, "hello", models.KindText); !errors.Is(err, ErrNotActive) {
		t.Fatalf("append on completed should fail with ErrNotActive; got %v", err)
	}
	if err := ValidateAppend(active, "  ", models.KindText); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank body should fail: %v", err)
	}
	if err := ValidateAppend(active, "hello", models.MessageKind("emoji")); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown kind should fail: %v", err)
	}
}
