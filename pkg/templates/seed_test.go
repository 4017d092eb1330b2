package templates

import (
	"testing"

	"dealdesk/pkg/store"
)

func TestSeedIsIdempotent(t *testing.T) {
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	first, err := store.ListTemplates()
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(first) != len(builtin) {
		t.Fatalf("expected %d templates; got %d", len(builtin), len(first))
	}
	for _, tpl := range first {
		if tpl.ID == "" || !tpl.Active || tpl.CreatedTS == 0 {
			t.Fatalf("template not fully populated: %+v", tpl)
		}
		if len(tpl.Template.Fields) == 0 || len(tpl.Template.LegalClauses) == 0 {
			t.Fatalf("template body empty: %s", tpl.Name)
		}
	}

	// second run must not duplicate
	if err := Seed(); err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	second, err := store.ListTemplates()
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(second) != len(first) {
		t.Fatalf("reseed duplicated templates: %d -> %d", len(first), len(second))
	}
}
