package utils

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIDPrefixes(t *testing.T) {
	cases := []struct {
		gen    func() string
		prefix string
	}{
		{GenNegotiationID, "neg_"},
		{GenMessageID, "msg_"},
		{GenContractID, "ctr_"},
		{GenTemplateID, "tpl_"},
		{GenCollaboratorID, "col_"},
		{GenSignatureID, "sig_"},
	}
	for _, c := range cases {
		id := c.gen()
		if !strings.HasPrefix(id, c.prefix) {
			t.Errorf("id %q missing prefix %q", id, c.prefix)
		}
		if len(id) != len(c.prefix)+26 {
			t.Errorf("id %q has unexpected length", id)
		}
	}
}

func TestIDsAreSortableByCreation(t *testing.T) {
	a := GenMessageID()
	b := GenMessageID()
	if !(a < b) {
		t.Fatalf("ids not monotonic: %q then %q", a, b)
	}
}

func TestMakeSlug(t *testing.T) {
	got := MakeSlug("Night Drive (Remix)!", "ctr_01ABCDEFGH")
	if !strings.HasPrefix(got, "night-drive-remix-") {
		t.Fatalf("slug = %q", got)
	}
	// empty titles fall back to the id
	if got := MakeSlug("  ", "ctr_X"); got != "ctr_X" {
		t.Fatalf("fallback slug = %q", got)
	}
}

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, 404, "not found")
	if rec.Code != 404 {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "not found" {
		t.Fatalf("body = %v", body)
	}
}

func TestJSONWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := JSONWrite(rec, 201, map[string]int{"n": 1}); err != nil {
		t.Fatalf("JSONWrite: %v", err)
	}
	if rec.Code != 201 {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"n":1}` {
		t.Fatalf("body = %q", got)
	}
}
