package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dealdesk/pkg/analysis"
	"dealdesk/pkg/config"
	"dealdesk/pkg/models"
	"dealdesk/pkg/store"
	"dealdesk/pkg/templates"
)

// newTestAPI opens a fresh store, seeds templates, wires an analysis
// worker and returns a live test server.
func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	if err := templates.Seed(); err != nil {
		t.Fatalf("templates.Seed: %v", err)
	}
	q := analysis.NewQueue(64)
	analysis.SetDefaultQueue(q)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() { analysis.RunWorker(q, analysis.LexiconScorer{}, stop); close(done) }()

	srv := httptest.NewServer(Handler())
	t.Cleanup(func() {
		srv.Close()
		close(stop)
		<-done
		_ = store.Close()
	})
	return srv
}

// doJSON issues a request as the given backend-role actor and decodes
// the JSON response into out (when non-nil).
func doJSON(t *testing.T, method, url, actor string, body interface{}, out interface{}) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role-Name", "backend")
	if actor != "" {
		req.Header.Set("X-User-ID", actor)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer res.Body.Close()
	if out != nil {
		_ = json.NewDecoder(res.Body).Decode(out)
	}
	return res.StatusCode
}

func TestNegotiationConversationFlow(t *testing.T) {
	srv := newTestAPI(t)

	// create
	var neg models.Negotiation
	status := doJSON(t, "POST", srv.URL+"/v1/negotiations", "alice", map[string]interface{}{
		"title":                "sync license for indie film",
		"participants":         []string{"bob"},
		"ai_assistant_enabled": false,
	}, &neg)
	if status != http.StatusCreated {
		t.Fatalf("create negotiation: %d", status)
	}
	if neg.ID == "" || neg.Status != models.NegotiationActive {
		t.Fatalf("unexpected negotiation: %+v", neg)
	}
	// creator is always a participant
	found := false
	for _, p := range neg.Participants {
		if p == "alice" {
			found = true
		}
	}
	if !found {
		t.Fatalf("creator missing from participants: %v", neg.Participants)
	}

	// append two text messages as each side
	var m1, m2 models.ConversationMessage
	if s := doJSON(t, "POST", srv.URL+"/v1/negotiations/"+neg.ID+"/conversations", "alice", map[string]string{"body": "We agree, great deal"}, &m1); s != http.StatusCreated {
		t.Fatalf("append m1: %d", s)
	}
	if s := doJSON(t, "POST", srv.URL+"/v1/negotiations/"+neg.ID+"/conversations", "bob", map[string]string{"body": "The advance is unacceptable"}, &m2); s != http.StatusCreated {
		t.Fatalf("append m2: %d", s)
	}

	// wait for the worker to attach sentiment to both
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		m, err := store.GetMessage(m2.ID)
		if err == nil && m.Sentiment != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	// full listing
	var conv struct {
		Negotiation string                       `json:"negotiation"`
		Status      models.NegotiationStatus     `json:"status"`
		Analyzing   bool                         `json:"analyzing"`
		Messages    []models.ConversationMessage `json:"messages"`
	}
	if s := doJSON(t, "GET", srv.URL+"/v1/negotiations/"+neg.ID+"/conversations", "alice", nil, &conv); s != http.StatusOK {
		t.Fatalf("list conversation: %d", s)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages; got %d", len(conv.Messages))
	}
	if conv.Messages[0].Sentiment == nil || *conv.Messages[0].Sentiment <= 0 {
		t.Fatalf("positive message scored %v", conv.Messages[0].Sentiment)
	}
	if conv.Messages[1].Sentiment == nil || *conv.Messages[1].Sentiment >= 0 {
		t.Fatalf("negative message scored %v", conv.Messages[1].Sentiment)
	}

	// incremental poll with a cursor
	if s := doJSON(t, "GET", srv.URL+"/v1/negotiations/"+neg.ID+"/conversations?after="+m1.ID, "alice", nil, &conv); s != http.StatusOK {
		t.Fatalf("cursor poll: %d", s)
	}
	if len(conv.Messages) != 1 || conv.Messages[0].ID != m2.ID {
		t.Fatalf("unexpected cursor window: %+v", conv.Messages)
	}

	// bad limit is a 400
	if s := doJSON(t, "GET", srv.URL+"/v1/negotiations/"+neg.ID+"/conversations?limit=abc", "alice", nil, nil); s != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit; got %d", s)
	}

	// non-participants cannot read; backend role bypasses the check, so
	// drop the role header for this request
	req, _ := http.NewRequest("GET", srv.URL+"/v1/negotiations/"+neg.ID+"/conversations?actor=mallory", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("outsider request: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unsigned outsider should get 401; got %d", res.StatusCode)
	}

	// complete the negotiation; further appends conflict
	if s := doJSON(t, "PATCH", srv.URL+"/v1/negotiations/"+neg.ID+"/status", "alice", map[string]string{"status": "completed"}, nil); s != http.StatusOK {
		t.Fatalf("transition: %d", s)
	}
	if s := doJSON(t, "POST", srv.URL+"/v1/negotiations/"+neg.ID+"/conversations", "alice", map[string]string{"body": "one more thing"}, nil); s != http.StatusConflict {
		t.Fatalf("append after completion should 409; got %d", s)
	}
	if s := doJSON(t, "PATCH", srv.URL+"/v1/negotiations/"+neg.ID+"/status", "alice", map[string]string{"status": "cancelled"}, nil); s != http.StatusConflict {
		t.Fatalf("double transition should 409; got %d", s)
	}
}

func TestNegotiationTransitionScoping(t *testing.T) {
	srv := newTestAPI(t)
	config.SetRuntime(&config.RuntimeConfig{SigningKeys: map[string]struct{}{"signing-secret": {}}})
	t.Cleanup(func() { config.SetRuntime(nil) })

	var neg models.Negotiation
	if s := doJSON(t, "POST", srv.URL+"/v1/negotiations", "alice", map[string]interface{}{
		"title":        "tour merchandising deal",
		"participants": []string{"bob"},
	}, &neg); s != http.StatusCreated {
		t.Fatalf("create negotiation: %d", s)
	}

	// patch issues a status transition as a signed frontend actor
	patch := func(actor, status string) int {
		t.Helper()
		b, _ := json.Marshal(map[string]string{"status": status})
		req, err := http.NewRequest("PATCH", srv.URL+"/v1/negotiations/"+neg.ID+"/status", bytes.NewReader(b))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Role-Name", "frontend")
		req.Header.Set("X-User-ID", actor)
		mac := hmac.New(sha256.New, []byte("signing-secret"))
		mac.Write([]byte(actor))
		req.Header.Set("X-User-Signature", hex.EncodeToString(mac.Sum(nil)))
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("patch as %s: %v", actor, err)
		}
		res.Body.Close()
		return res.StatusCode
	}

	// a verified outsider cannot drive the negotiation to a terminal state
	if s := patch("mallory", "cancelled"); s != http.StatusForbidden {
		t.Fatalf("non-participant transition should 403; got %d", s)
	}
	got, err := store.GetNegotiation(neg.ID)
	if err != nil {
		t.Fatalf("get negotiation: %v", err)
	}
	if got.Status != models.NegotiationActive {
		t.Fatalf("negotiation should still be active; got %s", got.Status)
	}

	if s := patch("bob", "completed"); s != http.StatusOK {
		t.Fatalf("participant transition: %d", s)
	}
}

func TestNegotiationListScoping(t *testing.T) {
	srv := newTestAPI(t)

	mk := func(actor, title string) {
		if s := doJSON(t, "POST", srv.URL+"/v1/negotiations", actor, map[string]interface{}{"title": title}, nil); s != http.StatusCreated {
			t.Fatalf("create %q: %d", title, s)
		}
	}
	mk("alice", "booking tour support")
	mk("alice", "remix approval")
	mk("bob", "mastering rates")

	var out struct {
		Negotiations []models.Negotiation `json:"negotiations"`
	}
	if s := doJSON(t, "GET", srv.URL+"/v1/negotiations", "alice", nil, &out); s != http.StatusOK {
		t.Fatalf("list: %d", s)
	}
	if len(out.Negotiations) != 2 {
		t.Fatalf("alice should see 2; got %d", len(out.Negotiations))
	}
	if s := doJSON(t, "GET", srv.URL+"/v1/negotiations?title=remix", "alice", nil, &out); s != http.StatusOK {
		t.Fatalf("filtered list: %d", s)
	}
	if len(out.Negotiations) != 1 || out.Negotiations[0].Title != "remix approval" {
		t.Fatalf("title filter broken: %+v", out.Negotiations)
	}
}

func TestContractSigningFlow(t *testing.T) {
	srv := newTestAPI(t)

	// pick the split sheet template from the seeded set
	var tpls struct {
		Templates []models.ContractTemplate `json:"templates"`
	}
	if s := doJSON(t, "GET", srv.URL+"/v1/templates", "alice", nil, &tpls); s != http.StatusOK {
		t.Fatalf("list templates: %d", s)
	}
	if len(tpls.Templates) == 0 {
		t.Fatal("no seeded templates")
	}
	var tplID string
	for _, tpl := range tpls.Templates {
		if tpl.Type == "split-sheet" {
			tplID = tpl.ID
		}
	}
	if tplID == "" {
		t.Fatal("split-sheet template missing")
	}

	// create from template; required template fields enforced
	var c models.Contract
	s := doJSON(t, "POST", srv.URL+"/v1/contracts", "alice", map[string]interface{}{
		"title":       "Night Drive split",
		"template_id": tplID,
		"data":        map[string]interface{}{"title": "Night Drive"},
	}, &c)
	if s != http.StatusBadRequest {
		t.Fatalf("incomplete template payload should 400; got %d", s)
	}
	s = doJSON(t, "POST", srv.URL+"/v1/contracts", "alice", map[string]interface{}{
		"title":       "Night Drive split",
		"template_id": tplID,
		"data": map[string]interface{}{
			"title":                "Night Drive",
			"collaborators":        []string{"alice", "bob"},
			"performanceRoyalties": "50/50",
			"mechanicalRoyalties":  "50/50",
		},
	}, &c)
	if s != http.StatusCreated {
		t.Fatalf("create contract: %d", s)
	}
	if c.Type != "split-sheet" || c.Status != models.ContractDraft {
		t.Fatalf("type not inherited from template: %+v", c)
	}

	// add two collaborators
	var colA, colB models.Collaborator
	if s := doJSON(t, "POST", srv.URL+"/v1/contracts/"+c.ID+"/collaborators", "alice", map[string]interface{}{"name": "Alice", "role": "songwriter", "ownership_pct": 50}, &colA); s != http.StatusCreated {
		t.Fatalf("add collaborator A: %d", s)
	}
	if s := doJSON(t, "POST", srv.URL+"/v1/contracts/"+c.ID+"/collaborators", "alice", map[string]interface{}{"name": "Bob", "role": "producer", "ownership_pct": 50}, &colB); s != http.StatusCreated {
		t.Fatalf("add collaborator B: %d", s)
	}
	// over-allocation rejected
	if s := doJSON(t, "POST", srv.URL+"/v1/contracts/"+c.ID+"/collaborators", "alice", map[string]interface{}{"name": "Carol", "role": "engineer", "ownership_pct": 5}, nil); s != http.StatusBadRequest {
		t.Fatalf("ownership over 100%% should 400; got %d", s)
	}

	// send for signatures
	if s := doJSON(t, "PATCH", srv.URL+"/v1/contracts/"+c.ID+"/status", "alice", map[string]string{"status": "pending"}, nil); s != http.StatusOK {
		t.Fatalf("draft -> pending: %d", s)
	}
	// edits now conflict
	if s := doJSON(t, "PUT", srv.URL+"/v1/contracts/"+c.ID, "alice", map[string]string{"title": "renamed"}, nil); s != http.StatusConflict {
		t.Fatalf("edit after pending should 409; got %d", s)
	}

	// both collaborators sign; second signature flips the contract
	if s := doJSON(t, "POST", srv.URL+"/v1/collaborators/"+colA.ID+"/sign", "alice", map[string]string{"signature_data": "data:image/png;base64,iVBOR"}, nil); s != http.StatusCreated {
		t.Fatalf("sign A: %d", s)
	}
	if s := doJSON(t, "POST", srv.URL+"/v1/collaborators/"+colA.ID+"/sign", "alice", nil, nil); s != http.StatusConflict {
		t.Fatalf("double sign should 409; got %d", s)
	}
	if s := doJSON(t, "POST", srv.URL+"/v1/collaborators/"+colB.ID+"/sign", "bob", nil, nil); s != http.StatusCreated {
		t.Fatalf("sign B: %d", s)
	}

	var got models.Contract
	if s := doJSON(t, "GET", srv.URL+"/v1/contracts/"+c.ID, "alice", nil, &got); s != http.StatusOK {
		t.Fatalf("get contract: %d", s)
	}
	if got.Status != models.ContractSigned {
		t.Fatalf("contract should be signed; got %s", got.Status)
	}

	var sigs struct {
		Signatures []models.Signature `json:"signatures"`
	}
	if s := doJSON(t, "GET", srv.URL+"/v1/contracts/"+c.ID+"/signatures", "alice", nil, &sigs); s != http.StatusOK {
		t.Fatalf("list signatures: %d", s)
	}
	if len(sigs.Signatures) != 2 {
		t.Fatalf("expected 2 signatures; got %d", len(sigs.Signatures))
	}
}

func TestContractSoftDelete(t *testing.T) {
	srv := newTestAPI(t)

	var c models.Contract
	if s := doJSON(t, "POST", srv.URL+"/v1/contracts", "alice", map[string]interface{}{
		"title": "booking agreement",
		"type":  "performance",
		"data":  map[string]interface{}{"venue": "The Troubadour"},
	}, &c); s != http.StatusCreated {
		t.Fatalf("create contract: %d", s)
	}

	req, _ := http.NewRequest("DELETE", srv.URL+"/v1/contracts/"+c.ID, nil)
	req.Header.Set("X-Role-Name", "admin")
	req.Header.Set("X-User-ID", "ops")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete should 204; got %d", res.StatusCode)
	}

	// soft-deleted contracts are invisible
	if s := doJSON(t, "GET", srv.URL+"/v1/contracts/"+c.ID, "alice", nil, nil); s != http.StatusNotFound {
		t.Fatalf("deleted contract should 404; got %d", s)
	}
	var out struct {
		Contracts []models.Contract `json:"contracts"`
	}
	if s := doJSON(t, "GET", srv.URL+"/v1/contracts", "alice", nil, &out); s != http.StatusOK {
		t.Fatalf("list contracts: %d", s)
	}
	for _, got := range out.Contracts {
		if got.ID == c.ID {
			t.Fatal("deleted contract still listed")
		}
	}
	// but the record itself survives until retention purges it
	if _, err := store.GetContract(c.ID); err != nil {
		t.Fatalf("soft-deleted record should persist: %v", err)
	}
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestAPI(t)

	do := func(role, path string) int {
		req, _ := http.NewRequest("GET", srv.URL+path, nil)
		req.Header.Set("X-Role-Name", role)
		req.Header.Set("X-User-ID", "ops")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		res.Body.Close()
		return res.StatusCode
	}

	for _, path := range []string{"/v1/admin/health", "/v1/admin/stats", "/v1/admin/negotiations", "/v1/admin/analysis"} {
		if s := do("admin", path); s != http.StatusOK {
			t.Fatalf("admin %s: %d", path, s)
		}
		if s := do("backend", path); s != http.StatusForbidden {
			t.Fatalf("backend should not reach %s; got %d", path, s)
		}
	}
}

func TestTemplateEndpoints(t *testing.T) {
	srv := newTestAPI(t)

	var tpls struct {
		Templates []models.ContractTemplate `json:"templates"`
	}
	if s := doJSON(t, "GET", srv.URL+"/v1/templates", "alice", nil, &tpls); s != http.StatusOK {
		t.Fatalf("list templates: %d", s)
	}
	if len(tpls.Templates) != 4 {
		t.Fatalf("expected 4 seeded templates; got %d", len(tpls.Templates))
	}
	var tpl models.ContractTemplate
	if s := doJSON(t, "GET", fmt.Sprintf("%s/v1/templates/%s", srv.URL, tpls.Templates[0].ID), "alice", nil, &tpl); s != http.StatusOK {
		t.Fatalf("get template: %d", s)
	}
	if tpl.ID != tpls.Templates[0].ID {
		t.Fatalf("unexpected template: %+v", tpl)
	}
	if s := doJSON(t, "GET", srv.URL+"/v1/templates/tpl_missing", "alice", nil, nil); s != http.StatusNotFound {
		t.Fatalf("missing template should 404; got %d", s)
	}
}
