package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ebenezer-ucz/ebz/internal/auth"
	"github.com/ebenezer-ucz/ebz/internal/schema"
	"github.com/ebenezer-ucz/ebz/internal/state"
)

// setupServer wires a state container and returns a test HTTP server plus
// the state for direct inspection.
func setupServer(t *testing.T) (*httptest.Server, *state.State) {
	t.Helper()

	st := state.New(nil)
	gate := auth.NewGate(st)
	s := New(st, gate, nil, &Config{Logger: log.New(io.Discard, "", 0)})

	mux := http.NewServeMux()
	s.routes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, st
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode request body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return resp, data
}

// setupFounder runs the first-run setup and returns a session token.
func setupFounder(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/setup", "", map[string]string{
		"name": "Chanda Mwila", "username": "chanda", "password": "hunter-two",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Setup failed with status %d: %s", resp.StatusCode, data)
	}
	var sr sessionResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		t.Fatalf("Failed to decode setup response: %v", err)
	}
	if sr.Token == "" {
		t.Fatal("Expected a session token from setup")
	}
	return sr.Token
}

func TestHealthz(t *testing.T) {
	ts, _ := setupServer(t)
	resp, data := doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || string(data) != "ok" {
		t.Errorf("Expected ok, got %d %q", resp.StatusCode, data)
	}
}

func TestStatusReflectsFirstRun(t *testing.T) {
	ts, _ := setupServer(t)

	resp, data := doJSON(t, http.MethodGet, ts.URL+"/api/status", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var status map[string]bool
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if !status["firstRun"] || status["degraded"] {
		t.Errorf("Expected firstRun=true degraded=false, got %v", status)
	}

	setupFounder(t, ts)

	_, data = doJSON(t, http.MethodGet, ts.URL+"/api/status", "", nil)
	if err := json.Unmarshal(data, &status); err != nil {
		t.Fatalf("Failed to decode status: %v", err)
	}
	if status["firstRun"] {
		t.Error("Expected firstRun=false after setup")
	}
}

func TestSetupOnlyOnce(t *testing.T) {
	ts, _ := setupServer(t)
	setupFounder(t, ts)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/setup", "", map[string]string{
		"name": "Other", "username": "other", "password": "pw",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 for repeated setup, got %d", resp.StatusCode)
	}
}

func TestLogin(t *testing.T) {
	ts, _ := setupServer(t)
	setupFounder(t, ts)

	resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/login", "", map[string]string{
		"username": "CHANDA", "password": "hunter-two",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, data)
	}
	var sr sessionResponse
	if err := json.Unmarshal(data, &sr); err != nil {
		t.Fatalf("Failed to decode login response: %v", err)
	}
	if sr.Session.Level != auth.LevelAdmin {
		t.Errorf("Expected admin session, got %q", sr.Session.Level)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/login", "", map[string]string{
		"username": "chanda", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 for bad secret, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/login", "", map[string]string{
		"username": "ghost", "password": "hunter-two",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 for unknown handle, got %d", resp.StatusCode)
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	ts, _ := setupServer(t)
	token := setupFounder(t, ts)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/logout", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/tables/songs", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestTableEndpointsRequireAuth(t *testing.T) {
	ts, _ := setupServer(t)
	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/tables/songs", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/tables/songs", "bogus-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 with bad token, got %d", resp.StatusCode)
	}
}

func TestRecordCRUD(t *testing.T) {
	ts, st := setupServer(t)
	token := setupFounder(t, ts)

	// Create without an id: the server assigns one.
	resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/tables/songs", token, map[string]string{
		"title": "Ebenezer", "key": "G",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, data)
	}
	var created map[string]string
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("Failed to decode create response: %v", err)
	}
	id := created["id"]
	if id == "" {
		t.Fatal("Expected an assigned id")
	}
	if song, ok := st.Songs.Get(id); !ok || song.Title != "Ebenezer" {
		t.Fatalf("Expected created song in state, got %+v", song)
	}

	// List includes it.
	resp, data = doJSON(t, http.MethodGet, ts.URL+"/api/tables/songs", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var songs []schema.Song
	if err := json.Unmarshal(data, &songs); err != nil {
		t.Fatalf("Failed to decode list: %v", err)
	}
	if len(songs) != 1 || songs[0].ID != id {
		t.Fatalf("Expected the created song in the list, got %+v", songs)
	}

	// Update through the URL id; the body id is ignored.
	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/tables/songs/"+id, token, map[string]string{
		"id": "spoofed", "title": "Ebenezer (live)", "key": "A",
	})
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}
	if song, _ := st.Songs.Get(id); song.Title != "Ebenezer (live)" {
		t.Errorf("Expected updated title, got %q", song.Title)
	}
	if _, ok := st.Songs.Get("spoofed"); ok {
		t.Error("Expected the body id to be overridden by the URL id")
	}

	// Update of a missing id is 404.
	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/tables/songs/missing", token, map[string]string{
		"title": "x",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for missing id, got %d", resp.StatusCode)
	}

	// Delete.
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/tables/songs/"+id, token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", resp.StatusCode)
	}
	if st.Songs.Len() != 0 {
		t.Errorf("Expected song deleted, got %d", st.Songs.Len())
	}
	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/tables/songs/"+id, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 deleting twice, got %d", resp.StatusCode)
	}
}

func TestUnknownTable(t *testing.T) {
	ts, _ := setupServer(t)
	token := setupFounder(t, ts)

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/tables/nope", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 listing unknown table, got %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/tables/nope", token, map[string]string{"x": "y"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 creating in unknown table, got %d", resp.StatusCode)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	ts, st := setupServer(t)
	token := setupFounder(t, ts)

	st.FinanceRecords.Replace([]schema.FinanceRecord{
		{ID: "f1", Type: "Income", Amount: 100},
	})

	resp, data := doJSON(t, http.MethodGet, ts.URL+"/api/reports/summary", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var summary map[string]any
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if summary["totalIncome"].(float64) != 100 {
		t.Errorf("Expected totalIncome 100, got %v", summary["totalIncome"])
	}
	// The founder created during setup counts as a member.
	if summary["memberCount"].(float64) != 1 {
		t.Errorf("Expected memberCount 1, got %v", summary["memberCount"])
	}
}

func TestAISetlistEndpoint(t *testing.T) {
	ts, st := setupServer(t)
	token := setupFounder(t, ts)

	st.Songs.Replace([]schema.Song{{ID: "s1", Title: "Ebenezer"}})

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/ai/setlist", token, map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 without theme, got %d", resp.StatusCode)
	}

	resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/ai/setlist", token, map[string]string{
		"theme": "Thanksgiving",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Failed to decode setlist: %v", err)
	}
	if out["setlist"] == "" {
		t.Error("Expected a setlist even without an AI credential")
	}
}

func TestAISummaryEndpoint(t *testing.T) {
	ts, _ := setupServer(t)
	token := setupFounder(t, ts)

	resp, data := doJSON(t, http.MethodPost, ts.URL+"/api/ai/summary", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var out map[string]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if out["summary"] == "" {
		t.Error("Expected fallback summary text")
	}
}
