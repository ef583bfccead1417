package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/dkoval/callbridge/internal/relay"
	"github.com/dkoval/callbridge/internal/storage"
)

type storeMock struct {
	sessions   map[string]storage.Session
	utterances map[string][]relay.Utterance
	dates      []string
}

func newStoreMock() *storeMock {
	return &storeMock{
		sessions:   map[string]storage.Session{},
		utterances: map[string][]relay.Utterance{},
	}
}

func (s *storeMock) GetSessionsByDate(date string) ([]storage.Session, error) {
	var out []storage.Session
	for _, sess := range s.sessions {
		if sess.StartedAt.UTC().Format("2006-01-02") == date {
			out = append(out, sess)
		}
	}
	return out, nil
}

func (s *storeMock) GetSession(id string) (storage.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return storage.Session{}, sql.ErrNoRows
	}
	return sess, nil
}

func (s *storeMock) GetUtterances(sessionID string) ([]relay.Utterance, error) {
	return s.utterances[sessionID], nil
}

func (s *storeMock) GetDates() ([]string, error) {
	return s.dates, nil
}

func testHandler(t *testing.T, store SessionStore, controls RelayControls) http.Handler {
	t.Helper()
	staticFS := fstest.MapFS{
		"index.html": {Data: []byte("<html>callbridge</html>")},
	}
	h, err := Handler(staticFS, NewHub(), store, controls)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	return h
}

func TestGetSessionWithUtterances(t *testing.T) {
	store := newStoreMock()
	startedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	store.sessions["s1"] = storage.Session{
		ID: "s1", LanguageA: "en", LanguageB: "es",
		StartedAt: startedAt, Status: storage.StatusEnded,
	}
	store.utterances["s1"] = []relay.Utterance{
		{ID: "u1", Speaker: relay.PartyA, SourceText: "hello", TranslatedText: "hola"},
	}

	h := testHandler(t, store, RelayControls{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/s1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Session    storage.Session   `json:"session"`
		Utterances []relay.Utterance `json:"utterances"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.Session.LanguageA != "en" {
		t.Fatalf("unexpected session %+v", payload.Session)
	}
	if len(payload.Utterances) != 1 || payload.Utterances[0].TranslatedText != "hola" {
		t.Fatalf("unexpected utterances %+v", payload.Utterances)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	h := testHandler(t, newStoreMock(), RelayControls{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetSessionRejectsBadID(t *testing.T) {
	h := testHandler(t, newStoreMock(), RelayControls{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/%2e%2e%2fdata", nil))

	if rec.Code != http.StatusForbidden && rec.Code != http.StatusNotFound {
		t.Fatalf("expected rejection, got %d", rec.Code)
	}
}

func TestPostSessionStartsRelay(t *testing.T) {
	var gotA, gotB string
	controls := RelayControls{
		StartSession: func(a, b string) (string, error) {
			gotA, gotB = a, b
			return "new-session", nil
		},
	}
	h := testHandler(t, newStoreMock(), controls)

	body := bytes.NewBufferString(`{"language_a": "en", "language_b": "es"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotA != "en" || gotB != "es" {
		t.Fatalf("relay got %q/%q", gotA, gotB)
	}
	if !strings.Contains(rec.Body.String(), "new-session") {
		t.Fatalf("missing session id in response: %s", rec.Body.String())
	}
}

func TestPostSessionMapsRelayErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"same language", relay.ErrSameLanguage, http.StatusBadRequest},
		{"already active", relay.ErrSessionActive, http.StatusConflict},
		{"limit exceeded", relay.ErrLimitExceeded, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controls := RelayControls{
				StartSession: func(a, b string) (string, error) { return "", tt.err },
			}
			h := testHandler(t, newStoreMock(), controls)

			body := bytes.NewBufferString(`{"language_a": "en", "language_b": "en"}`)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions", body))

			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestPostTurnValidatesSpeaker(t *testing.T) {
	called := false
	controls := RelayControls{
		StartTurn: func(speaker relay.Party) error {
			called = true
			return nil
		},
	}
	h := testHandler(t, newStoreMock(), controls)

	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"speaker": "c"}`)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/turn", body))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad speaker, got %d", rec.Code)
	}
	if called {
		t.Fatal("relay must not be invoked for an invalid speaker")
	}

	rec = httptest.NewRecorder()
	body = bytes.NewBufferString(`{"speaker": "a"}`)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/turn", body))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if !called {
		t.Fatal("relay was not invoked")
	}
}

func TestPostTurnWhileBusyConflicts(t *testing.T) {
	controls := RelayControls{
		StartTurn: func(relay.Party) error { return relay.ErrNotIdle },
	}
	h := testHandler(t, newStoreMock(), controls)

	rec := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"speaker": "b"}`)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/turn", body))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestPostStop(t *testing.T) {
	stopped := false
	controls := RelayControls{
		Stop: func() error {
			stopped = true
			return nil
		},
	}
	h := testHandler(t, newStoreMock(), controls)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/stop", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if !stopped {
		t.Fatal("relay stop was not invoked")
	}
}

func TestGetStatus(t *testing.T) {
	controls := RelayControls{
		State: func() string { return "armed" },
		Snapshot: func() *relay.Session {
			return &relay.Session{ID: "s1", LanguageA: "en", LanguageB: "es", CurrentTurn: relay.PartyA, Active: true}
		},
		Warnings: func() []string { return []string{"GEMINI_API_KEY not set"} },
	}
	h := testHandler(t, newStoreMock(), controls)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		State    string         `json:"state"`
		Session  *relay.Session `json:"session"`
		Warnings []string       `json:"warnings"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if payload.State != "armed" || payload.Session == nil || payload.Session.ID != "s1" {
		t.Fatalf("unexpected status %+v", payload)
	}
	if len(payload.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", payload.Warnings)
	}
}

func TestSPAFallback(t *testing.T) {
	h := testHandler(t, newStoreMock(), RelayControls{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "callbridge") {
		t.Fatalf("expected index.html content, got: %s", rec.Body.String())
	}
}

func TestAPIPathNotServedAsSPA(t *testing.T) {
	h := testHandler(t, newStoreMock(), RelayControls{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown api path, got %d", rec.Code)
	}
}
