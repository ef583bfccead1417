package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dkoval/callbridge/internal/relay"
	"github.com/dkoval/callbridge/internal/storage"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type SessionStore interface {
	GetSessionsByDate(date string) ([]storage.Session, error)
	GetSession(id string) (storage.Session, error)
	GetUtterances(sessionID string) ([]relay.Utterance, error)
	GetDates() ([]string, error)
}

// RelayControls exposes the live relay to the HTTP layer.
type RelayControls struct {
	StartSession func(languageA, languageB string) (string, error)
	StartTurn    func(speaker relay.Party) error
	Stop         func() error
	State        func() string
	Snapshot     func() *relay.Session
	Warnings     func() []string
}

func registerAPIRoutes(mux *http.ServeMux, store SessionStore, controls RelayControls) {
	mux.HandleFunc("GET /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		sessions, err := store.GetSessionsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list sessions: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, sessions)
	})

	mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusForbidden, "invalid session id")
			return
		}

		sessionData, err := store.GetSession(sessionID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, os.ErrNotExist) || errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get session: %v", err))
			return
		}

		utterances, err := store.GetUtterances(sessionID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get session utterances: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"session":    sessionData,
			"utterances": utterances,
		})
	})

	mux.HandleFunc("GET /api/sessions/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.PathValue("id")
		if !validSessionID(sessionID) {
			writeJSONError(w, http.StatusForbidden, "invalid session id")
			return
		}

		sessionData, err := store.GetSession(sessionID)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}

		if sessionData.AudioPath == "" {
			writeJSONError(w, http.StatusNotFound, "audio not available")
			return
		}

		cleanPath := filepath.Clean(sessionData.AudioPath)
		if cleanPath == "" || cleanPath == "." || cleanPath == ".." || strings.Contains(cleanPath, "..") {
			writeJSONError(w, http.StatusForbidden, "invalid audio path")
			return
		}

		f, err := os.Open(cleanPath)
		if err != nil {
			writeJSONError(w, http.StatusNotFound, "audio file not found")
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("stat audio: %v", err))
			return
		}

		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Header().Set("Content-Type", contentTypeForAudio(cleanPath))
		http.ServeContent(w, r, filepath.Base(cleanPath), info.ModTime(), f)
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, dates)
	})

	mux.HandleFunc("POST /api/sessions", func(w http.ResponseWriter, r *http.Request) {
		if controls.StartSession == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "relay not running")
			return
		}

		var req struct {
			LanguageA string `json:"language_a"`
			LanguageB string `json:"language_b"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		id, err := controls.StartSession(req.LanguageA, req.LanguageB)
		if err != nil {
			writeJSONError(w, relayErrorStatus(err), fmt.Sprintf("start session: %v", err))
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
	})

	mux.HandleFunc("POST /api/session/turn", func(w http.ResponseWriter, r *http.Request) {
		if controls.StartTurn == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "relay not running")
			return
		}

		var req struct {
			Speaker string `json:"speaker"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		speaker := relay.Party(req.Speaker)
		if speaker != relay.PartyA && speaker != relay.PartyB {
			writeJSONError(w, http.StatusBadRequest, "speaker must be 'a' or 'b'")
			return
		}

		if err := controls.StartTurn(speaker); err != nil {
			writeJSONError(w, relayErrorStatus(err), fmt.Sprintf("start turn: %v", err))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/session/stop", func(w http.ResponseWriter, r *http.Request) {
		if controls.Stop == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "relay not running")
			return
		}

		if err := controls.Stop(); err != nil {
			writeJSONError(w, relayErrorStatus(err), fmt.Sprintf("stop session: %v", err))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("GET /api/status", func(w http.ResponseWriter, r *http.Request) {
		state := "idle"
		if controls.State != nil {
			state = controls.State()
		}
		var session *relay.Session
		if controls.Snapshot != nil {
			session = controls.Snapshot()
		}
		var warnings []string
		if controls.Warnings != nil {
			warnings = controls.Warnings()
		}
		if warnings == nil {
			warnings = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"state":    state,
			"session":  session,
			"warnings": warnings,
		})
	})
}

func relayErrorStatus(err error) int {
	switch {
	case errors.Is(err, relay.ErrSameLanguage):
		return http.StatusBadRequest
	case errors.Is(err, relay.ErrSessionActive), errors.Is(err, relay.ErrNotIdle), errors.Is(err, relay.ErrNoSession):
		return http.StatusConflict
	case errors.Is(err, relay.ErrLimitExceeded):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func validSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

func contentTypeForAudio(path string) string {
	ext := filepath.Ext(path)
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
