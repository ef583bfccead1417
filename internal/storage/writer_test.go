package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dkoval/callbridge/internal/relay"
)

func TestWriterAppendsToDaily(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	utt := relay.Utterance{
		ID:             uuid.NewString(),
		Speaker:        relay.PartyA,
		SourceText:     "hello world",
		SourceLang:     "en",
		TargetLang:     "es",
		TranslatedText: "hola mundo",
		Timestamp:      time.Date(2026, 8, 20, 10, 30, 0, 0, time.Local),
	}

	if err := w.Append(utt); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	path := filepath.Join(dir, "2026-08-20.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "Party A") {
		t.Errorf("expected Party A in content, got: %s", content)
	}
	if !strings.Contains(content, "hola mundo") {
		t.Errorf("expected translated text in content, got: %s", content)
	}
}

func TestWriterMultipleAppends(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	ts := time.Date(2026, 8, 20, 10, 30, 0, 0, time.Local)

	_ = w.Append(relay.Utterance{Speaker: relay.PartyA, SourceText: "first", TranslatedText: "primero", Timestamp: ts})
	_ = w.Append(relay.Utterance{Speaker: relay.PartyB, SourceText: "second", TranslatedText: "segundo", Timestamp: ts})

	path := filepath.Join(dir, "2026-08-20.md")
	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	if len(lines) < 2 {
		t.Fatalf("expected at least 2 lines, got %d", len(lines))
	}
}

func TestHistoryWritesBothSinks(t *testing.T) {
	dir := t.TempDir()
	store := newTestSQLiteStore(t)
	h := &History{Store: store, Writer: NewWriter(dir)}

	startedAt := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	sessionID := uuid.NewString()
	if err := h.CreateSession(sessionID, "en", "pt", startedAt); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	utt := relay.Utterance{
		ID:             uuid.NewString(),
		Speaker:        relay.PartyB,
		SourceText:     "bom dia",
		SourceLang:     "pt",
		TargetLang:     "en",
		TranslatedText: "good morning",
		Timestamp:      startedAt.Add(time.Second),
	}
	if err := h.AppendUtterance(sessionID, utt); err != nil {
		t.Fatalf("AppendUtterance failed: %v", err)
	}
	if err := h.EndSession(sessionID, startedAt.Add(time.Minute), ""); err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}

	utterances, err := store.GetUtterances(sessionID)
	if err != nil {
		t.Fatalf("GetUtterances failed: %v", err)
	}
	if len(utterances) != 1 {
		t.Fatalf("expected 1 stored utterance, got %d", len(utterances))
	}

	data, err := os.ReadFile(filepath.Join(dir, "2026-08-20.md"))
	if err != nil {
		t.Fatalf("markdown transcript missing: %v", err)
	}
	if !strings.Contains(string(data), "good morning") {
		t.Fatalf("markdown transcript missing translation: %s", data)
	}
}
