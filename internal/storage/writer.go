package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dkoval/callbridge/internal/relay"
)

// Writer appends utterances to a per-day markdown transcript. These
// files are what gets synced to Drive.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Append(u relay.Utterance) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	date := u.Timestamp.Format("2006-01-02")
	path := filepath.Join(w.dir, date+".md")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, u.FormatMarkdown()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func (w *Writer) CurrentPath() string {
	date := time.Now().Format("2006-01-02")
	return filepath.Join(w.dir, date+".md")
}

// History couples the sqlite store with the markdown writer so the relay
// persists through a single sink. The markdown copy is best-effort.
type History struct {
	Store  *SQLiteStore
	Writer *Writer
}

func (h *History) CreateSession(id, languageA, languageB string, startedAt time.Time) error {
	return h.Store.CreateSession(id, languageA, languageB, startedAt)
}

func (h *History) AppendUtterance(sessionID string, u relay.Utterance) error {
	if err := h.Store.AppendUtterance(sessionID, u); err != nil {
		return err
	}
	if h.Writer != nil {
		if err := h.Writer.Append(u); err != nil {
			slog.Warn("append utterance to markdown transcript failed", "error", err)
		}
	}
	return nil
}

func (h *History) EndSession(id string, endedAt time.Time, audioPath string) error {
	return h.Store.EndSession(id, endedAt, audioPath)
}
