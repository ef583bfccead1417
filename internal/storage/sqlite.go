package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dkoval/callbridge/internal/relay"
	"github.com/dkoval/callbridge/internal/translate"
)

const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

type Session struct {
	ID        string     `json:"id"`
	LanguageA string     `json:"language_a"`
	LanguageB string     `json:"language_b"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Status    string     `json:"status"`
	AudioPath string     `json:"audio_path"`
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if strings.TrimSpace(dbPath) == "" {
		dbPath = filepath.Join("data", "callbridge.db")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			language_a TEXT NOT NULL,
			language_b TEXT NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT,
			status TEXT NOT NULL,
			audio_path TEXT NOT NULL DEFAULT ''
		);
	`); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS utterances (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			source_text TEXT NOT NULL,
			source_lang TEXT NOT NULL,
			target_lang TEXT NOT NULL,
			translated_text TEXT NOT NULL,
			confidence REAL NOT NULL,
			translation_confidence REAL NOT NULL,
			tier INTEGER NOT NULL,
			flags TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			FOREIGN KEY(session_id) REFERENCES sessions(id) ON DELETE CASCADE
		);
	`); err != nil {
		return fmt.Errorf("create utterances table: %w", err)
	}

	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS demo_usage (
			key TEXT NOT NULL,
			date TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			UNIQUE(key, date)
		);
	`); err != nil {
		return fmt.Errorf("create demo_usage table: %w", err)
	}

	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)"); err != nil {
		return fmt.Errorf("create sessions index: %w", err)
	}
	if _, err := s.db.Exec("CREATE INDEX IF NOT EXISTS idx_utterances_session_id ON utterances(session_id, timestamp)"); err != nil {
		return fmt.Errorf("create utterances index: %w", err)
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) CreateSession(id, languageA, languageB string, startedAt time.Time) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions(id, language_a, language_b, started_at, status) VALUES(?, ?, ?, ?, ?)`,
		id,
		languageA,
		languageB,
		startedAt.UTC().Format(time.RFC3339Nano),
		StatusActive,
	)
	if err != nil {
		return fmt.Errorf("create session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) EndSession(id string, endedAt time.Time, audioPath string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at = ?, status = ?, audio_path = ? WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339Nano),
		StatusEnded,
		audioPath,
		id,
	)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end session rows affected: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *SQLiteStore) AppendUtterance(sessionID string, u relay.Utterance) error {
	_, err := s.db.Exec(
		`INSERT INTO utterances(id, session_id, speaker, source_text, source_lang, target_lang,
			translated_text, confidence, translation_confidence, tier, flags, timestamp)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		sessionID,
		string(u.Speaker),
		strings.TrimSpace(u.SourceText),
		u.SourceLang,
		u.TargetLang,
		u.TranslatedText,
		u.Confidence,
		u.TranslationConfidence,
		int(u.Tier),
		strings.Join(u.Flags, ","),
		u.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append utterance for session %s: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) GetSessionsByDate(date string) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, language_a, language_b, started_at, ended_at, status, audio_path
		 FROM sessions
		 WHERE substr(started_at, 1, 10) = ?
		 ORDER BY started_at DESC`,
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions by date %s: %w", date, err)
	}
	defer func() { _ = rows.Close() }()

	return scanSessions(rows)
}

func (s *SQLiteStore) GetDates() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT substr(started_at, 1, 10) AS date FROM sessions ORDER BY date DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query dates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dates rows: %w", err)
	}

	return dates, nil
}

func (s *SQLiteStore) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(
		`SELECT id, language_a, language_b, started_at, ended_at, status, audio_path FROM sessions WHERE id = ?`,
		id,
	)

	var sess Session
	var startedAt string
	var endedAt sql.NullString
	if err := row.Scan(&sess.ID, &sess.LanguageA, &sess.LanguageB, &startedAt, &endedAt, &sess.Status, &sess.AudioPath); err != nil {
		return Session{}, fmt.Errorf("query session %s: %w", id, err)
	}

	parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return Session{}, fmt.Errorf("parse session %s started_at: %w", id, err)
	}
	sess.StartedAt = parsedStart

	if endedAt.Valid {
		parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
		if err != nil {
			return Session{}, fmt.Errorf("parse session %s ended_at: %w", id, err)
		}
		sess.EndedAt = &parsedEnd
	}

	return sess, nil
}

func (s *SQLiteStore) GetUtterances(sessionID string) ([]relay.Utterance, error) {
	rows, err := s.db.Query(
		`SELECT id, speaker, source_text, source_lang, target_lang, translated_text,
			confidence, translation_confidence, tier, flags, timestamp
		 FROM utterances
		 WHERE session_id = ?
		 ORDER BY timestamp ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query utterances for session %s: %w", sessionID, err)
	}
	defer func() { _ = rows.Close() }()

	utterances := make([]relay.Utterance, 0, 32)
	for rows.Next() {
		var u relay.Utterance
		var speaker, flags, ts string
		var tier int
		if err := rows.Scan(&u.ID, &speaker, &u.SourceText, &u.SourceLang, &u.TargetLang,
			&u.TranslatedText, &u.Confidence, &u.TranslationConfidence, &tier, &flags, &ts); err != nil {
			return nil, fmt.Errorf("scan utterance for session %s: %w", sessionID, err)
		}

		u.Speaker = relay.Party(speaker)
		u.Tier = translate.Tier(tier)
		if flags != "" {
			u.Flags = strings.Split(flags, ",")
		}

		parsedTS, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse utterance timestamp for session %s: %w", sessionID, err)
		}
		u.Timestamp = parsedTS

		utterances = append(utterances, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate utterance rows for session %s: %w", sessionID, err)
	}

	return utterances, nil
}

// IncrementUsage bumps the per-day counter for key and returns the new
// count. Used to enforce demo quotas.
func (s *SQLiteStore) IncrementUsage(key, date string) (int, error) {
	row := s.db.QueryRow(
		`INSERT INTO demo_usage(key, date, count) VALUES(?, ?, 1)
		 ON CONFLICT(key, date) DO UPDATE SET count = count + 1
		 RETURNING count`,
		key,
		date,
	)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("increment usage for %s on %s: %w", key, date, err)
	}
	return count, nil
}

// DecrementUsage returns one unit of the per-day counter for key, for
// attempts that were counted but did not result in a session.
func (s *SQLiteStore) DecrementUsage(key, date string) error {
	_, err := s.db.Exec(
		`UPDATE demo_usage SET count = count - 1 WHERE key = ? AND date = ? AND count > 0`,
		key,
		date,
	)
	if err != nil {
		return fmt.Errorf("decrement usage for %s on %s: %w", key, date, err)
	}
	return nil
}

func scanSessions(rows *sql.Rows) ([]Session, error) {
	sessions := make([]Session, 0, 16)
	for rows.Next() {
		var sess Session
		var startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&sess.ID, &sess.LanguageA, &sess.LanguageB, &startedAt, &endedAt, &sess.Status, &sess.AudioPath); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}

		parsedStart, err := time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		sess.StartedAt = parsedStart

		if endedAt.Valid {
			parsedEnd, err := time.Parse(time.RFC3339Nano, endedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse ended_at: %w", err)
			}
			sess.EndedAt = &parsedEnd
		}

		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions rows: %w", err)
	}

	return sessions, nil
}
