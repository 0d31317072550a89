// Package history persists raw chat history per target in SQLite and serves
// the read-only tool surface over it: time-windowed full-text search, daily
// digests, and the recent-message views the anti-spam policy inspects.
//
// The chat connector feeding messages in is an external collaborator; this
// package only stores and queries.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"presence/internal/logging"
	"presence/internal/social"
)

// Store is the SQLite-backed chat history store.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Open initializes the history database at the given path.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryHistory, "history.Open")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	logging.History("history store open at %s", path)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		msg_id      TEXT NOT NULL DEFAULT '',
		target_id   TEXT NOT NULL,
		sender_id   TEXT NOT NULL,
		sender_name TEXT NOT NULL DEFAULT '',
		content     TEXT NOT NULL,
		from_self   INTEGER NOT NULL DEFAULT 0,
		ts          INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_target_ts ON messages(target_id, ts);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Append stores one message and returns its id.
func (s *Store) Append(m social.Message) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO messages (msg_id, target_id, sender_id, sender_name, content, from_self, ts)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.TargetID, m.SenderID, m.SenderName, m.Content, boolToInt(m.FromSelf), m.Timestamp.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append message: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the most recent limit messages for a target, oldest first.
func (s *Store) Recent(targetID string, limit int) ([]social.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT msg_id, target_id, sender_id, sender_name, content, from_self, ts
		 FROM messages WHERE target_id = ?
		 ORDER BY ts DESC, id DESC LIMIT ?`,
		targetID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Query is newest-first; callers want chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Search runs a full-text LIKE search over one target's history, bounded by
// an optional time window. A zero end means "now".
func (s *Store) Search(targetID, query string, start, end time.Time) ([]social.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if end.IsZero() {
		end = time.Now()
	}

	rows, err := s.db.Query(
		`SELECT msg_id, target_id, sender_id, sender_name, content, from_self, ts
		 FROM messages
		 WHERE target_id = ? AND content LIKE ? ESCAPE '\' AND ts >= ? AND ts <= ?
		 ORDER BY ts ASC, id ASC LIMIT 200`,
		targetID, "%"+escapeLike(query)+"%", start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// CountSince returns how many messages a target received after the given time.
func (s *Store) CountSince(targetID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE target_id = ? AND ts > ?`,
		targetID, since.UnixMilli(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}

// DailyList returns the distinct dates (YYYY-MM-DD, UTC) that have any
// recorded history, newest first.
func (s *Store) DailyList() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT DISTINCT date(ts / 1000, 'unixepoch') AS day
		 FROM messages ORDER BY day DESC LIMIT 90`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list days: %w", err)
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

// DailyDigest builds the cross-target digest for one date (YYYY-MM-DD, UTC):
// per-target message counts plus the first and last lines of the day.
func (s *Store) DailyDigest(date string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("invalid date %q: %w", date, err)
	}
	start := day.UnixMilli()
	end := day.Add(24 * time.Hour).UnixMilli()

	rows, err := s.db.Query(
		`SELECT target_id, COUNT(*), MIN(ts), MAX(ts)
		 FROM messages WHERE ts >= ? AND ts < ?
		 GROUP BY target_id ORDER BY target_id`,
		start, end,
	)
	if err != nil {
		return "", fmt.Errorf("failed to build digest: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	fmt.Fprintf(&b, "Daily digest for %s\n", date)
	any := false
	for rows.Next() {
		var targetID string
		var count int
		var firstTS, lastTS int64
		if err := rows.Scan(&targetID, &count, &firstTS, &lastTS); err != nil {
			return "", err
		}
		any = true
		fmt.Fprintf(&b, "- %s: %d messages between %s and %s\n",
			targetID, count,
			time.UnixMilli(firstTS).UTC().Format("15:04"),
			time.UnixMilli(lastTS).UTC().Format("15:04"))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if !any {
		fmt.Fprintf(&b, "(no recorded activity)\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func scanMessages(rows *sql.Rows) ([]social.Message, error) {
	var msgs []social.Message
	for rows.Next() {
		var m social.Message
		var fromSelf int
		var ts int64
		if err := rows.Scan(&m.ID, &m.TargetID, &m.SenderID, &m.SenderName, &m.Content, &fromSelf, &ts); err != nil {
			return nil, err
		}
		m.FromSelf = fromSelf != 0
		m.Timestamp = time.UnixMilli(ts)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// escapeLike escapes LIKE wildcards in user-supplied queries.
func escapeLike(q string) string {
	q = strings.ReplaceAll(q, `\`, `\\`)
	q = strings.ReplaceAll(q, "%", `\%`)
	return strings.ReplaceAll(q, "_", `\_`)
}
