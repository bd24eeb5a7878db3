// Package store handles local SQLite persistence for cards, review
// logs and per-note sync bookkeeping. The markdown files remain the
// source of truth for content; the store only owns scheduling history
// and sync state.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pvannier/recall/internal/model"
	"github.com/pvannier/recall/internal/sqlutil"
)

// StoreRelPath is the vault-relative directory holding local state.
const StoreRelPath = ".recall"

var (
	// ErrNoCard indicates the requested card is not in the store.
	ErrNoCard = errors.New("card not found in store")
	// ErrNoNote indicates the requested note is not in the store.
	ErrNoNote = errors.New("note not found in store")
)

// Store is the SQLite database handle.
type Store struct {
	db *sql.DB
}

// Open opens or creates the vault-local database.
func Open(vaultPath string) (*Store, error) {
	dir := filepath.Join(vaultPath, StoreRelPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s directory: %w", StoreRelPath, err)
	}

	dbPath := filepath.Join(dir, "recall.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		filepath TEXT NOT NULL,
		content_hash TEXT NOT NULL DEFAULT '',
		last_sync_at TEXT NOT NULL DEFAULT '',
		pending INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS cards (
		note_id TEXT NOT NULL,
		cloze_index INTEGER NOT NULL,
		state INTEGER NOT NULL,
		due TEXT NOT NULL,
		stability REAL NOT NULL,
		difficulty REAL NOT NULL,
		elapsed_days INTEGER NOT NULL,
		scheduled_days INTEGER NOT NULL,
		reps INTEGER NOT NULL,
		lapses INTEGER NOT NULL,
		last_review TEXT,
		answer_text TEXT NOT NULL DEFAULT '',
		section_path TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (note_id, cloze_index)
	);

	CREATE TABLE IF NOT EXISTS review_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		note_id TEXT NOT NULL,
		cloze_index INTEGER NOT NULL,
		rating INTEGER NOT NULL,
		state_before INTEGER NOT NULL,
		due TEXT NOT NULL,
		stability REAL NOT NULL,
		difficulty REAL NOT NULL,
		reviewed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_cards_due ON cards(due);
	CREATE INDEX IF NOT EXISTS idx_logs_card ON review_logs(note_id, cloze_index);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

// UpsertNote records or refreshes a note's bookkeeping row. Pending is
// set when the content hash differs from the stored one.
func (s *Store) UpsertNote(noteID, filePath, contentHash string) error {
	_, err := s.db.Exec(`
		INSERT INTO notes (id, filepath, content_hash, pending)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(id) DO UPDATE SET
			filepath = excluded.filepath,
			pending = CASE WHEN notes.content_hash = excluded.content_hash THEN notes.pending ELSE 1 END,
			content_hash = excluded.content_hash`,
		noteID, filePath, contentHash)
	if err != nil {
		return fmt.Errorf("upsert note %s: %w", noteID, err)
	}
	return nil
}

// MarkSynced clears a note's pending flag after a confirmed remote
// upsert of the given content hash. A hash mismatch means the note was
// edited again mid-flight; the pending flag stays set.
func (s *Store) MarkSynced(noteID, contentHash string, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE notes SET pending = 0, last_sync_at = ?
		WHERE id = ? AND content_hash = ?`,
		at.UTC().Format(time.RFC3339), noteID, contentHash)
	if err != nil {
		return fmt.Errorf("mark note %s synced: %w", noteID, err)
	}
	return nil
}

// SyncState returns the note's sync bookkeeping.
func (s *Store) SyncState(noteID string) (model.SyncState, error) {
	var (
		st      model.SyncState
		syncAt  string
		pending int
	)
	err := s.db.QueryRow(`SELECT content_hash, last_sync_at, pending FROM notes WHERE id = ?`, noteID).
		Scan(&st.ContentHash, &syncAt, &pending)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncState{}, fmt.Errorf("sync state for %s: %w", noteID, ErrNoNote)
	}
	if err != nil {
		return model.SyncState{}, fmt.Errorf("sync state for %s: %w", noteID, err)
	}
	st.Pending = pending != 0
	if syncAt != "" {
		if t, perr := time.Parse(time.RFC3339, syncAt); perr == nil {
			st.LastSyncAt = t
		}
	}
	return st, nil
}

// PendingNotes returns the ids of notes whose pending flag is set.
func (s *Store) PendingNotes() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM notes WHERE pending = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query pending notes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending note: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NoteIDs returns every tracked note id.
func (s *Store) NoteIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PendingCount returns the number of locally-modified notes not yet
// confirmed by the remote store.
func (s *Store) PendingCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM notes WHERE pending = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending notes: %w", err)
	}
	return n, nil
}

// NotePath returns the stored filepath for a note.
func (s *Store) NotePath(noteID string) (string, error) {
	var p string
	err := s.db.QueryRow(`SELECT filepath FROM notes WHERE id = ?`, noteID).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("path for %s: %w", noteID, ErrNoNote)
	}
	if err != nil {
		return "", fmt.Errorf("path for %s: %w", noteID, err)
	}
	return p, nil
}

// DeleteNote removes a note's bookkeeping row. Cards and review logs
// are intentionally kept: a vanished file must not erase review history.
func (s *Store) DeleteNote(noteID string) error {
	if _, err := s.db.Exec(`DELETE FROM notes WHERE id = ?`, noteID); err != nil {
		return fmt.Errorf("delete note %s: %w", noteID, err)
	}
	return nil
}

// SaveCard inserts or replaces one card row.
func (s *Store) SaveCard(c model.Card) error {
	tags, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("encode tags for %s/%d: %w", c.NoteID, c.ClozeIndex, err)
	}
	var lastReview any
	if c.LastReview != nil {
		lastReview = c.LastReview.UTC().Format(time.RFC3339Nano)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO cards
		(note_id, cloze_index, state, due, stability, difficulty,
		 elapsed_days, scheduled_days, reps, lapses, last_review,
		 answer_text, section_path, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.NoteID, c.ClozeIndex, int(c.State), c.Due.UTC().Format(time.RFC3339Nano),
		c.Stability, c.Difficulty, c.ElapsedDays, c.ScheduledDays, c.Reps, c.Lapses,
		lastReview, c.AnswerText, c.SectionPath, string(tags))
	if err != nil {
		return fmt.Errorf("save card %s/%d: %w", c.NoteID, c.ClozeIndex, err)
	}
	return nil
}

// SaveCards saves all cards in one transaction.
func (s *Store) SaveCards(cs []model.Card) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save cards: %w", err)
	}
	for _, c := range cs {
		tags, err := json.Marshal(c.Tags)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode tags for %s/%d: %w", c.NoteID, c.ClozeIndex, err)
		}
		var lastReview any
		if c.LastReview != nil {
			lastReview = c.LastReview.UTC().Format(time.RFC3339Nano)
		}
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO cards
			(note_id, cloze_index, state, due, stability, difficulty,
			 elapsed_days, scheduled_days, reps, lapses, last_review,
			 answer_text, section_path, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.NoteID, c.ClozeIndex, int(c.State), c.Due.UTC().Format(time.RFC3339Nano),
			c.Stability, c.Difficulty, c.ElapsedDays, c.ScheduledDays, c.Reps, c.Lapses,
			lastReview, c.AnswerText, c.SectionPath, string(tags)); err != nil {
			tx.Rollback()
			return fmt.Errorf("save card %s/%d: %w", c.NoteID, c.ClozeIndex, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save cards: %w", err)
	}
	return nil
}

// Card returns one card by its compound identity.
func (s *Store) Card(key model.CardKey) (model.Card, error) {
	row := s.db.QueryRow(cardSelect+` WHERE note_id = ? AND cloze_index = ?`, key.NoteID, key.ClozeIndex)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Card{}, fmt.Errorf("card %s/%d: %w", key.NoteID, key.ClozeIndex, ErrNoCard)
	}
	if err != nil {
		return model.Card{}, fmt.Errorf("card %s/%d: %w", key.NoteID, key.ClozeIndex, err)
	}
	return c, nil
}

// Cards returns all cards for one note, ordered by cloze index.
func (s *Store) Cards(noteID string) ([]model.Card, error) {
	rows, err := s.db.Query(cardSelect+` WHERE note_id = ? ORDER BY cloze_index`, noteID)
	if err != nil {
		return nil, fmt.Errorf("query cards for %s: %w", noteID, err)
	}
	return sqlutil.ScanRows(rows, scanCardRow)
}

// AllCards returns every card in the store, ordered by identity.
func (s *Store) AllCards() ([]model.Card, error) {
	rows, err := s.db.Query(cardSelect + ` ORDER BY note_id, cloze_index`)
	if err != nil {
		return nil, fmt.Errorf("query all cards: %w", err)
	}
	return sqlutil.ScanRows(rows, scanCardRow)
}

// AppendReviewLog records one grading event. Logs are append-only.
func (s *Store) AppendReviewLog(l model.ReviewLog) error {
	_, err := s.db.Exec(`
		INSERT INTO review_logs
		(note_id, cloze_index, rating, state_before, due, stability, difficulty, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.NoteID, l.ClozeIndex, int(l.Rating), int(l.StateBefore),
		l.Due.UTC().Format(time.RFC3339Nano), l.Stability, l.Difficulty,
		l.ReviewedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append review log %s/%d: %w", l.NoteID, l.ClozeIndex, err)
	}
	return nil
}

// ReviewLogs returns all logs for one card ordered by review time.
func (s *Store) ReviewLogs(key model.CardKey) ([]model.ReviewLog, error) {
	rows, err := s.db.Query(`
		SELECT note_id, cloze_index, rating, state_before, due, stability, difficulty, reviewed_at
		FROM review_logs WHERE note_id = ? AND cloze_index = ?
		ORDER BY reviewed_at, id`, key.NoteID, key.ClozeIndex)
	if err != nil {
		return nil, fmt.Errorf("query review logs %s/%d: %w", key.NoteID, key.ClozeIndex, err)
	}
	return sqlutil.ScanRows(rows, func(rows *sql.Rows) (model.ReviewLog, error) {
		var (
			l          model.ReviewLog
			rating     int
			state      int
			due        string
			reviewedAt string
		)
		if err := rows.Scan(&l.NoteID, &l.ClozeIndex, &rating, &state, &due, &l.Stability, &l.Difficulty, &reviewedAt); err != nil {
			return model.ReviewLog{}, fmt.Errorf("scan review log: %w", err)
		}
		l.Rating = model.Rating(rating)
		l.StateBefore = model.State(state)
		l.Due, _ = time.Parse(time.RFC3339Nano, due)
		l.ReviewedAt, _ = time.Parse(time.RFC3339Nano, reviewedAt)
		return l, nil
	})
}

const cardSelect = `
	SELECT note_id, cloze_index, state, due, stability, difficulty,
	       elapsed_days, scheduled_days, reps, lapses, last_review,
	       answer_text, section_path, tags
	FROM cards`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(r rowScanner) (model.Card, error) {
	var (
		c          model.Card
		state      int
		due        string
		lastReview sql.NullString
		tags       string
	)
	if err := r.Scan(&c.NoteID, &c.ClozeIndex, &state, &due, &c.Stability, &c.Difficulty,
		&c.ElapsedDays, &c.ScheduledDays, &c.Reps, &c.Lapses, &lastReview,
		&c.AnswerText, &c.SectionPath, &tags); err != nil {
		return model.Card{}, err
	}
	c.State = model.State(state)
	c.Due, _ = time.Parse(time.RFC3339Nano, due)
	if lastReview.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastReview.String); err == nil {
			c.LastReview = &t
		}
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		c.Tags = nil
	}
	return c, nil
}

func scanCardRow(rows *sql.Rows) (model.Card, error) {
	c, err := scanCard(rows)
	if err != nil {
		return model.Card{}, fmt.Errorf("scan card: %w", err)
	}
	return c, nil
}
