package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// MetaSelfUserID is the meta key holding the logged-in account's Telegram
// user ID, saved during fetch so offline analysis knows the manager identity.
const MetaSelfUserID = "self_user_id"

// Dialog represents a one-on-one conversation partner.
type Dialog struct {
	ID              int64 // Telegram user ID of the counterparty
	AccessHash      int64
	Name            string
	Username        string
	LastMessageDate time.Time
	UpdatedAt       time.Time
}

// Message represents one stored chat message.
type Message struct {
	ID          int64
	DialogID    int64
	MessageID   int
	SenderID    int64
	SenderKnown bool
	Text        string
	MessageDate time.Time
	FetchedAt   time.Time
}

// AnalysisCache represents a cached LLM analysis result.
type AnalysisCache struct {
	ID           int64
	CacheKey     string
	DialogID     int64
	AnalysisType string
	PromptHash   string
	Result       string
	Model        string
	CreatedAt    time.Time
}

// Report represents a generated report record.
type Report struct {
	ID          int64
	ReportType  string
	FilePath    string
	ContentHash string
	CreatedAt   time.Time
}

// FetchLog represents a fetch operation log entry.
type FetchLog struct {
	ID           int64
	DialogID     int64
	Status       string
	ErrorMessage string
	DurationMS   int64
	CreatedAt    time.Time
}

// Store provides database operations for the application.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpsertDialog inserts or updates a dialog entry.
func (s *Store) UpsertDialog(d *Dialog) error {
	_, err := s.db.Exec(`
		INSERT INTO dialogs (id, access_hash, name, username, last_message_date, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			access_hash=excluded.access_hash,
			name=excluded.name,
			username=excluded.username,
			last_message_date=excluded.last_message_date,
			updated_at=CURRENT_TIMESTAMP
	`, d.ID, d.AccessHash, d.Name, d.Username, d.LastMessageDate)
	return err
}

// GetDialog retrieves a single dialog by counterparty user ID.
func (s *Store) GetDialog(id int64) (*Dialog, error) {
	d := &Dialog{}
	err := s.db.QueryRow(`
		SELECT id, access_hash, name, username, last_message_date, updated_at
		FROM dialogs WHERE id = ?`, id).Scan(
		&d.ID, &d.AccessHash, &d.Name, &d.Username, &d.LastMessageDate, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDialogs retrieves dialogs ordered by recency. limit <= 0 means no limit.
func (s *Store) ListDialogs(limit int) ([]*Dialog, error) {
	query := `
		SELECT id, access_hash, name, username, last_message_date, updated_at
		FROM dialogs ORDER BY last_message_date DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = s.db.Query(query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dialogs []*Dialog
	for rows.Next() {
		d := &Dialog{}
		if err := rows.Scan(&d.ID, &d.AccessHash, &d.Name, &d.Username,
			&d.LastMessageDate, &d.UpdatedAt); err != nil {
			return nil, err
		}
		dialogs = append(dialogs, d)
	}
	return dialogs, rows.Err()
}

// UpsertMessage inserts or updates a message. Re-fetching the same dialog
// window is idempotent thanks to the (dialog_id, message_id) key.
func (s *Store) UpsertMessage(m *Message) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (dialog_id, message_id, sender_id, sender_known, text, message_date, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(dialog_id, message_id) DO UPDATE SET
			sender_id=excluded.sender_id,
			sender_known=excluded.sender_known,
			text=excluded.text,
			message_date=excluded.message_date,
			fetched_at=CURRENT_TIMESTAMP
	`, m.DialogID, m.MessageID, m.SenderID, m.SenderKnown, m.Text, m.MessageDate)
	return err
}

// GetMessages retrieves all messages of a dialog in chronological order.
func (s *Store) GetMessages(dialogID int64) ([]*Message, error) {
	rows, err := s.db.Query(`
		SELECT id, dialog_id, message_id, sender_id, sender_known, text, message_date, fetched_at
		FROM messages
		WHERE dialog_id = ?
		ORDER BY message_date ASC, message_id ASC
	`, dialogID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		m := &Message{}
		if err := rows.Scan(&m.ID, &m.DialogID, &m.MessageID, &m.SenderID,
			&m.SenderKnown, &m.Text, &m.MessageDate, &m.FetchedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetAnalysisCache retrieves a cached analysis result by cache key.
func (s *Store) GetAnalysisCache(cacheKey string) (*AnalysisCache, error) {
	c := &AnalysisCache{}
	err := s.db.QueryRow(`
		SELECT id, cache_key, dialog_id, analysis_type, prompt_hash, result, model, created_at
		FROM analysis_cache WHERE cache_key = ?`, cacheKey).Scan(
		&c.ID, &c.CacheKey, &c.DialogID, &c.AnalysisType, &c.PromptHash,
		&c.Result, &c.Model, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// PutAnalysisCache inserts or replaces a cached analysis result.
func (s *Store) PutAnalysisCache(c *AnalysisCache) error {
	_, err := s.db.Exec(`
		INSERT INTO analysis_cache (cache_key, dialog_id, analysis_type, prompt_hash, result, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(cache_key) DO UPDATE SET
			result=excluded.result,
			model=excluded.model,
			created_at=CURRENT_TIMESTAMP
	`, c.CacheKey, c.DialogID, c.AnalysisType, c.PromptHash, c.Result, c.Model)
	return err
}

// InsertReport records a generated report file.
func (s *Store) InsertReport(r *Report) error {
	_, err := s.db.Exec(`
		INSERT INTO reports (report_type, file_path, content_hash, created_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
	`, r.ReportType, r.FilePath, r.ContentHash)
	return err
}

// LogFetch records the outcome of one dialog fetch.
func (s *Store) LogFetch(l *FetchLog) error {
	_, err := s.db.Exec(`
		INSERT INTO fetch_log (dialog_id, status, error_message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, l.DialogID, l.Status, l.ErrorMessage, l.DurationMS)
	return err
}

// SetMeta stores a key/value pair in the meta table.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value
	`, key, value)
	return err
}

// GetMeta retrieves a meta value; sql.ErrNoRows when the key is absent.
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}
