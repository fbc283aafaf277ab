package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the conversations database under dataDir.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "roam.db")
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Shutdown releases the underlying database handle.
func (s *SQLiteStore) Shutdown() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id               TEXT PRIMARY KEY,
		title            TEXT NOT NULL DEFAULT '',
		status           TEXT NOT NULL DEFAULT 'active',
		profile          TEXT NOT NULL DEFAULT '{}',
		last_fingerprint TEXT NOT NULL DEFAULT '',
		last_output      TEXT NOT NULL DEFAULT '',
		message_count    INTEGER NOT NULL DEFAULT 0,
		created_at       INTEGER NOT NULL,
		updated_at       INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		ts              INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, id);
	CREATE TABLE IF NOT EXISTS followups (
		conversation_id TEXT NOT NULL REFERENCES conversations(id),
		fingerprint     TEXT NOT NULL,
		status          TEXT NOT NULL,
		base_output     TEXT NOT NULL DEFAULT '',
		retry_count     INTEGER NOT NULL DEFAULT 0,
		created_at      INTEGER NOT NULL,
		PRIMARY KEY (conversation_id, fingerprint)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Create inserts a new conversation with a generated ID.
func (s *SQLiteStore) Create(ctx context.Context) (*Conversation, error) {
	return s.insert(ctx, GenerateConversationID())
}

// Ensure returns the conversation with the given ID, creating it on first use.
func (s *SQLiteStore) Ensure(ctx context.Context, id string) (*Conversation, error) {
	c, err := s.Get(ctx, id)
	if err == nil {
		return c, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	return s.insert(ctx, id)
}

func (s *SQLiteStore) insert(ctx context.Context, id string) (*Conversation, error) {
	now := time.Now()
	c := &Conversation{
		ID:        id,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		c.ID, c.Status, now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return c, nil
}

// Get reads conversation metadata by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, status, message_count, created_at, updated_at FROM conversations WHERE id = ?`, id)
	return scanConversation(row)
}

// List returns all conversations sorted by UpdatedAt descending.
func (s *SQLiteStore) List(ctx context.Context) ([]*Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, status, message_count, created_at, updated_at FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var result []*Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

// Close marks a conversation as closed.
func (s *SQLiteStore) Close(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET status = ?, updated_at = ? WHERE id = ?`,
		StatusClosed, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("close conversation: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	var createdAt, updatedAt int64
	err := row.Scan(&c.ID, &c.Title, &c.Status, &c.MessageCount, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

// LoadState reads the full mutable state of a conversation.
func (s *SQLiteStore) LoadState(ctx context.Context, id string) (*State, error) {
	var profileJSON, lastFingerprint, lastOutput string
	err := s.db.QueryRowContext(ctx,
		`SELECT profile, last_fingerprint, last_output FROM conversations WHERE id = ?`, id).
		Scan(&profileJSON, &lastFingerprint, &lastOutput)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	state := &State{}
	if profileJSON != "" {
		if err := json.Unmarshal([]byte(profileJSON), &state.Profile); err != nil {
			return nil, fmt.Errorf("unmarshal profile: %w", err)
		}
	}
	if lastFingerprint != "" {
		state.LastResult = &LastResult{Fingerprint: lastFingerprint, Output: lastOutput}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT fingerprint, status, base_output, retry_count, created_at FROM followups WHERE conversation_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("load followups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec FollowUpRecord
		var createdAt int64
		if err := rows.Scan(&rec.Fingerprint, &rec.Status, &rec.BaseOutput, &rec.RetryCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan followup: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		state.PutFollowUp(&rec)
	}
	return state, rows.Err()
}

// SaveState writes the full mutable state back in a single transaction.
// The write is all-or-nothing: a failure leaves the previous state intact.
func (s *SQLiteStore) SaveState(ctx context.Context, id string, state *State) error {
	profileJSON, err := json.Marshal(state.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	lastFingerprint, lastOutput := "", ""
	if state.LastResult != nil {
		lastFingerprint = state.LastResult.Fingerprint
		lastOutput = state.LastResult.Output
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save state: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET profile = ?, last_fingerprint = ?, last_output = ?, updated_at = ? WHERE id = ?`,
		string(profileJSON), lastFingerprint, lastOutput, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}

	for _, rec := range state.FollowUps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO followups (conversation_id, fingerprint, status, base_output, retry_count, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (conversation_id, fingerprint)
			 DO UPDATE SET status = excluded.status, base_output = excluded.base_output, retry_count = excluded.retry_count`,
			id, rec.Fingerprint, rec.Status, rec.BaseOutput, rec.RetryCount, rec.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("save followup %s: %w", rec.Fingerprint, err)
		}
	}

	return tx.Commit()
}

// AppendMessage appends a message to the conversation log and updates meta.
// The first user message becomes the conversation title.
func (s *SQLiteStore) AppendMessage(ctx context.Context, id string, msg Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append message: %w", err)
	}
	defer tx.Rollback()

	ts := msg.Ts
	if ts.IsZero() {
		ts = time.Now()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, ts) VALUES (?, ?, ?, ?)`,
		id, msg.Role, msg.Content, ts.Unix()); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET message_count = message_count + 1,
		 title = CASE WHEN title = '' AND ? = 'user' THEN ? ELSE title END,
		 updated_at = ? WHERE id = ?`,
		msg.Role, truncateTitle(msg.Content), ts.Unix(), id)
	if err != nil {
		return fmt.Errorf("update message count: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// LoadMessages reads all messages of a conversation in append order.
func (s *SQLiteStore) LoadMessages(ctx context.Context, id string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, ts FROM messages WHERE conversation_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var ts int64
		if err := rows.Scan(&m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Ts = time.Unix(ts, 0)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

const maxTitleLen = 80

func truncateTitle(s string) string {
	if len(s) <= maxTitleLen {
		return s
	}
	return s[:maxTitleLen]
}
