package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailscope/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// UpsertMessages inserts or updates a batch of message records. The local
// read flag of an existing row is preserved: re-ingesting a message never
// resets it to unread.
func (s *SQLiteStore) UpsertMessages(ctx context.Context, msgs []model.MessageRecord) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO messages (
			id, folder, sender, recipient,
			subject, body, date, attachments,
			read, fetched_at
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?
		)
		ON CONFLICT(id) DO UPDATE SET
			folder      = excluded.folder,
			sender      = excluded.sender,
			recipient   = excluded.recipient,
			subject     = excluded.subject,
			body        = excluded.body,
			date        = excluded.date,
			attachments = excluded.attachments,
			read        = max(messages.read, excluded.read),
			fetched_at  = excluded.fetched_at`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, msg := range msgs {
		attachments, err := json.Marshal(msg.Attachments)
		if err != nil {
			return fmt.Errorf("marshaling attachments for %s: %w", msg.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			msg.ID, msg.Folder, msg.From, msg.To,
			msg.Subject, msg.Body, msg.Date.UTC(), string(attachments),
			boolToInt(msg.Read), msg.FetchedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upserting message %s: %w", msg.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}

	return nil
}

// GetMessages retrieves cached messages matching the given filter.
func (s *SQLiteStore) GetMessages(ctx context.Context, opts MessageFilter) ([]model.MessageRecord, error) {
	query := "SELECT * FROM messages"

	var conditions []string
	var args []interface{}

	if opts.Folder != nil {
		conditions = append(conditions, "folder = ?")
		args = append(args, *opts.Folder)
	}
	if opts.UnreadOnly {
		conditions = append(conditions, "read = 0")
	}
	if opts.Query != nil && *opts.Query != "" {
		conditions = append(conditions, "(sender LIKE ? OR subject LIKE ? OR body LIKE ?)")
		pattern := "%" + *opts.Query + "%"
		args = append(args, pattern, pattern, pattern)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{
		"date":       true,
		"sender":     true,
		"subject":    true,
		"fetched_at": true,
	}
	sortBy := opts.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "date"
	}
	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}
	query += fmt.Sprintf(" ORDER BY %s %s", sortBy, direction)

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.MessageRecord
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	return msgs, rows.Err()
}

// GetMessageByID retrieves a single cached message by its id. A missing
// row is reported as (nil, nil).
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id string) (*model.MessageRecord, error) {
	row := s.db.QueryRowxContext(ctx, "SELECT * FROM messages WHERE id = ?", id)

	msg, err := scanMessageRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", id, err)
	}

	return &msg, nil
}

// SetRead updates the read flag of a cached message.
func (s *SQLiteStore) SetRead(ctx context.Context, id string, read bool) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE messages SET read = ? WHERE id = ?",
		boolToInt(read), id,
	)
	if err != nil {
		return fmt.Errorf("setting read flag for %s: %w", id, err)
	}
	return nil
}

// ListFolders returns the distinct folder names present in the cache.
func (s *SQLiteStore) ListFolders(ctx context.Context) ([]string, error) {
	var folders []string
	err := s.db.SelectContext(ctx, &folders,
		"SELECT DISTINCT folder FROM messages ORDER BY folder",
	)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	return folders, nil
}

// SaveAnalysis inserts or replaces an analysis result.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a model.Analysis) error {
	topics, err := json.Marshal(a.Topics)
	if err != nil {
		return fmt.Errorf("marshaling topics: %w", err)
	}
	entities, err := json.Marshal(a.Entities)
	if err != nil {
		return fmt.Errorf("marshaling entities: %w", err)
	}

	var sentiment interface{}
	if a.Sentiment != nil {
		sentiment = *a.Sentiment
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analyses (
			id, message_id, message_count, sentiment,
			topics, entities, summary, confidence,
			has_attachments, analyzed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.MessageID, a.MessageCount, sentiment,
		string(topics), string(entities), a.Summary, a.Confidence,
		boolToInt(a.HasAttachments), a.AnalyzedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving analysis %s: %w", a.ID, err)
	}

	return nil
}

// GetAnalyses retrieves all stored analysis results, newest first.
func (s *SQLiteStore) GetAnalyses(ctx context.Context) ([]model.Analysis, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM analyses ORDER BY analyzed_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying analyses: %w", err)
	}
	defer rows.Close()

	var results []model.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}

	return results, rows.Err()
}

// GetAnalysisByMessageID retrieves the most recent analysis for a message,
// or (nil, nil) when none exists.
func (s *SQLiteStore) GetAnalysisByMessageID(ctx context.Context, messageID string) (*model.Analysis, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM analyses WHERE message_id = ? ORDER BY analyzed_at DESC LIMIT 1",
		messageID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying analysis for %s: %w", messageID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	a, err := scanAnalysis(rows)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// scanMessage scans a message row from a sqlx.Rows result set.
func scanMessage(rows *sqlx.Rows) (model.MessageRecord, error) {
	var (
		msg         model.MessageRecord
		attachments string
		read        int
	)

	err := rows.Scan(
		&msg.ID, &msg.Folder, &msg.From, &msg.To,
		&msg.Subject, &msg.Body, &msg.Date, &attachments,
		&read, &msg.FetchedAt,
	)
	if err != nil {
		return model.MessageRecord{}, fmt.Errorf("scanning message row: %w", err)
	}

	msg.Read = read != 0
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
			return model.MessageRecord{}, fmt.Errorf("unmarshaling attachments: %w", err)
		}
	}

	return msg, nil
}

// scanMessageRow scans a single message row from a sqlx.Row.
func scanMessageRow(row *sqlx.Row) (model.MessageRecord, error) {
	var (
		msg         model.MessageRecord
		attachments string
		read        int
	)

	err := row.Scan(
		&msg.ID, &msg.Folder, &msg.From, &msg.To,
		&msg.Subject, &msg.Body, &msg.Date, &attachments,
		&read, &msg.FetchedAt,
	)
	if err != nil {
		return model.MessageRecord{}, err
	}

	msg.Read = read != 0
	if attachments != "" {
		if err := json.Unmarshal([]byte(attachments), &msg.Attachments); err != nil {
			return model.MessageRecord{}, fmt.Errorf("unmarshaling attachments: %w", err)
		}
	}

	return msg, nil
}

// scanAnalysis scans an analysis row from a sqlx.Rows result set.
func scanAnalysis(rows *sqlx.Rows) (model.Analysis, error) {
	var (
		a              model.Analysis
		sentiment      sql.NullFloat64
		topics         string
		entities       string
		hasAttachments int
	)

	err := rows.Scan(
		&a.ID, &a.MessageID, &a.MessageCount, &sentiment,
		&topics, &entities, &a.Summary, &a.Confidence,
		&hasAttachments, &a.AnalyzedAt,
	)
	if err != nil {
		return model.Analysis{}, fmt.Errorf("scanning analysis row: %w", err)
	}

	if sentiment.Valid {
		v := sentiment.Float64
		a.Sentiment = &v
	}
	a.HasAttachments = hasAttachments != 0

	if topics != "" {
		if err := json.Unmarshal([]byte(topics), &a.Topics); err != nil {
			return model.Analysis{}, fmt.Errorf("unmarshaling topics: %w", err)
		}
	}
	if entities != "" {
		if err := json.Unmarshal([]byte(entities), &a.Entities); err != nil {
			return model.Analysis{}, fmt.Errorf("unmarshaling entities: %w", err)
		}
	}

	return a, nil
}

// boolToInt converts a bool to the 0/1 form SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
