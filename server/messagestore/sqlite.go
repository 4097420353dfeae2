package messagestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	// registers the "sqlite" driver
	_ "modernc.org/sqlite"

	"github.com/mattermost/mattermost-plugin-geofence/server/engine"
	"github.com/mattermost/mattermost-plugin-geofence/server/geo"
)

// timeLayout is fixed width so that stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store keeps signaling entries and generated messages in SQLite.
type Store struct {
	db  *sql.DB
	log engine.Logger
}

// Open initializes the database connection, creating directories as needed.
func Open(path string, log engine.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &Store{db: db, log: log}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema ensures the tables exist.
func (s *Store) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS signaling_entries (
			id TEXT PRIMARY KEY,
			payload TEXT NOT NULL,
			received_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			campaign_id TEXT NOT NULL,
			area_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_source ON messages(source_id);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	return nil
}

// SaveEntry stores a signaling entry, replacing an entry with the same id.
func (s *Store) SaveEntry(ctx context.Context, entry geo.Entry) error {
	if entry.Geo == nil {
		return fmt.Errorf("signaling entry %s has no geo payload", entry.ID)
	}

	payload, err := entry.Geo.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode geo payload: %w", err)
	}

	receivedAt := entry.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO signaling_entries (id, payload, received_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, received_at = excluded.received_at;`,
		entry.ID,
		string(payload),
		receivedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert signaling entry: %w", err)
	}
	return nil
}

// FindAll returns every stored entry ordered by arrival. Entries whose
// payload cannot be decoded are logged and skipped.
func (s *Store) FindAll(ctx context.Context) ([]geo.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, payload, received_at FROM signaling_entries ORDER BY received_at, id;`)
	if err != nil {
		return nil, fmt.Errorf("query signaling entries: %w", err)
	}
	defer rows.Close()

	var entries []geo.Entry
	for rows.Next() {
		var id, payload, receivedAtStr string
		if err := rows.Scan(&id, &payload, &receivedAtStr); err != nil {
			return nil, fmt.Errorf("scan signaling entry: %w", err)
		}

		g, err := geo.ParseGeo([]byte(payload))
		if err != nil {
			s.log.Warn("Skipping signaling entry with invalid geo payload", "entryId", id, "error", err.Error())
			continue
		}

		receivedAt, _ := time.Parse(time.RFC3339Nano, receivedAtStr)
		entries = append(entries, geo.Entry{ID: id, Geo: g, ReceivedAt: receivedAt})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signaling entries: %w", err)
	}
	return entries, nil
}

// DeleteByIDs removes the given entries.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx, `DELETE FROM signaling_entries WHERE id IN (`+placeholders+`);`, args...)
	if err != nil {
		return fmt.Errorf("delete signaling entries: %w", err)
	}
	return nil
}

// SaveMessage stores a generated notification message.
func (s *Store) SaveMessage(ctx context.Context, msg geo.Message) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO messages (id, source_id, campaign_id, area_id, event_type, title, body, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		msg.ID,
		msg.SourceID,
		msg.CampaignID,
		msg.AreaID,
		string(msg.EventType),
		msg.Title,
		msg.Body,
		msg.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// Messages returns the messages generated from a signaling entry, oldest first.
func (s *Store) Messages(ctx context.Context, sourceID string) ([]geo.Message, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, source_id, campaign_id, area_id, event_type, title, body, created_at FROM messages WHERE source_id = ? ORDER BY created_at, id;`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []geo.Message
	for rows.Next() {
		var (
			msg          geo.Message
			eventType    string
			createdAtStr string
		)
		if err := rows.Scan(&msg.ID, &msg.SourceID, &msg.CampaignID, &msg.AreaID, &eventType, &msg.Title, &msg.Body, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.EventType = geo.EventType(eventType)
		msg.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAtStr)
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// remapPrefix marks the temporary ids of a remap whose targets are also sources.
const remapPrefix = "remap:"

// RemapMessageIDs renames messages to the ids assigned by the backend. All
// renames apply at once, so chained or swapped mappings such as
// {a: b, b: a} move every message to its own target.
func (s *Store) RemapMessageIDs(ctx context.Context, ids map[string]string) error {
	if len(ids) == 0 {
		return nil
	}

	sources := make([]string, 0, len(ids))
	staged := false
	for oldID, newID := range ids {
		if oldID == newID {
			continue
		}
		sources = append(sources, oldID)
		if _, ok := ids[newID]; ok {
			staged = true
		}
	}
	sort.Strings(sources)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remap: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rename := func(from, to string) error {
		if _, err := tx.ExecContext(ctx, `UPDATE messages SET id = ? WHERE id = ?;`, to, from); err != nil {
			return fmt.Errorf("remap message %s: %w", from, err)
		}
		return nil
	}

	if staged {
		// move every source out of the way before any target is taken
		for _, oldID := range sources {
			if err := rename(oldID, remapPrefix+oldID); err != nil {
				return err
			}
		}
	}
	for _, oldID := range sources {
		from := oldID
		if staged {
			from = remapPrefix + oldID
		}
		if err := rename(from, ids[oldID]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remap: %w", err)
	}
	return nil
}
