package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fathomchat/chat-plane/internal/store"
)

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"chats",
		"messages",
		"documents",
		"stream_events",
		"stream_event_sequences",
		"todo_plans",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run infra/migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) CreateChat(ctx context.Context, chat store.Chat) error {
	const query = `
		INSERT INTO chats (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := p.db.ExecContext(ctx, query,
		chat.ID,
		chat.UserID,
		chat.Title,
		parseTimestampValue(chat.CreatedAt),
		parseTimestampValue(chat.UpdatedAt),
	)
	return err
}

func (p *PostgresStore) GetChat(ctx context.Context, chatID string) (*store.Chat, error) {
	const query = `
		SELECT id, user_id, title, created_at, updated_at
		FROM chats
		WHERE id = $1
	`
	var chat store.Chat
	var createdAt, updatedAt time.Time
	err := p.db.QueryRowContext(ctx, query, chatID).Scan(&chat.ID, &chat.UserID, &chat.Title, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	chat.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	chat.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return &chat, nil
}

func (p *PostgresStore) ListChats(ctx context.Context, userID string) ([]store.Chat, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM chats
		ORDER BY updated_at DESC
	`
	args := []any{}
	if userID != "" {
		query = `
			SELECT id, user_id, title, created_at, updated_at
			FROM chats
			WHERE user_id = $1
			ORDER BY updated_at DESC
		`
		args = append(args, userID)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Chat{}
	for rows.Next() {
		var chat store.Chat
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.Title, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		chat.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		chat.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
		results = append(results, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) DeleteChat(ctx context.Context, chatID string) error {
	for _, query := range []string{
		"DELETE FROM messages WHERE chat_id = $1",
		"DELETE FROM stream_events WHERE chat_id = $1",
		"DELETE FROM stream_event_sequences WHERE chat_id = $1",
		"DELETE FROM todo_plans WHERE chat_id = $1",
		"DELETE FROM chats WHERE id = $1",
	} {
		if _, err := p.db.ExecContext(ctx, query, chatID); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) AddMessage(ctx context.Context, msg store.Message) error {
	metadata := msg.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO messages (id, chat_id, role, content, sequence, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = p.db.ExecContext(ctx, query,
		msg.ID,
		msg.ChatID,
		msg.Role,
		msg.Content,
		msg.Sequence,
		parseTimestampValue(msg.CreatedAt),
		encoded,
	)
	return err
}

func (p *PostgresStore) ListMessages(ctx context.Context, chatID string) ([]store.Message, error) {
	const query = `
		SELECT id, chat_id, role, content, sequence, created_at, metadata
		FROM messages
		WHERE chat_id = $1
		ORDER BY sequence ASC
	`
	rows, err := p.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Message{}
	for rows.Next() {
		var msg store.Message
		var createdAt time.Time
		var metadataBytes []byte
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &msg.Content, &msg.Sequence, &createdAt, &metadataBytes); err != nil {
			return nil, err
		}
		msg.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		if len(metadataBytes) > 0 {
			metadata := map[string]any{}
			if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
				return nil, err
			}
			msg.Metadata = metadata
		}
		results = append(results, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) SaveDocument(ctx context.Context, doc store.Document) error {
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO documents (id, title, kind, content, user_id, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id)
		DO UPDATE SET
			title = EXCLUDED.title,
			kind = EXCLUDED.kind,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`
	_, err = p.db.ExecContext(ctx, query,
		doc.ID,
		doc.Title,
		doc.Kind,
		doc.Content,
		doc.UserID,
		encoded,
		parseTimestampValue(doc.CreatedAt),
		parseTimestampValue(doc.UpdatedAt),
	)
	return err
}

func (p *PostgresStore) GetDocument(ctx context.Context, documentID string) (*store.Document, error) {
	const query = `
		SELECT id, title, kind, content, user_id, metadata, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var doc store.Document
	var createdAt, updatedAt time.Time
	var metadataBytes []byte
	err := p.db.QueryRowContext(ctx, query, documentID).Scan(
		&doc.ID, &doc.Title, &doc.Kind, &doc.Content, &doc.UserID, &metadataBytes, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	doc.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	if len(metadataBytes) > 0 {
		metadata := map[string]any{}
		if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
			return nil, err
		}
		doc.Metadata = metadata
	}
	return &doc, nil
}

func (p *PostgresStore) ListDocuments(ctx context.Context, userID string) ([]store.Document, error) {
	query := `
		SELECT id, title, kind, content, user_id, metadata, created_at, updated_at
		FROM documents
		ORDER BY updated_at DESC
	`
	args := []any{}
	if userID != "" {
		query = `
			SELECT id, title, kind, content, user_id, metadata, created_at, updated_at
			FROM documents
			WHERE user_id = $1
			ORDER BY updated_at DESC
		`
		args = append(args, userID)
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.Document{}
	for rows.Next() {
		var doc store.Document
		var createdAt, updatedAt time.Time
		var metadataBytes []byte
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Kind, &doc.Content, &doc.UserID, &metadataBytes, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		doc.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		doc.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
		if len(metadataBytes) > 0 {
			metadata := map[string]any{}
			if err := json.Unmarshal(metadataBytes, &metadata); err != nil {
				return nil, err
			}
			doc.Metadata = metadata
		}
		results = append(results, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) AppendEvent(ctx context.Context, event store.StreamEvent) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO stream_events (chat_id, seq, type, timestamp, source, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = p.db.ExecContext(ctx, query,
		event.ChatID,
		event.Seq,
		event.Type,
		parseTimestampValue(event.Timestamp),
		event.Source,
		encoded,
	)
	return err
}

func (p *PostgresStore) ListEvents(ctx context.Context, chatID string, afterSeq int64) ([]store.StreamEvent, error) {
	const query = `
		SELECT chat_id, seq, type, timestamp, source, payload
		FROM stream_events
		WHERE chat_id = $1 AND seq > $2
		ORDER BY seq ASC
	`
	rows, err := p.db.QueryContext(ctx, query, chatID, afterSeq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.StreamEvent{}
	for rows.Next() {
		var event store.StreamEvent
		var timestamp time.Time
		var payloadBytes []byte
		if err := rows.Scan(&event.ChatID, &event.Seq, &event.Type, &timestamp, &event.Source, &payloadBytes); err != nil {
			return nil, err
		}
		event.Timestamp = timestamp.UTC().Format(time.RFC3339Nano)
		if len(payloadBytes) > 0 {
			payload := map[string]any{}
			if err := json.Unmarshal(payloadBytes, &payload); err != nil {
				return nil, err
			}
			event.Payload = payload
		} else {
			event.Payload = map[string]any{}
		}
		results = append(results, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) NextSeq(ctx context.Context, chatID string) (int64, error) {
	const query = `
		INSERT INTO stream_event_sequences (chat_id, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (chat_id)
		DO UPDATE SET last_seq = stream_event_sequences.last_seq + 1
		RETURNING last_seq
	`
	var seq int64
	if err := p.db.QueryRowContext(ctx, query, chatID).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

func (p *PostgresStore) GetTodoPlan(ctx context.Context, chatID string) (*store.TodoPlan, error) {
	const query = `
		SELECT chat_id, title, items, created_at, updated_at
		FROM todo_plans
		WHERE chat_id = $1
	`
	var plan store.TodoPlan
	var itemsBytes []byte
	var createdAt, updatedAt time.Time
	err := p.db.QueryRowContext(ctx, query, chatID).Scan(&plan.ChatID, &plan.Title, &itemsBytes, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	plan.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	plan.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	if len(itemsBytes) > 0 {
		if err := json.Unmarshal(itemsBytes, &plan.Items); err != nil {
			return nil, err
		}
	}
	return &plan, nil
}

func (p *PostgresStore) UpsertTodoPlan(ctx context.Context, plan store.TodoPlan) error {
	items := plan.Items
	if items == nil {
		items = []store.TodoItem{}
	}
	encoded, err := json.Marshal(items)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO todo_plans (chat_id, title, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id)
		DO UPDATE SET
			title = EXCLUDED.title,
			items = EXCLUDED.items,
			updated_at = EXCLUDED.updated_at
	`
	_, err = p.db.ExecContext(ctx, query,
		plan.ChatID,
		plan.Title,
		encoded,
		parseTimestampValue(plan.CreatedAt),
		parseTimestampValue(plan.UpdatedAt),
	)
	return err
}

func (p *PostgresStore) DeleteTodoPlan(ctx context.Context, chatID string) error {
	_, err := p.db.ExecContext(ctx, "DELETE FROM todo_plans WHERE chat_id = $1", chatID)
	return err
}

func parseTimestampValue(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Now().UTC()
	}
	return parsed.UTC()
}
