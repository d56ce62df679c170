package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/chatvault/chatvault/internal/record"
)

const messageCols = `message_id, conversation_id, parent_id, role, author, content, recipient,
	model, model_slug, finish_reason, create_time, update_time, status, weight, message_type,
	tokens, metadata, browser_info, geo_data, source, is_hidden, raw_data`

func scanMessage(row pgx.Row) (*record.Message, error) {
	var m record.Message
	var src string
	err := row.Scan(&m.MessageID, &m.ConversationID, &m.ParentID, &m.Role, &m.Author, &m.Content, &m.Recipient,
		&m.Model, &m.ModelSlug, &m.FinishReason, &m.CreateTime, &m.UpdateTime, &m.Status, &m.Weight, &m.MessageType,
		&m.Tokens, &m.Metadata, &m.BrowserInfo, &m.GeoData, &src, &m.IsHidden, &m.RawData)
	if err != nil {
		return nil, err
	}
	m.Source = record.Source(src)
	return &m, nil
}

func (s *Postgres) FindMessage(ctx context.Context, messageID string) (*record.Message, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+messageCols+` FROM messages WHERE message_id = $1`, messageID)
	m, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find message: %w", err)
	}
	return m, nil
}

func (s *Postgres) InsertMessage(ctx context.Context, m record.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (`+messageCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		m.MessageID, m.ConversationID, m.ParentID, m.Role, m.Author, m.Content, m.Recipient,
		m.Model, m.ModelSlug, m.FinishReason, m.CreateTime, m.UpdateTime, m.Status, m.Weight, m.MessageType,
		m.Tokens, m.Metadata, m.BrowserInfo, m.GeoData, string(m.Source), m.IsHidden, m.RawData,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *Postgres) ListMessages(ctx context.Context, conversationID string) ([]record.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE conversation_id = $1
		ORDER BY create_time ASC, message_id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []record.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (s *Postgres) CountMessagesBySource(ctx context.Context, conversationID string, src record.Source) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages WHERE conversation_id = $1 AND source = $2`,
		conversationID, string(src)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages by source: %w", err)
	}
	return n, nil
}

func (s *Postgres) DeleteMessage(ctx context.Context, conversationID, messageID string, src record.Source) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM messages WHERE conversation_id = $1 AND message_id = $2 AND source = $3`,
		conversationID, messageID, string(src))
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (s *Postgres) SearchMessages(ctx context.Context, query string, p PageRequest) ([]record.Message, PageInfo, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM messages WHERE NOT is_hidden AND content ILIKE '%' || $1 || '%'`, query).Scan(&total)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("count search: %w", err)
	}

	offset, limit, info := Paginate(total, p)
	rows, err := s.pool.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE NOT is_hidden AND content ILIKE '%' || $1 || '%'
		ORDER BY create_time DESC, message_id ASC
		LIMIT $2 OFFSET $3`, query, limit, offset)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("search messages: %w", err)
	}
	defer rows.Close()

	var out []record.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, PageInfo{}, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, info, rows.Err()
}

func (s *Postgres) SetMessageHidden(ctx context.Context, messageID string, hidden bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE messages SET is_hidden = $2 WHERE message_id = $1`, messageID, hidden)
	if err != nil {
		return fmt.Errorf("set message hidden: %w", err)
	}
	return nil
}

func (s *Postgres) AllMessages(ctx context.Context) ([]record.Message, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+messageCols+` FROM messages ORDER BY message_id`)
	if err != nil {
		return nil, fmt.Errorf("all messages: %w", err)
	}
	defer rows.Close()

	var out []record.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}
