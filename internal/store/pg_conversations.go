package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/chatvault/chatvault/internal/record"
)

const conversationCols = `conversation_id, title, create_time, update_time, current_node,
	gizmo_id, gizmo_type, default_model_slug, template_id, is_archived, is_starred,
	origin, voice, async_status, workspace_id, is_hidden, export_folder, source, raw_data`

func scanConversation(row pgx.Row) (*record.Conversation, error) {
	var c record.Conversation
	var src string
	err := row.Scan(&c.ConversationID, &c.Title, &c.CreateTime, &c.UpdateTime, &c.CurrentNode,
		&c.GizmoID, &c.GizmoType, &c.DefaultModelSlug, &c.TemplateID, &c.IsArchived, &c.IsStarred,
		&c.Origin, &c.Voice, &c.AsyncStatus, &c.WorkspaceID, &c.IsHidden, &c.ExportFolder, &src, &c.RawData)
	if err != nil {
		return nil, err
	}
	c.Source = record.Source(src)
	return &c, nil
}

func (s *Postgres) FindConversation(ctx context.Context, id string) (*record.Conversation, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+conversationCols+` FROM conversations WHERE conversation_id = $1`, id)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	return c, nil
}

func (s *Postgres) InsertConversation(ctx context.Context, c record.Conversation) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (`+conversationCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		c.ConversationID, c.Title, c.CreateTime, c.UpdateTime, c.CurrentNode,
		c.GizmoID, c.GizmoType, c.DefaultModelSlug, c.TemplateID, c.IsArchived, c.IsStarred,
		c.Origin, c.Voice, c.AsyncStatus, c.WorkspaceID, c.IsHidden, c.ExportFolder, string(c.Source), c.RawData,
	)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// UpdateConversation refreshes mutable metadata only. Identity,
// creation time, source, and the hidden flag are never touched here.
func (s *Postgres) UpdateConversation(ctx context.Context, c record.Conversation) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE conversations SET
			title = CASE WHEN $2 <> '' THEN $2 ELSE title END,
			update_time = GREATEST(update_time, $3),
			current_node = CASE WHEN $4 <> '' THEN $4 ELSE current_node END,
			is_archived = $5,
			is_starred = $6
		WHERE conversation_id = $1`,
		c.ConversationID, c.Title, c.UpdateTime, c.CurrentNode, c.IsArchived, c.IsStarred,
	)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	return nil
}

func (s *Postgres) ListConversations(ctx context.Context, f ConversationFilter, p PageRequest) ([]record.Conversation, PageInfo, error) {
	where := `WHERE ($1 OR NOT is_hidden)`
	args := []any{f.IncludeHidden}
	if f.Search != "" {
		if f.SearchInMessages {
			where += ` AND (title ILIKE '%' || $2 || '%' OR conversation_id IN
				(SELECT conversation_id FROM messages WHERE content ILIKE '%' || $2 || '%'))`
		} else {
			where += ` AND title ILIKE '%' || $2 || '%'`
		}
		args = append(args, f.Search)
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM conversations `+where, args...).Scan(&total); err != nil {
		return nil, PageInfo{}, fmt.Errorf("count conversations: %w", err)
	}

	order := `ORDER BY update_time DESC, conversation_id ASC`
	if f.SortOrder == "oldest" {
		order = `ORDER BY create_time ASC, conversation_id ASC`
	}

	offset, limit, info := Paginate(total, p)
	args = append(args, limit, offset)
	rows, err := s.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM conversations %s %s LIMIT $%d OFFSET $%d`,
		conversationCols, where, order, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []record.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, PageInfo{}, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, *c)
	}
	return out, info, rows.Err()
}

func (s *Postgres) SetConversationHidden(ctx context.Context, id string, hidden bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE conversations SET is_hidden = $2 WHERE conversation_id = $1`, id, hidden)
	if err != nil {
		return fmt.Errorf("set conversation hidden: %w", err)
	}
	return nil
}

// DeleteConversationCascade removes the conversation and everything it
// owns in one transaction. Timeline events are derived on read, so
// there is nothing to clean up for them.
func (s *Postgres) DeleteConversationCascade(ctx context.Context, id string) (CascadeResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return CascadeResult{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var res CascadeResult
	tag, err := tx.Exec(ctx, `DELETE FROM messages WHERE conversation_id = $1`, id)
	if err != nil {
		return CascadeResult{}, fmt.Errorf("delete messages: %w", err)
	}
	res.Messages = int(tag.RowsAffected())

	tag, err = tx.Exec(ctx, `DELETE FROM message_feedback WHERE conversation_id = $1`, id)
	if err != nil {
		return CascadeResult{}, fmt.Errorf("delete feedback: %w", err)
	}
	res.Feedback = int(tag.RowsAffected())

	tag, err = tx.Exec(ctx, `DELETE FROM model_comparisons WHERE conversation_id = $1`, id)
	if err != nil {
		return CascadeResult{}, fmt.Errorf("delete comparisons: %w", err)
	}
	res.Comparisons = int(tag.RowsAffected())

	if _, err = tx.Exec(ctx, `DELETE FROM conversations WHERE conversation_id = $1`, id); err != nil {
		return CascadeResult{}, fmt.Errorf("delete conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return CascadeResult{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func (s *Postgres) AllConversations(ctx context.Context) ([]record.Conversation, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+conversationCols+` FROM conversations ORDER BY conversation_id`)
	if err != nil {
		return nil, fmt.Errorf("all conversations: %w", err)
	}
	defer rows.Close()

	var out []record.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
