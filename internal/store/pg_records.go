package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chatvault/chatvault/internal/record"
)

const feedbackCols = `feedback_id, conversation_id, message_id, user_id, rating, create_time,
	content, evaluation_name, evaluation_treatment, workspace_id, raw_data`

func scanFeedback(row pgx.Row) (*record.Feedback, error) {
	var f record.Feedback
	err := row.Scan(&f.FeedbackID, &f.ConversationID, &f.MessageID, &f.UserID, &f.Rating, &f.CreateTime,
		&f.Content, &f.EvaluationName, &f.EvaluationTreatment, &f.WorkspaceID, &f.RawData)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *Postgres) FindFeedback(ctx context.Context, feedbackID string) (*record.Feedback, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+feedbackCols+` FROM message_feedback WHERE feedback_id = $1 AND feedback_id <> '' LIMIT 1`,
		feedbackID)
	f, err := scanFeedback(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find feedback: %w", err)
	}
	return f, nil
}

func (s *Postgres) FindFeedbackByNaturalKey(ctx context.Context, messageID, rating, content string) (*record.Feedback, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+feedbackCols+` FROM message_feedback
		WHERE message_id = $1 AND rating = $2 AND content = $3 LIMIT 1`,
		messageID, rating, content)
	f, err := scanFeedback(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find feedback by key: %w", err)
	}
	return f, nil
}

func (s *Postgres) InsertFeedback(ctx context.Context, f record.Feedback) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO message_feedback (id, `+feedbackCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		uuid.New(), f.FeedbackID, f.ConversationID, f.MessageID, f.UserID, f.Rating, f.CreateTime,
		f.Content, f.EvaluationName, f.EvaluationTreatment, f.WorkspaceID, f.RawData,
	)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

func (s *Postgres) ListFeedback(ctx context.Context, conversationID string) ([]record.Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+feedbackCols+` FROM message_feedback WHERE conversation_id = $1 ORDER BY create_time`,
		conversationID)
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	var out []record.Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (s *Postgres) AllFeedback(ctx context.Context) ([]record.Feedback, error) {
	rows, err := s.pool.Query(ctx, `SELECT ` + feedbackCols + ` FROM message_feedback ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("all feedback: %w", err)
	}
	defer rows.Close()

	var out []record.Feedback
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (s *Postgres) HasComparison(ctx context.Context, conversationID, payloadHash string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM model_comparisons WHERE conversation_id = $1 AND payload_hash = $2`,
		conversationID, payloadHash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has comparison: %w", err)
	}
	return n > 0, nil
}

func (s *Postgres) InsertComparison(ctx context.Context, c record.ModelComparison) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO model_comparisons (id, conversation_id, payload_hash, comparison_data, raw_data)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (conversation_id, payload_hash) DO NOTHING`,
		uuid.New(), c.ConversationID, c.PayloadHash, c.ComparisonData, c.RawData,
	)
	if err != nil {
		return fmt.Errorf("insert comparison: %w", err)
	}
	return nil
}

func (s *Postgres) ListComparisons(ctx context.Context, conversationID string) ([]record.ModelComparison, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT conversation_id, payload_hash, comparison_data, raw_data
		FROM model_comparisons WHERE conversation_id = $1`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list comparisons: %w", err)
	}
	defer rows.Close()

	var out []record.ModelComparison
	for rows.Next() {
		var c record.ModelComparison
		if err := rows.Scan(&c.ConversationID, &c.PayloadHash, &c.ComparisonData, &c.RawData); err != nil {
			return nil, fmt.Errorf("scan comparison: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) FindUserByFolder(ctx context.Context, exportFolder string) (*record.User, error) {
	var u record.User
	err := s.pool.QueryRow(ctx, `
		SELECT email, plus_user, phone_number, export_folder, raw_data
		FROM export_users WHERE export_folder = $1 LIMIT 1`, exportFolder).
		Scan(&u.Email, &u.PlusUser, &u.PhoneNumber, &u.ExportFolder, &u.RawData)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

func (s *Postgres) InsertUser(ctx context.Context, u record.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO export_users (id, email, plus_user, phone_number, export_folder, raw_data)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		uuid.New(), u.Email, u.PlusUser, u.PhoneNumber, u.ExportFolder, u.RawData,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Postgres) FindImportLog(ctx context.Context, exportFolder string) (*ImportLog, error) {
	var l ImportLog
	err := s.pool.QueryRow(ctx, `
		SELECT export_folder, status, conversations, messages, feedback, comparisons,
			ttl_auth, ttl_sessions, started_at, completed_at, error_log
		FROM import_log WHERE export_folder = $1`, exportFolder).
		Scan(&l.ExportFolder, &l.Status, &l.Conversations, &l.Messages, &l.Feedback, &l.Comparisons,
			&l.TTLAuth, &l.TTLSessions, &l.StartedAt, &l.CompletedAt, &l.ErrorLog)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find import log: %w", err)
	}
	return &l, nil
}

func (s *Postgres) UpsertImportLog(ctx context.Context, l ImportLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO import_log (export_folder, status, conversations, messages, feedback, comparisons,
			ttl_auth, ttl_sessions, started_at, completed_at, error_log)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (export_folder) DO UPDATE SET
			status = EXCLUDED.status,
			conversations = EXCLUDED.conversations,
			messages = EXCLUDED.messages,
			feedback = EXCLUDED.feedback,
			comparisons = EXCLUDED.comparisons,
			ttl_auth = EXCLUDED.ttl_auth,
			ttl_sessions = EXCLUDED.ttl_sessions,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			error_log = EXCLUDED.error_log`,
		l.ExportFolder, l.Status, l.Conversations, l.Messages, l.Feedback, l.Comparisons,
		l.TTLAuth, l.TTLSessions, l.StartedAt, l.CompletedAt, l.ErrorLog,
	)
	if err != nil {
		return fmt.Errorf("upsert import log: %w", err)
	}
	return nil
}

func (s *Postgres) ListImportLogs(ctx context.Context) ([]ImportLog, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT export_folder, status, conversations, messages, feedback, comparisons,
			ttl_auth, ttl_sessions, started_at, completed_at, error_log
		FROM import_log ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list import logs: %w", err)
	}
	defer rows.Close()

	var out []ImportLog
	for rows.Next() {
		var l ImportLog
		if err := rows.Scan(&l.ExportFolder, &l.Status, &l.Conversations, &l.Messages, &l.Feedback,
			&l.Comparisons, &l.TTLAuth, &l.TTLSessions, &l.StartedAt, &l.CompletedAt, &l.ErrorLog); err != nil {
			return nil, fmt.Errorf("scan import log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
