package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is the pgx-backed Store implementation.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables if they do not exist. The tool owns
// its schema; there is no separate migration step.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id    TEXT PRIMARY KEY,
			title              TEXT NOT NULL DEFAULT '',
			create_time        DOUBLE PRECISION NOT NULL DEFAULT 0,
			update_time        DOUBLE PRECISION NOT NULL DEFAULT 0,
			current_node       TEXT NOT NULL DEFAULT '',
			gizmo_id           TEXT NOT NULL DEFAULT '',
			gizmo_type         TEXT NOT NULL DEFAULT '',
			default_model_slug TEXT NOT NULL DEFAULT '',
			template_id        TEXT NOT NULL DEFAULT '',
			is_archived        BOOLEAN NOT NULL DEFAULT FALSE,
			is_starred         BOOLEAN NOT NULL DEFAULT FALSE,
			origin             TEXT NOT NULL DEFAULT '',
			voice              TEXT NOT NULL DEFAULT '',
			async_status       TEXT NOT NULL DEFAULT '',
			workspace_id       TEXT NOT NULL DEFAULT '',
			is_hidden          BOOLEAN NOT NULL DEFAULT FALSE,
			export_folder      TEXT NOT NULL DEFAULT '',
			source             TEXT NOT NULL DEFAULT '',
			raw_data           TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id      TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			parent_id       TEXT NOT NULL DEFAULT '',
			role            TEXT NOT NULL DEFAULT '',
			author          TEXT NOT NULL DEFAULT '',
			content         TEXT NOT NULL DEFAULT '',
			recipient       TEXT NOT NULL DEFAULT '',
			model           TEXT NOT NULL DEFAULT '',
			model_slug      TEXT NOT NULL DEFAULT '',
			finish_reason   TEXT NOT NULL DEFAULT '',
			create_time     DOUBLE PRECISION NOT NULL DEFAULT 0,
			update_time     DOUBLE PRECISION NOT NULL DEFAULT 0,
			status          TEXT NOT NULL DEFAULT '',
			weight          DOUBLE PRECISION NOT NULL DEFAULT 0,
			message_type    TEXT NOT NULL DEFAULT '',
			tokens          TEXT NOT NULL DEFAULT '',
			metadata        TEXT NOT NULL DEFAULT '',
			browser_info    TEXT NOT NULL DEFAULT '',
			geo_data        TEXT NOT NULL DEFAULT '',
			source          TEXT NOT NULL DEFAULT '',
			is_hidden       BOOLEAN NOT NULL DEFAULT FALSE,
			raw_data        TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id)`,
		`CREATE TABLE IF NOT EXISTS message_feedback (
			id                   UUID PRIMARY KEY,
			feedback_id          TEXT NOT NULL DEFAULT '',
			conversation_id      TEXT NOT NULL DEFAULT '',
			message_id           TEXT NOT NULL DEFAULT '',
			user_id              TEXT NOT NULL DEFAULT '',
			rating               TEXT NOT NULL DEFAULT '',
			create_time          DOUBLE PRECISION NOT NULL DEFAULT 0,
			content              TEXT NOT NULL DEFAULT '',
			evaluation_name      TEXT NOT NULL DEFAULT '',
			evaluation_treatment TEXT NOT NULL DEFAULT '',
			workspace_id         TEXT NOT NULL DEFAULT '',
			raw_data             TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_message ON message_feedback (message_id)`,
		`CREATE TABLE IF NOT EXISTS model_comparisons (
			id              UUID PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			payload_hash    TEXT NOT NULL,
			comparison_data TEXT NOT NULL DEFAULT '',
			raw_data        TEXT NOT NULL DEFAULT '',
			UNIQUE (conversation_id, payload_hash)
		)`,
		`CREATE TABLE IF NOT EXISTS export_users (
			id            UUID PRIMARY KEY,
			email         TEXT NOT NULL DEFAULT '',
			plus_user     BOOLEAN NOT NULL DEFAULT FALSE,
			phone_number  TEXT NOT NULL DEFAULT '',
			export_folder TEXT NOT NULL DEFAULT '',
			raw_data      TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS ttl_auth (
			id                UUID PRIMARY KEY,
			user_id           TEXT NOT NULL DEFAULT '',
			export_folder     TEXT NOT NULL DEFAULT '',
			email             TEXT NOT NULL DEFAULT '',
			given_name        TEXT NOT NULL DEFAULT '',
			family_name       TEXT NOT NULL DEFAULT '',
			profile_image     TEXT NOT NULL DEFAULT '',
			subscription_type TEXT NOT NULL DEFAULT '',
			sessions          TEXT NOT NULL DEFAULT '',
			api_keys          TEXT NOT NULL DEFAULT '',
			invitations       TEXT NOT NULL DEFAULT '',
			teams             TEXT NOT NULL DEFAULT '',
			team_roles        TEXT NOT NULL DEFAULT '',
			raw_data          TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS ttl_billing (
			id            UUID PRIMARY KEY,
			user_id       TEXT NOT NULL DEFAULT '',
			export_folder TEXT NOT NULL DEFAULT '',
			billing_data  TEXT NOT NULL DEFAULT '',
			raw_data      TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS ttl_sessions (
			session_id      TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL DEFAULT '',
			create_time     DOUBLE PRECISION NOT NULL DEFAULT 0,
			expiration_time DOUBLE PRECISION NOT NULL DEFAULT 0,
			last_auth_time  DOUBLE PRECISION NOT NULL DEFAULT 0,
			status          TEXT NOT NULL DEFAULT '',
			ip_address      TEXT NOT NULL DEFAULT '',
			city            TEXT NOT NULL DEFAULT '',
			country         TEXT NOT NULL DEFAULT '',
			region          TEXT NOT NULL DEFAULT '',
			region_code     TEXT NOT NULL DEFAULT '',
			postal_code     TEXT NOT NULL DEFAULT '',
			latitude        DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude       DOUBLE PRECISION NOT NULL DEFAULT 0,
			timezone        TEXT NOT NULL DEFAULT '',
			metro           TEXT NOT NULL DEFAULT '',
			continent       TEXT NOT NULL DEFAULT '',
			user_agent      TEXT NOT NULL DEFAULT '',
			raw_data        TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS import_log (
			export_folder TEXT PRIMARY KEY,
			status        TEXT NOT NULL DEFAULT 'pending',
			conversations INT NOT NULL DEFAULT 0,
			messages      INT NOT NULL DEFAULT 0,
			feedback      INT NOT NULL DEFAULT 0,
			comparisons   INT NOT NULL DEFAULT 0,
			ttl_auth      INT NOT NULL DEFAULT 0,
			ttl_sessions  INT NOT NULL DEFAULT 0,
			started_at    DOUBLE PRECISION NOT NULL DEFAULT 0,
			completed_at  DOUBLE PRECISION NOT NULL DEFAULT 0,
			error_log     TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	row := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM conversations),
			(SELECT count(*) FROM messages),
			(SELECT count(*) FROM message_feedback),
			(SELECT count(*) FROM model_comparisons),
			(SELECT count(*) FROM ttl_auth),
			(SELECT count(*) FROM ttl_sessions)`)
	if err := row.Scan(&st.Conversations, &st.Messages, &st.Feedback, &st.Comparisons, &st.TTLAuth, &st.TTLSessions); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
