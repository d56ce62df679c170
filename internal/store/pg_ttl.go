package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chatvault/chatvault/internal/record"
)

const ttlAuthCols = `user_id, export_folder, email, given_name, family_name, profile_image,
	subscription_type, sessions, api_keys, invitations, teams, team_roles, raw_data`

func scanTTLAuth(row pgx.Row) (*record.TTLAuth, error) {
	var a record.TTLAuth
	err := row.Scan(&a.UserID, &a.ExportFolder, &a.Email, &a.GivenName, &a.FamilyName, &a.ProfileImage,
		&a.SubscriptionType, &a.Sessions, &a.APIKeys, &a.Invitations, &a.Teams, &a.TeamRoles, &a.RawData)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Postgres) FindTTLAuth(ctx context.Context, userID, exportFolder string) (*record.TTLAuth, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ttlAuthCols+` FROM ttl_auth WHERE user_id = $1 AND export_folder = $2 LIMIT 1`,
		userID, exportFolder)
	a, err := scanTTLAuth(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ttl auth: %w", err)
	}
	return a, nil
}

func (s *Postgres) InsertTTLAuth(ctx context.Context, a record.TTLAuth) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ttl_auth (id, `+ttlAuthCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		uuid.New(), a.UserID, a.ExportFolder, a.Email, a.GivenName, a.FamilyName, a.ProfileImage,
		a.SubscriptionType, a.Sessions, a.APIKeys, a.Invitations, a.Teams, a.TeamRoles, a.RawData,
	)
	if err != nil {
		return fmt.Errorf("insert ttl auth: %w", err)
	}
	return nil
}

func (s *Postgres) ListTTLAuth(ctx context.Context, p PageRequest) ([]record.TTLAuth, PageInfo, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM ttl_auth`).Scan(&total); err != nil {
		return nil, PageInfo{}, fmt.Errorf("count ttl auth: %w", err)
	}

	offset, limit, info := Paginate(total, p)
	rows, err := s.pool.Query(ctx, `
		SELECT `+ttlAuthCols+` FROM ttl_auth ORDER BY user_id, export_folder LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("list ttl auth: %w", err)
	}
	defer rows.Close()

	var out []record.TTLAuth
	for rows.Next() {
		a, err := scanTTLAuth(rows)
		if err != nil {
			return nil, PageInfo{}, fmt.Errorf("scan ttl auth: %w", err)
		}
		out = append(out, *a)
	}
	return out, info, rows.Err()
}

func (s *Postgres) FindTTLBilling(ctx context.Context, userID, exportFolder string) (*record.TTLBilling, error) {
	var b record.TTLBilling
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, export_folder, billing_data, raw_data
		FROM ttl_billing WHERE user_id = $1 AND export_folder = $2 LIMIT 1`,
		userID, exportFolder).
		Scan(&b.UserID, &b.ExportFolder, &b.BillingData, &b.RawData)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ttl billing: %w", err)
	}
	return &b, nil
}

func (s *Postgres) InsertTTLBilling(ctx context.Context, b record.TTLBilling) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ttl_billing (id, user_id, export_folder, billing_data, raw_data)
		VALUES ($1,$2,$3,$4,$5)`,
		uuid.New(), b.UserID, b.ExportFolder, b.BillingData, b.RawData,
	)
	if err != nil {
		return fmt.Errorf("insert ttl billing: %w", err)
	}
	return nil
}

const ttlSessionCols = `session_id, user_id, create_time, expiration_time, last_auth_time, status,
	ip_address, city, country, region, region_code, postal_code, latitude, longitude,
	timezone, metro, continent, user_agent, raw_data`

func scanTTLSession(row pgx.Row) (*record.TTLSession, error) {
	var sess record.TTLSession
	err := row.Scan(&sess.SessionID, &sess.UserID, &sess.CreateTime, &sess.ExpirationTime, &sess.LastAuthTime,
		&sess.Status, &sess.IPAddress, &sess.City, &sess.Country, &sess.Region, &sess.RegionCode,
		&sess.PostalCode, &sess.Latitude, &sess.Longitude, &sess.Timezone, &sess.Metro, &sess.Continent,
		&sess.UserAgent, &sess.RawData)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *Postgres) FindTTLSession(ctx context.Context, sessionID string) (*record.TTLSession, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+ttlSessionCols+` FROM ttl_sessions WHERE session_id = $1`, sessionID)
	sess, err := scanTTLSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find ttl session: %w", err)
	}
	return sess, nil
}

func (s *Postgres) InsertTTLSession(ctx context.Context, sess record.TTLSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ttl_sessions (`+ttlSessionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		sess.SessionID, sess.UserID, sess.CreateTime, sess.ExpirationTime, sess.LastAuthTime, sess.Status,
		sess.IPAddress, sess.City, sess.Country, sess.Region, sess.RegionCode, sess.PostalCode,
		sess.Latitude, sess.Longitude, sess.Timezone, sess.Metro, sess.Continent, sess.UserAgent, sess.RawData,
	)
	if err != nil {
		return fmt.Errorf("insert ttl session: %w", err)
	}
	return nil
}

func (s *Postgres) ListTTLSessions(ctx context.Context, p PageRequest) ([]record.TTLSession, PageInfo, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM ttl_sessions`).Scan(&total); err != nil {
		return nil, PageInfo{}, fmt.Errorf("count ttl sessions: %w", err)
	}

	offset, limit, info := Paginate(total, p)
	rows, err := s.pool.Query(ctx, `
		SELECT `+ttlSessionCols+` FROM ttl_sessions
		ORDER BY create_time DESC, session_id ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, PageInfo{}, fmt.Errorf("list ttl sessions: %w", err)
	}
	defer rows.Close()

	var out []record.TTLSession
	for rows.Next() {
		sess, err := scanTTLSession(rows)
		if err != nil {
			return nil, PageInfo{}, fmt.Errorf("scan ttl session: %w", err)
		}
		out = append(out, *sess)
	}
	return out, info, rows.Err()
}
