package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a pgx-backed Store. The expected schema:
//
//	CREATE TABLE profiles (
//	    ref         TEXT PRIMARY KEY,
//	    full_name   TEXT NOT NULL DEFAULT '',
//	    first_name  TEXT NOT NULL DEFAULT '',
//	    last_name   TEXT NOT NULL DEFAULT '',
//	    middle_name TEXT NOT NULL DEFAULT '',
//	    birthday    TEXT NOT NULL DEFAULT '',
//	    sex         TEXT NOT NULL DEFAULT '',
//	    avatar_ref  TEXT NOT NULL DEFAULT '',
//	    data        JSONB NOT NULL DEFAULT '{}'::jsonb
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to Postgres and verifies the connection.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

const selectProfileSQL = `
SELECT ref, full_name, first_name, last_name, middle_name, birthday, sex, avatar_ref, data
FROM profiles
WHERE ref = $1`

func (s *PostgresStore) FindByRef(ctx context.Context, ref string) (*Profile, error) {
	var p Profile
	var dataBytes []byte

	err := s.pool.QueryRow(ctx, selectProfileSQL, ref).Scan(
		&p.Ref, &p.FullName, &p.FirstName, &p.LastName, &p.MiddleName,
		&p.Birthday, &p.Sex, &p.AvatarRef, &dataBytes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	if len(dataBytes) > 0 {
		if err := json.Unmarshal(dataBytes, &p.Data); err != nil {
			return nil, fmt.Errorf("failed to decode profile data: %w", err)
		}
	}
	return &p, nil
}

func (s *PostgresStore) Update(ctx context.Context, ref string, update Update) (*Profile, error) {
	// Read-modify-write with last-write semantics. The merge logic is
	// shared with the in-memory store.
	p, err := s.FindByRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	p.apply(update)

	dataBytes, err := json.Marshal(p.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode profile data: %w", err)
	}
	if p.Data == nil {
		dataBytes = []byte("{}")
	}

	const updateSQL = `
UPDATE profiles
SET birthday = $2, avatar_ref = $3, data = $4
WHERE ref = $1`

	tag, err := s.pool.Exec(ctx, updateSQL, ref, p.Birthday, p.AvatarRef, dataBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return p, nil
}
