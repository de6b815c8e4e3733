package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"issue-map/internal/config"
	"issue-map/internal/errs"
	"issue-map/internal/model"

	_ "github.com/lib/pq"
)

type PostgresRepo struct {
	db *sql.DB
}

type Storage struct {
	repo  *PostgresRepo
	cache *RedisCache
}

func NewPostgresRepo(dbURL string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresRepo{db: db}, nil
}

// NewStorage connects to Postgres and, when redisCfg.Addr is set, to Redis.
func NewStorage(ctx context.Context, dbURL string, redisCfg config.RedisConfig) (*Storage, error) {
	postgres, err := NewPostgresRepo(dbURL)
	if err != nil {
		return nil, errs.Wrap("connect postgres", err)
	}
	if redisCfg.Addr == "" {
		return &Storage{repo: postgres}, nil
	}
	cache, err := NewRedisCache(ctx, redisCfg)
	if err != nil {
		_ = postgres.db.Close()
		return nil, errs.Wrap("connect redis", err)
	}
	return &Storage{
		repo:  postgres,
		cache: cache,
	}, nil
}

// NewStorageWithDB wraps an already opened database handle. cache may be nil.
func NewStorageWithDB(db *sql.DB, cache *RedisCache) *Storage {
	return &Storage{repo: &PostgresRepo{db: db}, cache: cache}
}

func (s *Storage) CreateTables(ctx context.Context) error {
	query := `
CREATE TABLE IF NOT EXISTS issues (
    id             BIGSERIAL PRIMARY KEY,
    issue_type     TEXT        NOT NULL,
    title          TEXT        NOT NULL DEFAULT '',
    description    TEXT        NOT NULL DEFAULT '',
    latitude       DOUBLE PRECISION NOT NULL,
    longitude      DOUBLE PRECISION NOT NULL,
    image_filename TEXT        NOT NULL,
    status         TEXT        NOT NULL DEFAULT 'open',
    resolved_by    TEXT        NOT NULL DEFAULT '',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    resolved_at    TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS issues_created_at_idx ON issues (created_at DESC);
`
	_, err := s.repo.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("create table issues: %w", err)
	}
	return nil
}

func (s *Storage) Create(ctx context.Context, in *model.Issue) (int64, error) {
	query := `
INSERT INTO issues (issue_type, title, description, latitude, longitude, image_filename)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, status, created_at;
`

	row := s.repo.db.QueryRowContext(ctx, query,
		in.Category,
		in.Title,
		in.Description,
		in.Latitude,
		in.Longitude,
		in.ImageFilename,
	)

	if err := row.Scan(&in.ID, &in.Status, &in.CreatedAt); err != nil {
		return 0, fmt.Errorf("insert issue: %w", err)
	}
	s.invalidate(ctx)
	return in.ID, nil
}

const selectIssue = `
SELECT id, issue_type, title, description, latitude, longitude, image_filename,
       status, resolved_by, created_at, resolved_at
FROM issues`

// List returns every issue, newest first. A warm cache answers without touching Postgres.
func (s *Storage) List(ctx context.Context) ([]model.Issue, error) {
	var (
		version   int64
		cacheable bool
	)
	if s.cache != nil {
		if cached, ok := s.cache.GetList(ctx); ok {
			return cached, nil
		}
		v, err := s.cache.ListVersion(ctx)
		version, cacheable = v, err == nil
	}

	rows, err := s.repo.db.QueryContext(ctx, selectIssue+" ORDER BY created_at DESC, id DESC;")
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	result := make([]model.Issue, 0)
	for rows.Next() {
		in, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		result = append(result, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if cacheable {
		s.cache.SetList(ctx, result, version)
	}
	return result, nil
}

func (s *Storage) GetByID(ctx context.Context, id int64) (*model.Issue, error) {
	row := s.repo.db.QueryRowContext(ctx, selectIssue+" WHERE id = $1;", id)
	in, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issue %d: %w", id, err)
	}
	return &in, nil
}

// Resolve moves an open issue to resolved. The returned flag is false when the issue was
// already resolved, in which case the stored row is returned untouched.
func (s *Storage) Resolve(ctx context.Context, id int64, actor string) (*model.Issue, bool, error) {
	query := `
UPDATE issues
SET status = 'resolved',
    resolved_by = $2,
    resolved_at = NOW()
WHERE id = $1 AND status = 'open'
RETURNING id, issue_type, title, description, latitude, longitude, image_filename,
          status, resolved_by, created_at, resolved_at;
`
	in, err := scanIssue(s.repo.db.QueryRowContext(ctx, query, id, actor))
	if err == nil {
		s.invalidate(ctx)
		return &in, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("resolve issue %d: %w", id, err)
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("issue %d: %w", id, errs.ErrNotFound)
	}
	return existing, false, nil
}

// PushEvent queues a lifecycle event for the webhook worker. Without Redis it is dropped.
func (s *Storage) PushEvent(ctx context.Context, payload model.WebhookPayload) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.PushEvent(ctx, payload)
}

func (s *Storage) PingDB(ctx context.Context) error {
	return s.repo.db.PingContext(ctx)
}

func (s *Storage) PingCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Ping(ctx)
}

// Events exposes the Redis queue, nil when Redis is not configured.
func (s *Storage) Events() *RedisCache {
	return s.cache
}

func (s *Storage) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.InvalidateList(ctx)
	}
}

func (s *Storage) Close() error {
	var errPostgres, errRedis error

	if s.repo != nil && s.repo.db != nil {
		errPostgres = s.repo.db.Close()
	}
	if s.cache != nil && s.cache.cache != nil {
		errRedis = s.cache.cache.Close()
	}

	if errPostgres != nil || errRedis != nil {
		return fmt.Errorf("close errors: postgres=%v, redis=%v", errPostgres, errRedis)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (model.Issue, error) {
	var (
		in         model.Issue
		resolvedAt sql.NullTime
	)
	err := row.Scan(
		&in.ID,
		&in.Category,
		&in.Title,
		&in.Description,
		&in.Latitude,
		&in.Longitude,
		&in.ImageFilename,
		&in.Status,
		&in.ResolvedBy,
		&in.CreatedAt,
		&resolvedAt,
	)
	if err != nil {
		return model.Issue{}, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		in.ResolvedAt = &t
	}
	return in, nil
}
