package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"parish-portal/internal/config"
)

// PGStore reads application and permission rows from a local PostgreSQL
// mirror, for deployments where the platform tables are synced down rather
// than queried live.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(ctx context.Context, cfg config.DatabaseConfig) (*PGStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.PoolSize > 0 {
		poolCfg.MaxConns = int32(cfg.PoolSize)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() {
	s.pool.Close()
}

func (s *PGStore) Application(ctx context.Context, key string) (*Application, error) {
	var app Application
	err := s.pool.QueryRow(ctx,
		`SELECT application_key, route_path, requires_auth, is_active
		 FROM portal_applications WHERE application_key = $1`, key,
	).Scan(&app.Key, &app.Path, &app.RequiresAuth, &app.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query application %s: %w", key, err)
	}
	return &app, nil
}

func (s *PGStore) Applications(ctx context.Context) ([]Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT application_key, route_path, requires_auth, is_active
		 FROM portal_applications ORDER BY application_key`)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var app Application
		if err := rows.Scan(&app.Key, &app.Path, &app.RequiresAuth, &app.Active); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (s *PGStore) Permissions(ctx context.Context, appKey string) ([]Permission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT application_key, COALESCE(role_name, ''), COALESCE(email_address, ''),
		        can_view, can_edit, can_delete
		 FROM portal_application_permissions WHERE application_key = $1`, appKey)
	if err != nil {
		return nil, fmt.Errorf("query permissions for %s: %w", appKey, err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.AppKey, &p.Role, &p.Email, &p.CanView, &p.CanEdit, &p.CanDelete); err != nil {
			return nil, fmt.Errorf("scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
