package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopfabric/backend/internal/domain"
)

type PostgresTenantRegistry struct {
	db *sql.DB
}

func NewPostgresTenantRegistry(db *sql.DB) *PostgresTenantRegistry {
	return &PostgresTenantRegistry{db: db}
}

func (r *PostgresTenantRegistry) FindByID(ctx context.Context, id string) (*domain.Tenant, error) {
	query := `SELECT id, name, backend_port, max_domains, created_at FROM tenants WHERE id = $1`

	var t domain.Tenant
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.BackendPort,
		&t.MaxDomains,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (r *PostgresTenantRegistry) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ domain.TenantRegistry = (*PostgresTenantRegistry)(nil)
