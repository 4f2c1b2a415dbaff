package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shopfabric/backend/internal/domain"
)

const domainSelectColumns = `id, tenant_id, hostname, dns_record_id, target_ip, dns_status, ssl_status, proxy_active, is_primary, verification_token, status, created_at, verified_at, last_check_at, ssl_expires_at`

const pgUniqueViolation = "23505"

type PostgresCustomDomainRepository struct {
	db *sql.DB
}

func NewPostgresCustomDomainRepository(db *sql.DB) *PostgresCustomDomainRepository {
	return &PostgresCustomDomainRepository{db: db}
}

func (r *PostgresCustomDomainRepository) scanDomain(row *sql.Row) (*domain.CustomDomain, error) {
	var d domain.CustomDomain
	err := row.Scan(
		&d.ID,
		&d.TenantID,
		&d.Hostname,
		&d.DNSRecordID,
		&d.TargetIP,
		&d.DNSStatus,
		&d.SSLStatus,
		&d.ProxyActive,
		&d.IsPrimary,
		&d.VerificationToken,
		&d.Status,
		&d.CreatedAt,
		&d.VerifiedAt,
		&d.LastCheckAt,
		&d.SSLExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *PostgresCustomDomainRepository) scanDomains(rows *sql.Rows) ([]domain.CustomDomain, error) {
	var domains []domain.CustomDomain
	for rows.Next() {
		var d domain.CustomDomain
		err := rows.Scan(
			&d.ID,
			&d.TenantID,
			&d.Hostname,
			&d.DNSRecordID,
			&d.TargetIP,
			&d.DNSStatus,
			&d.SSLStatus,
			&d.ProxyActive,
			&d.IsPrimary,
			&d.VerificationToken,
			&d.Status,
			&d.CreatedAt,
			&d.VerifiedAt,
			&d.LastCheckAt,
			&d.SSLExpiresAt,
		)
		if err != nil {
			return nil, err
		}
		domains = append(domains, d)
	}
	return domains, rows.Err()
}

func (r *PostgresCustomDomainRepository) Create(ctx context.Context, input domain.CreateCustomDomainInput) (*domain.CustomDomain, error) {
	query := `
		INSERT INTO custom_domains (tenant_id, hostname, dns_record_id, target_ip, dns_status, ssl_status, proxy_active, is_primary, verification_token, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + domainSelectColumns

	d, err := r.scanDomain(r.db.QueryRowContext(ctx, query,
		input.TenantID,
		input.Hostname,
		input.DNSRecordID,
		input.TargetIP,
		input.DNSStatus,
		input.SSLStatus,
		input.ProxyActive,
		input.IsPrimary,
		input.VerificationToken,
		input.Status,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, domain.ErrHostnameTaken
		}
		return nil, err
	}
	return d, nil
}

func (r *PostgresCustomDomainRepository) FindByHostname(ctx context.Context, hostname string) (*domain.CustomDomain, error) {
	query := `SELECT ` + domainSelectColumns + ` FROM custom_domains WHERE hostname = $1`
	return r.scanDomain(r.db.QueryRowContext(ctx, query, hostname))
}

func (r *PostgresCustomDomainRepository) FindByTenantID(ctx context.Context, tenantID string) ([]domain.CustomDomain, error) {
	query := `SELECT ` + domainSelectColumns + ` FROM custom_domains WHERE tenant_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanDomains(rows)
}

func (r *PostgresCustomDomainRepository) CountByTenantID(ctx context.Context, tenantID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM custom_domains WHERE tenant_id = $1`
	if err := r.db.QueryRowContext(ctx, query, tenantID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostgresCustomDomainRepository) ListAll(ctx context.Context) ([]domain.CustomDomain, error) {
	query := `SELECT ` + domainSelectColumns + ` FROM custom_domains ORDER BY tenant_id, created_at`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return r.scanDomains(rows)
}

// UpdateHealth mutates status and timestamp columns only. Identity columns
// (tenant, hostname, record id, verification token) stay untouched.
func (r *PostgresCustomDomainRepository) UpdateHealth(ctx context.Context, hostname string, update domain.HealthUpdate) error {
	query := `
		UPDATE custom_domains
		SET dns_status = $2,
		    ssl_status = $3,
		    proxy_active = $4,
		    status = $5,
		    verified_at = $6,
		    last_check_at = $7,
		    ssl_expires_at = COALESCE($8, ssl_expires_at)
		WHERE hostname = $1`

	result, err := r.db.ExecContext(ctx, query,
		hostname,
		update.DNSStatus,
		update.SSLStatus,
		update.ProxyActive,
		update.Status,
		update.VerifiedAt,
		update.LastCheckAt,
		update.SSLExpiresAt,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresCustomDomainRepository) Delete(ctx context.Context, hostname string) error {
	query := `DELETE FROM custom_domains WHERE hostname = $1`
	result, err := r.db.ExecContext(ctx, query, hostname)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.CustomDomainRepository = (*PostgresCustomDomainRepository)(nil)
