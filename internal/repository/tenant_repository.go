package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fieldops-console/internal/domain"
)

// TenantRepository defines persistence access for tenants.
type TenantRepository interface {
	Create(ctx context.Context, tenant *domain.Tenant) error
	SetOwner(ctx context.Context, tenantID, ownerAccountID string) error
	GetByID(ctx context.Context, id string) (*domain.Tenant, error)
	// GetByOwnerIdentifier matches a tenant id or owner account id, but only for
	// tenants whose owner account really carries the OWNER role.
	GetByOwnerIdentifier(ctx context.Context, id string) (*domain.Tenant, error)
	GetByShortCode(ctx context.Context, code string) (*domain.Tenant, error)
}

type tenantRepository struct {
	pool *pgxpool.Pool
}

// NewTenantRepository returns a Postgres-backed implementation.
func NewTenantRepository(pool *pgxpool.Pool) TenantRepository {
	return &tenantRepository{pool: pool}
}

const tenantColumns = `t.id, t.short_code, t.name, COALESCE(t.owner_account_id::text, ''), t.created_at`

func scanTenant(row pgx.Row) (*domain.Tenant, error) {
	var tenant domain.Tenant
	if err := row.Scan(
		&tenant.ID,
		&tenant.ShortCode,
		&tenant.Name,
		&tenant.OwnerAccountID,
		&tenant.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *tenantRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	const query = `
        INSERT INTO tenants (short_code, name)
        VALUES (LOWER($1), $2)
        RETURNING id, short_code, created_at`

	return r.pool.QueryRow(ctx, query, tenant.ShortCode, tenant.Name).
		Scan(&tenant.ID, &tenant.ShortCode, &tenant.CreatedAt)
}

func (r *tenantRepository) SetOwner(ctx context.Context, tenantID, ownerAccountID string) error {
	const query = `UPDATE tenants SET owner_account_id=$1 WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, ownerAccountID, tenantID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *tenantRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants t WHERE t.id::text=$1`
	return scanTenant(r.pool.QueryRow(ctx, query, id))
}

func (r *tenantRepository) GetByOwnerIdentifier(ctx context.Context, id string) (*domain.Tenant, error) {
	query := `
        SELECT ` + tenantColumns + `
        FROM tenants t
        JOIN staff_accounts o ON o.id = t.owner_account_id AND o.role = 'OWNER'
        WHERE t.id::text=$1 OR t.owner_account_id::text=$1
        LIMIT 1`
	return scanTenant(r.pool.QueryRow(ctx, query, id))
}

func (r *tenantRepository) GetByShortCode(ctx context.Context, code string) (*domain.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants t WHERE LOWER(t.short_code)=LOWER($1)`
	return scanTenant(r.pool.QueryRow(ctx, query, code))
}
