package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fieldops-console/internal/domain"
)

// StaffRepository handles persistence for staff accounts. Attempt counters and the
// lock flag are only ever changed through RecordFailedAttempt, ResetAttempts, SetPIN
// and Unlock.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.StaffAccount) error
	Update(ctx context.Context, staff *domain.StaffAccount) error
	GetByID(ctx context.Context, id string) (*domain.StaffAccount, error)
	GetByEmail(ctx context.Context, email string) (*domain.StaffAccount, error)
	GetByTenantAndCode(ctx context.Context, tenantID, staffCode string) (*domain.StaffAccount, error)
	ListPINRoster(ctx context.Context, tenantID string) ([]domain.StaffAccount, error)
	List(ctx context.Context, filter StaffFilter) ([]domain.StaffAccount, error)
	RecordFailedAttempt(ctx context.Context, id string, maxAttempts int) (attempts int, locked bool, err error)
	ResetAttempts(ctx context.Context, id string) error
	SetPIN(ctx context.Context, id, pinHash string, mustChange bool, changedAt *time.Time) error
	Unlock(ctx context.Context, id string) error
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	TenantID string
	Role     *domain.StaffRole
	Active   *bool
	Locked   *bool
	Limit    int
	Offset   int
}

type staffRepository struct {
	pool *pgxpool.Pool
}

// NewStaffRepository instantiates the repository.
func NewStaffRepository(pool *pgxpool.Pool) StaffRepository {
	return &staffRepository{pool: pool}
}

const staffColumns = `id, tenant_id, display_name, email, role, staff_code, pin_hash, password_hash,
        must_change_pin, must_change_password, last_pin_change_at, failed_attempts, locked,
        active_flag, created_at, updated_at`

func scanStaff(row pgx.Row) (*domain.StaffAccount, error) {
	var staff domain.StaffAccount
	if err := row.Scan(
		&staff.ID,
		&staff.TenantID,
		&staff.DisplayName,
		&staff.Email,
		&staff.Role,
		&staff.StaffCode,
		&staff.PINHash,
		&staff.PasswordHash,
		&staff.MustChangePIN,
		&staff.MustChangePassword,
		&staff.LastPINChangeAt,
		&staff.FailedAttempts,
		&staff.Locked,
		&staff.Active,
		&staff.CreatedAt,
		&staff.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *staffRepository) Create(ctx context.Context, staff *domain.StaffAccount) error {
	const query = `
        INSERT INTO staff_accounts (tenant_id, display_name, email, role, staff_code, pin_hash,
            password_hash, must_change_pin, must_change_password, active_flag)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		staff.TenantID,
		staff.DisplayName,
		staff.Email,
		staff.Role,
		staff.StaffCode,
		staff.PINHash,
		staff.PasswordHash,
		staff.MustChangePIN,
		staff.MustChangePassword,
		staff.Active,
	).Scan(&staff.ID, &staff.CreatedAt, &staff.UpdatedAt)
}

// Update persists descriptive fields and the active flag. Credential columns are
// deliberately excluded.
func (r *staffRepository) Update(ctx context.Context, staff *domain.StaffAccount) error {
	const query = `
        UPDATE staff_accounts
        SET display_name=$1, email=$2, role=$3, staff_code=$4, active_flag=$5, updated_at=NOW()
        WHERE id=$6`

	cmd, err := r.pool.Exec(ctx, query,
		staff.DisplayName,
		staff.Email,
		staff.Role,
		staff.StaffCode,
		staff.Active,
		staff.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.StaffAccount, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_accounts WHERE id::text=$1`
	return scanStaff(r.pool.QueryRow(ctx, query, id))
}

func (r *staffRepository) GetByEmail(ctx context.Context, email string) (*domain.StaffAccount, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_accounts WHERE LOWER(email)=LOWER($1)`
	return scanStaff(r.pool.QueryRow(ctx, query, email))
}

func (r *staffRepository) GetByTenantAndCode(ctx context.Context, tenantID, staffCode string) (*domain.StaffAccount, error) {
	query := `
        SELECT ` + staffColumns + `
        FROM staff_accounts
        WHERE tenant_id=$1 AND LOWER(staff_code)=LOWER($2) AND role <> 'OWNER'`
	return scanStaff(r.pool.QueryRow(ctx, query, tenantID, staffCode))
}

func (r *staffRepository) ListPINRoster(ctx context.Context, tenantID string) ([]domain.StaffAccount, error) {
	query := `
        SELECT ` + staffColumns + `
        FROM staff_accounts
        WHERE tenant_id=$1 AND role <> 'OWNER' AND active_flag AND pin_hash <> ''
        ORDER BY created_at`
	return r.collect(ctx, query, tenantID)
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffAccount, error) {
	query := `SELECT ` + staffColumns + ` FROM staff_accounts`
	args := []any{}
	clauses := []string{}

	if filter.TenantID != "" {
		args = append(args, filter.TenantID)
		clauses = append(clauses, fmt.Sprintf("tenant_id=$%d", len(args)))
	}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if filter.Locked != nil {
		args = append(args, *filter.Locked)
		clauses = append(clauses, fmt.Sprintf("locked=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	return r.collect(ctx, query, args...)
}

func (r *staffRepository) collect(ctx context.Context, query string, args ...any) ([]domain.StaffAccount, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StaffAccount
	for rows.Next() {
		staff, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *staff)
	}
	return result, rows.Err()
}

// RecordFailedAttempt increments the counter and trips the lock in one statement,
// so concurrent failures can never skip past the ceiling.
func (r *staffRepository) RecordFailedAttempt(ctx context.Context, id string, maxAttempts int) (int, bool, error) {
	const query = `
        UPDATE staff_accounts
        SET failed_attempts = failed_attempts + 1,
            locked = locked OR failed_attempts + 1 >= $2,
            updated_at = NOW()
        WHERE id=$1
        RETURNING failed_attempts, locked`

	var attempts int
	var locked bool
	if err := r.pool.QueryRow(ctx, query, id, maxAttempts).Scan(&attempts, &locked); err != nil {
		return 0, false, err
	}
	return attempts, locked, nil
}

func (r *staffRepository) ResetAttempts(ctx context.Context, id string) error {
	const query = `
        UPDATE staff_accounts SET failed_attempts=0, updated_at=NOW()
        WHERE id=$1 AND failed_attempts <> 0`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

// SetPIN replaces the credential, clears the lock and counter. A nil changedAt
// keeps the previous rotation timestamp (administrative resets).
func (r *staffRepository) SetPIN(ctx context.Context, id, pinHash string, mustChange bool, changedAt *time.Time) error {
	const query = `
        UPDATE staff_accounts
        SET pin_hash=$2, must_change_pin=$3, last_pin_change_at=COALESCE($4, last_pin_change_at),
            failed_attempts=0, locked=FALSE, updated_at=NOW()
        WHERE id=$1`

	cmd, err := r.pool.Exec(ctx, query, id, pinHash, mustChange, changedAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *staffRepository) Unlock(ctx context.Context, id string) error {
	const query = `
        UPDATE staff_accounts SET failed_attempts=0, locked=FALSE, updated_at=NOW()
        WHERE id=$1`

	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
