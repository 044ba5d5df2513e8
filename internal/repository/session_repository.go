package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/fieldops-console/internal/domain"
)

// SessionRepository manages refresh session persistence.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.RefreshSession) error
	GetActiveByHash(ctx context.Context, tokenHash string) (*domain.RefreshSession, error)
	Revoke(ctx context.Context, id, reason string) error
	RevokeAllForAccount(ctx context.Context, accountID, reason string) error
}

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository constructs repository.
func NewSessionRepository(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.RefreshSession) error {
	const query = `
        INSERT INTO staff_sessions (account_id, family_id, refresh_token_hash, auth_method, expires_at)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		session.AccountID,
		session.FamilyID,
		session.TokenHash,
		session.Method,
		session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt)
}

func (r *sessionRepository) GetActiveByHash(ctx context.Context, tokenHash string) (*domain.RefreshSession, error) {
	const query = `
        SELECT id, account_id, family_id, refresh_token_hash, auth_method, expires_at,
            revoked_at, revoked_reason, created_at
        FROM staff_sessions
        WHERE refresh_token_hash=$1 AND revoked_at IS NULL AND expires_at > NOW()`
	var session domain.RefreshSession
	if err := r.pool.QueryRow(ctx, query, tokenHash).Scan(
		&session.ID,
		&session.AccountID,
		&session.FamilyID,
		&session.TokenHash,
		&session.Method,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.RevokedReason,
		&session.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, id, reason string) error {
	const query = `
        UPDATE staff_sessions SET revoked_at=NOW(), revoked_reason=$2
        WHERE id=$1 AND revoked_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, id, reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *sessionRepository) RevokeAllForAccount(ctx context.Context, accountID, reason string) error {
	const query = `
        UPDATE staff_sessions SET revoked_at=NOW(), revoked_reason=$2
        WHERE account_id=$1 AND revoked_at IS NULL`
	_, err := r.pool.Exec(ctx, query, accountID, reason)
	return err
}
