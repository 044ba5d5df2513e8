package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/cache"
	"github.com/spec-kit/fieldops-console/internal/clock"
	"github.com/spec-kit/fieldops-console/internal/config"
	"github.com/spec-kit/fieldops-console/internal/domain"
	"github.com/spec-kit/fieldops-console/internal/repository"
	apperrors "github.com/spec-kit/fieldops-console/pkg/util/errorutil"
)

// SessionIssuer mints token pairs for authenticated accounts.
type SessionIssuer interface {
	IssueSession(ctx context.Context, account *domain.StaffAccount, method domain.AuthMethod) (*domain.Session, error)
}

// AuthService coordinates token issuance, refresh, logout, the owner password
// path and profile reads.
type AuthService struct {
	tenants     repository.TenantRepository
	staff       repository.StaffRepository
	sessions    repository.SessionRepository
	denylist    cache.TokenDenylist
	tokenMgr    *auth.TokenManager
	clock       clock.Clock
	logger      *zap.Logger
	refreshTTL  time.Duration
	staleMonths int
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	TenantRepo  repository.TenantRepository
	StaffRepo   repository.StaffRepository
	SessionRepo repository.SessionRepository
	Denylist    cache.TokenDenylist
	Clock       clock.Clock
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AuthService{
		tenants:     deps.TenantRepo,
		staff:       deps.StaffRepo,
		sessions:    deps.SessionRepo,
		denylist:    deps.Denylist,
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL()),
		clock:       deps.Clock,
		logger:      deps.Logger,
		refreshTTL:  cfg.Auth.RefreshTTL(),
		staleMonths: cfg.PIN.StaleMonths,
	}
}

// IssueSession creates a new token pair in a fresh refresh family.
func (s *AuthService) IssueSession(ctx context.Context, account *domain.StaffAccount, method domain.AuthMethod) (*domain.Session, error) {
	return s.issue(ctx, account, method, uuid.NewString())
}

func (s *AuthService) issue(ctx context.Context, account *domain.StaffAccount, method domain.AuthMethod, familyID string) (*domain.Session, error) {
	access, accessExp, err := s.tokenMgr.GenerateToken(account, method)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	refresh, hash, err := auth.NewRefreshToken()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	record := &domain.RefreshSession{
		AccountID: account.ID,
		FamilyID:  familyID,
		TokenHash: hash,
		Method:    method,
		ExpiresAt: s.clock.Now().Add(s.refreshTTL),
	}
	if err := s.sessions.Create(ctx, record); err != nil {
		return nil, apperrors.MapError(err)
	}

	return &domain.Session{
		AccountID:        account.ID,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

// LoginOwner authenticates an owner with email and password. This path has no
// lockout or rotation.
func (s *AuthService) LoginOwner(ctx context.Context, email, password string) (*domain.StaffAccount, *domain.Session, error) {
	account, err := s.staff.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, apperrors.MapError(err)
	}
	if account.Role != domain.StaffRoleOwner || !account.Active {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if account.PasswordHash == "" || auth.ComparePassword(account.PasswordHash, password) != nil {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}

	session, err := s.IssueSession(ctx, account, domain.AuthMethodPassword)
	if err != nil {
		return nil, nil, err
	}
	return account, session, nil
}

// Refresh rotates a refresh token: the presented one is revoked and a new pair is
// issued in the same family.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.StaffAccount, *domain.Session, error) {
	if refreshToken == "" {
		return nil, nil, apperrors.NewUnauthorized("refresh token required")
	}
	record, err := s.sessions.GetActiveByHash(ctx, auth.HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("refresh token invalid or expired")
		}
		return nil, nil, apperrors.MapError(err)
	}

	account, err := s.staff.GetByID(ctx, record.AccountID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if !account.Active {
		return nil, nil, apperrors.NewDomainError(apperrors.CodeSessionTerminate, "account inactive", 401, nil)
	}

	if err := s.sessions.Revoke(ctx, record.ID, "rotated"); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("refresh token invalid or expired")
		}
		return nil, nil, apperrors.MapError(err)
	}

	session, err := s.issue(ctx, account, record.Method, record.FamilyID)
	if err != nil {
		return nil, nil, err
	}
	return account, session, nil
}

// Logout denylists the access token until it expires and revokes the refresh
// token when one is supplied.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims, refreshToken string) error {
	if claims != nil && claims.ExpiresAt != nil {
		if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			s.logger.Warn("access token revocation failed", zap.String("account_id", claims.Subject), zap.Error(err))
		}
	}
	if refreshToken == "" {
		return nil
	}
	record, err := s.sessions.GetActiveByHash(ctx, auth.HashRefreshToken(refreshToken))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return apperrors.MapError(err)
	}
	if claims != nil && record.AccountID != claims.Subject {
		return apperrors.NewForbidden("refresh token belongs to another account")
	}
	if err := s.sessions.Revoke(ctx, record.ID, "logout"); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return apperrors.MapError(err)
	}
	return nil
}

// Profile is the bootstrapped view of an authenticated account.
type Profile struct {
	Account    *domain.StaffAccount
	OwnerID    string
	PINExpired bool
}

// Profile loads the tenant linkage and PIN flags for an account.
func (s *AuthService) Profile(ctx context.Context, account *domain.StaffAccount) (*Profile, error) {
	tenant, err := s.tenants.GetByID(ctx, account.TenantID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	profile := &Profile{
		Account: account,
		OwnerID: account.OwnerLinkID(tenant),
	}
	if account.Role != domain.StaffRoleOwner {
		profile.PINExpired = account.PINExpired(s.clock.Now(), s.staleMonths)
	}
	return profile, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
