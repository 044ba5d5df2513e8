package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/cache"
	"github.com/spec-kit/fieldops-console/internal/clock"
	"github.com/spec-kit/fieldops-console/internal/config"
	"github.com/spec-kit/fieldops-console/internal/domain"
	"github.com/spec-kit/fieldops-console/internal/events"
	"github.com/spec-kit/fieldops-console/internal/observability"
	"github.com/spec-kit/fieldops-console/internal/repository"
	apperrors "github.com/spec-kit/fieldops-console/pkg/util/errorutil"
)

// MinLoginPINLength is the shortest PIN the login path accepts.
const MinLoginPINLength = 4

// PIN verification outcomes, as recorded in metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeInvalid   = "invalid"
	OutcomeLocked    = "locked"
	OutcomeThrottled = "throttled"
)

// Failure messages returned in verification and rotation responses.
const (
	MessageIncorrectPIN    = "Incorrect PIN"
	MessageLocked          = "Account locked. Contact your manager to reset your PIN."
	MessageIncorrectOldPIN = "Current PIN is incorrect"
	MessagePINInUse        = "PIN already in use, choose another"
)

// PINService verifies PINs, maintains attempt counters and performs self rotation.
type PINService struct {
	tenants    repository.TenantRepository
	staff      repository.StaffRepository
	sessions   SessionIssuer
	limiter    cache.AttemptLimiter
	dispatcher events.Dispatcher
	clock      clock.Clock
	metrics    *observability.Metrics
	logger     *zap.Logger
	policy     config.PINConfig
	bcryptCost int
}

// PINDependencies encapsulates requirements for the PIN service.
type PINDependencies struct {
	TenantRepo repository.TenantRepository
	StaffRepo  repository.StaffRepository
	Sessions   SessionIssuer
	Limiter    cache.AttemptLimiter
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewPINService builds the service.
func NewPINService(cfg config.Config, deps PINDependencies) *PINService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &PINService{
		tenants:    deps.TenantRepo,
		staff:      deps.StaffRepo,
		sessions:   deps.Sessions,
		limiter:    deps.Limiter,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		policy:     cfg.PIN,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// VerifyInput is a PIN login attempt. StaffID is optional; without it the PIN is
// matched against the tenant roster.
type VerifyInput struct {
	PIN       string
	TenantID  string
	StaffID   string
	ClientKey string
}

// VerifyResult is the outcome of a well-formed attempt. Invalid and locked
// outcomes are results, not errors.
type VerifyResult struct {
	Success           bool
	Account           *domain.StaffAccount
	Session           *domain.Session
	MustChangePIN     bool
	PINExpired        bool
	RedirectTo        string
	Locked            bool
	AttemptsRemaining *int
	Message           string
}

// Verify checks a PIN for a tenant.
func (s *PINService) Verify(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	if !auth.IsPIN(in.PIN, MinLoginPINLength) {
		return nil, apperrors.NewValidationError("pin must be 4 to 6 digits", nil)
	}
	if in.TenantID == "" {
		return nil, apperrors.NewValidationError("tenant_id is required", nil)
	}

	tenant, err := s.tenants.GetByID(ctx, in.TenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTenantNotFound(in.TenantID)
		}
		return nil, apperrors.MapError(err)
	}

	if in.StaffID != "" {
		account, err := s.staff.GetByID(ctx, in.StaffID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewStaffNotFound(in.StaffID)
			}
			return nil, apperrors.MapError(err)
		}
		if account.TenantID != tenant.ID || account.Role == domain.StaffRoleOwner {
			return nil, apperrors.NewStaffNotFound(in.StaffID)
		}
		return s.verifyAccount(ctx, account, auth.MatchPIN(account.PINHash, in.PIN))
	}

	return s.verifyRoster(ctx, tenant, in)
}

func (s *PINService) verifyRoster(ctx context.Context, tenant *domain.Tenant, in VerifyInput) (*VerifyResult, error) {
	// No account to charge, so roster attempts are throttled per tenant and client.
	// A throttled client is refused before any PIN comparison.
	key := fmt.Sprintf("roster:%s:%s", tenant.ID, in.ClientKey)
	limit := int64(s.policy.RosterLimit)
	count, err := s.limiter.Count(ctx, key)
	if err != nil {
		s.logger.Warn("roster limiter unavailable", zap.String("tenant_id", tenant.ID), zap.Error(err))
		count = 0
	}
	if count >= limit {
		s.metrics.RecordPINOutcome(OutcomeThrottled)
		return nil, apperrors.NewTooManyAttempts("too many attempts, try again later")
	}

	roster, err := s.staff.ListPINRoster(ctx, tenant.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	matches := matchRoster(roster, in.PIN)
	if len(matches) == 1 {
		return s.verifyAccount(ctx, &roster[matches[0]], true)
	}
	if len(matches) > 1 {
		s.logger.Warn("roster PIN matches several accounts",
			zap.String("tenant_id", tenant.ID), zap.Int("matches", len(matches)))
	}

	allowed, count, err := s.limiter.Allow(ctx, key, limit, s.policy.RosterWindow())
	if err != nil {
		s.logger.Warn("roster limiter unavailable", zap.String("tenant_id", tenant.ID), zap.Error(err))
		allowed = true
	}
	if !allowed {
		s.metrics.RecordPINOutcome(OutcomeThrottled)
		return nil, apperrors.NewTooManyAttempts("too many attempts, try again later")
	}

	s.metrics.RecordPINOutcome(OutcomeInvalid)
	remaining := s.policy.RosterLimit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return &VerifyResult{Message: MessageIncorrectPIN, AttemptsRemaining: &remaining}, nil
}

// matchRoster returns the indexes of every roster entry whose hash matches pin.
func matchRoster(roster []domain.StaffAccount, pin string) []int {
	var matches []int
	for i := range roster {
		if auth.MatchPIN(roster[i].PINHash, pin) {
			matches = append(matches, i)
		}
	}
	return matches
}

// ensurePINUnused rejects a PIN that already signs in another account of the
// tenant, since roster logins identify staff by PIN alone.
func ensurePINUnused(ctx context.Context, staff repository.StaffRepository, tenantID, pin, exceptID string) error {
	roster, err := staff.ListPINRoster(ctx, tenantID)
	if err != nil {
		return apperrors.MapError(err)
	}
	for _, i := range matchRoster(roster, pin) {
		if roster[i].ID != exceptID {
			return apperrors.NewConflict(MessagePINInUse, nil)
		}
	}
	return nil
}

func (s *PINService) verifyAccount(ctx context.Context, account *domain.StaffAccount, matched bool) (*VerifyResult, error) {
	if !account.Active {
		return nil, apperrors.NewDomainError(apperrors.CodeAccountInactive, "account is inactive", 403, nil)
	}
	if account.Locked {
		s.metrics.RecordPINOutcome(OutcomeLocked)
		return &VerifyResult{Locked: true, Message: MessageLocked}, nil
	}

	if !matched {
		attempts, locked, err := s.staff.RecordFailedAttempt(ctx, account.ID, s.policy.MaxAttempts)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if locked {
			s.publish(ctx, events.Event{
				Type:      events.EventStaffLocked,
				TenantID:  account.TenantID,
				AccountID: account.ID,
				Payload:   events.StaffLockedPayload{FailedAttempts: attempts},
			})
		}
		remaining := s.policy.MaxAttempts - attempts
		if remaining < 0 {
			remaining = 0
		}
		s.metrics.RecordPINOutcome(OutcomeInvalid)
		return &VerifyResult{Message: MessageIncorrectPIN, AttemptsRemaining: &remaining}, nil
	}

	if account.FailedAttempts > 0 {
		if err := s.staff.ResetAttempts(ctx, account.ID); err != nil {
			return nil, apperrors.MapError(err)
		}
		account.FailedAttempts = 0
	}

	session, err := s.sessions.IssueSession(ctx, account, domain.AuthMethodPIN)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordPINOutcome(OutcomeSuccess)

	return &VerifyResult{
		Success:       true,
		Account:       account,
		Session:       session,
		MustChangePIN: account.MustChangePIN,
		PINExpired:    account.PINExpired(s.clock.Now(), s.policy.StaleMonths),
		RedirectTo:    account.Role.LandingRoute(),
	}, nil
}

// RotateInput is a self-service PIN change.
type RotateInput struct {
	OldPIN string
	NewPIN string
	UserID string
}

// Rotate replaces the actor's PIN. A wrong current PIN is reported as INVALID_PIN
// and is not charged against the lockout counter.
func (s *PINService) Rotate(ctx context.Context, actor *domain.StaffAccount, in RotateInput) (string, error) {
	if actor == nil {
		return "", apperrors.NewUnauthorized("authentication required")
	}
	if in.UserID != "" && in.UserID != actor.ID {
		return "", apperrors.NewForbidden("cannot change another account's PIN")
	}
	if actor.Role == domain.StaffRoleOwner {
		return "", apperrors.NewForbidden("owners authenticate with a password")
	}
	if err := ValidateRotation(in.OldPIN, in.NewPIN); err != nil {
		return "", err
	}

	account, err := s.staff.GetByID(ctx, actor.ID)
	if err != nil {
		return "", apperrors.MapError(err)
	}
	if account.Locked {
		return "", apperrors.NewDomainError(apperrors.CodePINLocked, MessageLocked, 423, nil)
	}
	if !auth.MatchPIN(account.PINHash, in.OldPIN) {
		return "", apperrors.NewDomainError(apperrors.CodeInvalidPIN, MessageIncorrectOldPIN, 400, nil)
	}
	if err := ensurePINUnused(ctx, s.staff, account.TenantID, in.NewPIN, account.ID); err != nil {
		return "", err
	}

	hash, err := auth.HashPIN(in.NewPIN, s.bcryptCost)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	now := s.clock.Now()
	if err := s.staff.SetPIN(ctx, account.ID, hash, false, &now); err != nil {
		return "", apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventPINRotated,
		TenantID:  account.TenantID,
		AccountID: account.ID,
		Actor:     events.Actor{AccountID: account.ID, Role: account.Role},
	})
	return account.Role.LandingRoute(), nil
}

// ValidateRotation checks a rotation request in order: current PIN shape, new PIN
// shape, then that the PIN actually changes.
func ValidateRotation(oldPIN, newPIN string) error {
	switch {
	case !auth.IsPIN(oldPIN, auth.PINLength):
		return apperrors.NewValidationError("current PIN must be 6 digits", map[string]any{"field": "old_pin"})
	case !auth.IsPIN(newPIN, auth.PINLength):
		return apperrors.NewValidationError("new PIN must be 6 digits", map[string]any{"field": "new_pin"})
	case oldPIN == newPIN:
		return apperrors.NewValidationError("new PIN must differ from the current PIN", map[string]any{"field": "new_pin"})
	}
	return nil
}

// Status returns the PIN timestamps used by the expiry watchdog.
func (s *PINService) Status(ctx context.Context, actor *domain.StaffAccount) (*domain.StaffAccount, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	account, err := s.staff.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return account, nil
}

func (s *PINService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.clock.Now()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
