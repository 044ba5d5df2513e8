package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/clock"
	"github.com/spec-kit/fieldops-console/internal/config"
	"github.com/spec-kit/fieldops-console/internal/domain"
	"github.com/spec-kit/fieldops-console/internal/events"
	"github.com/spec-kit/fieldops-console/internal/repository"
	apperrors "github.com/spec-kit/fieldops-console/pkg/util/errorutil"
)

// StaffService provisions staff members and performs the administrative credential
// actions: reset, unlock and deactivate.
type StaffService struct {
	staff      repository.StaffRepository
	sessions   repository.SessionRepository
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	bcryptCost int
}

// StaffListFilters define listing parameters.
type StaffListFilters struct {
	Role   *domain.StaffRole
	Active *bool
	Locked *bool
	Limit  int
	Offset int
}

// StaffDependencies encapsulates repositories required for staff administration.
type StaffDependencies struct {
	StaffRepo   repository.StaffRepository
	SessionRepo repository.SessionRepository
	Dispatcher  events.Dispatcher
	Clock       clock.Clock
	Logger      *zap.Logger
}

// NewStaffService constructs the service.
func NewStaffService(cfg config.Config, deps StaffDependencies) *StaffService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &StaffService{
		staff:      deps.StaffRepo,
		sessions:   deps.SessionRepo,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

func requireAdministrator(actor *domain.StaffAccount) error {
	if actor == nil || !actor.Role.CanAdministerStaff() {
		return apperrors.NewForbidden("owner or manager role required")
	}
	return nil
}

// CreateStaffInput describes a new PIN-authenticated staff member.
type CreateStaffInput struct {
	Name      string
	StaffCode string
	Role      domain.StaffRole
	PIN       string
}

// CreateStaffMember provisions a staff member in the actor's tenant. The initial
// PIN is administrator-assigned, so the member must rotate it on first login.
func (s *StaffService) CreateStaffMember(ctx context.Context, actor *domain.StaffAccount, in CreateStaffInput) (*domain.StaffAccount, error) {
	if err := requireAdministrator(actor); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	code := strings.TrimSpace(in.StaffCode)
	switch {
	case name == "":
		return nil, apperrors.NewValidationError("name is required", nil)
	case code == "" || strings.ContainsAny(code, "/ "):
		return nil, apperrors.NewValidationError("staff_code must be a single path segment", nil)
	case in.Role == domain.StaffRoleOwner:
		return nil, apperrors.NewValidationError("owner accounts cannot be provisioned here", nil)
	case !auth.IsPIN(in.PIN, auth.PINLength):
		return nil, apperrors.NewValidationError("pin must be 6 digits", nil)
	}
	if _, ok := domain.ParseStaffRole(string(in.Role)); !ok {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": in.Role})
	}
	if in.Role == domain.StaffRoleManager && actor.Role != domain.StaffRoleOwner {
		return nil, apperrors.NewForbidden("only the owner can provision managers")
	}

	if _, err := s.staff.GetByTenantAndCode(ctx, actor.TenantID, code); err == nil {
		return nil, apperrors.NewConflict("staff code already in use", map[string]any{"staff_code": code})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if err := ensurePINUnused(ctx, s.staff, actor.TenantID, in.PIN, ""); err != nil {
		return nil, err
	}

	hash, err := auth.HashPIN(in.PIN, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	member := &domain.StaffAccount{
		TenantID:      actor.TenantID,
		DisplayName:   name,
		Role:          in.Role,
		StaffCode:     code,
		PINHash:       hash,
		MustChangePIN: true,
		Active:        true,
	}
	if err := s.staff.Create(ctx, member); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, actor, member, events.EventStaffCreated,
		events.StaffCreatedPayload{StaffCode: member.StaffCode, Role: member.Role})
	return member, nil
}

// ListStaffMembers lists the actor's tenant.
func (s *StaffService) ListStaffMembers(ctx context.Context, actor *domain.StaffAccount, filters StaffListFilters) ([]domain.StaffAccount, error) {
	if err := requireAdministrator(actor); err != nil {
		return nil, err
	}
	members, err := s.staff.List(ctx, repository.StaffFilter{
		TenantID: actor.TenantID,
		Role:     filters.Role,
		Active:   filters.Active,
		Locked:   filters.Locked,
		Limit:    filters.Limit,
		Offset:   filters.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return members, nil
}

// ResetPIN assigns a new PIN, clears any lock and revokes the member's sessions.
// The rotation timestamp is left alone; must_change_pin forces a fresh rotation.
func (s *StaffService) ResetPIN(ctx context.Context, actor *domain.StaffAccount, staffID, pin string) (*domain.StaffAccount, error) {
	member, err := s.loadManaged(ctx, actor, staffID)
	if err != nil {
		return nil, err
	}
	if !auth.IsPIN(pin, auth.PINLength) {
		return nil, apperrors.NewValidationError("pin must be 6 digits", nil)
	}
	if err := ensurePINUnused(ctx, s.staff, member.TenantID, pin, member.ID); err != nil {
		return nil, err
	}

	hash, err := auth.HashPIN(pin, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.staff.SetPIN(ctx, member.ID, hash, true, nil); err != nil {
		return nil, apperrors.MapError(err)
	}
	revoked := s.revokeSessions(ctx, member.ID, "pin_reset")

	s.publish(ctx, actor, member, events.EventPINReset, events.PINResetPayload{SessionsRevoked: revoked})
	return s.reload(ctx, member.ID)
}

// Unlock clears the lock and attempt counter without touching the PIN.
func (s *StaffService) Unlock(ctx context.Context, actor *domain.StaffAccount, staffID string) (*domain.StaffAccount, error) {
	member, err := s.loadManaged(ctx, actor, staffID)
	if err != nil {
		return nil, err
	}
	if err := s.staff.Unlock(ctx, member.ID); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, actor, member, events.EventStaffUnlocked, nil)
	return s.reload(ctx, member.ID)
}

// Deactivate disables a member and terminates their sessions.
func (s *StaffService) Deactivate(ctx context.Context, actor *domain.StaffAccount, staffID string) (*domain.StaffAccount, error) {
	member, err := s.loadManaged(ctx, actor, staffID)
	if err != nil {
		return nil, err
	}
	if member.ID == actor.ID {
		return nil, apperrors.NewValidationError("cannot deactivate yourself", nil)
	}
	if !member.Active {
		return member, nil
	}

	member.Active = false
	if err := s.staff.Update(ctx, member); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.revokeSessions(ctx, member.ID, "deactivated")
	s.publish(ctx, actor, member, events.EventStaffDeactivated, nil)
	return member, nil
}

// loadManaged fetches a member the actor may administer. Members of other tenants
// are reported as missing.
func (s *StaffService) loadManaged(ctx context.Context, actor *domain.StaffAccount, staffID string) (*domain.StaffAccount, error) {
	if err := requireAdministrator(actor); err != nil {
		return nil, err
	}
	member, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("staff", map[string]any{"id": staffID})
		}
		return nil, apperrors.MapError(err)
	}
	if member.TenantID != actor.TenantID {
		return nil, apperrors.NewNotFound("staff", map[string]any{"id": staffID})
	}
	if member.Role == domain.StaffRoleOwner {
		return nil, apperrors.NewForbidden("owner accounts are managed separately")
	}
	if member.Role == domain.StaffRoleManager && actor.Role != domain.StaffRoleOwner && member.ID != actor.ID {
		return nil, apperrors.NewForbidden("only the owner can manage managers")
	}
	return member, nil
}

func (s *StaffService) reload(ctx context.Context, id string) (*domain.StaffAccount, error) {
	member, err := s.staff.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return member, nil
}

func (s *StaffService) revokeSessions(ctx context.Context, accountID, reason string) bool {
	if s.sessions == nil {
		return false
	}
	if err := s.sessions.RevokeAllForAccount(ctx, accountID, reason); err != nil {
		s.logger.Warn("session revocation failed", zap.String("account_id", accountID), zap.Error(err))
		return false
	}
	return true
}

func (s *StaffService) publish(ctx context.Context, actor, member *domain.StaffAccount, eventType events.EventType, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TenantID:  member.TenantID,
		AccountID: member.ID,
		Actor:     events.Actor{AccountID: actor.ID, Role: actor.Role},
		Timestamp: s.clock.Now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event publish failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}
