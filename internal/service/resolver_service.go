package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/fieldops-console/internal/domain"
	"github.com/spec-kit/fieldops-console/internal/repository"
	apperrors "github.com/spec-kit/fieldops-console/pkg/util/errorutil"
)

// ResolverService maps shareable link shorthands to a tenant and staff member.
// It never creates sessions.
type ResolverService struct {
	tenants repository.TenantRepository
	staff   repository.StaffRepository
}

// NewResolverService constructs the service.
func NewResolverService(tenants repository.TenantRepository, staff repository.StaffRepository) *ResolverService {
	return &ResolverService{tenants: tenants, staff: staff}
}

// ResolveTenant tries the shorthand as an owner-backed internal id first, then as
// a business short code.
func (s *ResolverService) ResolveTenant(ctx context.Context, shorthand string) (*domain.Tenant, error) {
	shorthand = strings.TrimSpace(shorthand)
	if shorthand == "" {
		return nil, apperrors.NewTenantNotFound(shorthand)
	}

	tenant, err := s.tenants.GetByOwnerIdentifier(ctx, shorthand)
	if err == nil {
		return tenant, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	tenant, err = s.tenants.GetByShortCode(ctx, shorthand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewTenantNotFound(shorthand)
		}
		return nil, apperrors.MapError(err)
	}
	return tenant, nil
}

// Resolve resolves both halves of a /{tenant}/{staff} link.
func (s *ResolverService) Resolve(ctx context.Context, tenantShorthand, staffShorthand string) (*domain.Tenant, *domain.StaffDescriptor, error) {
	tenant, err := s.ResolveTenant(ctx, tenantShorthand)
	if err != nil {
		return nil, nil, err
	}

	staffShorthand = strings.TrimSpace(staffShorthand)
	if staffShorthand == "" {
		return nil, nil, apperrors.NewStaffNotFound(staffShorthand)
	}
	account, err := s.staff.GetByTenantAndCode(ctx, tenant.ID, staffShorthand)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewStaffNotFound(staffShorthand)
		}
		return nil, nil, apperrors.MapError(err)
	}
	if account.Role == domain.StaffRoleOwner {
		return nil, nil, apperrors.NewStaffNotFound(staffShorthand)
	}

	return tenant, &domain.StaffDescriptor{
		ID:          account.ID,
		DisplayName: account.DisplayName,
		StaffCode:   account.StaffCode,
	}, nil
}
