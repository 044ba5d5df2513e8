package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/domain"
	"github.com/spec-kit/fieldops-console/internal/repository"
)

// Fixture is the YAML provisioning document.
type Fixture struct {
	Tenants []TenantFixture `yaml:"tenants"`
}

// TenantFixture provisions one tenant, its owner and its roster.
type TenantFixture struct {
	ShortCode string         `yaml:"short_code"`
	Name      string         `yaml:"name"`
	Owner     OwnerFixture   `yaml:"owner"`
	Staff     []StaffFixture `yaml:"staff"`
}

// OwnerFixture is the tenant owner. Owners sign in with email and password.
type OwnerFixture struct {
	Name     string `yaml:"name"`
	Code     string `yaml:"code"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// StaffFixture is a PIN-holding staff member. PINs default to must-change.
type StaffFixture struct {
	Name          string `yaml:"name"`
	Code          string `yaml:"code"`
	Role          string `yaml:"role"`
	PIN           string `yaml:"pin"`
	MustChangePIN *bool  `yaml:"must_change_pin"`
}

// ParseFixture decodes and validates a fixture. Unknown keys are rejected.
func ParseFixture(data []byte) (*Fixture, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var fx Fixture
	if err := decoder.Decode(&fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixture) validate() error {
	var errs []error
	seen := map[string]bool{}
	for i, t := range fx.Tenants {
		where := fmt.Sprintf("tenants[%d]", i)
		code := strings.ToLower(strings.TrimSpace(t.ShortCode))
		switch {
		case code == "":
			errs = append(errs, fmt.Errorf("%s: short_code is required", where))
		case seen[code]:
			errs = append(errs, fmt.Errorf("%s: duplicate short_code %q", where, t.ShortCode))
		}
		seen[code] = true
		if t.Owner.Email == "" || t.Owner.Password == "" {
			errs = append(errs, fmt.Errorf("%s.owner: email and password are required", where))
		}

		codes := map[string]bool{strings.ToLower(t.Owner.code()): true}
		for j, s := range t.Staff {
			where := fmt.Sprintf("%s.staff[%d]", where, j)
			role, ok := domain.ParseStaffRole(strings.ToUpper(s.Role))
			switch {
			case !ok:
				errs = append(errs, fmt.Errorf("%s: unknown role %q", where, s.Role))
			case role == domain.StaffRoleOwner:
				errs = append(errs, fmt.Errorf("%s: owners are declared under owner", where))
			}
			if strings.TrimSpace(s.Code) == "" || strings.ContainsAny(s.Code, "/ ") {
				errs = append(errs, fmt.Errorf("%s: invalid code %q", where, s.Code))
			} else if codes[strings.ToLower(s.Code)] {
				errs = append(errs, fmt.Errorf("%s: duplicate code %q", where, s.Code))
			}
			codes[strings.ToLower(s.Code)] = true
			if !auth.IsPIN(s.PIN, auth.PINLength) {
				errs = append(errs, fmt.Errorf("%s: pin must be exactly %d digits", where, auth.PINLength))
			}
		}
	}
	return errors.Join(errs...)
}

func (o OwnerFixture) code() string {
	if o.Code == "" {
		return "owner"
	}
	return o.Code
}

// Summary counts what Apply did.
type Summary struct {
	TenantsCreated int
	StaffCreated   int
	Skipped        int
}

// Seeder writes fixtures through the repositories. Existing tenants and staff
// codes are left untouched, so a fixture can be applied repeatedly.
type Seeder struct {
	tenants repository.TenantRepository
	staff   repository.StaffRepository
	cost    int
	now     func() time.Time
	logger  *zap.Logger
}

func NewSeeder(tenants repository.TenantRepository, staff repository.StaffRepository, cost int, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{tenants: tenants, staff: staff, cost: cost, now: time.Now, logger: logger}
}

// Apply provisions every tenant in fx.
func (s *Seeder) Apply(ctx context.Context, fx *Fixture) (Summary, error) {
	var sum Summary
	for _, t := range fx.Tenants {
		tenant, created, err := s.ensureTenant(ctx, t)
		if err != nil {
			return sum, fmt.Errorf("tenant %s: %w", t.ShortCode, err)
		}
		if created {
			sum.TenantsCreated++
			sum.StaffCreated++
		} else {
			sum.Skipped++
		}

		for _, member := range t.Staff {
			ok, err := s.ensureStaff(ctx, tenant, member)
			if err != nil {
				return sum, fmt.Errorf("tenant %s staff %s: %w", t.ShortCode, member.Code, err)
			}
			if ok {
				sum.StaffCreated++
			} else {
				sum.Skipped++
			}
		}
	}
	return sum, nil
}

func (s *Seeder) ensureTenant(ctx context.Context, t TenantFixture) (*domain.Tenant, bool, error) {
	existing, err := s.tenants.GetByShortCode(ctx, t.ShortCode)
	if err == nil {
		s.logger.Info("tenant exists", zap.String("tenant_id", existing.ID), zap.String("short_code", existing.ShortCode))
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}

	tenant := &domain.Tenant{ShortCode: t.ShortCode, Name: t.Name}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return nil, false, err
	}

	hash, err := auth.HashPassword(t.Owner.Password, s.cost)
	if err != nil {
		return nil, false, err
	}
	email := strings.ToLower(t.Owner.Email)
	owner := &domain.StaffAccount{
		TenantID:     tenant.ID,
		DisplayName:  t.Owner.Name,
		Email:        &email,
		Role:         domain.StaffRoleOwner,
		StaffCode:    t.Owner.code(),
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.staff.Create(ctx, owner); err != nil {
		return nil, false, err
	}
	if err := s.tenants.SetOwner(ctx, tenant.ID, owner.ID); err != nil {
		return nil, false, err
	}
	tenant.OwnerAccountID = owner.ID

	s.logger.Info("tenant created", zap.String("tenant_id", tenant.ID), zap.String("short_code", tenant.ShortCode))
	return tenant, true, nil
}

func (s *Seeder) ensureStaff(ctx context.Context, tenant *domain.Tenant, m StaffFixture) (bool, error) {
	if _, err := s.staff.GetByTenantAndCode(ctx, tenant.ID, m.Code); err == nil {
		return false, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	hash, err := auth.HashPIN(m.PIN, s.cost)
	if err != nil {
		return false, err
	}
	role, _ := domain.ParseStaffRole(strings.ToUpper(m.Role))
	mustChange := true
	if m.MustChangePIN != nil {
		mustChange = *m.MustChangePIN
	}
	account := &domain.StaffAccount{
		TenantID:      tenant.ID,
		DisplayName:   m.Name,
		Role:          role,
		StaffCode:     m.Code,
		PINHash:       hash,
		MustChangePIN: mustChange,
		Active:        true,
	}
	if !mustChange {
		now := s.now().UTC()
		account.LastPINChangeAt = &now
	}
	if err := s.staff.Create(ctx, account); err != nil {
		return false, err
	}
	s.logger.Info("staff created",
		zap.String("tenant_id", tenant.ID),
		zap.String("staff_id", account.ID),
		zap.String("role", string(role)))
	return true, nil
}
