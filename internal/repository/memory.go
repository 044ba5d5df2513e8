package repository

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/fieldops-console/internal/domain"
)

// MemoryStore keeps tenants, staff accounts and refresh sessions in process. It
// backs the API when no database is configured and mirrors the Postgres
// repositories' semantics, including pgx.ErrNoRows for missing rows.
type MemoryStore struct {
	mu       sync.Mutex
	now      func() time.Time
	tenants  map[string]*domain.Tenant
	staff    map[string]*domain.StaffAccount
	sessions map[string]*domain.RefreshSession
}

// NewMemoryStore returns an empty store using now as its time source.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:      now,
		tenants:  map[string]*domain.Tenant{},
		staff:    map[string]*domain.StaffAccount{},
		sessions: map[string]*domain.RefreshSession{},
	}
}

// Tenants returns the store's TenantRepository view.
func (m *MemoryStore) Tenants() TenantRepository { return memoryTenants{m} }

// Staff returns the store's StaffRepository view.
func (m *MemoryStore) Staff() StaffRepository { return memoryStaff{m} }

// Sessions returns the store's SessionRepository view.
func (m *MemoryStore) Sessions() SessionRepository { return memorySessions{m} }

type memoryTenants struct{ m *MemoryStore }

func (r memoryTenants) Create(_ context.Context, tenant *domain.Tenant) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	tenant.ShortCode = strings.ToLower(tenant.ShortCode)
	for _, t := range r.m.tenants {
		if t.ShortCode == tenant.ShortCode {
			return uniqueViolation("tenants_short_code_key")
		}
	}
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	tenant.CreatedAt = r.m.now()
	cp := *tenant
	r.m.tenants[tenant.ID] = &cp
	return nil
}

func (r memoryTenants) SetOwner(_ context.Context, tenantID, ownerAccountID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tenants[tenantID]
	if !ok {
		return pgx.ErrNoRows
	}
	t.OwnerAccountID = ownerAccountID
	return nil
}

func (r memoryTenants) GetByID(_ context.Context, id string) (*domain.Tenant, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	t, ok := r.m.tenants[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *t
	return &cp, nil
}

func (r memoryTenants) GetByOwnerIdentifier(_ context.Context, id string) (*domain.Tenant, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.tenants {
		if t.OwnerAccountID == "" || (t.ID != id && t.OwnerAccountID != id) {
			continue
		}
		owner, ok := r.m.staff[t.OwnerAccountID]
		if !ok || owner.Role != domain.StaffRoleOwner {
			continue
		}
		cp := *t
		return &cp, nil
	}
	return nil, pgx.ErrNoRows
}

func (r memoryTenants) GetByShortCode(_ context.Context, code string) (*domain.Tenant, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, t := range r.m.tenants {
		if strings.EqualFold(t.ShortCode, code) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type memoryStaff struct{ m *MemoryStore }

func (r memoryStaff) Create(_ context.Context, staff *domain.StaffAccount) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.staff {
		if s.TenantID == staff.TenantID && strings.EqualFold(s.StaffCode, staff.StaffCode) {
			return uniqueViolation("staff_accounts_tenant_code_key")
		}
	}
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	now := r.m.now()
	if staff.CreatedAt.IsZero() {
		staff.CreatedAt = now
	}
	staff.UpdatedAt = now
	cp := *staff
	r.m.staff[staff.ID] = &cp
	return nil
}

func (r memoryStaff) Update(_ context.Context, staff *domain.StaffAccount) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.staff[staff.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	cur.DisplayName = staff.DisplayName
	cur.Email = staff.Email
	cur.Role = staff.Role
	cur.StaffCode = staff.StaffCode
	cur.Active = staff.Active
	cur.UpdatedAt = r.m.now()
	return nil
}

func (r memoryStaff) find(match func(*domain.StaffAccount) bool) (*domain.StaffAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.staff {
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memoryStaff) GetByID(_ context.Context, id string) (*domain.StaffAccount, error) {
	return r.find(func(s *domain.StaffAccount) bool { return s.ID == id })
}

func (r memoryStaff) GetByEmail(_ context.Context, email string) (*domain.StaffAccount, error) {
	return r.find(func(s *domain.StaffAccount) bool {
		return s.Email != nil && strings.EqualFold(*s.Email, email)
	})
}

func (r memoryStaff) GetByTenantAndCode(_ context.Context, tenantID, staffCode string) (*domain.StaffAccount, error) {
	return r.find(func(s *domain.StaffAccount) bool {
		return s.TenantID == tenantID && s.Role != domain.StaffRoleOwner && strings.EqualFold(s.StaffCode, staffCode)
	})
}

func (r memoryStaff) ListPINRoster(_ context.Context, tenantID string) ([]domain.StaffAccount, error) {
	return r.collect(func(s *domain.StaffAccount) bool {
		return s.TenantID == tenantID && s.Role != domain.StaffRoleOwner && s.Active && s.PINHash != ""
	}, 0, 0), nil
}

func (r memoryStaff) List(_ context.Context, filter StaffFilter) ([]domain.StaffAccount, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	return r.collect(func(s *domain.StaffAccount) bool {
		switch {
		case filter.TenantID != "" && s.TenantID != filter.TenantID:
			return false
		case filter.Role != nil && s.Role != *filter.Role:
			return false
		case filter.Active != nil && s.Active != *filter.Active:
			return false
		case filter.Locked != nil && s.Locked != *filter.Locked:
			return false
		}
		return true
	}, limit, filter.Offset), nil
}

// collect returns matches ordered by creation time. A zero limit means all.
func (r memoryStaff) collect(match func(*domain.StaffAccount) bool, limit, offset int) []domain.StaffAccount {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.StaffAccount
	for _, s := range r.m.staff {
		if match(s) {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if offset > 0 {
		if offset >= len(out) {
			return nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r memoryStaff) mutate(id string, fn func(*domain.StaffAccount)) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.staff[id]
	if !ok {
		return pgx.ErrNoRows
	}
	fn(s)
	s.UpdatedAt = r.m.now()
	return nil
}

func (r memoryStaff) RecordFailedAttempt(_ context.Context, id string, maxAttempts int) (int, bool, error) {
	var attempts int
	var locked bool
	err := r.mutate(id, func(s *domain.StaffAccount) {
		s.FailedAttempts++
		s.Locked = s.Locked || s.FailedAttempts >= maxAttempts
		attempts, locked = s.FailedAttempts, s.Locked
	})
	return attempts, locked, err
}

func (r memoryStaff) ResetAttempts(_ context.Context, id string) error {
	err := r.mutate(id, func(s *domain.StaffAccount) { s.FailedAttempts = 0 })
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

func (r memoryStaff) SetPIN(_ context.Context, id, pinHash string, mustChange bool, changedAt *time.Time) error {
	return r.mutate(id, func(s *domain.StaffAccount) {
		s.PINHash = pinHash
		s.MustChangePIN = mustChange
		if changedAt != nil {
			t := *changedAt
			s.LastPINChangeAt = &t
		}
		s.FailedAttempts = 0
		s.Locked = false
	})
}

func (r memoryStaff) Unlock(_ context.Context, id string) error {
	return r.mutate(id, func(s *domain.StaffAccount) {
		s.FailedAttempts = 0
		s.Locked = false
	})
}

type memorySessions struct{ m *MemoryStore }

func (r memorySessions) Create(_ context.Context, session *domain.RefreshSession) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	session.ID = uuid.NewString()
	session.CreatedAt = r.m.now()
	cp := *session
	r.m.sessions[session.ID] = &cp
	return nil
}

func (r memorySessions) GetActiveByHash(_ context.Context, tokenHash string) (*domain.RefreshSession, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := r.m.now()
	for _, s := range r.m.sessions {
		if s.TokenHash == tokenHash && s.RevokedAt == nil && s.ExpiresAt.After(now) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r memorySessions) Revoke(_ context.Context, id, reason string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.sessions[id]
	if !ok || s.RevokedAt != nil {
		return pgx.ErrNoRows
	}
	now := r.m.now()
	s.RevokedAt = &now
	s.RevokedReason = reason
	return nil
}

func (r memorySessions) RevokeAllForAccount(_ context.Context, accountID, reason string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := r.m.now()
	for _, s := range r.m.sessions {
		if s.AccountID == accountID && s.RevokedAt == nil {
			s.RevokedAt = &now
			s.RevokedReason = reason
		}
	}
	return nil
}

// ActiveSessions counts unrevoked refresh sessions for an account.
func (m *MemoryStore) ActiveSessions(accountID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.AccountID == accountID && s.RevokedAt == nil {
			n++
		}
	}
	return n
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{
		Code:           "23505",
		Message:        "duplicate key value violates unique constraint",
		ConstraintName: constraint,
	}
}
