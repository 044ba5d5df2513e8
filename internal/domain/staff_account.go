package domain

import "time"

// StaffRole enumerates console roles. Roles are flat; no role implies another.
type StaffRole string

const (
	StaffRoleOwner    StaffRole = "OWNER"
	StaffRoleManager  StaffRole = "MANAGER"
	StaffRoleOffice   StaffRole = "OFFICE"
	StaffRoleDelivery StaffRole = "DELIVERY"
)

// Landing routes handed back to the console after authentication.
const (
	RouteDelivery  = "/delivery"
	RouteStaff     = "/staff"
	RouteDashboard = "/dashboard"
)

// ParseStaffRole validates a role name.
func ParseStaffRole(s string) (StaffRole, bool) {
	switch r := StaffRole(s); r {
	case StaffRoleOwner, StaffRoleManager, StaffRoleOffice, StaffRoleDelivery:
		return r, true
	}
	return "", false
}

// LandingRoute returns the route a freshly authenticated account of this role lands on.
func (r StaffRole) LandingRoute() string {
	switch r {
	case StaffRoleDelivery:
		return RouteDelivery
	case StaffRoleOffice, StaffRoleManager:
		return RouteStaff
	default:
		return RouteDashboard
	}
}

// CanAdministerStaff reports whether the role may provision, reset or deactivate staff.
func (r StaffRole) CanAdministerStaff() bool {
	return r == StaffRoleOwner || r == StaffRoleManager
}

// PINState is the credential state of a staff account. Exactly one applies at a time.
type PINState string

const (
	PINStateNormal     PINState = "UNLOCKED_NORMAL"
	PINStateMustRotate PINState = "UNLOCKED_MUST_ROTATE"
	PINStateExpired    PINState = "UNLOCKED_EXPIRED_ROTATE_REQUIRED"
	PINStateLocked     PINState = "LOCKED"
)

// StaffAccount is a tenant member. Owners authenticate with email and password,
// everyone else with a numeric PIN.
type StaffAccount struct {
	ID                 string
	TenantID           string
	DisplayName        string
	Email              *string
	Role               StaffRole
	StaffCode          string
	PINHash            string
	PasswordHash       string
	MustChangePIN      bool
	MustChangePassword bool
	LastPINChangeAt    *time.Time
	FailedAttempts     int
	Locked             bool
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PINBaseline is the instant the current PIN came into force.
func (s *StaffAccount) PINBaseline() time.Time {
	if s.LastPINChangeAt != nil {
		return *s.LastPINChangeAt
	}
	return s.CreatedAt
}

// PINExpired reports whether the PIN is older than staleMonths calendar months.
func (s *StaffAccount) PINExpired(now time.Time, staleMonths int) bool {
	return PINStale(s.PINBaseline(), now, staleMonths)
}

// PINState derives the account's credential state. Locked wins over everything,
// then forced rotation, then staleness.
func (s *StaffAccount) PINState(now time.Time, staleMonths int) PINState {
	switch {
	case s.Locked:
		return PINStateLocked
	case s.MustChangePIN:
		return PINStateMustRotate
	case s.PINExpired(now, staleMonths):
		return PINStateExpired
	default:
		return PINStateNormal
	}
}

// OwnerLinkID is the owner id exposed in profiles: an owner's own id, otherwise
// the tenant's owner account.
func (s *StaffAccount) OwnerLinkID(t *Tenant) string {
	if s.Role == StaffRoleOwner {
		return s.ID
	}
	if t == nil {
		return ""
	}
	return t.OwnerAccountID
}

// PINStale reports whether baseline is more than months calendar months before now.
func PINStale(baseline, now time.Time, months int) bool {
	return baseline.Before(now.AddDate(0, -months, 0))
}
