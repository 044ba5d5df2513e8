package console

import (
	"sync"
	"time"

	"github.com/spec-kit/fieldops-console/internal/domain"
)

// Credentials is an issued token pair.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	PrincipalID  string
}

// Profile is the bootstrapped identity of the signed-in principal. OwnerID is
// the principal's own id for owners.
type Profile struct {
	ID                 string
	Role               domain.StaffRole
	DisplayName        string
	TenantID           string
	OwnerID            string
	StaffCode          string
	MustChangePIN      bool
	PINExpired         bool
	MustChangePassword bool
}

// SessionStatus describes where the session is in its lifecycle.
type SessionStatus int

const (
	SessionSignedOut SessionStatus = iota
	SessionLoading
	SessionActive
)

// SessionSnapshot is a copy of the session state.
type SessionSnapshot struct {
	Status      SessionStatus
	Generation  uint64
	Credentials Credentials
	Profile     Profile
}

// Session holds the signed-in principal for the lifetime of the console. Every
// sign-in or sign-out bumps the generation; profile results are only committed
// for the generation that requested them.
type Session struct {
	mu         sync.RWMutex
	generation uint64
	creds      *Credentials
	profile    *Profile
}

// NewSession returns a signed-out session.
func NewSession() *Session {
	return &Session{}
}

// Begin stores freshly issued credentials and starts a profile load. The
// returned generation must accompany the result.
func (s *Session) Begin(creds Credentials) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	c := creds
	s.creds = &c
	s.profile = nil
	return s.generation
}

// Commit installs a loaded profile. It fails with ErrStaleProfile when the
// session moved on since the load began.
func (s *Session) Commit(generation uint64, profile Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation || s.creds == nil {
		return ErrStaleProfile
	}
	p := profile
	s.profile = &p
	return nil
}

// Current reports whether generation is still the live one.
func (s *Session) Current(generation uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return generation == s.generation
}

// Clear signs out and invalidates every in-flight load.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.creds = nil
	s.profile = nil
}

// ClearIfCurrent signs out only if generation is still live.
func (s *Session) ClearIfCurrent(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return false
	}
	s.generation++
	s.creds = nil
	s.profile = nil
	return true
}

// MarkRotated clears the rotation flags after a successful PIN change.
func (s *Session) MarkRotated() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile != nil {
		s.profile.MustChangePIN = false
		s.profile.PINExpired = false
	}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := SessionSnapshot{Generation: s.generation}
	switch {
	case s.creds == nil:
		snap.Status = SessionSignedOut
	case s.profile == nil:
		snap.Status = SessionLoading
		snap.Credentials = *s.creds
	default:
		snap.Status = SessionActive
		snap.Credentials = *s.creds
		snap.Profile = *s.profile
	}
	return snap
}
