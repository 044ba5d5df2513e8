package console

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeRemote struct {
	mu    sync.Mutex
	calls map[string]int

	resolve func(Link) (*dto.ResolveResponse, error)
	verify  func(dto.PinVerifyRequest) (*dto.PinVerifyResponse, error)
	owner   func(dto.OwnerLoginRequest) (*dto.AuthResponse, error)
	profile func(token string) (*dto.ProfileResponse, error)
	rotate  func(token string, req dto.PinRotateRequest) (*dto.PinRotateResponse, error)
	status  func(token string) (*dto.PinStatusResponse, error)
	logout  func(access, refresh string) error
}

func (f *fakeRemote) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeRemote) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRemote) ResolveLink(_ context.Context, link Link) (*dto.ResolveResponse, error) {
	f.record("resolve")
	return f.resolve(link)
}

func (f *fakeRemote) VerifyPIN(_ context.Context, req dto.PinVerifyRequest) (*dto.PinVerifyResponse, error) {
	f.record("verify")
	return f.verify(req)
}

func (f *fakeRemote) OwnerLogin(_ context.Context, req dto.OwnerLoginRequest) (*dto.AuthResponse, error) {
	f.record("owner")
	return f.owner(req)
}

func (f *fakeRemote) Profile(_ context.Context, token string) (*dto.ProfileResponse, error) {
	f.record("profile")
	return f.profile(token)
}

func (f *fakeRemote) RotatePIN(_ context.Context, token string, req dto.PinRotateRequest) (*dto.PinRotateResponse, error) {
	f.record("rotate")
	return f.rotate(token, req)
}

func (f *fakeRemote) PINStatus(_ context.Context, token string) (*dto.PinStatusResponse, error) {
	f.record("status")
	return f.status(token)
}

func (f *fakeRemote) Logout(_ context.Context, access, refresh string) error {
	f.record("logout")
	if f.logout == nil {
		return nil
	}
	return f.logout(access, refresh)
}

func token(principal string) dto.SessionToken {
	return dto.SessionToken{
		AccessToken:  "access-" + principal,
		RefreshToken: "refresh-" + principal,
		ExpiresAt:    testNow.Add(time.Hour),
		PrincipalID:  principal,
	}
}

func creds(principal string) Credentials {
	return credentialsFrom(token(principal))
}

func deliveryProfile(id string) *dto.ProfileResponse {
	return &dto.ProfileResponse{
		ID:          id,
		Role:        "DELIVERY",
		DisplayName: "John Doe",
		TenantID:    "tenant-1",
		OwnerID:     "owner-1",
		StaffCode:   "JD01",
	}
}

// activeSession returns a session already holding a committed profile.
func activeSession(p Profile) *Session {
	s := NewSession()
	gen := s.Begin(creds(p.ID))
	if err := s.Commit(gen, p); err != nil {
		panic(err)
	}
	return s
}

func intPtr(n int) *int { return &n }
