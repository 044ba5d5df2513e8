package console

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
	"github.com/spec-kit/fieldops-console/internal/domain"
)

// Bootstrap loads the profile for every token acquisition and keeps Session in
// step with the server.
type Bootstrap struct {
	remote  Remote
	session *Session
	logger  *zap.Logger
}

// NewBootstrap constructs a bootstrap bound to session.
func NewBootstrap(remote Remote, session *Session, logger *zap.Logger) *Bootstrap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrap{remote: remote, session: session, logger: logger}
}

// Start installs creds and loads the matching profile. If the session changes
// while the load is in flight the result is discarded with ErrStaleProfile. A
// failed load signs the session out.
func (b *Bootstrap) Start(ctx context.Context, creds Credentials) (Profile, error) {
	profile, _, err := b.start(ctx, creds, nil)
	return profile, err
}

// start is Start with a hook that adjusts the profile before it is committed,
// and the generation it was committed under.
func (b *Bootstrap) start(ctx context.Context, creds Credentials, adjust func(*Profile)) (Profile, uint64, error) {
	generation := b.session.Begin(creds)

	resp, err := b.remote.Profile(ctx, creds.AccessToken)
	if err != nil {
		if !b.session.ClearIfCurrent(generation) {
			return Profile{}, generation, ErrStaleProfile
		}
		if errors.Is(err, ErrSessionTerminated) {
			b.logger.Info("session terminated during bootstrap", zap.String("principal_id", creds.PrincipalID))
		}
		return Profile{}, generation, err
	}

	profile := profileFromResponse(resp)
	if adjust != nil {
		adjust(&profile)
	}
	if err := b.session.Commit(generation, profile); err != nil {
		b.logger.Debug("discarding stale profile", zap.String("principal_id", creds.PrincipalID))
		return Profile{}, generation, err
	}
	return profile, generation, nil
}

// Refresh re-reads the profile for the current credentials, clearing the
// session when the server reports it terminated.
func (b *Bootstrap) Refresh(ctx context.Context) (Profile, error) {
	snap := b.session.Snapshot()
	if snap.Status == SessionSignedOut {
		return Profile{}, ErrNoSession
	}

	resp, err := b.remote.Profile(ctx, snap.Credentials.AccessToken)
	if err != nil {
		if errors.Is(err, ErrSessionTerminated) {
			b.session.ClearIfCurrent(snap.Generation)
		}
		return Profile{}, err
	}
	profile := profileFromResponse(resp)
	if err := b.session.Commit(snap.Generation, profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// OwnerLogin authenticates through the password path and bootstraps the result.
func (b *Bootstrap) OwnerLogin(ctx context.Context, email, password string) (Profile, string, error) {
	resp, err := b.remote.OwnerLogin(ctx, dto.OwnerLoginRequest{Email: email, Password: password})
	if err != nil {
		return Profile{}, "", err
	}
	profile, err := b.Start(ctx, credentialsFrom(resp.Session))
	if err != nil {
		return Profile{}, "", err
	}
	return profile, resp.RedirectTo, nil
}

// Logout clears local state first so no in-flight load can repopulate it, then
// tells the server.
func (b *Bootstrap) Logout(ctx context.Context) error {
	snap := b.session.Snapshot()
	b.session.Clear()
	if snap.Status == SessionSignedOut {
		return nil
	}
	return b.remote.Logout(ctx, snap.Credentials.AccessToken, snap.Credentials.RefreshToken)
}

func credentialsFrom(t dto.SessionToken) Credentials {
	return Credentials{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
		PrincipalID:  t.PrincipalID,
	}
}

func profileFromResponse(resp *dto.ProfileResponse) Profile {
	return Profile{
		ID:                 resp.ID,
		Role:               domain.StaffRole(resp.Role),
		DisplayName:        resp.DisplayName,
		TenantID:           resp.TenantID,
		OwnerID:            resp.OwnerID,
		StaffCode:          resp.StaffCode,
		MustChangePIN:      resp.MustChangePIN,
		PINExpired:         resp.PINExpired,
		MustChangePassword: resp.MustChangePassword,
	}
}
