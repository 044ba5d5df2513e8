package console

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/clock"
)

// DefaultRotationDelay is how long the confirmation stays up before leaving the rotation screen.
const DefaultRotationDelay = 1500 * time.Millisecond

// RotationForm is the change-PIN screen's input. UserID may be left empty to act
// as the signed-in account.
type RotationForm struct {
	CurrentPIN string
	NewPIN     string
	ConfirmPIN string
	UserID     string
}

// ValidateRotationForm applies the form rules in order, stopping at the first failure.
func ValidateRotationForm(f RotationForm) error {
	switch {
	case !auth.IsPIN(f.CurrentPIN, auth.PINLength):
		return &ValidationError{Field: "current_pin", Message: "Current PIN must be exactly 6 digits"}
	case !auth.IsPIN(f.NewPIN, auth.PINLength):
		return &ValidationError{Field: "new_pin", Message: "New PIN must be exactly 6 digits"}
	case f.NewPIN != f.ConfirmPIN:
		return &ValidationError{Field: "confirm_pin", Message: "PINs do not match"}
	case f.NewPIN == f.CurrentPIN:
		return &ValidationError{Field: "new_pin", Message: "New PIN must differ from current PIN"}
	}
	return nil
}

// Rotation submits PIN changes for the signed-in session.
type Rotation struct {
	remote  Remote
	session *Session
	clock   clock.Clock
	delay   time.Duration
}

// NewRotation builds the workflow. A nil clock uses real time and a zero delay
// falls back to DefaultRotationDelay.
func NewRotation(remote Remote, session *Session, clk clock.Clock, delay time.Duration) *Rotation {
	if clk == nil {
		clk = clock.Real()
	}
	if delay <= 0 {
		delay = DefaultRotationDelay
	}
	return &Rotation{remote: remote, session: session, clock: clk, delay: delay}
}

// Submit validates f, rotates the PIN and, after the confirmation delay, returns
// the route to land on. Validation failures never reach the server.
func (r *Rotation) Submit(ctx context.Context, f RotationForm) (string, error) {
	if err := ValidateRotationForm(f); err != nil {
		return "", err
	}

	snap := r.session.Snapshot()
	if snap.Status != SessionActive {
		return "", ErrNoSession
	}
	userID := f.UserID
	if userID == "" {
		userID = snap.Profile.ID
	}

	resp, err := r.remote.RotatePIN(ctx, snap.Credentials.AccessToken, dto.PinRotateRequest{
		OldPIN: f.CurrentPIN,
		NewPIN: f.NewPIN,
		UserID: userID,
	})
	if err != nil {
		if errors.Is(err, ErrSessionTerminated) {
			r.session.ClearIfCurrent(snap.Generation)
		}
		return "", err
	}
	if !resp.Success {
		return "", &RemoteError{Message: resp.Error}
	}

	r.session.MarkRotated()

	target := resp.RedirectTo
	if target == "" {
		target = snap.Profile.Role.LandingRoute()
	}
	select {
	case <-r.clock.After(r.delay):
		return target, nil
	case <-ctx.Done():
		return target, ctx.Err()
	}
}
