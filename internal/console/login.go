package console

import (
	"context"
	"errors"
	"sync"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
)

// LoginResult is a successful PIN login after bootstrap.
type LoginResult struct {
	Profile    Profile
	RedirectTo string
}

// Next is where the console should navigate: the rotation screen when the
// profile demands it, otherwise the server's landing route.
func (r *LoginResult) Next() string {
	if r.Profile.MustChangePIN {
		return RouteChangePIN
	}
	return r.RedirectTo
}

// PINLogin drives a keypad against the verification service for one resolved link.
type PINLogin struct {
	remote    Remote
	bootstrap *Bootstrap
	keypad    *Keypad

	mu         sync.Mutex
	resolution *Resolution
}

// NewPINLogin constructs the flow. The keypad is armed by SetResolution.
func NewPINLogin(remote Remote, bootstrap *Bootstrap, keypad *Keypad) *PINLogin {
	return &PINLogin{remote: remote, bootstrap: bootstrap, keypad: keypad}
}

// SetResolution swaps in a newly resolved link. The keypad starts over and any
// in-flight submission for the previous link is dropped.
func (l *PINLogin) SetResolution(res *Resolution) {
	l.mu.Lock()
	l.resolution = res
	l.mu.Unlock()
	l.keypad.Reset()
	l.keypad.SetResolved(res != nil)
}

// Resolution returns the active resolution, if any.
func (l *PINLogin) Resolution() *Resolution {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolution
}

// Verify sends sub to the service and feeds the outcome back into the keypad.
// A response for an abandoned submission yields ErrAbandoned and changes nothing.
func (l *PINLogin) Verify(ctx context.Context, sub Submission) (*LoginResult, error) {
	res := l.Resolution()
	if res == nil {
		l.keypad.Complete(sub.Seq, ErrInvalidLink)
		return nil, ErrInvalidLink
	}

	req := dto.PinVerifyRequest{PIN: sub.PIN, TenantID: res.TenantID}
	if res.Staff != nil {
		req.StaffID = res.Staff.ID
	}
	resp, err := l.remote.VerifyPIN(ctx, req)
	if err == nil && !resp.Success {
		err = rejection(resp)
	}
	if err == nil && resp.Session == nil {
		err = &TransportError{Err: ErrNoSession}
	}
	if err != nil {
		if !l.keypad.Complete(sub.Seq, err) {
			return nil, ErrAbandoned
		}
		return nil, err
	}
	if !l.keypad.Pending(sub.Seq) {
		return nil, ErrAbandoned
	}

	// The keypad stays Submitting until the profile is in, so a failed load
	// re-arms it with a retry message.
	profile, generation, err := l.bootstrap.start(ctx, credentialsFrom(*resp.Session), func(p *Profile) {
		p.MustChangePIN = p.MustChangePIN || resp.MustChangePIN
		p.PINExpired = p.PINExpired || resp.PINExpired
	})
	if errors.Is(err, ErrStaleProfile) {
		err = &TransportError{Err: err}
	}
	if !l.keypad.Complete(sub.Seq, err) {
		if err == nil {
			l.bootstrap.session.ClearIfCurrent(generation)
		}
		return nil, ErrAbandoned
	}
	if err != nil {
		return nil, err
	}
	return &LoginResult{Profile: profile, RedirectTo: resp.RedirectTo}, nil
}

func rejection(resp *dto.PinVerifyResponse) *PINError {
	msg := resp.Error
	if msg == "" {
		if resp.Locked {
			msg = "Account locked."
		} else {
			msg = "Incorrect PIN"
		}
	}
	e := &PINError{Locked: resp.Locked, Message: msg}
	if resp.AttemptsRemaining != nil {
		n := *resp.AttemptsRemaining
		e.AttemptsRemaining = &n
	}
	return e
}
