package console

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
	"github.com/spec-kit/fieldops-console/internal/clock"
	"github.com/spec-kit/fieldops-console/internal/domain"
)

func TestValidateRotationForm(t *testing.T) {
	tests := []struct {
		name  string
		form  RotationForm
		field string
	}{
		{"short current", RotationForm{CurrentPIN: "1234", NewPIN: "12", ConfirmPIN: "99"}, "current_pin"},
		{"non-numeric new", RotationForm{CurrentPIN: "111111", NewPIN: "22a222", ConfirmPIN: "333333"}, "new_pin"},
		{"confirmation mismatch before reuse", RotationForm{CurrentPIN: "111111", NewPIN: "111111", ConfirmPIN: "222222"}, "confirm_pin"},
		{"same as current", RotationForm{CurrentPIN: "111111", NewPIN: "111111", ConfirmPIN: "111111"}, "new_pin"},
		{"valid", RotationForm{CurrentPIN: "111111", NewPIN: "222222", ConfirmPIN: "222222"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRotationForm(tt.form)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected validation error on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestRotationValidationNeverReachesServer(t *testing.T) {
	remote := &fakeRemote{}
	r := NewRotation(remote, activeSession(Profile{ID: "staff-1", Role: domain.StaffRoleDelivery}), clock.Fake(testNow), 0)

	_, err := r.Submit(context.Background(), RotationForm{CurrentPIN: "111111", NewPIN: "222222", ConfirmPIN: "222223"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if remote.count("rotate") != 0 {
		t.Fatal("invalid form was sent")
	}
}

func TestRotationSuccessWaitsBeforeRedirect(t *testing.T) {
	var sent dto.PinRotateRequest
	remote := &fakeRemote{rotate: func(token string, req dto.PinRotateRequest) (*dto.PinRotateResponse, error) {
		sent = req
		return &dto.PinRotateResponse{Success: true, RedirectTo: domain.RouteDelivery}, nil
	}}
	session := activeSession(Profile{ID: "staff-1", Role: domain.StaffRoleDelivery, MustChangePIN: true, PINExpired: true})
	clk := clock.Fake(testNow)
	r := NewRotation(remote, session, clk, 0)

	type result struct {
		target string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		target, err := r.Submit(context.Background(), RotationForm{CurrentPIN: "111111", NewPIN: "222222", ConfirmPIN: "222222"})
		done <- result{target, err}
	}()

	clk.WaitForWaiters(1)
	select {
	case <-done:
		t.Fatal("redirect issued before the confirmation delay")
	default:
	}
	clk.Advance(DefaultRotationDelay)

	got := <-done
	if got.err != nil || got.target != domain.RouteDelivery {
		t.Fatalf("got %q %v", got.target, got.err)
	}
	if sent.OldPIN != "111111" || sent.NewPIN != "222222" || sent.UserID != "staff-1" {
		t.Fatalf("unexpected request %+v", sent)
	}
	p := session.Snapshot().Profile
	if p.MustChangePIN || p.PINExpired {
		t.Fatalf("rotation flags not cleared: %+v", p)
	}
}

func TestRotationFallsBackToLandingRoute(t *testing.T) {
	remote := &fakeRemote{rotate: func(string, dto.PinRotateRequest) (*dto.PinRotateResponse, error) {
		return &dto.PinRotateResponse{Success: true}, nil
	}}
	clk := clock.Fake(testNow)
	r := NewRotation(remote, activeSession(Profile{ID: "m1", Role: domain.StaffRoleManager}), clk, time.Second)

	done := make(chan string, 1)
	go func() {
		target, _ := r.Submit(context.Background(), RotationForm{CurrentPIN: "111111", NewPIN: "222222", ConfirmPIN: "222222", UserID: "m1"})
		done <- target
	}()
	clk.WaitForWaiters(1)
	clk.Advance(time.Second)
	if got := <-done; got != domain.RouteStaff {
		t.Fatalf("target = %q", got)
	}
}

func TestRotationSurfacesServerReasonVerbatim(t *testing.T) {
	remote := &fakeRemote{rotate: func(string, dto.PinRotateRequest) (*dto.PinRotateResponse, error) {
		return &dto.PinRotateResponse{Success: false, Error: "Current PIN is incorrect"}, nil
	}}
	session := activeSession(Profile{ID: "staff-1", Role: domain.StaffRoleDelivery, MustChangePIN: true})
	r := NewRotation(remote, session, clock.Fake(testNow), 0)

	_, err := r.Submit(context.Background(), RotationForm{CurrentPIN: "111111", NewPIN: "222222", ConfirmPIN: "222222"})
	if err == nil || Reason(err) != "Current PIN is incorrect" {
		t.Fatalf("unexpected error %v", err)
	}
	if !session.Snapshot().Profile.MustChangePIN {
		t.Fatal("failed rotation cleared the flag")
	}
}

func TestRotationRequiresSession(t *testing.T) {
	r := NewRotation(&fakeRemote{}, NewSession(), clock.Fake(testNow), 0)
	_, err := r.Submit(context.Background(), RotationForm{CurrentPIN: "111111", NewPIN: "222222", ConfirmPIN: "222222"})
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
