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

func statusRemote(last *time.Time, created time.Time) *fakeRemote {
	return &fakeRemote{status: func(string) (*dto.PinStatusResponse, error) {
		return &dto.PinStatusResponse{StaffID: "staff-1", LastPINChangeAt: last, CreatedAt: created}, nil
	}}
}

func TestWatchdogRedirectsExpiredPIN(t *testing.T) {
	changed := testNow.AddDate(0, -4, 0)
	session := activeSession(Profile{ID: "staff-1", Role: domain.StaffRoleDelivery})
	w := NewWatchdog(statusRemote(&changed, testNow.AddDate(-1, 0, 0)), session, clock.Fake(testNow), 0)

	got, err := w.Check(context.Background())
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	want := Decision{Kind: Redirect, Target: RouteChangePIN, Message: "Your PIN has expired."}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestWatchdogFallsBackToCreation(t *testing.T) {
	session := activeSession(Profile{ID: "staff-1", Role: domain.StaffRoleDelivery})

	recent := NewWatchdog(statusRemote(nil, testNow.AddDate(0, -2, 0)), session, clock.Fake(testNow), 0)
	if got, _ := recent.Check(context.Background()); got.Kind != Allow {
		t.Fatalf("recently provisioned account redirected: %+v", got)
	}

	old := NewWatchdog(statusRemote(nil, testNow.AddDate(0, -5, 0)), session, clock.Fake(testNow), 0)
	if got, _ := old.Check(context.Background()); got.Target != RouteChangePIN {
		t.Fatalf("old never-rotated account allowed: %+v", got)
	}
}

func TestWatchdogOnlyWatchesDelivery(t *testing.T) {
	remote := statusRemote(nil, testNow.AddDate(-2, 0, 0))
	w := NewWatchdog(remote, activeSession(Profile{ID: "o1", Role: domain.StaffRoleOffice}), clock.Fake(testNow), 0)

	if got, _ := w.Check(context.Background()); got.Kind != Allow {
		t.Fatalf("office session redirected: %+v", got)
	}
	if remote.count("status") != 0 {
		t.Fatal("status fetched for a non-delivery session")
	}
}

func TestWatchdogFailureDoesNotBlock(t *testing.T) {
	remote := &fakeRemote{status: func(string) (*dto.PinStatusResponse, error) {
		return nil, &TransportError{Err: errors.New("timeout")}
	}}
	w := NewWatchdog(remote, activeSession(Profile{ID: "staff-1", Role: domain.StaffRoleDelivery}), clock.Fake(testNow), 0)

	got, err := w.Check(context.Background())
	if err == nil || got.Kind != Allow {
		t.Fatalf("got %+v %v", got, err)
	}
}
