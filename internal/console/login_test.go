package console

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
	"github.com/spec-kit/fieldops-console/internal/domain"
	apperrors "github.com/spec-kit/fieldops-console/pkg/util/errorutil"
)

// rosterRemote serves one tenant with one delivery driver and mirrors the
// verification contract: the maxAttempts-th failure reports zero attempts
// remaining and every attempt after it is locked.
type rosterRemote struct {
	fakeRemote
	pin           string
	maxAttempts   int
	failures      int
	mustChangePIN bool
	pinExpired    bool
}

func newRosterRemote(pin string, maxAttempts int) *rosterRemote {
	r := &rosterRemote{pin: pin, maxAttempts: maxAttempts}
	r.resolve = func(link Link) (*dto.ResolveResponse, error) {
		if !strings.EqualFold(link.Tenant, "acme") {
			return nil, &RemoteError{Status: 404, Code: apperrors.CodeTenantNotFound, Message: "tenant not found"}
		}
		if link.Staff != "" && !strings.EqualFold(link.Staff, "jd01") {
			return nil, &RemoteError{Status: 404, Code: apperrors.CodeStaffNotFound, Message: "staff not found"}
		}
		resp := &dto.ResolveResponse{TenantID: "tenant-1", TenantName: "Acme Medical"}
		if link.Staff != "" {
			resp.Staff = &dto.StaffDescriptor{ID: "staff-1", Name: "John Doe", StaffCode: "JD01"}
		}
		return resp, nil
	}
	r.verify = func(req dto.PinVerifyRequest) (*dto.PinVerifyResponse, error) {
		if r.failures >= r.maxAttempts {
			return &dto.PinVerifyResponse{Locked: true, Error: "Account locked. Contact your manager."}, nil
		}
		if req.PIN != r.pin {
			r.failures++
			return &dto.PinVerifyResponse{Error: "Incorrect PIN", AttemptsRemaining: intPtr(r.maxAttempts - r.failures)}, nil
		}
		r.failures = 0
		return &dto.PinVerifyResponse{
			Success:       true,
			Session:       &dto.SessionToken{AccessToken: "access-staff-1", RefreshToken: "refresh-staff-1", PrincipalID: "staff-1"},
			MustChangePIN: r.mustChangePIN,
			PINExpired:    r.pinExpired,
			RedirectTo:    domain.RouteDelivery,
		}, nil
	}
	r.profile = func(string) (*dto.ProfileResponse, error) {
		p := deliveryProfile("staff-1")
		p.MustChangePIN = r.mustChangePIN
		p.PINExpired = r.pinExpired
		return p, nil
	}
	return r
}

type loginHarness struct {
	remote  *rosterRemote
	session *Session
	keypad  *Keypad
	login   *PINLogin
}

func newLoginHarness(t *testing.T, remote *rosterRemote, rawLink string) *loginHarness {
	t.Helper()
	link, err := ParseLink(rawLink)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	res, err := NewResolver(remote).Resolve(context.Background(), link)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	session := NewSession()
	keypad := NewKeypad(LoginMinDigits)
	login := NewPINLogin(remote, NewBootstrap(remote, session, nil), keypad)
	login.SetResolution(res)
	return &loginHarness{remote: remote, session: session, keypad: keypad, login: login}
}

func (h *loginHarness) enter(t *testing.T, pin string) (*LoginResult, error) {
	t.Helper()
	var sub Submission
	var ok bool
	for i := 0; i < len(pin); i++ {
		sub, ok = h.keypad.Digit(pin[i])
	}
	if !ok {
		if sub, ok = h.keypad.Submit(); !ok {
			t.Fatalf("keypad refused to submit %q in state %s", pin, h.keypad.State())
		}
	}
	return h.login.Verify(context.Background(), sub)
}

func TestLoginSuccessfulScenario(t *testing.T) {
	h := newLoginHarness(t, newRosterRemote("482913", 5), "/ACME/JD01")
	if got := h.login.Resolution().Greeting(); got != "Hello, John Doe" {
		t.Fatalf("greeting = %q", got)
	}

	result, err := h.enter(t, "482913")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Next() != domain.RouteDelivery {
		t.Fatalf("next = %q", result.Next())
	}
	if h.keypad.State() != KeypadAccepted {
		t.Fatalf("keypad state = %s", h.keypad.State())
	}
	if got := NewGate(h.session).Check(result.Next()); got.Kind != Allow {
		t.Fatalf("gate decision %+v", got)
	}
}

func TestLoginForcedRotationScenario(t *testing.T) {
	remote := newRosterRemote("482913", 5)
	remote.mustChangePIN = true
	h := newLoginHarness(t, remote, "/acme/jd01")

	result, err := h.enter(t, "482913")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Next() != RouteChangePIN {
		t.Fatalf("next = %q", result.Next())
	}
	if got := NewGate(h.session).Check(domain.RouteDelivery); got.Target != RouteChangePIN {
		t.Fatalf("gate let a must-rotate session through: %+v", got)
	}
}

func TestLoginLockoutScenario(t *testing.T) {
	h := newLoginHarness(t, newRosterRemote("482913", 3), "/acme/jd01")

	for i, want := range []int{2, 1, 0} {
		_, err := h.enter(t, "000000")
		var pinErr *PINError
		if !errors.As(err, &pinErr) || !errors.Is(err, ErrInvalidPIN) {
			t.Fatalf("attempt %d: expected invalid PIN, got %v", i+1, err)
		}
		view := h.keypad.View()
		if view.State != KeypadRejected || view.AttemptsRemaining == nil || *view.AttemptsRemaining != want {
			t.Fatalf("attempt %d: unexpected view %+v", i+1, view)
		}
	}

	// The correct PIN no longer helps once the ceiling is reached.
	_, err := h.enter(t, "482913")
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected lock, got %v", err)
	}
	if h.keypad.State() != KeypadLocked {
		t.Fatalf("keypad state = %s", h.keypad.State())
	}
	if _, ok := h.keypad.Digit('4'); ok || h.keypad.View().Length != 0 {
		t.Fatal("locked keypad accepted input")
	}
	if h.session.Snapshot().Status != SessionSignedOut {
		t.Fatal("session populated by a rejected login")
	}
}

func TestLoginProfileFailureAfterVerify(t *testing.T) {
	remote := newRosterRemote("482913", 5)
	remote.profile = func(string) (*dto.ProfileResponse, error) {
		return nil, &TransportError{Err: context.DeadlineExceeded}
	}
	h := newLoginHarness(t, remote, "/acme/jd01")

	if _, err := h.enter(t, "482913"); Reason(err) != TransportMessage {
		t.Fatalf("expected transport failure, got %v", err)
	}
	view := h.keypad.View()
	if view.State != KeypadRejected || view.Reason != TransportMessage {
		t.Fatalf("keypad view = %+v", view)
	}
	if h.session.Snapshot().Status != SessionSignedOut {
		t.Fatal("failed bootstrap left a session behind")
	}
	if _, ok := h.keypad.Digit('4'); ok || h.keypad.View().Length != 1 {
		t.Fatalf("keypad not re-armed: %+v", h.keypad.View())
	}
}

func TestLoginMissingSessionRejects(t *testing.T) {
	remote := newRosterRemote("482913", 5)
	remote.verify = func(dto.PinVerifyRequest) (*dto.PinVerifyResponse, error) {
		return &dto.PinVerifyResponse{Success: true, RedirectTo: domain.RouteDelivery}, nil
	}
	h := newLoginHarness(t, remote, "/acme/jd01")

	if _, err := h.enter(t, "482913"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if view := h.keypad.View(); view.State != KeypadRejected || view.Reason != TransportMessage {
		t.Fatalf("keypad view = %+v", view)
	}
	if remote.count("profile") != 0 {
		t.Error("profile requested without a session")
	}
}

func TestLoginCommitsVerifyFlagsToSession(t *testing.T) {
	remote := newRosterRemote("482913", 5)
	remote.mustChangePIN = true
	remote.profile = func(string) (*dto.ProfileResponse, error) {
		return deliveryProfile("staff-1"), nil
	}
	h := newLoginHarness(t, remote, "/acme/jd01")

	if _, err := h.enter(t, "482913"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !h.session.Snapshot().Profile.MustChangePIN {
		t.Fatal("must_change_pin from the verify response was not committed")
	}
	if got := NewGate(h.session).Check(domain.RouteDelivery); got.Target != RouteChangePIN {
		t.Fatalf("gate decision %+v", got)
	}
}

func TestLoginExpiredPINRoutesToRotation(t *testing.T) {
	remote := newRosterRemote("482913", 5)
	remote.pinExpired = true
	h := newLoginHarness(t, remote, "/acme/jd01")

	result, err := h.enter(t, "482913")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	got := NewGate(h.session).Check(result.Next())
	if got.Kind != Redirect || got.Target != RouteChangePIN || got.Message != ExpiredMessage {
		t.Fatalf("gate decision %+v", got)
	}
}

func TestLoginManualSubmitFourDigits(t *testing.T) {
	h := newLoginHarness(t, newRosterRemote("4829", 5), "/acme/jd01")
	if _, err := h.enter(t, "4829"); err != nil {
		t.Fatalf("four-digit login: %v", err)
	}
}

func TestLoginDropsResponseAfterLinkChange(t *testing.T) {
	remote := newRosterRemote("482913", 5)
	h := newLoginHarness(t, remote, "/acme/jd01")

	var sub Submission
	for _, d := range []byte("482913") {
		sub, _ = h.keypad.Digit(d)
	}
	h.login.SetResolution(nil)

	if _, err := h.login.Verify(context.Background(), sub); !errors.Is(err, ErrInvalidLink) {
		t.Fatalf("expected ErrInvalidLink, got %v", err)
	}
	if h.session.Snapshot().Status != SessionSignedOut {
		t.Fatal("late verification populated the session")
	}
}

func TestResolveFailures(t *testing.T) {
	remote := newRosterRemote("482913", 5)
	resolver := NewResolver(remote)

	if _, err := resolver.Resolve(context.Background(), Link{Tenant: "globex", Staff: "jd01"}); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected tenant not found, got %v", err)
	}
	if _, err := resolver.Resolve(context.Background(), Link{Tenant: "acme", Staff: "zz99"}); !errors.Is(err, ErrStaffNotFound) {
		t.Fatalf("expected staff not found, got %v", err)
	}
	res, err := resolver.Resolve(context.Background(), Link{Tenant: "tenant-1"})
	if err == nil || res != nil {
		t.Fatal("unknown tenant id resolved")
	}
	roster, err := resolver.Resolve(context.Background(), Link{Tenant: "acme"})
	if err != nil || roster.Staff != nil || roster.Greeting() != "Enter your PIN" {
		t.Fatalf("tenant-only resolution = %+v %v", roster, err)
	}
}
