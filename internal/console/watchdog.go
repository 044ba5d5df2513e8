package console

import (
	"context"

	"github.com/spec-kit/fieldops-console/internal/clock"
	"github.com/spec-kit/fieldops-console/internal/domain"
)

// ExpiredMessage accompanies the redirect raised for a stale PIN.
const ExpiredMessage = "Your PIN has expired."

// DefaultStaleMonths is the client-side staleness window.
const DefaultStaleMonths = 3

// Watchdog checks PIN age when a delivery session enters a protected screen.
type Watchdog struct {
	remote  Remote
	session *Session
	clock   clock.Clock
	months  int
}

// NewWatchdog builds a watchdog. months <= 0 uses DefaultStaleMonths.
func NewWatchdog(remote Remote, session *Session, clk clock.Clock, months int) *Watchdog {
	if clk == nil {
		clk = clock.Real()
	}
	if months <= 0 {
		months = DefaultStaleMonths
	}
	return &Watchdog{remote: remote, session: session, clock: clk, months: months}
}

// Check runs once per screen entry. It only ever redirects; a failed status read
// returns Allow alongside the error so the screen keeps what it already loaded.
func (w *Watchdog) Check(ctx context.Context) (Decision, error) {
	snap := w.session.Snapshot()
	if snap.Status != SessionActive || snap.Profile.Role != domain.StaffRoleDelivery {
		return allow(), nil
	}

	status, err := w.remote.PINStatus(ctx, snap.Credentials.AccessToken)
	if err != nil {
		return allow(), err
	}
	baseline := status.CreatedAt
	if status.LastPINChangeAt != nil {
		baseline = *status.LastPINChangeAt
	}
	if domain.PINStale(baseline, w.clock.Now(), w.months) {
		return Decision{Kind: Redirect, Target: RouteChangePIN, Message: ExpiredMessage}, nil
	}
	return allow(), nil
}
