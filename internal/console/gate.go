package console

import (
	"strings"

	"github.com/spec-kit/fieldops-console/internal/domain"
)

// Console routes outside the role landing pages.
const (
	RouteEntry        = "/"
	RouteChangePIN    = "/change-pin"
	RouteUnauthorized = "/unauthorized"
)

// Route declares a protected screen. An empty AllowedRoles admits any signed-in role.
type Route struct {
	Path         string
	AllowedRoles []domain.StaffRole
}

// DefaultRoutes are the console's role-restricted screens.
func DefaultRoutes() []Route {
	return []Route{
		{Path: domain.RouteDelivery, AllowedRoles: []domain.StaffRole{domain.StaffRoleDelivery}},
		{Path: domain.RouteStaff, AllowedRoles: []domain.StaffRole{domain.StaffRoleOffice, domain.StaffRoleManager, domain.StaffRoleOwner}},
		{Path: domain.RouteDashboard, AllowedRoles: []domain.StaffRole{domain.StaffRoleOwner}},
		{Path: RouteChangePIN},
	}
}

// DecisionKind is the gate's verdict.
type DecisionKind int

const (
	Allow DecisionKind = iota
	Redirect
	Wait
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Wait:
		return "wait"
	}
	return "unknown"
}

// Decision is what to do with a navigation.
type Decision struct {
	Kind    DecisionKind
	Target  string
	Message string
}

func allow() Decision { return Decision{Kind: Allow} }

func redirect(target string) Decision { return Decision{Kind: Redirect, Target: target} }

// Gate decides whether the session may render a destination.
type Gate struct {
	session *Session
	routes  []Route
}

// NewGate builds a gate over routes; with none given DefaultRoutes apply.
func NewGate(session *Session, routes ...Route) *Gate {
	if len(routes) == 0 {
		routes = DefaultRoutes()
	}
	return &Gate{session: session, routes: routes}
}

// Check evaluates a navigation to path.
func (g *Gate) Check(path string) Decision {
	snap := g.session.Snapshot()
	switch snap.Status {
	case SessionSignedOut:
		return redirect(RouteEntry)
	case SessionLoading:
		return Decision{Kind: Wait}
	}

	if path != RouteChangePIN {
		switch {
		case snap.Profile.MustChangePIN:
			return redirect(RouteChangePIN)
		case snap.Profile.PINExpired:
			return Decision{Kind: Redirect, Target: RouteChangePIN, Message: ExpiredMessage}
		}
	}
	if route, ok := g.match(path); ok && len(route.AllowedRoles) > 0 {
		for _, role := range route.AllowedRoles {
			if role == snap.Profile.Role {
				return allow()
			}
		}
		return redirect(RouteUnauthorized)
	}
	return allow()
}

// match finds the most specific route covering path on segment boundaries.
func (g *Gate) match(path string) (Route, bool) {
	var best Route
	found := false
	for _, r := range g.routes {
		if path != r.Path && !strings.HasPrefix(path, strings.TrimRight(r.Path, "/")+"/") {
			continue
		}
		if !found || len(r.Path) > len(best.Path) {
			best, found = r, true
		}
	}
	return best, found
}
