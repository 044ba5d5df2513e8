package console

import (
	"testing"

	"github.com/spec-kit/fieldops-console/internal/domain"
)

func TestGateCheck(t *testing.T) {
	loading := NewSession()
	loading.Begin(creds("staff-1"))

	tests := []struct {
		name    string
		session *Session
		path    string
		want    Decision
	}{
		{"signed out goes to entry", NewSession(), "/delivery", Decision{Kind: Redirect, Target: RouteEntry}},
		{"loading waits", loading, "/delivery", Decision{Kind: Wait}},
		{"delivery on delivery", activeSession(Profile{Role: domain.StaffRoleDelivery}), "/delivery/orders", Decision{Kind: Allow}},
		{"delivery on staff console", activeSession(Profile{Role: domain.StaffRoleDelivery}), "/staff", Decision{Kind: Redirect, Target: RouteUnauthorized}},
		{"manager on staff console", activeSession(Profile{Role: domain.StaffRoleManager}), "/staff/members", Decision{Kind: Allow}},
		{"office on dashboard", activeSession(Profile{Role: domain.StaffRoleOffice}), "/dashboard", Decision{Kind: Redirect, Target: RouteUnauthorized}},
		{"prefix needs a segment boundary", activeSession(Profile{Role: domain.StaffRoleDelivery}), "/staffroom", Decision{Kind: Allow}},
		{"forced rotation redirects", activeSession(Profile{Role: domain.StaffRoleDelivery, MustChangePIN: true}), "/delivery", Decision{Kind: Redirect, Target: RouteChangePIN}},
		{"forced rotation allows rotation screen", activeSession(Profile{Role: domain.StaffRoleDelivery, MustChangePIN: true}), RouteChangePIN, Decision{Kind: Allow}},
		{"expired PIN redirects with message", activeSession(Profile{Role: domain.StaffRoleOffice, PINExpired: true}), "/staff", Decision{Kind: Redirect, Target: RouteChangePIN, Message: ExpiredMessage}},
		{"expired PIN allows rotation screen", activeSession(Profile{Role: domain.StaffRoleManager, PINExpired: true}), RouteChangePIN, Decision{Kind: Allow}},
		{"forced rotation beats role check", activeSession(Profile{Role: domain.StaffRoleDelivery, MustChangePIN: true}), "/dashboard", Decision{Kind: Redirect, Target: RouteChangePIN}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewGate(tt.session).Check(tt.path); got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGateCustomRoutes(t *testing.T) {
	gate := NewGate(activeSession(Profile{Role: domain.StaffRoleOffice}),
		Route{Path: "/reports", AllowedRoles: []domain.StaffRole{domain.StaffRoleOwner}},
		Route{Path: "/reports/daily", AllowedRoles: []domain.StaffRole{domain.StaffRoleOffice}},
	)
	if got := gate.Check("/reports/daily"); got.Kind != Allow {
		t.Fatalf("most specific route not used: %+v", got)
	}
	if got := gate.Check("/reports/weekly"); got.Target != RouteUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", got)
	}
}
