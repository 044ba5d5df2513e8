package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/cache"
	"github.com/spec-kit/fieldops-console/internal/clock"
	"github.com/spec-kit/fieldops-console/internal/config"
	"github.com/spec-kit/fieldops-console/internal/domain"
	"github.com/spec-kit/fieldops-console/internal/events"
	"github.com/spec-kit/fieldops-console/internal/observability"
	"github.com/spec-kit/fieldops-console/internal/repository"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type recordedEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordedEvents) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordedEvents) Subscribe(events.EventType, events.EventHandler) {}

func (r *recordedEvents) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// fixture is a tenant "acme" owned by Olivia with a delivery driver, an office
// clerk and a manager.
type fixture struct {
	cfg     config.Config
	clock   *clock.FakeClock
	store   *repository.MemoryStore
	events  *recordedEvents
	memory  *cache.Memory
	metrics *observability.Metrics

	auth     *AuthService
	pins     *PINService
	resolver *ResolverService
	admin    *StaffService

	tenant  *domain.Tenant
	owner   *domain.StaffAccount
	driver  *domain.StaffAccount
	clerk   *domain.StaffAccount
	manager *domain.StaffAccount
}

const (
	driverPIN  = "123456"
	clerkPIN   = "654321"
	managerPIN = "112233"
	ownerPass  = "correct horse"
)

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 15,
			RefreshTokenTTLHours:  24,
			BcryptCost:            bcrypt.MinCost,
		},
		PIN: config.PINConfig{
			MaxAttempts:         5,
			StaleMonths:         3,
			RosterLimit:         3,
			RosterWindowMinutes: 15,
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testConfig()
	clk := clock.Fake(testNow)
	f := &fixture{
		cfg:     cfg,
		clock:   clk,
		store:   repository.NewMemoryStore(clk.Now),
		events:  &recordedEvents{},
		memory:  cache.NewMemory(clk.Now),
		metrics: observability.NewMetrics(),
	}

	f.auth = NewAuthService(cfg, AuthDependencies{
		TenantRepo:  f.store.Tenants(),
		StaffRepo:   f.store.Staff(),
		SessionRepo: f.store.Sessions(),
		Denylist:    f.memory,
		Clock:       clk,
	})
	f.pins = NewPINService(cfg, PINDependencies{
		TenantRepo: f.store.Tenants(),
		StaffRepo:  f.store.Staff(),
		Sessions:   f.auth,
		Limiter:    f.memory,
		Dispatcher: f.events,
		Clock:      clk,
		Metrics:    f.metrics,
	})
	f.resolver = NewResolverService(f.store.Tenants(), f.store.Staff())
	f.admin = NewStaffService(cfg, StaffDependencies{
		StaffRepo:   f.store.Staff(),
		SessionRepo: f.store.Sessions(),
		Dispatcher:  f.events,
		Clock:       clk,
	})

	ctx := context.Background()
	f.tenant = &domain.Tenant{ShortCode: "acme", Name: "Acme Deliveries"}
	must(t, f.store.Tenants().Create(ctx, f.tenant))

	passHash, err := auth.HashPassword(ownerPass, bcrypt.MinCost)
	must(t, err)
	email := "olivia@acme.test"
	f.owner = &domain.StaffAccount{
		TenantID: f.tenant.ID, DisplayName: "Olivia", Email: &email,
		Role: domain.StaffRoleOwner, StaffCode: "owner", PasswordHash: passHash, Active: true,
	}
	must(t, f.store.Staff().Create(ctx, f.owner))
	must(t, f.store.Tenants().SetOwner(ctx, f.tenant.ID, f.owner.ID))
	f.tenant.OwnerAccountID = f.owner.ID

	f.driver = f.addStaff(t, "Dana Driver", "JD01", domain.StaffRoleDelivery, driverPIN)
	f.clerk = f.addStaff(t, "Oscar Office", "of02", domain.StaffRoleOffice, clerkPIN)
	f.manager = f.addStaff(t, "Mia Manager", "mm03", domain.StaffRoleManager, managerPIN)
	return f
}

// addStaff creates an account whose PIN was self-rotated a month ago.
func (f *fixture) addStaff(t *testing.T, name, code string, role domain.StaffRole, pin string) *domain.StaffAccount {
	t.Helper()
	hash, err := auth.HashPIN(pin, bcrypt.MinCost)
	must(t, err)
	account := &domain.StaffAccount{
		TenantID: f.tenant.ID, DisplayName: name, Role: role, StaffCode: code, Active: true,
	}
	must(t, f.store.Staff().Create(context.Background(), account))
	f.setPINChangedAt(t, account.ID, hash, testNow.AddDate(0, -1, 0))
	return f.reload(t, account.ID)
}

func (f *fixture) setPINChangedAt(t *testing.T, id, hash string, at time.Time) {
	t.Helper()
	if hash == "" {
		hash = f.reload(t, id).PINHash
	}
	must(t, f.store.Staff().SetPIN(context.Background(), id, hash, false, &at))
}

func (f *fixture) lock(t *testing.T, id string) {
	t.Helper()
	_, locked, err := f.store.Staff().RecordFailedAttempt(context.Background(), id, 1)
	must(t, err)
	if !locked {
		t.Fatal("account did not lock")
	}
}

func (f *fixture) deactivate(t *testing.T, id string) {
	t.Helper()
	account := f.reload(t, id)
	account.Active = false
	must(t, f.store.Staff().Update(context.Background(), account))
}

func (f *fixture) reload(t *testing.T, id string) *domain.StaffAccount {
	t.Helper()
	account, err := f.store.Staff().GetByID(context.Background(), id)
	must(t, err)
	return account
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
