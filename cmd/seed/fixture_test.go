package main

import (
	"context"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/domain"
	"github.com/spec-kit/fieldops-console/internal/repository"
)

const sampleFixture = `
tenants:
  - short_code: acme
    name: Acme
    owner:
      name: Olivia
      email: Olivia@Acme.test
      password: correct horse
    staff:
      - name: John Doe
        code: JD01
        role: delivery
        pin: "482913"
        must_change_pin: false
      - name: Fatima
        code: OF02
        role: OFFICE
        pin: "654321"
`

func TestParseFixtureRejectsBadEntries(t *testing.T) {
	tests := map[string]string{
		"unknown role": `
tenants:
  - short_code: acme
    owner: {email: o@a.test, password: pw}
    staff:
      - {name: X, code: X1, role: JANITOR, pin: "123456"}
`,
		"short pin": `
tenants:
  - short_code: acme
    owner: {email: o@a.test, password: pw}
    staff:
      - {name: X, code: X1, role: DELIVERY, pin: "1234"}
`,
		"owner in roster": `
tenants:
  - short_code: acme
    owner: {email: o@a.test, password: pw}
    staff:
      - {name: X, code: X1, role: OWNER, pin: "123456"}
`,
		"duplicate code": `
tenants:
  - short_code: acme
    owner: {email: o@a.test, password: pw}
    staff:
      - {name: X, code: X1, role: DELIVERY, pin: "123456"}
      - {name: Y, code: x1, role: OFFICE, pin: "654321"}
`,
		"unknown key": `
tenants:
  - short_code: acme
    colour: blue
`,
		"missing owner": `
tenants:
  - short_code: acme
`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseFixture([]byte(doc)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestSeederApplyIsIdempotent(t *testing.T) {
	fx, err := ParseFixture([]byte(sampleFixture))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	store := repository.NewMemoryStore(nil)
	seeder := NewSeeder(store.Tenants(), store.Staff(), bcrypt.MinCost, nil)
	ctx := context.Background()

	sum, err := seeder.Apply(ctx, fx)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if sum.TenantsCreated != 1 || sum.StaffCreated != 3 || sum.Skipped != 0 {
		t.Fatalf("first run summary %+v", sum)
	}

	again, err := seeder.Apply(ctx, fx)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if again.TenantsCreated != 0 || again.StaffCreated != 0 || again.Skipped != 3 {
		t.Fatalf("second run summary %+v", again)
	}

	tenant, err := store.Tenants().GetByShortCode(ctx, "ACME")
	if err != nil {
		t.Fatalf("tenant: %v", err)
	}
	owner, err := store.Staff().GetByEmail(ctx, "olivia@acme.test")
	if err != nil || owner.ID != tenant.OwnerAccountID || owner.Role != domain.StaffRoleOwner {
		t.Fatalf("owner = %+v %v", owner, err)
	}
	if auth.ComparePassword(owner.PasswordHash, "correct horse") != nil {
		t.Fatal("owner password not hashed with bcrypt")
	}

	driver, err := store.Staff().GetByTenantAndCode(ctx, tenant.ID, "jd01")
	if err != nil {
		t.Fatalf("driver: %v", err)
	}
	if driver.MustChangePIN || driver.LastPINChangeAt == nil || !auth.MatchPIN(driver.PINHash, "482913") {
		t.Fatalf("driver not provisioned as rotated: %+v", driver)
	}
	clerk, err := store.Staff().GetByTenantAndCode(ctx, tenant.ID, "OF02")
	if err != nil || !clerk.MustChangePIN || strings.Contains(clerk.PINHash, "654321") {
		t.Fatalf("clerk = %+v %v", clerk, err)
	}
}
