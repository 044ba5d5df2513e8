package console

import (
	"context"
	"errors"
	"strings"
)

// StaffDescriptor personalizes the PIN screen before authentication.
type StaffDescriptor struct {
	ID        string
	Name      string
	StaffCode string
}

// Resolution is the outcome of resolving a login link.
type Resolution struct {
	Link       Link
	TenantID   string
	TenantName string
	Staff      *StaffDescriptor
}

// Greeting is the PIN screen headline.
func (r *Resolution) Greeting() string {
	if r == nil || r.Staff == nil {
		return "Enter your PIN"
	}
	return "Hello, " + r.Staff.Name
}

// Resolver turns login links into tenant and staff identities. It holds no
// state, so a changed link can simply be resolved again.
type Resolver struct {
	remote Remote
}

// NewResolver constructs a resolver.
func NewResolver(remote Remote) *Resolver {
	return &Resolver{remote: remote}
}

// Resolve looks the link up. Tenant and staff failures are terminal for the
// link and surface as ErrTenantNotFound and ErrStaffNotFound.
func (r *Resolver) Resolve(ctx context.Context, link Link) (*Resolution, error) {
	if strings.TrimSpace(link.Tenant) == "" {
		return nil, ErrTenantNotFound
	}
	resp, err := r.remote.ResolveLink(ctx, link)
	if err != nil {
		return nil, err
	}

	res := &Resolution{Link: link, TenantID: resp.TenantID, TenantName: resp.TenantName}
	if link.Staff != "" {
		if resp.Staff == nil {
			return nil, errors.Join(ErrStaffNotFound, errors.New("resolver returned no staff"))
		}
		res.Staff = &StaffDescriptor{ID: resp.Staff.ID, Name: resp.Staff.Name, StaffCode: resp.Staff.StaffCode}
	}
	return res, nil
}
