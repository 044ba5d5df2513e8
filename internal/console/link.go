package console

import (
	"fmt"
	"net/url"
	"strings"
)

// Link is a parsed shareable login link. Staff is empty for /staff/{tenantId}
// links, which log in against the tenant roster.
type Link struct {
	Tenant string
	Staff  string
}

// ParseLink accepts /{tenantShortcode}/{staffShortcode} and /staff/{tenantId}.
// Query strings and fragments are ignored.
func ParseLink(raw string) (Link, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Link{}, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}

	var segments []string
	for _, part := range strings.Split(u.EscapedPath(), "/") {
		if part == "" {
			continue
		}
		seg, err := url.PathUnescape(part)
		if err != nil {
			return Link{}, fmt.Errorf("%w: %v", ErrInvalidLink, err)
		}
		segments = append(segments, seg)
	}
	if len(segments) != 2 {
		return Link{}, fmt.Errorf("%w: %q", ErrInvalidLink, raw)
	}
	if segments[0] == "staff" {
		return Link{Tenant: segments[1]}, nil
	}
	return Link{Tenant: segments[0], Staff: segments[1]}, nil
}

// Path renders the link back into its canonical form.
func (l Link) Path() string {
	if l.Staff == "" {
		return "/staff/" + url.PathEscape(l.Tenant)
	}
	return "/" + url.PathEscape(l.Tenant) + "/" + url.PathEscape(l.Staff)
}
