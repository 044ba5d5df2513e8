package domain

import "time"

// Tenant is an organization unit owning staff accounts. ShortCode is stored lower-case.
type Tenant struct {
	ID             string
	ShortCode      string
	Name           string
	OwnerAccountID string
	CreatedAt      time.Time
}

// StaffDescriptor is the minimal staff view handed out before authentication.
type StaffDescriptor struct {
	ID          string
	DisplayName string
	StaffCode   string
}
