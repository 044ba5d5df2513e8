package dto

import "time"

// StaffCreateRequest payload. PIN is the administrator-assigned initial PIN.
type StaffCreateRequest struct {
	Name      string `json:"name"`
	StaffCode string `json:"staff_code"`
	Role      string `json:"role"`
	PIN       string `json:"pin"`
}

// PinResetRequest payload for an administrative PIN reset.
type PinResetRequest struct {
	PIN string `json:"pin"`
}

// StaffResponse is the administrative staff view. Credentials never leave the server.
type StaffResponse struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenant_id"`
	Name            string     `json:"name"`
	StaffCode       string     `json:"staff_code"`
	Role            string     `json:"role"`
	Active          bool       `json:"active"`
	Locked          bool       `json:"locked"`
	MustChangePIN   bool       `json:"must_change_pin"`
	LastPINChangeAt *time.Time `json:"last_pin_change_at,omitempty"`
}
