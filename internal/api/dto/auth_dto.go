package dto

import "time"

// ResolveResponse is returned by the link resolver. Staff is absent for
// tenant-only links.
type ResolveResponse struct {
	TenantID   string           `json:"tenant_id"`
	TenantName string           `json:"tenant_name"`
	Staff      *StaffDescriptor `json:"staff,omitempty"`
}

// StaffDescriptor is the minimal pre-authentication staff view.
type StaffDescriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StaffCode string `json:"staff_code"`
}

// PinVerifyRequest payload for PIN verification.
type PinVerifyRequest struct {
	PIN      string `json:"pin"`
	TenantID string `json:"tenant_id"`
	StaffID  string `json:"staff_id,omitempty"`
}

// PinVerifyResponse is the verification contract. On failure either Locked is set
// or AttemptsRemaining and Error are.
type PinVerifyResponse struct {
	Success           bool          `json:"success"`
	Session           *SessionToken `json:"session,omitempty"`
	MustChangePIN     bool          `json:"must_change_pin,omitempty"`
	PINExpired        bool          `json:"pin_expired,omitempty"`
	RedirectTo        string        `json:"redirect_to,omitempty"`
	Locked            bool          `json:"locked,omitempty"`
	AttemptsRemaining *int          `json:"attempts_remaining,omitempty"`
	Error             string        `json:"error,omitempty"`
}

// SessionToken is an issued token pair.
type SessionToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	PrincipalID  string    `json:"principal_id"`
}

// PinRotateRequest payload for PIN rotation.
type PinRotateRequest struct {
	OldPIN string `json:"old_pin"`
	NewPIN string `json:"new_pin"`
	UserID string `json:"user_id,omitempty"`
}

// PinRotateResponse is the rotation contract.
type PinRotateResponse struct {
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// PinStatusResponse feeds the expiry watchdog.
type PinStatusResponse struct {
	StaffID         string     `json:"staff_id"`
	LastPINChangeAt *time.Time `json:"last_pin_change_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ProfileResponse is the bootstrapped profile of the authenticated principal.
type ProfileResponse struct {
	ID                 string `json:"id"`
	Role               string `json:"role"`
	DisplayName        string `json:"display_name"`
	TenantID           string `json:"tenant_id"`
	OwnerID            string `json:"owner_id"`
	StaffCode          string `json:"staff_code,omitempty"`
	MustChangePassword bool   `json:"must_change_password"`
	MustChangePIN      bool   `json:"must_change_pin"`
	PINExpired         bool   `json:"pin_expired"`
}

// OwnerLoginRequest payload for the owner password path.
type OwnerLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by owner login and refresh.
type AuthResponse struct {
	Session    SessionToken `json:"session"`
	RedirectTo string       `json:"redirect_to"`
}

// RefreshRequest payload for refresh token rotation.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// LogoutRequest optionally carries the refresh token to revoke.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}
