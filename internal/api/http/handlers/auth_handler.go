package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/domain"
	"github.com/spec-kit/fieldops-console/internal/service"
	apperrors "github.com/spec-kit/fieldops-console/pkg/util/errorutil"
)

// AuthHandler exposes the owner login, token lifecycle and profile endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// OwnerLogin handles POST /auth/owner/login.
func (h *AuthHandler) OwnerLogin(c *fiber.Ctx) error {
	var req dto.OwnerLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	account, session, err := h.authService.LoginOwner(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(authResponse(account, session))
}

// Refresh handles POST /auth/token/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	account, session, err := h.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(authResponse(account, session))
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.LogoutRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if err := h.authService.Logout(c.UserContext(), principal.Claims, req.RefreshToken); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Profile handles GET /auth/profile.
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	profile, err := h.authService.Profile(c.UserContext(), principal.Account)
	if err != nil {
		return err
	}
	account := profile.Account
	resp := dto.ProfileResponse{
		ID:                 account.ID,
		Role:               string(account.Role),
		DisplayName:        account.DisplayName,
		TenantID:           account.TenantID,
		OwnerID:            profile.OwnerID,
		MustChangePassword: account.MustChangePassword,
		PINExpired:         profile.PINExpired,
	}
	if account.Role != domain.StaffRoleOwner {
		resp.StaffCode = account.StaffCode
		resp.MustChangePIN = account.MustChangePIN
	}
	return c.JSON(resp)
}

func authResponse(account *domain.StaffAccount, session *domain.Session) dto.AuthResponse {
	return dto.AuthResponse{
		Session:    *sessionToken(session),
		RedirectTo: account.Role.LandingRoute(),
	}
}
