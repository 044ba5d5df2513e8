package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/service"
	apperrors "github.com/spec-kit/fieldops-console/pkg/util/errorutil"
)

// PINHandler exposes PIN verification, rotation and status.
type PINHandler struct {
	pins *service.PINService
}

// NewPINHandler constructs handler.
func NewPINHandler(pins *service.PINService) *PINHandler {
	return &PINHandler{pins: pins}
}

// Verify handles POST /auth/pin/verify. Rejections are rendered in the
// verification body, not the error envelope.
func (h *PINHandler) Verify(c *fiber.Ctx) error {
	var req dto.PinVerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res, err := h.pins.Verify(c.UserContext(), service.VerifyInput{
		PIN:       req.PIN,
		TenantID:  req.TenantID,
		StaffID:   req.StaffID,
		ClientKey: c.IP(),
	})
	if err != nil {
		return err
	}

	switch {
	case res.Locked:
		return c.Status(http.StatusLocked).JSON(dto.PinVerifyResponse{Locked: true, Error: res.Message})
	case !res.Success:
		return c.Status(http.StatusUnauthorized).JSON(dto.PinVerifyResponse{
			Error:             res.Message,
			AttemptsRemaining: res.AttemptsRemaining,
		})
	}
	return c.JSON(dto.PinVerifyResponse{
		Success:       true,
		Session:       sessionToken(res.Session),
		MustChangePIN: res.MustChangePIN,
		PINExpired:    res.PINExpired,
		RedirectTo:    res.RedirectTo,
	})
}

// Rotate handles POST /auth/pin/rotate. Client-facing failures are reported in
// the rotation body with the reason verbatim.
func (h *PINHandler) Rotate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.PinRotateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	redirect, err := h.pins.Rotate(c.UserContext(), principal.Account, service.RotateInput{
		OldPIN: req.OldPIN,
		NewPIN: req.NewPIN,
		UserID: req.UserID,
	})
	if err != nil {
		domainErr := apperrors.ToDomainError(err)
		if domainErr.HTTPStatus >= http.StatusInternalServerError {
			return err
		}
		return c.Status(domainErr.HTTPStatus).JSON(dto.PinRotateResponse{Error: domainErr.Message})
	}
	return c.JSON(dto.PinRotateResponse{Success: true, RedirectTo: redirect})
}

// Status handles GET /auth/pin/status.
func (h *PINHandler) Status(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	account, err := h.pins.Status(c.UserContext(), principal.Account)
	if err != nil {
		return err
	}
	return c.JSON(dto.PinStatusResponse{
		StaffID:         account.ID,
		LastPINChangeAt: account.LastPINChangeAt,
		CreatedAt:       account.CreatedAt,
	})
}
