package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
	"github.com/spec-kit/fieldops-console/internal/auth"
	"github.com/spec-kit/fieldops-console/internal/domain"
	"github.com/spec-kit/fieldops-console/internal/service"
	apperrors "github.com/spec-kit/fieldops-console/pkg/util/errorutil"
)

// StaffHandler exposes staff administration endpoints.
type StaffHandler struct {
	staffService *service.StaffService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(staffService *service.StaffService) *StaffHandler {
	return &StaffHandler{staffService: staffService}
}

// List handles GET /staff/members.
func (h *StaffHandler) List(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	filters := service.StaffListFilters{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if role := c.Query("role"); role != "" {
		parsed, ok := domain.ParseStaffRole(role)
		if !ok {
			return apperrors.NewValidationError("invalid role", map[string]any{"role": role})
		}
		filters.Role = &parsed
	}
	if filters.Active, err = queryBool(c, "active"); err != nil {
		return err
	}
	if filters.Locked, err = queryBool(c, "locked"); err != nil {
		return err
	}

	members, err := h.staffService.ListStaffMembers(c.UserContext(), actor, filters)
	if err != nil {
		return err
	}
	resp := make([]dto.StaffResponse, 0, len(members))
	for i := range members {
		resp = append(resp, staffResponse(&members[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Create handles POST /staff/members.
func (h *StaffHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	var req dto.StaffCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	member, err := h.staffService.CreateStaffMember(c.UserContext(), actor, service.CreateStaffInput{
		Name:      req.Name,
		StaffCode: req.StaffCode,
		Role:      domain.StaffRole(req.Role),
		PIN:       req.PIN,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": staffResponse(member)})
}

// ResetPIN handles POST /staff/members/:id/pin/reset.
func (h *StaffHandler) ResetPIN(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}

	var req dto.PinResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	member, err := h.staffService.ResetPIN(c.UserContext(), actor, c.Params("id"), req.PIN)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffResponse(member)})
}

// Unlock handles POST /staff/members/:id/unlock.
func (h *StaffHandler) Unlock(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	member, err := h.staffService.Unlock(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffResponse(member)})
}

// Deactivate handles POST /staff/members/:id/deactivate.
func (h *StaffHandler) Deactivate(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	member, err := h.staffService.Deactivate(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffResponse(member)})
}

func actorFromContext(c *fiber.Ctx) (*domain.StaffAccount, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Account == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal.Account, nil
}

func queryBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid boolean query parameter", map[string]any{"param": key})
	}
	return &val, nil
}
