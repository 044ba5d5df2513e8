package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
	"github.com/spec-kit/fieldops-console/internal/service"
)

// LinkHandler resolves shareable login links. It never creates sessions.
type LinkHandler struct {
	resolver *service.ResolverService
}

// NewLinkHandler constructs handler.
func NewLinkHandler(resolver *service.ResolverService) *LinkHandler {
	return &LinkHandler{resolver: resolver}
}

// ResolveStaff handles GET /auth/links/:tenant/:staff.
func (h *LinkHandler) ResolveStaff(c *fiber.Ctx) error {
	tenant, staff, err := h.resolver.Resolve(c.UserContext(), c.Params("tenant"), c.Params("staff"))
	if err != nil {
		return err
	}
	return c.JSON(dto.ResolveResponse{
		TenantID:   tenant.ID,
		TenantName: tenant.Name,
		Staff: &dto.StaffDescriptor{
			ID:        staff.ID,
			Name:      staff.DisplayName,
			StaffCode: staff.StaffCode,
		},
	})
}

// ResolveTenant handles GET /auth/links/:tenant.
func (h *LinkHandler) ResolveTenant(c *fiber.Ctx) error {
	tenant, err := h.resolver.ResolveTenant(c.UserContext(), c.Params("tenant"))
	if err != nil {
		return err
	}
	return c.JSON(dto.ResolveResponse{TenantID: tenant.ID, TenantName: tenant.Name})
}
