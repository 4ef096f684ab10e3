package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/eshop/internal/middleware"
	"github.com/example/eshop/internal/services"
)

// OrganizationHandler lets users keep the organizations they order for.
type OrganizationHandler struct {
	organizations *services.OrganizationService
}

// NewOrganizationHandler constructs OrganizationHandler.
func NewOrganizationHandler(organizations *services.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{organizations: organizations}
}

// ListOrganizations returns the caller's organizations.
func (h *OrganizationHandler) ListOrganizations(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	organizations, err := h.organizations.ListForUser(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": organizations})
}

// CreateOrganization stores an organization for the caller.
func (h *OrganizationHandler) CreateOrganization(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req organizationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	organization, err := h.organizations.Create(c.UserContext(), userID, req.input())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": organization})
}
