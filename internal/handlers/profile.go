package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/eshop/internal/middleware"
	"github.com/example/eshop/internal/services"
)

// ProfileHandler manages user profile endpoints.
type ProfileHandler struct {
	accounts *services.AccountService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(accounts *services.AccountService) *ProfileHandler {
	return &ProfileHandler{accounts: accounts}
}

// GetProfile returns authenticated user profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	user, err := h.accounts.Get(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

type updateProfileRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,max=150"`
	LastName    *string `json:"last_name" validate:"omitempty,max=150"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=32"`
}

// UpdateProfile updates user profile fields.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.UpdateProfile(c.UserContext(), userID, services.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": user})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// ChangePassword replaces the password of the authenticated user.
func (h *ProfileHandler) ChangePassword(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if err := h.accounts.ChangePassword(c.UserContext(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}
