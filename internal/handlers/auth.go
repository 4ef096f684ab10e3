package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/eshop/internal/config"
	"github.com/example/eshop/internal/models"
	"github.com/example/eshop/internal/services"
	"github.com/example/eshop/internal/utils"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	accounts *services.AccountService
	cfg      *config.Config
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(accounts *services.AccountService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{accounts: accounts, cfg: cfg}
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"first_name" validate:"required,max=150"`
	LastName    string `json:"last_name" validate:"max=150"`
	PhoneNumber string `json:"phone_number" validate:"max=32"`
}

// Register creates a new user account together with its basket.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, basket, err := h.accounts.Register(c.UserContext(), services.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return err
	}

	token, err := h.issueToken(user)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":   true,
		"user":      user,
		"basket_id": basket.ID,
		"token":     token,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates an existing user.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	token, err := h.issueToken(user)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"user":    user,
		"token":   token,
	})
}

func (h *AuthHandler) issueToken(user *models.User) (string, error) {
	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, user.IsStaff, h.cfg.TokenExpires)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}
	return token, nil
}
