package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/eshop/internal/services"
	"github.com/example/eshop/internal/utils"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type validationError struct {
	fields map[string]string
}

func (e *validationError) Error() string {
	return "validation failed"
}

// parseBody decodes the request body into dst and runs its validate tags.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			return &validationError{fields: formatValidationErrors(errs)}
		}
		return err
	}
	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	messages := make(map[string]string, len(errs))
	for _, err := range errs {
		field := strings.ToLower(err.Field())
		switch err.Tag() {
		case "required":
			messages[field] = fmt.Sprintf("%s is required", err.Field())
		case "email":
			messages[field] = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "numeric":
			messages[field] = fmt.Sprintf("%s must contain only digits", err.Field())
		case "len":
			messages[field] = fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
		case "min", "gte":
			messages[field] = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max", "lte":
			messages[field] = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gt":
			messages[field] = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "oneof":
			messages[field] = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		default:
			messages[field] = fmt.Sprintf("%s failed %s validation", err.Field(), err.Tag())
		}
	}
	return messages
}

func parseID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(param))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+param)
	}
	return id, nil
}

func paginated(c *fiber.Ctx, data interface{}, pg utils.Pagination, total int64) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

var badRequestErrors = []error{
	services.ErrCycle,
	services.ErrHierarchyType,
	services.ErrInvalidQuantity,
	services.ErrEmptyBasket,
	services.ErrFulfillmentMethod,
	services.ErrInsufficientStock,
	services.ErrImmutableItem,
	services.ErrInvalidPropertyValue,
	services.ErrInvalidPaymentType,
}

var conflictErrors = []error{
	services.ErrDuplicateKey,
	services.ErrOrderFinished,
	services.ErrOrderCancelled,
	services.ErrStatusTransition,
	gorm.ErrDuplicatedKey,
	gorm.ErrForeignKeyViolated,
}

// ErrorHandler renders every error returned by a handler as JSON.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var fiberErr *fiber.Error
	var invalid *validationError
	switch {
	case errors.As(err, &fiberErr):
		code, msg = fiberErr.Code, fiberErr.Message
	case errors.As(err, &invalid):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": invalid.Error(),
			"errors":  invalid.fields,
		})
	case errors.Is(err, gorm.ErrRecordNotFound):
		code, msg = fiber.StatusNotFound, "not found"
	case errors.Is(err, services.ErrInvalidCredentials):
		code, msg = fiber.StatusUnauthorized, err.Error()
	case matchesAny(err, badRequestErrors):
		code, msg = fiber.StatusBadRequest, err.Error()
	case matchesAny(err, conflictErrors):
		code, msg = fiber.StatusConflict, err.Error()
	default:
		log.Printf("[HTTP] %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
