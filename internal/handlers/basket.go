package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/eshop/internal/middleware"
	"github.com/example/eshop/internal/models"
	"github.com/example/eshop/internal/services"
)

// BasketHandler serves the basket of the current user or anonymous visitor.
type BasketHandler struct {
	baskets *services.BasketService
}

// NewBasketHandler constructs BasketHandler.
func NewBasketHandler(baskets *services.BasketService) *BasketHandler {
	return &BasketHandler{baskets: baskets}
}

// resolveBasket finds the caller's basket and echoes its id in the Basket
// response header so anonymous clients can keep using it.
func resolveBasket(c *fiber.Ctx, baskets *services.BasketService) (*models.Basket, error) {
	basket, err := baskets.Resolve(c.UserContext(), middleware.CurrentUserPtr(c), c.Get(middleware.BasketHeader))
	if err != nil {
		return nil, err
	}
	c.Set(middleware.BasketHeader, basket.ID.String())
	return basket, nil
}

func (h *BasketHandler) respond(c *fiber.Ctx, basketID uuid.UUID) error {
	summary, err := h.baskets.Summary(c.UserContext(), basketID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": summary})
}

// GetBasket returns the basket lines with quantity, store_quantity and cost.
func (h *BasketHandler) GetBasket(c *fiber.Ctx) error {
	basket, err := resolveBasket(c, h.baskets)
	if err != nil {
		return err
	}
	return h.respond(c, basket.ID)
}

// AddItem increases the quantity of one item in the basket.
func (h *BasketHandler) AddItem(c *fiber.Ctx) error {
	var req services.BasketLine
	if err := parseBody(c, &req); err != nil {
		return err
	}

	basket, err := resolveBasket(c, h.baskets)
	if err != nil {
		return err
	}
	if _, err := h.baskets.AddItem(c.UserContext(), basket.ID, req.ItemID, req.Quantity); err != nil {
		return err
	}
	return h.respond(c, basket.ID)
}

// RemoveItem decreases the quantity of one item, or drops it with ?all=true.
func (h *BasketHandler) RemoveItem(c *fiber.Ctx) error {
	itemID, err := parseID(c, "itemID")
	if err != nil {
		return err
	}

	basket, err := resolveBasket(c, h.baskets)
	if err != nil {
		return err
	}

	quantity := c.QueryInt("quantity", 1)
	removeAll := c.QueryBool("all", false)
	if _, err := h.baskets.RemoveItem(c.UserContext(), basket.ID, itemID, quantity, removeAll); err != nil {
		return err
	}
	return h.respond(c, basket.ID)
}

type syncBasketRequest struct {
	Items []services.BasketLine `json:"items" validate:"required,dive"`
}

// SyncBasket raises basket quantities to the given ones, typically when a
// visitor logs in with a locally kept basket.
func (h *BasketHandler) SyncBasket(c *fiber.Ctx) error {
	var req syncBasketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	basket, err := resolveBasket(c, h.baskets)
	if err != nil {
		return err
	}
	if err := h.baskets.Sync(c.UserContext(), basket.ID, req.Items); err != nil {
		return err
	}
	return h.respond(c, basket.ID)
}

// ClearBasket removes every line.
func (h *BasketHandler) ClearBasket(c *fiber.Ctx) error {
	basket, err := resolveBasket(c, h.baskets)
	if err != nil {
		return err
	}
	if err := h.baskets.Clear(c.UserContext(), basket.ID); err != nil {
		return err
	}
	return h.respond(c, basket.ID)
}
