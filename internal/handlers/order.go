package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/eshop/internal/middleware"
	"github.com/example/eshop/internal/models"
	"github.com/example/eshop/internal/services"
	"github.com/example/eshop/internal/utils"
)

// OrderHandler handles checkout and order management.
type OrderHandler struct {
	orders   *services.OrderService
	baskets  *services.BasketService
	accounts *services.AccountService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService, baskets *services.BasketService, accounts *services.AccountService) *OrderHandler {
	return &OrderHandler{orders: orders, baskets: baskets, accounts: accounts}
}

type customerRequest struct {
	Name        string `json:"name" validate:"required,max=128"`
	PhoneNumber string `json:"phone_number" validate:"required,max=32"`
	Email       string `json:"email" validate:"omitempty,email"`
}

type organizationRequest struct {
	Title string `json:"title" validate:"required,max=256"`
	INN   string `json:"inn" validate:"required,len=12,numeric"`
	KPP   string `json:"kpp" validate:"required,len=9,numeric"`
}

func (r *organizationRequest) input() services.OrganizationInput {
	return services.OrganizationInput{Title: r.Title, INN: r.INN, KPP: r.KPP}
}

type deliveryRequest struct {
	Address string `json:"address" validate:"required"`
	Comment string `json:"comment"`
}

func (r *deliveryRequest) input() *services.DeliveryInput {
	if r == nil {
		return nil
	}
	return &services.DeliveryInput{Address: r.Address, Comment: r.Comment}
}

type orderRequest struct {
	Customer       customerRequest      `json:"customer"`
	Organization   *organizationRequest `json:"organization"`
	OrganizationID *uuid.UUID           `json:"organization_id"`
	Delivery       *deliveryRequest     `json:"delivery"`
	PickupShopID   *uuid.UUID           `json:"pickup_shop_id"`
	PaymentType    string               `json:"payment_type" validate:"omitempty,oneof=UR TR ON"`
	Comment        string               `json:"comment"`
}

func (r orderRequest) input(userID *uuid.UUID) services.OrderInput {
	in := services.OrderInput{
		Customer: services.CustomerInput{
			UserID:      userID,
			Name:        r.Customer.Name,
			PhoneNumber: r.Customer.PhoneNumber,
			Email:       r.Customer.Email,
		},
		OrganizationID: r.OrganizationID,
		Delivery:       r.Delivery.input(),
		PickupShopID:   r.PickupShopID,
		PaymentType:    r.PaymentType,
		Comment:        r.Comment,
	}
	if r.Organization != nil {
		organization := r.Organization.input()
		in.Organization = &organization
	}
	return in
}

// Checkout turns the caller's basket into an order.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	var req orderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	basket, err := resolveBasket(c, h.baskets)
	if err != nil {
		return err
	}

	order, err := h.orders.CreateFromBasket(c.UserContext(), basket.ID, req.input(middleware.CurrentUserPtr(c)))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
		"total":   services.OrderTotal(order),
	})
}

type orderLineRequest struct {
	ItemID   uuid.UUID        `json:"item_id" validate:"required"`
	Quantity int              `json:"quantity" validate:"gt=0"`
	Price    *decimal.Decimal `json:"price"`
}

func (r orderLineRequest) input() services.OrderLineInput {
	return services.OrderLineInput{ItemID: r.ItemID, Quantity: r.Quantity, Price: r.Price}
}

type createOrderRequest struct {
	orderRequest
	UserID *uuid.UUID         `json:"user_id"`
	Items  []orderLineRequest `json:"items" validate:"required,min=1,dive"`
}

// CreateOrder places an order from an explicit line list (staff only).
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	if req.UserID != nil {
		if _, err := h.accounts.Get(c.UserContext(), *req.UserID); err != nil {
			return err
		}
	}

	lines := make([]services.OrderLineInput, len(req.Items))
	for i, line := range req.Items {
		lines[i] = line.input()
	}

	order, err := h.orders.CreateOrder(c.UserContext(), req.input(req.UserID), lines)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
		"total":   services.OrderTotal(order),
	})
}

// ListOrders returns the caller's orders.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.List(c.UserContext(), services.OrderListQuery{
		UserID: &userID,
		Status: c.Query("status"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return err
	}

	return paginated(c, orders, pg, total)
}

// ListAllOrders returns every order (staff only).
func (h *OrderHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	orders, total, err := h.orders.List(c.UserContext(), services.OrderListQuery{
		Status: c.Query("status"),
		Limit:  pg.Limit,
		Offset: pg.Offset,
	})
	if err != nil {
		return err
	}

	return paginated(c, orders, pg, total)
}

// GetOrder returns an order by its id. The id is only handed out to whoever
// placed the order, so no owner check is made.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.loadOrder(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": order, "total": services.OrderTotal(order)})
}

func (h *OrderHandler) loadOrder(c *fiber.Ctx) (*models.Order, error) {
	id, err := parseID(c, "id")
	if err != nil {
		return nil, err
	}
	return h.orders.Get(c.UserContext(), id)
}

type updateOrderRequest struct {
	Status       *string          `json:"status" validate:"omitempty,oneof=CRE INP WPA PAY WFP DEL FIN CAN"`
	Comment      *string          `json:"comment"`
	PaymentType  *string          `json:"payment_type" validate:"omitempty,oneof=UR TR ON"`
	PickupShopID *uuid.UUID       `json:"pickup_shop_id"`
	Delivery     *deliveryRequest `json:"delivery"`
}

// UpdateOrder changes status, payment, comment or fulfillment (staff only).
func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req updateOrderRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	order, err := h.orders.Update(c.UserContext(), id, services.OrderUpdate{
		Status:       req.Status,
		Comment:      req.Comment,
		PaymentType:  req.PaymentType,
		PickupShopID: req.PickupShopID,
		Delivery:     req.Delivery.input(),
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// FinishOrder closes an order as finished (staff only).
func (h *OrderHandler) FinishOrder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.Finish(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// CancelOrder cancels an order (staff only).
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	order, err := h.orders.Cancel(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": order})
}

// AddOrderItem appends a line to an order (staff only).
func (h *OrderHandler) AddOrderItem(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req orderLineRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	line, err := h.orders.AddOrderItem(c.UserContext(), id, req.input())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": line})
}

type updateOrderItemRequest struct {
	ItemID   *uuid.UUID       `json:"item_id"`
	Quantity int              `json:"quantity" validate:"gt=0"`
	Price    *decimal.Decimal `json:"price"`
}

// UpdateOrderItem changes quantity or price of a line (staff only).
func (h *OrderHandler) UpdateOrderItem(c *fiber.Ctx) error {
	lineID, err := parseID(c, "lineID")
	if err != nil {
		return err
	}

	var req updateOrderItemRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	line, err := h.orders.UpdateOrderItem(c.UserContext(), lineID, services.OrderItemUpdate{
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
		Price:    req.Price,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": line})
}

// DeleteOrderItem removes a line and restocks it (staff only).
func (h *OrderHandler) DeleteOrderItem(c *fiber.Ctx) error {
	lineID, err := parseID(c, "lineID")
	if err != nil {
		return err
	}

	if err := h.orders.DeleteOrderItem(c.UserContext(), lineID); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

type updateDeliveryRequest struct {
	Status  *string `json:"status" validate:"omitempty,oneof=WA CO DE"`
	Address *string `json:"address" validate:"omitempty,min=1"`
	Comment *string `json:"comment"`
}

// GetDelivery returns a delivery (staff only).
func (h *OrderHandler) GetDelivery(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	delivery, err := h.orders.GetDelivery(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": delivery})
}

// UpdateDelivery changes status, address or comment of a delivery (staff only).
func (h *OrderHandler) UpdateDelivery(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}

	var req updateDeliveryRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	delivery, err := h.orders.UpdateDelivery(c.UserContext(), id, services.DeliveryUpdate{
		Status:  req.Status,
		Address: req.Address,
		Comment: req.Comment,
	})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": delivery})
}
