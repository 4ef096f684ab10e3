package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/eshop/internal/models"
)

// OrderService turns baskets or explicit line lists into orders and guards
// the order lifecycle.
type OrderService struct {
	db       *gorm.DB
	ledger   *InventoryLedger
	notifier OrderNotifier
}

// NewOrderService constructs OrderService. notifier may be nil.
func NewOrderService(db *gorm.DB, notifier OrderNotifier) *OrderService {
	return &OrderService{
		db:       db,
		ledger:   NewInventoryLedger(db),
		notifier: notifier,
	}
}

type CustomerInput struct {
	UserID      *uuid.UUID
	Name        string
	PhoneNumber string
	Email       string
}

type OrganizationInput struct {
	Title string
	INN   string
	KPP   string
}

type DeliveryInput struct {
	Address string
	Comment string
}

// DeliveryUpdate holds the delivery fields to change; nil fields are kept.
type DeliveryUpdate struct {
	Status  *string
	Address *string
	Comment *string
}

// OrderInput describes a new order apart from its lines.
type OrderInput struct {
	Customer     CustomerInput
	Organization *OrganizationInput
	// OrganizationID picks a stored organization of the customer's user and
	// takes precedence over Organization.
	OrganizationID *uuid.UUID
	Delivery     *DeliveryInput
	PickupShopID *uuid.UUID
	PaymentType  string
	Comment      string
}

// OrderLineInput is one requested line. A nil Price takes the current item price.
type OrderLineInput struct {
	ItemID   uuid.UUID
	Quantity int
	Price    *decimal.Decimal
}

// OrderUpdate holds the order fields to change; nil fields are kept.
type OrderUpdate struct {
	Status       *string
	Comment      *string
	PaymentType  *string
	PickupShopID *uuid.UUID
	Delivery     *DeliveryInput
}

// OrderItemUpdate holds the new state of an order line. ItemID, when set,
// must match the current item.
type OrderItemUpdate struct {
	ItemID   *uuid.UUID
	Quantity int
	Price    *decimal.Decimal
}

// OrderListQuery narrows order listings.
type OrderListQuery struct {
	UserID *uuid.UUID
	Status string
	Limit  int
	Offset int
}

var orderTransitions = map[string][]string{
	models.OrderStatusCreated:           {models.OrderStatusInProgress},
	models.OrderStatusInProgress:        {models.OrderStatusWaitingForPayment, models.OrderStatusWaitingForPickup, models.OrderStatusDelivery},
	models.OrderStatusWaitingForPayment: {models.OrderStatusPaid},
	models.OrderStatusPaid:              {models.OrderStatusWaitingForPickup, models.OrderStatusDelivery},
	models.OrderStatusWaitingForPickup:  {models.OrderStatusFinished},
	models.OrderStatusDelivery:          {models.OrderStatusFinished},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	if from == models.OrderStatusFinished || from == models.OrderStatusCancelled {
		return false
	}
	if to == models.OrderStatusCancelled {
		return true
	}
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var deliveryTransitions = map[string][]string{
	models.DeliveryStatusWaiting: {models.DeliveryStatusCourier, models.DeliveryStatusDelivered},
	models.DeliveryStatusCourier: {models.DeliveryStatusDelivered},
}

// CanMoveDelivery reports whether a delivery may move from one status to another.
func CanMoveDelivery(from, to string) bool {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func validPaymentType(paymentType string) bool {
	switch paymentType {
	case models.PaymentUponReceipt, models.PaymentTransfer, models.PaymentOnline:
		return true
	}
	return false
}

func ensureMutable(order *models.Order) error {
	switch order.Status {
	case models.OrderStatusFinished:
		return fmt.Errorf("%w: order %s", ErrOrderFinished, order.ID)
	case models.OrderStatusCancelled:
		return fmt.Errorf("%w: order %s", ErrOrderCancelled, order.ID)
	}
	return nil
}

func validateOrderInput(in *OrderInput) error {
	if (in.Delivery == nil) == (in.PickupShopID == nil) {
		return fmt.Errorf("%w: set either delivery or pickup shop", ErrFulfillmentMethod)
	}
	if in.PaymentType == "" {
		in.PaymentType = models.PaymentUponReceipt
	}
	if !validPaymentType(in.PaymentType) {
		return fmt.Errorf("%w: %q", ErrInvalidPaymentType, in.PaymentType)
	}
	return nil
}

// CreateFromBasket places an order for every line of the basket, takes the
// ordered quantities out of stock and empties the basket.
func (s *OrderService) CreateFromBasket(ctx context.Context, basketID uuid.UUID, in OrderInput) (*models.Order, error) {
	if err := validateOrderInput(&in); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Basket{}, "id = ?", basketID).Error; err != nil {
			return err
		}

		var rows []models.ItemBasket
		if err := tx.Where("basket_id = ?", basketID).Order("created_at").Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return fmt.Errorf("%w: basket %s has no lines", ErrEmptyBasket, basketID)
		}

		lines := make([]OrderLineInput, 0, len(rows))
		for _, row := range rows {
			lines = append(lines, OrderLineInput{ItemID: row.ItemID, Quantity: row.Quantity})
		}

		var err error
		if order, err = s.createOrder(tx, in, lines); err != nil {
			return err
		}
		return clearBasket(tx, basketID)
	})
	if err != nil {
		return nil, err
	}

	return s.afterCreate(ctx, order.ID)
}

// CreateOrder places an order for an explicit list of lines.
func (s *OrderService) CreateOrder(ctx context.Context, in OrderInput, lines []OrderLineInput) (*models.Order, error) {
	if err := validateOrderInput(&in); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order has no lines", ErrEmptyBasket)
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		order, err = s.createOrder(tx, in, lines)
		return err
	})
	if err != nil {
		return nil, err
	}

	return s.afterCreate(ctx, order.ID)
}

func (s *OrderService) createOrder(tx *gorm.DB, in OrderInput, lines []OrderLineInput) (*models.Order, error) {
	items, err := checkLines(tx, lines)
	if err != nil {
		return nil, err
	}
	if in.PickupShopID != nil {
		if err := tx.Select("id").First(&models.Shop{}, "id = ?", *in.PickupShopID).Error; err != nil {
			return nil, err
		}
	}

	customer := &models.CustomerData{
		UserID:      in.Customer.UserID,
		Name:        in.Customer.Name,
		PhoneNumber: in.Customer.PhoneNumber,
		Email:       in.Customer.Email,
	}
	if err := tx.Create(customer).Error; err != nil {
		return nil, err
	}

	order := &models.Order{
		Status:         models.OrderStatusCreated,
		CustomerDataID: &customer.ID,
		Comment:        in.Comment,
		PickupShopID:   in.PickupShopID,
		PaymentType:    in.PaymentType,
	}

	switch {
	case in.OrganizationID != nil:
		if in.Customer.UserID == nil {
			return nil, fmt.Errorf("organization %s: %w", *in.OrganizationID, gorm.ErrRecordNotFound)
		}
		var organization models.Organization
		if err := tx.Select("id").
			Where("id = ? AND user_id = ?", *in.OrganizationID, *in.Customer.UserID).
			First(&organization).Error; err != nil {
			return nil, err
		}
		order.OrganizationID = &organization.ID
	case in.Organization != nil:
		organization := &models.Organization{
			UserID: in.Customer.UserID,
			Title:  in.Organization.Title,
			INN:    in.Organization.INN,
			KPP:    in.Organization.KPP,
		}
		if err := tx.Create(organization).Error; err != nil {
			return nil, err
		}
		order.OrganizationID = &organization.ID
	}

	if in.Delivery != nil {
		delivery := &models.Delivery{
			Address: in.Delivery.Address,
			Comment: in.Delivery.Comment,
			Status:  models.DeliveryStatusWaiting,
		}
		if err := tx.Create(delivery).Error; err != nil {
			return nil, err
		}
		order.DeliveryID = &delivery.ID
	}

	if err := tx.Omit(clause.Associations).Create(order).Error; err != nil {
		return nil, err
	}

	for _, line := range lines {
		if _, err := s.createLine(tx, order, items[line.ItemID], line); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// checkLines loads the items of lines and verifies every line can be served
// from current stock, counting repeated items together.
func checkLines(tx *gorm.DB, lines []OrderLineInput) (map[uuid.UUID]*models.Item, error) {
	requested := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: order line quantity %d", ErrInvalidQuantity, line.Quantity)
		}
		requested[line.ItemID] += line.Quantity
	}

	items := make(map[uuid.UUID]*models.Item, len(requested))
	for itemID, quantity := range requested {
		var item models.Item
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, "id = ?", itemID).Error; err != nil {
			return nil, err
		}
		if quantity > item.Quantity {
			return nil, fmt.Errorf("%w: %q has %d in stock, %d requested", ErrInsufficientStock, item.Name, item.Quantity, quantity)
		}
		items[itemID] = &item
	}
	return items, nil
}

func (s *OrderService) createLine(tx *gorm.DB, order *models.Order, item *models.Item, line OrderLineInput) (*models.OrderItem, error) {
	price := item.Price
	if line.Price != nil {
		price = *line.Price
	}

	orderItem := &models.OrderItem{
		OrderID:  order.ID,
		ItemID:   &item.ID,
		ItemName: item.Name,
		Quantity: line.Quantity,
		Price:    price,
	}
	if err := tx.Omit("Item").Create(orderItem).Error; err != nil {
		return nil, err
	}

	if _, err := s.ledger.Adjust(tx, item.ID, -line.Quantity, models.MovementOrderLineCreated, &order.ID); err != nil {
		return nil, err
	}
	return orderItem, nil
}

func (s *OrderService) afterCreate(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	log.Printf("[Order] Created %s with %d lines, total %s", order.ID, len(order.Items), OrderTotal(order).StringFixed(2))

	if s.notifier != nil {
		go func(o *models.Order) {
			if err := s.notifier.NotifyNewOrder(o); err != nil {
				log.Printf("[Order] Failed to send notification for %s: %v", o.ID, err)
			}
		}(order)
	}
	return order, nil
}

// Get loads an order with its lines and related records.
func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at") }).
		Preload("CustomerData").
		Preload("Organization").
		Preload("Delivery").
		Preload("PickupShop").
		First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns a page of orders, newest first.
func (s *OrderService) List(ctx context.Context, q OrderListQuery) ([]models.Order, int64, error) {
	db := s.db.WithContext(ctx)
	query := db.Model(&models.Order{})

	if q.UserID != nil {
		query = query.Where("customer_data_id IN (?)",
			db.Model(&models.CustomerData{}).Select("id").Where("user_id = ?", *q.UserID))
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	var orders []models.Order
	err := query.
		Preload("Items").
		Preload("CustomerData").
		Preload("Delivery").
		Preload("PickupShop").
		Order("created_at DESC").
		Limit(limit).
		Offset(q.Offset).
		Find(&orders).Error
	return orders, total, err
}

// Update changes order fields. When the result would carry both a delivery
// and a pickup shop, the previously stored method is dropped.
func (s *OrderService) Update(ctx context.Context, id uuid.UUID, upd OrderUpdate) (*models.Order, error) {
	var previousStatus string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, "id = ?", id).Error; err != nil {
			return err
		}
		if err := ensureMutable(&order); err != nil {
			return err
		}
		previousStatus = order.Status

		if upd.PaymentType != nil && !validPaymentType(*upd.PaymentType) {
			return fmt.Errorf("%w: %q", ErrInvalidPaymentType, *upd.PaymentType)
		}
		if upd.PickupShopID != nil {
			if err := tx.Select("id").First(&models.Shop{}, "id = ?", *upd.PickupShopID).Error; err != nil {
				return err
			}
		}

		hadDelivery := order.DeliveryID != nil
		pickup := order.PickupShopID
		if upd.PickupShopID != nil {
			pickup = upd.PickupShopID
		}
		delivery := hadDelivery || upd.Delivery != nil
		if pickup != nil && delivery {
			if hadDelivery {
				delivery = false
			} else {
				pickup = nil
			}
		}
		if pickup == nil && !delivery {
			return fmt.Errorf("%w: order %s has neither delivery nor pickup shop", ErrFulfillmentMethod, order.ID)
		}

		statusChanges := upd.Status != nil && *upd.Status != order.Status
		if statusChanges && !CanTransition(order.Status, *upd.Status) {
			return fmt.Errorf("%w: %s to %s", ErrStatusTransition, order.Status, *upd.Status)
		}

		if upd.Comment != nil {
			order.Comment = *upd.Comment
		}
		if upd.PaymentType != nil {
			order.PaymentType = *upd.PaymentType
		}

		var staleDelivery *uuid.UUID
		switch {
		case delivery && hadDelivery && upd.Delivery != nil:
			if err := tx.Model(&models.Delivery{}).Where("id = ?", *order.DeliveryID).
				Updates(map[string]interface{}{"address": upd.Delivery.Address, "comment": upd.Delivery.Comment}).Error; err != nil {
				return err
			}
		case delivery && !hadDelivery:
			created := &models.Delivery{
				Address: upd.Delivery.Address,
				Comment: upd.Delivery.Comment,
				Status:  models.DeliveryStatusWaiting,
			}
			if err := tx.Create(created).Error; err != nil {
				return err
			}
			order.DeliveryID = &created.ID
		case !delivery && hadDelivery:
			staleDelivery = order.DeliveryID
			order.DeliveryID = nil
		}
		order.PickupShopID = pickup

		if statusChanges {
			if err := applyStatus(tx, &order, *upd.Status); err != nil {
				return err
			}
		}

		if err := tx.Omit(clause.Associations).Save(&order).Error; err != nil {
			return err
		}
		if staleDelivery != nil {
			return tx.Delete(&models.Delivery{}, "id = ?", *staleDelivery).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.statusChanged(order, previousStatus)
	return order, nil
}

// Finish closes an order that is not yet terminal.
func (s *OrderService) Finish(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.close(ctx, id, models.OrderStatusFinished)
}

// Cancel cancels an order that is not yet terminal. Stock is returned only
// by deleting lines.
func (s *OrderService) Cancel(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.close(ctx, id, models.OrderStatusCancelled)
}

func (s *OrderService) close(ctx context.Context, id uuid.UUID, status string) (*models.Order, error) {
	var previousStatus string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, "id = ?", id).Error; err != nil {
			return err
		}
		if err := ensureMutable(&order); err != nil {
			return err
		}
		previousStatus = order.Status

		if err := applyStatus(tx, &order, status); err != nil {
			return err
		}
		return tx.Model(&order).Select("status", "finished_at").Updates(&order).Error
	})
	if err != nil {
		return nil, err
	}

	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.statusChanged(order, previousStatus)
	return order, nil
}

// GetDelivery loads a delivery.
func (s *OrderService) GetDelivery(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := s.db.WithContext(ctx).First(&delivery, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

// UpdateDelivery changes the address, comment or status of a delivery.
// Status only moves forward through WA, CO and DE, and reaching DE stamps
// finished_at. Deliveries of terminal orders are refused.
func (s *OrderService) UpdateDelivery(ctx context.Context, id uuid.UUID, upd DeliveryUpdate) (*models.Delivery, error) {
	var delivery models.Delivery
	var previousStatus string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&delivery, "id = ?", id).Error; err != nil {
			return err
		}

		var orders []models.Order
		if err := tx.Select("id", "status").Where("delivery_id = ?", delivery.ID).Limit(1).Find(&orders).Error; err != nil {
			return err
		}
		if len(orders) > 0 {
			if err := ensureMutable(&orders[0]); err != nil {
				return err
			}
		}
		previousStatus = delivery.Status

		if upd.Status != nil && *upd.Status != delivery.Status {
			if !CanMoveDelivery(delivery.Status, *upd.Status) {
				return fmt.Errorf("%w: delivery %s to %s", ErrStatusTransition, delivery.Status, *upd.Status)
			}
			delivery.Status = *upd.Status
			if delivery.Status == models.DeliveryStatusDelivered {
				now := time.Now()
				delivery.FinishedAt = &now
			}
		}
		if upd.Address != nil {
			delivery.Address = *upd.Address
		}
		if upd.Comment != nil {
			delivery.Comment = *upd.Comment
		}
		return tx.Save(&delivery).Error
	})
	if err != nil {
		return nil, err
	}

	if previousStatus != delivery.Status {
		log.Printf("[Order] Delivery %s moved from %s to %s", delivery.ID, previousStatus, delivery.Status)
	}
	return &delivery, nil
}

// applyStatus moves order to status. Finishing stamps finished_at on the
// order and marks its delivery as delivered.
func applyStatus(tx *gorm.DB, order *models.Order, status string) error {
	order.Status = status
	if status != models.OrderStatusFinished {
		return nil
	}

	now := time.Now()
	order.FinishedAt = &now
	if order.DeliveryID == nil {
		return nil
	}
	return tx.Model(&models.Delivery{}).Where("id = ?", *order.DeliveryID).
		Updates(map[string]interface{}{"status": models.DeliveryStatusDelivered, "finished_at": now}).Error
}

func (s *OrderService) statusChanged(order *models.Order, previous string) {
	if previous == "" || previous == order.Status {
		return
	}
	log.Printf("[Order] %s moved from %s to %s", order.ID, previous, order.Status)

	if s.notifier != nil {
		go func(o *models.Order) {
			if err := s.notifier.NotifyStatusChange(o, previous); err != nil {
				log.Printf("[Order] Failed to send status notification for %s: %v", o.ID, err)
			}
		}(order)
	}
}

// AddOrderItem appends a line to a non-terminal order.
func (s *OrderService) AddOrderItem(ctx context.Context, orderID uuid.UUID, line OrderLineInput) (*models.OrderItem, error) {
	var orderItem *models.OrderItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.First(&order, "id = ?", orderID).Error; err != nil {
			return err
		}
		if err := ensureMutable(&order); err != nil {
			return err
		}

		items, err := checkLines(tx, []OrderLineInput{line})
		if err != nil {
			return err
		}
		orderItem, err = s.createLine(tx, &order, items[line.ItemID], line)
		return err
	})
	if err != nil {
		return nil, err
	}
	return orderItem, nil
}

// UpdateOrderItem changes the quantity or price of a line. Only the increase
// over the stored quantity is checked against current stock.
func (s *OrderService) UpdateOrderItem(ctx context.Context, orderItemID uuid.UUID, upd OrderItemUpdate) (*models.OrderItem, error) {
	if upd.Quantity <= 0 {
		return nil, fmt.Errorf("%w: order line quantity %d", ErrInvalidQuantity, upd.Quantity)
	}

	var line models.OrderItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&line, "id = ?", orderItemID).Error; err != nil {
			return err
		}

		var order models.Order
		if err := tx.First(&order, "id = ?", line.OrderID).Error; err != nil {
			return err
		}
		if err := ensureMutable(&order); err != nil {
			return err
		}

		if upd.ItemID != nil && (line.ItemID == nil || *upd.ItemID != *line.ItemID) {
			return fmt.Errorf("%w: line %s", ErrImmutableItem, line.ID)
		}

		increase := upd.Quantity - line.Quantity
		if increase != 0 {
			if line.ItemID == nil {
				return fmt.Errorf("%w: item of line %s was removed from the catalog", ErrImmutableItem, line.ID)
			}

			var item models.Item
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&item, "id = ?", *line.ItemID).Error; err != nil {
				return err
			}
			if increase > item.Quantity {
				return fmt.Errorf("%w: %q has %d in stock, %d more requested", ErrInsufficientStock, item.Name, item.Quantity, increase)
			}
			if _, err := s.ledger.Adjust(tx, item.ID, -increase, models.MovementOrderLineChanged, &order.ID); err != nil {
				return err
			}
		}

		line.Quantity = upd.Quantity
		if upd.Price != nil {
			line.Price = *upd.Price
		}
		return tx.Model(&line).Select("quantity", "price").Updates(&line).Error
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// DeleteOrderItem removes a line and returns its quantity to stock.
func (s *OrderService) DeleteOrderItem(ctx context.Context, orderItemID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var line models.OrderItem
		if err := tx.First(&line, "id = ?", orderItemID).Error; err != nil {
			return err
		}

		var order models.Order
		if err := tx.First(&order, "id = ?", line.OrderID).Error; err != nil {
			return err
		}
		if err := ensureMutable(&order); err != nil {
			return err
		}

		if line.ItemID != nil {
			if _, err := s.ledger.Adjust(tx, *line.ItemID, line.Quantity, models.MovementOrderLineDeleted, &order.ID); err != nil {
				return err
			}
		}
		return tx.Delete(&models.OrderItem{}, "id = ?", line.ID).Error
	})
}
