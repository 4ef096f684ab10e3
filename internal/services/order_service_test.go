package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/eshop/internal/models"
)

func TestCreateOrderFromBasket(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "12.50", 10)
	basket := f.basket()
	_, err := f.baskets.AddItem(f.ctx, basket.ID, x.ID, 2)
	require.NoError(t, err)

	order, err := f.orders.CreateFromBasket(f.ctx, basket.ID, pickupOrder(f.shop().ID))
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCreated, order.Status)
	assert.Equal(t, models.PaymentUponReceipt, order.PaymentType)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "X", order.Items[0].ItemName)
	assert.Equal(t, 2, order.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("12.50").Equal(order.Items[0].Price))
	assert.True(t, decimal.NewFromInt(25).Equal(OrderTotal(order)))
	require.NotNil(t, order.CustomerData)
	assert.Equal(t, "Jane Doe", order.CustomerData.Name)

	assert.Equal(t, 8, f.stock(x.ID))
	assert.Equal(t, int64(0), f.count(&models.ItemBasket{}, "basket_id = ?", basket.ID))

	movements, total, err := f.ledger.Movements(f.ctx, x.ID, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, -2, movements[0].Delta)
	assert.Equal(t, models.MovementOrderLineCreated, movements[0].Reason)
	assert.Equal(t, 8, movements[0].QuantityAfter)

	// Price changes later do not touch the snapshot.
	_, err = f.items.Update(f.ctx, x.ID, ItemInput{Name: "X2", CategoryID: phones.ID, Price: decimal.NewFromInt(99)})
	require.NoError(t, err)
	stored, err := f.orders.Get(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "X", stored.Items[0].ItemName)
	assert.True(t, decimal.RequireFromString("12.50").Equal(stored.Items[0].Price))
}

func TestCreateOrderFromEmptyBasket(t *testing.T) {
	f := newFixture(t)
	basket := f.basket()

	_, err := f.orders.CreateFromBasket(f.ctx, basket.ID, pickupOrder(f.shop().ID))
	assert.ErrorIs(t, err, ErrEmptyBasket)
	assert.Equal(t, int64(0), f.count(&models.Order{}, ""))
}

func TestCreateOrderRequiresExactlyOneFulfillmentMethod(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "1", 10)
	shop := f.shop()
	lines := []OrderLineInput{{ItemID: x.ID, Quantity: 1}}

	neither := OrderInput{Customer: CustomerInput{Name: "Jane"}}
	_, err := f.orders.CreateOrder(f.ctx, neither, lines)
	assert.ErrorIs(t, err, ErrFulfillmentMethod)

	both := pickupOrder(shop.ID)
	both.Delivery = &DeliveryInput{Address: "2 Side street"}
	_, err = f.orders.CreateOrder(f.ctx, both, lines)
	assert.ErrorIs(t, err, ErrFulfillmentMethod)

	badPayment := pickupOrder(shop.ID)
	badPayment.PaymentType = "CASH"
	_, err = f.orders.CreateOrder(f.ctx, badPayment, lines)
	assert.ErrorIs(t, err, ErrInvalidPaymentType)

	delivered := OrderInput{
		Customer:     CustomerInput{Name: "Jane"},
		Delivery:     &DeliveryInput{Address: "2 Side street"},
		Organization: &OrganizationInput{Title: "Acme", INN: "123456789012", KPP: "123456789"},
		PaymentType:  models.PaymentTransfer,
	}
	order, err := f.orders.CreateOrder(f.ctx, delivered, lines)
	require.NoError(t, err)
	require.NotNil(t, order.Delivery)
	assert.Equal(t, models.DeliveryStatusWaiting, order.Delivery.Status)
	require.NotNil(t, order.Organization)
	assert.Equal(t, "Acme", order.Organization.Title)
	assert.Nil(t, order.PickupShopID)

	assert.Equal(t, 9, f.stock(x.ID))
}

func TestCreateOrderWithInsufficientStockWritesNothing(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "1", 5)
	y := f.item(phones.ID, "Y", "1", 1)
	basket := f.basket()
	_, err := f.baskets.AddItem(f.ctx, basket.ID, x.ID, 2)
	require.NoError(t, err)
	_, err = f.baskets.AddItem(f.ctx, basket.ID, y.ID, 2)
	require.NoError(t, err)

	_, err = f.orders.CreateFromBasket(f.ctx, basket.ID, pickupOrder(f.shop().ID))
	assert.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 5, f.stock(x.ID))
	assert.Equal(t, 1, f.stock(y.ID))
	assert.Equal(t, int64(0), f.count(&models.Order{}, ""))
	assert.Equal(t, int64(0), f.count(&models.OrderItem{}, ""))
	assert.Equal(t, int64(0), f.count(&models.CustomerData{}, ""))
	assert.Equal(t, int64(2), f.count(&models.ItemBasket{}, "basket_id = ?", basket.ID))

	// Repeated lines of one item count together.
	lines := []OrderLineInput{{ItemID: x.ID, Quantity: 3}, {ItemID: x.ID, Quantity: 3}}
	_, err = f.orders.CreateOrder(f.ctx, pickupOrder(f.shop().ID), lines)
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 5, f.stock(x.ID))
}

func TestUpdateOrderItemQuantity(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 5)
	order, err := f.orders.CreateOrder(f.ctx, pickupOrder(f.shop().ID), []OrderLineInput{{ItemID: x.ID, Quantity: 2}})
	require.NoError(t, err)
	line := order.Items[0]
	require.Equal(t, 3, f.stock(x.ID))

	_, err = f.orders.UpdateOrderItem(f.ctx, line.ID, OrderItemUpdate{Quantity: 6})
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 3, f.stock(x.ID))
	assert.Equal(t, int64(1), f.count(&models.InventoryMovement{}, "item_id = ? AND reason = ?", x.ID, models.MovementOrderLineCreated))
	assert.Equal(t, int64(0), f.count(&models.InventoryMovement{}, "reason = ?", models.MovementOrderLineChanged))

	updated, err := f.orders.UpdateOrderItem(f.ctx, line.ID, OrderItemUpdate{Quantity: 5})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)
	assert.Equal(t, 0, f.stock(x.ID))

	price := decimal.RequireFromString("7.5")
	updated, err = f.orders.UpdateOrderItem(f.ctx, line.ID, OrderItemUpdate{Quantity: 1, Price: &price})
	require.NoError(t, err)
	assert.True(t, price.Equal(updated.Price))
	assert.Equal(t, 4, f.stock(x.ID))

	_, err = f.orders.UpdateOrderItem(f.ctx, line.ID, OrderItemUpdate{Quantity: 0})
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	other := f.item(phones.ID, "Other", "1", 5)
	_, err = f.orders.UpdateOrderItem(f.ctx, line.ID, OrderItemUpdate{ItemID: &other.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrImmutableItem)
}

func TestOrderLineOfDeletedItem(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 5)
	order, err := f.orders.CreateOrder(f.ctx, pickupOrder(f.shop().ID), []OrderLineInput{{ItemID: x.ID, Quantity: 2}})
	require.NoError(t, err)
	line := order.Items[0]

	require.NoError(t, f.items.Delete(f.ctx, x.ID))

	_, err = f.orders.UpdateOrderItem(f.ctx, line.ID, OrderItemUpdate{Quantity: 3})
	assert.ErrorIs(t, err, ErrImmutableItem)

	require.NoError(t, f.orders.DeleteOrderItem(f.ctx, line.ID))
	assert.Equal(t, int64(0), f.count(&models.OrderItem{}, ""))
}

func TestDeleteOrderItemRestocks(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 5)
	order, err := f.orders.CreateOrder(f.ctx, pickupOrder(f.shop().ID), []OrderLineInput{{ItemID: x.ID, Quantity: 2}})
	require.NoError(t, err)

	added, err := f.orders.AddOrderItem(f.ctx, order.ID, OrderLineInput{ItemID: x.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, f.stock(x.ID))

	require.NoError(t, f.orders.DeleteOrderItem(f.ctx, order.Items[0].ID))
	require.NoError(t, f.orders.DeleteOrderItem(f.ctx, added.ID))
	assert.Equal(t, 5, f.stock(x.ID))
	assert.Equal(t, int64(2), f.count(&models.InventoryMovement{}, "reason = ?", models.MovementOrderLineDeleted))

	_, err = f.orders.AddOrderItem(f.ctx, order.ID, OrderLineInput{ItemID: x.ID, Quantity: 6})
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestTerminalOrdersRejectChanges(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 10)
	shop := f.shop()

	finished, err := f.orders.CreateOrder(f.ctx, pickupOrder(shop.ID), []OrderLineInput{{ItemID: x.ID, Quantity: 1}})
	require.NoError(t, err)
	finished, err = f.orders.Finish(f.ctx, finished.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFinished, finished.Status)
	assert.NotNil(t, finished.FinishedAt)

	comment := "late"
	_, err = f.orders.Update(f.ctx, finished.ID, OrderUpdate{Comment: &comment})
	assert.ErrorIs(t, err, ErrOrderFinished)
	_, err = f.orders.AddOrderItem(f.ctx, finished.ID, OrderLineInput{ItemID: x.ID, Quantity: 1})
	assert.ErrorIs(t, err, ErrOrderFinished)
	_, err = f.orders.UpdateOrderItem(f.ctx, finished.Items[0].ID, OrderItemUpdate{Quantity: 2})
	assert.ErrorIs(t, err, ErrOrderFinished)
	assert.ErrorIs(t, f.orders.DeleteOrderItem(f.ctx, finished.Items[0].ID), ErrOrderFinished)
	_, err = f.orders.Cancel(f.ctx, finished.ID)
	assert.ErrorIs(t, err, ErrOrderFinished)

	cancelled, err := f.orders.CreateOrder(f.ctx, pickupOrder(shop.ID), []OrderLineInput{{ItemID: x.ID, Quantity: 1}})
	require.NoError(t, err)
	cancelled, err = f.orders.Cancel(f.ctx, cancelled.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 8, f.stock(x.ID))

	_, err = f.orders.Update(f.ctx, cancelled.ID, OrderUpdate{Comment: &comment})
	assert.ErrorIs(t, err, ErrOrderCancelled)
	_, err = f.orders.Finish(f.ctx, cancelled.ID)
	assert.ErrorIs(t, err, ErrOrderCancelled)
}

func TestFinishMarksDeliveryDelivered(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 10)
	in := OrderInput{Customer: CustomerInput{Name: "Jane"}, Delivery: &DeliveryInput{Address: "2 Side street"}}
	order, err := f.orders.CreateOrder(f.ctx, in, []OrderLineInput{{ItemID: x.ID, Quantity: 1}})
	require.NoError(t, err)

	order, err = f.orders.Finish(f.ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, order.Delivery)
	assert.Equal(t, models.DeliveryStatusDelivered, order.Delivery.Status)
	assert.NotNil(t, order.Delivery.FinishedAt)
}

func TestUpdateToFinishedMarksDeliveryDelivered(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 10)
	in := OrderInput{Customer: CustomerInput{Name: "Jane"}, Delivery: &DeliveryInput{Address: "2 Side street"}}
	order, err := f.orders.CreateOrder(f.ctx, in, []OrderLineInput{{ItemID: x.ID, Quantity: 1}})
	require.NoError(t, err)

	for _, next := range []string{models.OrderStatusInProgress, models.OrderStatusDelivery, models.OrderStatusFinished} {
		status := next
		order, err = f.orders.Update(f.ctx, order.ID, OrderUpdate{Status: &status})
		require.NoError(t, err)
	}

	assert.NotNil(t, order.FinishedAt)
	require.NotNil(t, order.Delivery)
	assert.Equal(t, models.DeliveryStatusDelivered, order.Delivery.Status)
	assert.NotNil(t, order.Delivery.FinishedAt)
}

func TestDeliveryLifecycle(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 10)
	in := OrderInput{Customer: CustomerInput{Name: "Jane"}, Delivery: &DeliveryInput{Address: "2 Side street"}}
	order, err := f.orders.CreateOrder(f.ctx, in, []OrderLineInput{{ItemID: x.ID, Quantity: 1}})
	require.NoError(t, err)
	deliveryID := *order.DeliveryID

	status := func(s string) *string { return &s }

	delivery, err := f.orders.UpdateDelivery(f.ctx, deliveryID, DeliveryUpdate{Status: status(models.DeliveryStatusCourier)})
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusCourier, delivery.Status)
	assert.Nil(t, delivery.FinishedAt)

	_, err = f.orders.UpdateDelivery(f.ctx, deliveryID, DeliveryUpdate{Status: status(models.DeliveryStatusWaiting)})
	assert.ErrorIs(t, err, ErrStatusTransition)

	address, comment := "3 Other street", "ring twice"
	delivery, err = f.orders.UpdateDelivery(f.ctx, deliveryID, DeliveryUpdate{Address: &address, Comment: &comment})
	require.NoError(t, err)
	assert.Equal(t, address, delivery.Address)
	assert.Equal(t, comment, delivery.Comment)
	assert.Equal(t, models.DeliveryStatusCourier, delivery.Status)

	delivery, err = f.orders.UpdateDelivery(f.ctx, deliveryID, DeliveryUpdate{Status: status(models.DeliveryStatusDelivered)})
	require.NoError(t, err)
	assert.NotNil(t, delivery.FinishedAt)

	_, err = f.orders.UpdateDelivery(f.ctx, deliveryID, DeliveryUpdate{Status: status(models.DeliveryStatusCourier)})
	assert.ErrorIs(t, err, ErrStatusTransition)

	stored, err := f.orders.GetDelivery(f.ctx, deliveryID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryStatusDelivered, stored.Status)
	assert.Equal(t, address, stored.Address)

	_, err = f.orders.UpdateDelivery(f.ctx, uuid.New(), DeliveryUpdate{Comment: &comment})
	assert.Error(t, err)
}

func TestDeliveryOfCancelledOrderIsFrozen(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 10)
	in := OrderInput{Customer: CustomerInput{Name: "Jane"}, Delivery: &DeliveryInput{Address: "2 Side street"}}
	order, err := f.orders.CreateOrder(f.ctx, in, []OrderLineInput{{ItemID: x.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.orders.Cancel(f.ctx, order.ID)
	require.NoError(t, err)

	courier := models.DeliveryStatusCourier
	_, err = f.orders.UpdateDelivery(f.ctx, *order.DeliveryID, DeliveryUpdate{Status: &courier})
	assert.ErrorIs(t, err, ErrOrderCancelled)
}

func TestCanMoveDelivery(t *testing.T) {
	assert.True(t, CanMoveDelivery(models.DeliveryStatusWaiting, models.DeliveryStatusCourier))
	assert.True(t, CanMoveDelivery(models.DeliveryStatusWaiting, models.DeliveryStatusDelivered))
	assert.True(t, CanMoveDelivery(models.DeliveryStatusCourier, models.DeliveryStatusDelivered))
	assert.False(t, CanMoveDelivery(models.DeliveryStatusCourier, models.DeliveryStatusWaiting))
	assert.False(t, CanMoveDelivery(models.DeliveryStatusDelivered, models.DeliveryStatusCourier))
	assert.False(t, CanMoveDelivery(models.DeliveryStatusWaiting, "XX"))
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{models.OrderStatusCreated, models.OrderStatusInProgress, true},
		{models.OrderStatusCreated, models.OrderStatusPaid, false},
		{models.OrderStatusInProgress, models.OrderStatusWaitingForPayment, true},
		{models.OrderStatusWaitingForPayment, models.OrderStatusPaid, true},
		{models.OrderStatusPaid, models.OrderStatusDelivery, true},
		{models.OrderStatusDelivery, models.OrderStatusFinished, true},
		{models.OrderStatusWaitingForPickup, models.OrderStatusFinished, true},
		{models.OrderStatusPaid, models.OrderStatusCreated, false},
		{models.OrderStatusPaid, models.OrderStatusCancelled, true},
		{models.OrderStatusFinished, models.OrderStatusCancelled, false},
		{models.OrderStatusCancelled, models.OrderStatusInProgress, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestUpdateOrderStatusFollowsTransitions(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 10)
	order, err := f.orders.CreateOrder(f.ctx, pickupOrder(f.shop().ID), []OrderLineInput{{ItemID: x.ID, Quantity: 1}})
	require.NoError(t, err)

	status := func(s string) *string { return &s }

	_, err = f.orders.Update(f.ctx, order.ID, OrderUpdate{Status: status(models.OrderStatusFinished)})
	assert.ErrorIs(t, err, ErrStatusTransition)

	for _, next := range []string{models.OrderStatusInProgress, models.OrderStatusWaitingForPickup, models.OrderStatusFinished} {
		order, err = f.orders.Update(f.ctx, order.ID, OrderUpdate{Status: status(next)})
		require.NoError(t, err)
		assert.Equal(t, next, order.Status)
	}
	assert.NotNil(t, order.FinishedAt)
}

func TestUpdateOrderSwitchesFulfillment(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 10)
	shop := f.shop()
	order, err := f.orders.CreateOrder(f.ctx, pickupOrder(shop.ID), []OrderLineInput{{ItemID: x.ID, Quantity: 1}})
	require.NoError(t, err)

	order, err = f.orders.Update(f.ctx, order.ID, OrderUpdate{Delivery: &DeliveryInput{Address: "2 Side street"}})
	require.NoError(t, err)
	require.NotNil(t, order.Delivery)
	assert.Equal(t, "2 Side street", order.Delivery.Address)
	assert.Nil(t, order.PickupShopID)

	order, err = f.orders.Update(f.ctx, order.ID, OrderUpdate{Delivery: &DeliveryInput{Address: "3 Other street"}})
	require.NoError(t, err)
	assert.Equal(t, "3 Other street", order.Delivery.Address)

	order, err = f.orders.Update(f.ctx, order.ID, OrderUpdate{PickupShopID: &shop.ID})
	require.NoError(t, err)
	assert.Nil(t, order.DeliveryID)
	require.NotNil(t, order.PickupShopID)
	assert.Equal(t, shop.ID, *order.PickupShopID)
	assert.Equal(t, int64(0), f.count(&models.Delivery{}, ""))

	missing := uuid.New()
	_, err = f.orders.Update(f.ctx, order.ID, OrderUpdate{PickupShopID: &missing})
	assert.Error(t, err)

	bad := "XX"
	_, err = f.orders.Update(f.ctx, order.ID, OrderUpdate{PaymentType: &bad})
	assert.ErrorIs(t, err, ErrInvalidPaymentType)
}

func TestListOrdersByUser(t *testing.T) {
	f := newFixture(t)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 10)
	shop := f.shop()
	user, _, err := f.accounts.Register(f.ctx, RegisterInput{Email: "buyer@example.com", Password: "secret123"})
	require.NoError(t, err)

	mine := pickupOrder(shop.ID)
	mine.Customer.UserID = &user.ID
	_, err = f.orders.CreateOrder(f.ctx, mine, []OrderLineInput{{ItemID: x.ID, Quantity: 1}})
	require.NoError(t, err)
	_, err = f.orders.CreateOrder(f.ctx, pickupOrder(shop.ID), []OrderLineInput{{ItemID: x.ID, Quantity: 1}})
	require.NoError(t, err)

	orders, total, err := f.orders.List(f.ctx, OrderListQuery{UserID: &user.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orders, 1)
	assert.Equal(t, &user.ID, orders[0].CustomerData.UserID)

	_, total, err = f.orders.List(f.ctx, OrderListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

type recordingNotifier struct {
	created chan uuid.UUID
	changed chan string
}

func (n *recordingNotifier) NotifyNewOrder(order *models.Order) error {
	n.created <- order.ID
	return nil
}

func (n *recordingNotifier) NotifyStatusChange(order *models.Order, previous string) error {
	n.changed <- previous + ">" + order.Status
	return nil
}

func TestOrderNotifications(t *testing.T) {
	f := newFixture(t)
	notifier := &recordingNotifier{created: make(chan uuid.UUID, 1), changed: make(chan string, 1)}
	orders := NewOrderService(f.db, notifier)
	phones := f.leaf("Phones", nil)
	x := f.item(phones.ID, "X", "10", 10)

	order, err := orders.CreateOrder(f.ctx, pickupOrder(f.shop().ID), []OrderLineInput{{ItemID: x.ID, Quantity: 1}})
	require.NoError(t, err)
	assert.Equal(t, order.ID, <-notifier.created)

	_, err = orders.Cancel(f.ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "CRE>CAN", <-notifier.changed)
}
