package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	OrderStatusCreated           = "CRE"
	OrderStatusInProgress        = "INP"
	OrderStatusWaitingForPayment = "WPA"
	OrderStatusPaid              = "PAY"
	OrderStatusWaitingForPickup  = "WFP"
	OrderStatusDelivery          = "DEL"
	OrderStatusFinished          = "FIN"
	OrderStatusCancelled         = "CAN"
)

const (
	PaymentUponReceipt = "UR"
	PaymentTransfer    = "TR"
	PaymentOnline      = "ON"
)

const (
	DeliveryStatusWaiting   = "WA"
	DeliveryStatusCourier   = "CO"
	DeliveryStatusDelivered = "DE"
)

type Organization struct {
	BaseModel
	UserID *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Title  string     `gorm:"size:256;not null" json:"title"`
	INN    string     `gorm:"size:50;not null" json:"inn"`
	KPP    string     `gorm:"size:50;not null" json:"kpp"`
}

type CustomerData struct {
	BaseModel
	UserID      *uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Name        string     `gorm:"size:128;not null" json:"name"`
	PhoneNumber string     `gorm:"size:32" json:"phone_number"`
	Email       string     `gorm:"size:256" json:"email"`
}

type Delivery struct {
	BaseModel
	Address    string     `gorm:"type:text;not null" json:"address"`
	Status     string     `gorm:"size:2;not null" json:"status"`
	FinishedAt *time.Time `json:"finished_at"`
	Comment    string     `gorm:"type:text" json:"comment"`
}

type Order struct {
	BaseModel
	Status         string        `gorm:"size:3;not null;index" json:"status"`
	FinishedAt     *time.Time    `json:"finished_at"`
	CustomerDataID *uuid.UUID    `gorm:"type:uuid;index" json:"customer_data_id"`
	CustomerData   *CustomerData `json:"customer_data,omitempty"`
	Comment        string        `gorm:"type:text" json:"comment"`
	OrganizationID *uuid.UUID    `gorm:"type:uuid" json:"organization_id"`
	Organization   *Organization `json:"organization,omitempty"`
	PickupShopID   *uuid.UUID    `gorm:"type:uuid" json:"pickup_shop_id"`
	PickupShop     *Shop         `json:"pickup_shop,omitempty"`
	PaymentType    string        `gorm:"size:3;not null" json:"payment_type"`
	DeliveryID     *uuid.UUID    `gorm:"type:uuid" json:"delivery_id"`
	Delivery       *Delivery     `json:"delivery,omitempty"`
	Items          []OrderItem   `json:"items,omitempty"`
}

// IsTerminal reports whether the order can no longer change.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusFinished || o.Status == OrderStatusCancelled
}

// OrderItem snapshots an item, its quantity and price at order time.
// ItemID is nulled when the catalog item is deleted.
type OrderItem struct {
	BaseModel
	OrderID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ItemID   *uuid.UUID      `gorm:"type:uuid;index" json:"item_id"`
	Item     *Item           `json:"item,omitempty"`
	ItemName string          `gorm:"size:256" json:"item_name"`
	Quantity int             `gorm:"not null" json:"quantity"`
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
