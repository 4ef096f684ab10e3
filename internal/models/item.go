package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Item struct {
	BaseModel
	Name        string              `gorm:"size:256;not null" json:"name"`
	Description string              `gorm:"type:text" json:"description"`
	Image       string              `gorm:"size:512" json:"image"`
	CategoryID  uuid.UUID           `gorm:"type:uuid;not null;index" json:"category_id"`
	Category    *Category           `json:"category,omitempty"`
	Price       decimal.Decimal     `gorm:"type:decimal(12,2);not null" json:"price"`
	OldPrice    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"old_price"`
	Length      float64             `json:"length"`
	Width       float64             `json:"width"`
	Height      float64             `json:"height"`
	Weight      float64             `gorm:"index" json:"weight"`
	Quantity    int                 `gorm:"not null" json:"quantity"`
	Properties  []ItemProperty      `json:"properties,omitempty"`
}

// ItemProperty is the attribute slot of an item for one filter bound to its category.
type ItemProperty struct {
	BaseModel
	ItemID   uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_item_property" json:"item_id"`
	FilterID uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_item_property" json:"filter_id"`
	Filter   *Filter              `json:"filter,omitempty"`
	ValueID  *uuid.UUID           `gorm:"type:uuid;index" json:"value_id"`
	Value    *CategoryFilterValue `gorm:"foreignKey:ValueID" json:"value,omitempty"`
}
