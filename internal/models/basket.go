package models

import "github.com/google/uuid"

// Basket belongs to one user, or to nobody for anonymous visitors.
type Basket struct {
	BaseModel
	UserID *uuid.UUID   `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	Items  []ItemBasket `json:"items,omitempty"`
}

// ItemBasket never persists with a zero quantity.
type ItemBasket struct {
	BaseModel
	BasketID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_basket_item" json:"basket_id"`
	ItemID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_basket_item" json:"item_id"`
	Item     *Item     `json:"item,omitempty"`
	Quantity int       `gorm:"not null" json:"quantity"`
}
