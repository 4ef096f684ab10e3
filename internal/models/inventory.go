package models

import "github.com/google/uuid"

const (
	MovementImport           = "import"
	MovementOrderLineCreated = "order_line_created"
	MovementOrderLineChanged = "order_line_changed"
	MovementOrderLineDeleted = "order_line_deleted"
)

// InventoryMovement records one stock adjustment of an item.
type InventoryMovement struct {
	BaseModel
	ItemID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"item_id"`
	Delta         int        `gorm:"not null" json:"delta"`
	QuantityAfter int        `gorm:"not null" json:"quantity_after"`
	Reason        string     `gorm:"size:32;not null" json:"reason"`
	ReferenceID   *uuid.UUID `gorm:"type:uuid;index" json:"reference_id"`
}
