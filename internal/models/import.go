package models

import "github.com/google/uuid"

// Import is an append-only stock delivery record.
type Import struct {
	BaseModel
	Name  string       `gorm:"size:256;not null" json:"name"`
	Items []ImportItem `json:"items,omitempty"`
}

// Quantity sums the quantities of loaded import lines.
func (i *Import) Quantity() int {
	total := 0
	for _, line := range i.Items {
		total += line.Quantity
	}
	return total
}

type ImportItem struct {
	BaseModel
	ImportID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_import_item" json:"import_id"`
	ItemID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_import_item" json:"item_id"`
	Item     *Item     `json:"item,omitempty"`
	Quantity int       `gorm:"not null" json:"quantity"`
}
