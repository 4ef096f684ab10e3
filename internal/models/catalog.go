package models

import "github.com/google/uuid"

// DefaultImage is stored when a category or item is saved without an image.
const DefaultImage = "no-avatar.jpg"

// Category is a node of the catalog tree. Node categories hold only
// subcategories, leaf categories hold only items.
type Category struct {
	BaseModel
	Name             string     `gorm:"size:256;not null" json:"name"`
	Image            string     `gorm:"size:512" json:"image"`
	ParentCategoryID *uuid.UUID `gorm:"type:uuid;index" json:"parent_category_id"`
	Node             bool       `gorm:"not null" json:"node"`
	SubCategories    []Category `gorm:"foreignKey:ParentCategoryID" json:"sub_categories,omitempty"`
}

// Filter is a named attribute definition shared across leaf categories.
type Filter struct {
	BaseModel
	Name string `gorm:"size:256;not null" json:"name"`
	Key  string `gorm:"size:256;not null;uniqueIndex" json:"key"`
}

// CategoryFilter binds a filter to a leaf category.
type CategoryFilter struct {
	BaseModel
	CategoryID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_category_filter" json:"category_id"`
	FilterID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_category_filter" json:"filter_id"`
	Filter     *Filter   `json:"filter,omitempty"`
}

// CategoryFilterValue is one enumerated value of a filter within a category.
type CategoryFilterValue struct {
	BaseModel
	CategoryID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_category_filter_value" json:"category_id"`
	FilterID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_category_filter_value" json:"filter_id"`
	Value      string    `gorm:"size:256;not null;uniqueIndex:idx_category_filter_value" json:"value"`
	Name       string    `gorm:"size:256;not null" json:"name"`
}
