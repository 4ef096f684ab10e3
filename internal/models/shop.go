package models

// Shop is a pickup point an order can be collected from.
type Shop struct {
	BaseModel
	Name         string  `gorm:"size:256;not null" json:"name"`
	AddressLine  string  `gorm:"type:text" json:"address_line"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	WorkingHours string  `json:"working_hours"`
	ContactPhone string  `json:"contact_phone"`
	IsActive     bool    `gorm:"not null" json:"is_active"`
}
