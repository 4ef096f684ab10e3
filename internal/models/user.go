package models

// User represents a customer or staff account.
type User struct {
	BaseModel
	Email        string `gorm:"size:256;uniqueIndex;not null" json:"email"`
	FirstName    string `gorm:"size:150" json:"first_name"`
	LastName     string `gorm:"size:150" json:"last_name"`
	PhoneNumber  string `gorm:"size:32" json:"phone_number"`
	PasswordHash string `json:"-"`
	IsActive     bool   `gorm:"not null" json:"is_active"`
	IsStaff      bool   `gorm:"not null" json:"is_staff"`
}
