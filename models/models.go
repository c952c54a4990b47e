package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Name      string         `gorm:"size:255" json:"name"`
	Email     string         `gorm:"size:255;not null;unique" json:"email"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserProfile holds the contact details used to pre-fill the order wizard.
// ID is the owning user's ID; there is at most one profile per user.
type UserProfile struct {
	ID                   string    `gorm:"primaryKey;size:36" json:"id"`
	FullName             *string   `json:"full_name"`
	PhoneNumber          *string   `json:"phone_number"`
	Address              *string   `json:"address"`
	DeliveryInstructions *string   `json:"delivery_instructions"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (UserProfile) TableName() string { return "user_profiles" }

// OrderSubmission is a completed wizard run. Rows are never updated.
type OrderSubmission struct {
	ID                   string                      `gorm:"primaryKey;size:36" json:"id"`
	UserID               string                      `gorm:"size:36;not null;index" json:"user_id"`
	Name                 string                      `gorm:"not null" json:"name"`
	Phone                string                      `gorm:"not null" json:"phone"`
	Address              string                      `gorm:"not null" json:"address"`
	DeliveryInstructions string                      `gorm:"not null" json:"delivery_instructions"`
	TotalCost            float64                     `gorm:"not null" json:"total_cost"`
	Tip                  *float64                    `json:"tip"`
	ImageURLs            datatypes.JSONSlice[string] `gorm:"column:image_urls;not null" json:"image_urls"`
	CreatedAt            time.Time                   `json:"created_at"`
}

func (OrderSubmission) TableName() string { return "form_submissions" }

func (o *OrderSubmission) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}
