// Package profiles reads and writes the per-user contact profile used to
// pre-fill the order wizard.
package profiles

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/petermazzocco/go-order-wizard/models"
)

var ErrMissingUser = errors.New("profiles: user id is required")

// Fields is a partial profile. Nil fields are left untouched on an existing
// row and stored as NULL on a new one.
type Fields struct {
	FullName             *string
	PhoneNumber          *string
	Address              *string
	DeliveryInstructions *string
}

// FieldsFrom includes only the non-blank values.
func FieldsFrom(fullName, phone, address, instructions string) Fields {
	return Fields{
		FullName:             nonBlank(fullName),
		PhoneNumber:          nonBlank(phone),
		Address:              nonBlank(address),
		DeliveryInstructions: nonBlank(instructions),
	}
}

func nonBlank(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Load returns the user's profile. found is false when none exists yet.
func (s *Store) Load(ctx context.Context, userID string) (*models.UserProfile, bool, error) {
	var profile models.UserProfile
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &profile, true, nil
}

// Save upserts the profile keyed by userID, writing only the supplied fields
// plus updated_at, and returns the stored row.
func (s *Store) Save(ctx context.Context, userID string, f Fields) (*models.UserProfile, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	now := s.now().UTC()
	row := models.UserProfile{
		ID:                   userID,
		FullName:             f.FullName,
		PhoneNumber:          f.PhoneNumber,
		Address:              f.Address,
		DeliveryInstructions: f.DeliveryInstructions,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	columns := []string{"updated_at"}
	if f.FullName != nil {
		columns = append(columns, "full_name")
	}
	if f.PhoneNumber != nil {
		columns = append(columns, "phone_number")
	}
	if f.Address != nil {
		columns = append(columns, "address")
	}
	if f.DeliveryInstructions != nil {
		columns = append(columns, "delivery_instructions")
	}

	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&row).Error; err != nil {
		return nil, err
	}

	var stored models.UserProfile
	if err := db.Where("id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}
