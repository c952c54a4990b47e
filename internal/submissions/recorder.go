// Package submissions persists completed orders and lists a user's history.
package submissions

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/petermazzocco/go-order-wizard/models"
)

// MinImages is the fewest photos an order may reference.
const MinImages = 2

var (
	ErrMissingUser    = errors.New("submissions: user id is required")
	ErrTooFewImages   = fmt.Errorf("submissions: at least %d image urls are required", MinImages)
	ErrNegativeAmount = errors.New("submissions: amounts must not be negative")
)

type Recorder struct {
	db *gorm.DB
}

func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Create inserts the order. On success the ID and CreatedAt are filled in by
// the database layer.
func (r *Recorder) Create(ctx context.Context, order *models.OrderSubmission) error {
	if order.UserID == "" {
		return ErrMissingUser
	}
	if len(order.ImageURLs) < MinImages {
		return ErrTooFewImages
	}
	if order.TotalCost < 0 || (order.Tip != nil && *order.Tip < 0) {
		return ErrNegativeAmount
	}

	return r.db.WithContext(ctx).Create(order).Error
}

// ListForUser returns the user's orders, newest first.
func (r *Recorder) ListForUser(ctx context.Context, userID string) ([]models.OrderSubmission, error) {
	var orders []models.OrderSubmission
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
