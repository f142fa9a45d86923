package embedstore

import (
	"context"
	"errors"

	"github.com/pitabwire/frame/datastore/pool"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("embed config not found")

// Repository provides CRUD operations for embed configurations.
type Repository struct {
	pool pool.Pool
}

// NewRepository creates a new embed config repository.
func NewRepository(pool pool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) db(ctx context.Context, readOnly bool) *gorm.DB {
	return r.pool.DB(ctx, readOnly)
}

// Migrate creates or updates the embed_configs table.
func (r *Repository) Migrate(ctx context.Context) error {
	return r.db(ctx, false).AutoMigrate(&Record{})
}

// Create persists a new record.
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	return r.db(ctx, false).Create(rec).Error
}

// GetByID returns a record by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := r.db(ctx, true).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns every record, newest first.
func (r *Repository) List(ctx context.Context) ([]Record, error) {
	var recs []Record
	err := r.db(ctx, true).Order("created_at DESC").Find(&recs).Error
	return recs, err
}

// ListActiveByTour returns the active configurations for a tour.
func (r *Repository) ListActiveByTour(ctx context.Context, tourID string) ([]Record, error) {
	var recs []Record
	err := r.db(ctx, true).
		Where("tour_id = ? AND is_active = ?", tourID, true).
		Order("created_at DESC").
		Find(&recs).Error
	return recs, err
}

// Update persists changes to a record.
func (r *Repository) Update(ctx context.Context, rec *Record) error {
	return r.db(ctx, false).Save(rec).Error
}

// Delete soft-deletes a record.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res := r.db(ctx, false).Where("id = ?", id).Delete(&Record{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
