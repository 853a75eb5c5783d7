package purposes

import (
	"context"

	"github.com/consentlab/consent-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes purpose catalogue reads.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a purpose repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns all purposes in insertion order.
func (r *Repository) List(ctx context.Context) ([]models.Purpose, error) {
	var rows []models.Purpose
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID returns one purpose or gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Purpose, error) {
	var row models.Purpose
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByIDs returns the purposes matching the given ids; missing ids are simply absent.
func (r *Repository) FindByIDs(ctx context.Context, ids []int64) ([]models.Purpose, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Purpose
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
