package consents

import (
	"context"
	"time"

	"github.com/consentlab/consent-backend/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const uniqConsentConstraint = "uniq_consents_user_purpose"

// Repository exposes consent persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a consent repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns a user's consents, optionally narrowed to one purpose.
func (r *Repository) List(ctx context.Context, userID string, purposeID *int64) ([]models.Consent, error) {
	query := r.db.WithContext(ctx).Preload("Purpose").Where("user_id = ?", userID)
	if purposeID != nil {
		query = query.Where("purpose_id = ?", *purposeID)
	}

	var rows []models.Consent
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID returns one consent or gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.Consent, error) {
	var row models.Consent
	if err := r.db.WithContext(ctx).Preload("Purpose").First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert atomically inserts or updates the row keyed by (user_id, purpose_id).
// The ON CONFLICT clause rides on the uniq_consents_user_purpose constraint, so
// concurrent writers for the same pair cannot produce duplicates.
func (r *Repository) Upsert(ctx context.Context, row *models.Consent) (*models.Consent, error) {
	return upsertOne(r.db.WithContext(ctx), row)
}

// UpsertBatch applies the given rows inside one transaction; either every row
// commits or none do.
func (r *Repository) UpsertBatch(ctx context.Context, rows []*models.Consent) ([]models.Consent, error) {
	results := make([]models.Consent, 0, len(rows))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			applied, err := upsertOne(tx, row)
			if err != nil {
				return err
			}
			results = append(results, *applied)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func upsertOne(tx *gorm.DB, row *models.Consent) (*models.Consent, error) {
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "purpose_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":     row.Status,
			"ip_address": row.IPAddress,
			"updated_at": time.Now().UTC(),
		}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}

	// Reload so callers always see the post-write state, including the row id
	// and created_at of a pre-existing pair.
	var applied models.Consent
	err = tx.Preload("Purpose").
		First(&applied, "user_id = ? AND purpose_id = ?", row.UserID, row.PurposeID).Error
	if err != nil {
		return nil, err
	}
	return &applied, nil
}

// Delete removes one consent, reporting gorm.ErrRecordNotFound when absent.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&models.Consent{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteByUser removes every consent for the user and reports how many rows went.
func (r *Repository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Consent{}, "user_id = ?", userID)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// Count returns the number of consents, optionally filtered by status.
func (r *Repository) Count(ctx context.Context, status *bool) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Consent{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

type purposeStatsRow struct {
	PurposeName string `gorm:"column:purpose_name"`
	Total       int64  `gorm:"column:total"`
	Active      int64  `gorm:"column:active"`
}

// StatsByPurpose groups consents by purpose with total and granted counts.
func (r *Repository) StatsByPurpose(ctx context.Context) ([]purposeStatsRow, error) {
	var rows []purposeStatsRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT p.name AS purpose_name,
		       COUNT(c.id) AS total,
		       SUM(CASE WHEN c.status THEN 1 ELSE 0 END) AS active
		FROM consents c
		JOIN purposes p ON p.id = c.purpose_id
		GROUP BY p.id, p.name
		ORDER BY p.id ASC`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByUserNewestFirst returns a user's consents ordered by latest update.
func (r *Repository) ListByUserNewestFirst(ctx context.Context, userID string) ([]models.Consent, error) {
	var rows []models.Consent
	err := r.db.WithContext(ctx).Preload("Purpose").
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindPairs returns the user's consents for the requested purposes.
func (r *Repository) FindPairs(ctx context.Context, userID string, purposeIDs []int64) ([]models.Consent, error) {
	if len(purposeIDs) == 0 {
		return nil, nil
	}
	var rows []models.Consent
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND purpose_id IN ?", userID, purposeIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
