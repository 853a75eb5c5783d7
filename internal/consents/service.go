package consents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/consentlab/consent-backend/pkg/db"
	"github.com/consentlab/consent-backend/pkg/db/models"
	pkgerrors "github.com/consentlab/consent-backend/pkg/errors"
	"github.com/consentlab/consent-backend/pkg/logger"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type consentsRepository interface {
	List(ctx context.Context, userID string, purposeID *int64) ([]models.Consent, error)
	FindByID(ctx context.Context, id int64) (*models.Consent, error)
	Upsert(ctx context.Context, row *models.Consent) (*models.Consent, error)
	UpsertBatch(ctx context.Context, rows []*models.Consent) ([]models.Consent, error)
	Delete(ctx context.Context, id int64) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	Count(ctx context.Context, status *bool) (int64, error)
	StatsByPurpose(ctx context.Context) ([]purposeStatsRow, error)
	ListByUserNewestFirst(ctx context.Context, userID string) ([]models.Consent, error)
	FindPairs(ctx context.Context, userID string, purposeIDs []int64) ([]models.Consent, error)
}

type purposesRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Purpose, error)
	FindByIDs(ctx context.Context, ids []int64) ([]models.Purpose, error)
}

// Service exposes consent reads, writes, and aggregation semantics.
type Service interface {
	List(ctx context.Context, userID string, purposeID *int64) ([]models.Consent, error)
	Get(ctx context.Context, id int64) (*models.Consent, error)
	Upsert(ctx context.Context, input UpsertInput) (*models.Consent, error)
	BulkUpsert(ctx context.Context, userID, ipAddress string, items []BulkItem) ([]models.Consent, error)
	Delete(ctx context.Context, id int64) error
	DeleteForUser(ctx context.Context, userID string) (int64, error)
	Stats(ctx context.Context) (*Stats, error)
	History(ctx context.Context, userID string) (map[string][]HistoryEntry, error)
	Check(ctx context.Context, userID string, purposeIDs []int64) (map[string]CheckResult, error)
}

type service struct {
	repo     consentsRepository
	purposes purposesRepository
	logg     *logger.Logger
}

// NewService builds a consent service backed by the provided repositories.
func NewService(repo consentsRepository, purposeRepo purposesRepository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("consent repository required")
	}
	if purposeRepo == nil {
		return nil, fmt.Errorf("purpose repository required")
	}
	return &service{repo: repo, purposes: purposeRepo, logg: logg}, nil
}

func (s *service) List(ctx context.Context, userID string, purposeID *int64) ([]models.Consent, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	rows, err := s.repo.List(ctx, userID, purposeID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list consents")
	}
	return rows, nil
}

func (s *service) Get(ctx context.Context, id int64) (*models.Consent, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "consent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup consent")
	}
	return row, nil
}

func (s *service) Upsert(ctx context.Context, input UpsertInput) (*models.Consent, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	if len(input.UserID) > 36 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id must be at most 36 characters")
	}
	if err := s.requirePurpose(ctx, input.PurposeID); err != nil {
		return nil, err
	}

	applied, err := s.repo.Upsert(ctx, &models.Consent{
		UserID:    input.UserID,
		PurposeID: input.PurposeID,
		Status:    input.Status,
		IPAddress: input.IPAddress,
	})
	if err != nil {
		if db.IsUniqueViolation(err, uniqConsentConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "consent already being updated")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert consent")
	}
	return applied, nil
}

func (s *service) BulkUpsert(ctx context.Context, userID, ipAddress string, items []BulkItem) ([]models.Consent, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "consents array is required")
	}

	requested := make([]int64, 0, len(items))
	for _, item := range items {
		if item.PurposeID != nil {
			requested = append(requested, *item.PurposeID)
		}
	}
	known, err := s.purposeSet(ctx, requested)
	if err != nil {
		return nil, err
	}

	// Invalid items are skipped, not reported: a partially valid batch still
	// succeeds with whatever survived the filter.
	var skipped error
	rows := make([]*models.Consent, 0, len(items))
	for i, item := range items {
		switch {
		case item.PurposeID == nil || item.Status == nil:
			skipped = multierr.Append(skipped, fmt.Errorf("item %d: purpose_id and status are required", i))
		case !known[*item.PurposeID]:
			skipped = multierr.Append(skipped, fmt.Errorf("item %d: unknown purpose %d", i, *item.PurposeID))
		default:
			rows = append(rows, &models.Consent{
				UserID:    userID,
				PurposeID: *item.PurposeID,
				Status:    *item.Status,
				IPAddress: ipAddress,
			})
		}
	}

	if skipped != nil && s.logg != nil {
		lctx := s.logg.WithFields(ctx, map[string]any{
			"user_id":       userID,
			"skipped_items": len(multierr.Errors(skipped)),
		})
		s.logg.Warn(lctx, "bulk consent update skipped invalid items: "+skipped.Error())
	}

	if len(rows) == 0 {
		return []models.Consent{}, nil
	}

	applied, err := s.repo.UpsertBatch(ctx, rows)
	if err != nil {
		if db.IsUniqueViolation(err, uniqConsentConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "consent already being updated")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bulk upsert consents")
	}
	return applied, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "consent not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete consent")
	}
	return nil
}

func (s *service) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	count, err := s.repo.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete user consents")
	}
	return count, nil
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.repo.Count(ctx, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count consents")
	}
	granted := true
	active, err := s.repo.Count(ctx, &granted)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count active consents")
	}

	grouped, err := s.repo.StatsByPurpose(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate consents by purpose")
	}

	byPurpose := make([]PurposeStats, len(grouped))
	for i, row := range grouped {
		byPurpose[i] = PurposeStats{
			PurposeName: row.PurposeName,
			Total:       row.Total,
			Active:      row.Active,
			Rate:        rate(row.Active, row.Total),
		}
	}

	return &Stats{
		TotalConsents:    total,
		ActiveConsents:   active,
		InactiveConsents: total - active,
		ConsentRate:      rate(active, total),
		ByPurpose:        byPurpose,
	}, nil
}

func (s *service) History(ctx context.Context, userID string) (map[string][]HistoryEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	rows, err := s.repo.ListByUserNewestFirst(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load consent history")
	}

	history := make(map[string][]HistoryEntry)
	for _, row := range rows {
		name := row.PurposeName()
		if name == "" {
			name = syntheticPurposeName(row.PurposeID)
		}
		history[name] = append(history[name], HistoryEntry{
			Status:    row.Status,
			IPAddress: row.IPAddress,
			UpdatedAt: row.UpdatedAt,
		})
	}
	return history, nil
}

func (s *service) Check(ctx context.Context, userID string, purposeIDs []int64) (map[string]CheckResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required")
	}
	if len(purposeIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purpose_ids array is required")
	}

	known, err := s.purposes.FindByIDs(ctx, purposeIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup purposes")
	}
	namesByID := make(map[int64]string, len(known))
	for _, p := range known {
		namesByID[p.ID] = p.Name
	}

	rows, err := s.repo.FindPairs(ctx, userID, purposeIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup consents")
	}
	consentByPurpose := make(map[int64]models.Consent, len(rows))
	for _, row := range rows {
		consentByPurpose[row.PurposeID] = row
	}

	results := make(map[string]CheckResult, len(purposeIDs))
	for _, id := range purposeIDs {
		name, ok := namesByID[id]
		if !ok {
			name = syntheticPurposeName(id)
		}
		if row, ok := consentByPurpose[id]; ok {
			status := row.Status
			updated := row.UpdatedAt
			results[name] = CheckResult{HasConsent: true, Status: &status, LastUpdated: &updated}
		} else {
			results[name] = CheckResult{HasConsent: false}
		}
	}
	return results, nil
}

func (s *service) requirePurpose(ctx context.Context, purposeID int64) error {
	if purposeID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "purpose_id is required")
	}
	if _, err := s.purposes.FindByID(ctx, purposeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "invalid purpose_id")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup purpose")
	}
	return nil
}

func (s *service) purposeSet(ctx context.Context, ids []int64) (map[int64]bool, error) {
	known := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return known, nil
	}
	rows, err := s.purposes.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup purposes")
	}
	for _, p := range rows {
		known[p.ID] = true
	}
	return known, nil
}

func rate(active, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(active) / float64(total) * 100
}

func syntheticPurposeName(id int64) string {
	return fmt.Sprintf("Purpose %d", id)
}
