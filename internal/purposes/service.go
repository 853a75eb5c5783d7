package purposes

import (
	"context"
	"errors"
	"fmt"

	"github.com/consentlab/consent-backend/pkg/db/models"
	pkgerrors "github.com/consentlab/consent-backend/pkg/errors"
	"gorm.io/gorm"
)

type purposesRepository interface {
	List(ctx context.Context) ([]models.Purpose, error)
	FindByID(ctx context.Context, id int64) (*models.Purpose, error)
}

// Service exposes read access to the purpose catalogue.
type Service interface {
	ListPurposes(ctx context.Context) ([]models.Purpose, error)
	GetPurpose(ctx context.Context, id int64) (*models.Purpose, error)
}

type service struct {
	repo purposesRepository
}

// NewService builds a purpose service backed by the provided repository.
func NewService(repo purposesRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purpose repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListPurposes(ctx context.Context) ([]models.Purpose, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purposes")
	}
	return rows, nil
}

func (s *service) GetPurpose(ctx context.Context, id int64) (*models.Purpose, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purpose id must be positive")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purpose not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup purpose")
	}
	return row, nil
}
