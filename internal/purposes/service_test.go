package purposes

import (
	"context"
	"errors"
	"testing"

	"github.com/consentlab/consent-backend/pkg/db/models"
	pkgerrors "github.com/consentlab/consent-backend/pkg/errors"
	"gorm.io/gorm"
)

type stubPurposesRepo struct {
	rows    []models.Purpose
	listErr error
	byID    map[int64]*models.Purpose
	findErr error
}

func (s *stubPurposesRepo) List(ctx context.Context) ([]models.Purpose, error) {
	return s.rows, s.listErr
}

func (s *stubPurposesRepo) FindByID(ctx context.Context, id int64) (*models.Purpose, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if p, ok := s.byID[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func TestServiceListPurposes(t *testing.T) {
	repo := &stubPurposesRepo{rows: []models.Purpose{
		{ID: 1, Name: "Marketing Communications"},
		{ID: 2, Name: "Analytics"},
	}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	rows, err := svc.ListPurposes(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows got %d", len(rows))
	}
}

func TestServiceListPurposesDependencyFailure(t *testing.T) {
	repo := &stubPurposesRepo{listErr: errors.New("connection refused")}
	svc, _ := NewService(repo)

	_, err := svc.ListPurposes(context.Background())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestServiceGetPurposeNotFound(t *testing.T) {
	svc, _ := NewService(&stubPurposesRepo{})

	_, err := svc.GetPurpose(context.Background(), 42)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServiceGetPurposeRejectsNonPositiveID(t *testing.T) {
	svc, _ := NewService(&stubPurposesRepo{})

	_, err := svc.GetPurpose(context.Background(), 0)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceGetPurposeSuccess(t *testing.T) {
	repo := &stubPurposesRepo{byID: map[int64]*models.Purpose{
		3: {ID: 3, Name: "Personalization", Description: "Tailored content"},
	}}
	svc, _ := NewService(repo)

	row, err := svc.GetPurpose(context.Background(), 3)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if row.Name != "Personalization" {
		t.Fatalf("unexpected row %+v", row)
	}
}
