package controllers

import (
	"net/http"
	"time"

	"github.com/consentlab/consent-backend/api/responses"
	"github.com/consentlab/consent-backend/api/validators"
	"github.com/consentlab/consent-backend/internal/purposes"
	"github.com/consentlab/consent-backend/pkg/db/models"
	pkgerrors "github.com/consentlab/consent-backend/pkg/errors"
	"github.com/consentlab/consent-backend/pkg/logger"
)

type purposeResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func purposeResponseFromModel(m *models.Purpose) purposeResponse {
	return purposeResponse{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

// PurposeList handles listing the full purpose catalogue.
func PurposeList(svc purposes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purpose service unavailable"))
			return
		}

		rows, err := svc.ListPurposes(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := make([]purposeResponse, len(rows))
		for i := range rows {
			payload[i] = purposeResponseFromModel(&rows[i])
		}
		responses.WriteSuccess(w, payload)
	}
}

// PurposeGet handles fetching a single purpose by id.
func PurposeGet(svc purposes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purpose service unavailable"))
			return
		}

		id, err := validators.PathID(r, "purposeID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.GetPurpose(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, purposeResponseFromModel(row))
	}
}
