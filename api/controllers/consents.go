package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/consentlab/consent-backend/api/middleware"
	"github.com/consentlab/consent-backend/api/responses"
	"github.com/consentlab/consent-backend/api/validators"
	"github.com/consentlab/consent-backend/internal/consents"
	"github.com/consentlab/consent-backend/pkg/db/models"
	pkgerrors "github.com/consentlab/consent-backend/pkg/errors"
	"github.com/consentlab/consent-backend/pkg/logger"
)

type consentResponse struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	PurposeID   int64     `json:"purpose_id"`
	PurposeName *string   `json:"purpose_name"`
	Status      bool      `json:"status"`
	IPAddress   string    `json:"ip_address"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func consentResponseFromModel(m *models.Consent) consentResponse {
	resp := consentResponse{
		ID:        m.ID,
		UserID:    m.UserID,
		PurposeID: m.PurposeID,
		Status:    m.Status,
		IPAddress: m.IPAddress,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if name := m.PurposeName(); name != "" {
		resp.PurposeName = &name
	}
	return resp
}

func consentResponsesFromModels(rows []models.Consent) []consentResponse {
	payload := make([]consentResponse, len(rows))
	for i := range rows {
		payload[i] = consentResponseFromModel(&rows[i])
	}
	return payload
}

// ConsentList handles listing a user's consents, optionally filtered by purpose.
func ConsentList(svc consents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consent service unavailable"))
			return
		}

		userID, err := validators.RequireQueryString(r, "user_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		purposeID, err := validators.OptionalQueryInt64(r, "purpose_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), userID, purposeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, consentResponsesFromModels(rows))
	}
}

// ConsentGet handles fetching a single consent record by id.
func ConsentGet(svc consents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consent service unavailable"))
			return
		}

		id, err := validators.PathID(r, "consentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, consentResponseFromModel(row))
	}
}

type consentUpsertRequest struct {
	UserID    string `json:"user_id" validate:"required,max=36"`
	PurposeID *int64 `json:"purpose_id" validate:"required"`
	Status    *bool  `json:"status" validate:"required"`
}

// ConsentUpsert handles recording a single consent decision. The same endpoint
// creates the record on first write and updates it afterwards.
func ConsentUpsert(svc consents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consent service unavailable"))
			return
		}

		var payload consentUpsertRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		applied, err := svc.Upsert(r.Context(), consents.UpsertInput{
			UserID:    payload.UserID,
			PurposeID: *payload.PurposeID,
			Status:    *payload.Status,
			IPAddress: middleware.ClientIPFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, consentResponseFromModel(applied))
	}
}

type consentBulkItem struct {
	PurposeID *int64 `json:"purpose_id"`
	Status    *bool  `json:"status"`
}

type consentBulkRequest struct {
	UserID   string            `json:"user_id" validate:"required,max=36"`
	Consents []consentBulkItem `json:"consents" validate:"required,min=1"`
}

type consentBulkResponse struct {
	Message  string            `json:"message"`
	Consents []consentResponse `json:"consents"`
}

// ConsentBulkUpsert handles applying several consent decisions for one user in
// a single call.
func ConsentBulkUpsert(svc consents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consent service unavailable"))
			return
		}

		var payload consentBulkRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]consents.BulkItem, len(payload.Consents))
		for i, item := range payload.Consents {
			items[i] = consents.BulkItem{PurposeID: item.PurposeID, Status: item.Status}
		}

		applied, err := svc.BulkUpsert(r.Context(), payload.UserID, middleware.ClientIPFromContext(r.Context()), items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, consentBulkResponse{
			Message:  "Bulk update successful",
			Consents: consentResponsesFromModels(applied),
		})
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

// ConsentDelete handles removing a single consent record.
func ConsentDelete(svc consents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consent service unavailable"))
			return
		}

		id, err := validators.PathID(r, "consentID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, messageResponse{Message: "Consent record deleted successfully"})
	}
}

// ConsentDeleteForUser handles erasing every consent record held for a user.
func ConsentDeleteForUser(svc consents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consent service unavailable"))
			return
		}

		userID := validators.PathString(r, "userID")
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user_id is required"))
			return
		}

		if _, err := svc.DeleteForUser(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, messageResponse{
			Message: fmt.Sprintf("All consent records for user %s deleted successfully", userID),
		})
	}
}
