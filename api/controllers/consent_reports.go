package controllers

import (
	"net/http"
	"time"

	"github.com/consentlab/consent-backend/api/responses"
	"github.com/consentlab/consent-backend/api/validators"
	"github.com/consentlab/consent-backend/internal/consents"
	pkgerrors "github.com/consentlab/consent-backend/pkg/errors"
	"github.com/consentlab/consent-backend/pkg/logger"
)

type consentStatsResponse struct {
	TotalConsents    int64                 `json:"total_consents"`
	ActiveConsents   int64                 `json:"active_consents"`
	InactiveConsents int64                 `json:"inactive_consents"`
	ConsentRate      float64               `json:"consent_rate"`
	ByPurpose        []purposeStatsPayload `json:"by_purpose"`
}

type purposeStatsPayload struct {
	PurposeName string  `json:"purpose_name"`
	Total       int64   `json:"total"`
	Active      int64   `json:"active"`
	Rate        float64 `json:"rate"`
}

// ConsentStats handles the aggregate consent breakdown across all users.
func ConsentStats(svc consents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consent service unavailable"))
			return
		}

		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		byPurpose := make([]purposeStatsPayload, len(stats.ByPurpose))
		for i, row := range stats.ByPurpose {
			byPurpose[i] = purposeStatsPayload{
				PurposeName: row.PurposeName,
				Total:       row.Total,
				Active:      row.Active,
				Rate:        row.Rate,
			}
		}

		responses.WriteSuccess(w, consentStatsResponse{
			TotalConsents:    stats.TotalConsents,
			ActiveConsents:   stats.ActiveConsents,
			InactiveConsents: stats.InactiveConsents,
			ConsentRate:      stats.ConsentRate,
			ByPurpose:        byPurpose,
		})
	}
}

type historyEntryPayload struct {
	Status    bool      `json:"status"`
	IPAddress string    `json:"ip_address"`
	UpdatedAt time.Time `json:"updated_at"`
}

type consentHistoryResponse struct {
	UserID         string                           `json:"user_id"`
	ConsentHistory map[string][]historyEntryPayload `json:"consent_history"`
}

// ConsentHistory handles a user's per-purpose consent timeline, newest first.
func ConsentHistory(svc consents.Service, logg *logger.Logger) http.HandlerFunc {
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

		history, err := svc.History(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payload := make(map[string][]historyEntryPayload, len(history))
		for name, entries := range history {
			rows := make([]historyEntryPayload, len(entries))
			for i, entry := range entries {
				rows[i] = historyEntryPayload{
					Status:    entry.Status,
					IPAddress: entry.IPAddress,
					UpdatedAt: entry.UpdatedAt,
				}
			}
			payload[name] = rows
		}

		responses.WriteSuccess(w, consentHistoryResponse{
			UserID:         userID,
			ConsentHistory: payload,
		})
	}
}

type consentCheckRequest struct {
	UserID     string  `json:"user_id" validate:"required,max=36"`
	PurposeIDs []int64 `json:"purpose_ids" validate:"required,min=1"`
}

type checkResultPayload struct {
	HasConsent  bool       `json:"has_consent"`
	Status      *bool      `json:"status"`
	LastUpdated *time.Time `json:"last_updated"`
}

type consentCheckResponse struct {
	UserID        string                        `json:"user_id"`
	ConsentStatus map[string]checkResultPayload `json:"consent_status"`
}

// ConsentCheck handles point-in-time consent lookups for a set of purposes.
func ConsentCheck(svc consents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "consent service unavailable"))
			return
		}

		var payload consentCheckRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results, err := svc.Check(r.Context(), payload.UserID, payload.PurposeIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := make(map[string]checkResultPayload, len(results))
		for name, result := range results {
			status[name] = checkResultPayload{
				HasConsent:  result.HasConsent,
				Status:      result.Status,
				LastUpdated: result.LastUpdated,
			}
		}

		responses.WriteSuccess(w, consentCheckResponse{
			UserID:        payload.UserID,
			ConsentStatus: status,
		})
	}
}
