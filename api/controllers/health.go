package controllers

import (
	"net/http"
	"time"

	"github.com/consentlab/consent-backend/api/responses"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health reports service liveness.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, healthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC(),
		})
	}
}
