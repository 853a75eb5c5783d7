package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/consentlab/consent-backend/api/middleware"
	"github.com/consentlab/consent-backend/internal/consents"
	"github.com/consentlab/consent-backend/pkg/db/models"
	pkgerrors "github.com/consentlab/consent-backend/pkg/errors"
)

type stubConsentService struct {
	listRows  []models.Consent
	listErr   error
	getResult *models.Consent
	getErr    error

	upsertInput  consents.UpsertInput
	upsertResult *models.Consent
	upsertErr    error

	bulkUserID string
	bulkIP     string
	bulkItems  []consents.BulkItem
	bulkRows   []models.Consent
	bulkErr    error

	deleteErr      error
	deletedForUser string
	deleteCount    int64

	stats    *consents.Stats
	statsErr error

	history    map[string][]consents.HistoryEntry
	historyErr error

	checkResults map[string]consents.CheckResult
	checkErr     error
}

func (s *stubConsentService) List(ctx context.Context, userID string, purposeID *int64) ([]models.Consent, error) {
	return s.listRows, s.listErr
}

func (s *stubConsentService) Get(ctx context.Context, id int64) (*models.Consent, error) {
	return s.getResult, s.getErr
}

func (s *stubConsentService) Upsert(ctx context.Context, input consents.UpsertInput) (*models.Consent, error) {
	s.upsertInput = input
	return s.upsertResult, s.upsertErr
}

func (s *stubConsentService) BulkUpsert(ctx context.Context, userID, ipAddress string, items []consents.BulkItem) ([]models.Consent, error) {
	s.bulkUserID = userID
	s.bulkIP = ipAddress
	s.bulkItems = items
	return s.bulkRows, s.bulkErr
}

func (s *stubConsentService) Delete(ctx context.Context, id int64) error {
	return s.deleteErr
}

func (s *stubConsentService) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	s.deletedForUser = userID
	return s.deleteCount, s.deleteErr
}

func (s *stubConsentService) Stats(ctx context.Context) (*consents.Stats, error) {
	return s.stats, s.statsErr
}

func (s *stubConsentService) History(ctx context.Context, userID string) (map[string][]consents.HistoryEntry, error) {
	return s.history, s.historyErr
}

func (s *stubConsentService) Check(ctx context.Context, userID string, purposeIDs []int64) (map[string]consents.CheckResult, error) {
	return s.checkResults, s.checkErr
}

func consentFixture() *models.Consent {
	name := "Marketing Communications"
	return &models.Consent{
		ID:        7,
		UserID:    "user-1",
		PurposeID: 1,
		Status:    true,
		IPAddress: "203.0.113.9",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Purpose:   &models.Purpose{ID: 1, Name: name},
	}
}

func TestConsentListSuccess(t *testing.T) {
	svc := &stubConsentService{listRows: []models.Consent{*consentFixture()}}
	handler := ConsentList(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/consent?user_id=user-1", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var payload []consentResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload) != 1 {
		t.Fatalf("expected 1 row got %d", len(payload))
	}
	if payload[0].PurposeName == nil || *payload[0].PurposeName != "Marketing Communications" {
		t.Fatalf("unexpected purpose name %+v", payload[0].PurposeName)
	}
}

func TestConsentListMissingUserID(t *testing.T) {
	handler := ConsentList(&stubConsentService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/consent", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestConsentGetNotFound(t *testing.T) {
	svc := &stubConsentService{getErr: pkgerrors.New(pkgerrors.CodeNotFound, "consent not found")}

	router := chi.NewRouter()
	router.Get("/api/consent/{consentID}", ConsentGet(svc, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/consent/42", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestConsentGetRejectsNonNumericID(t *testing.T) {
	router := chi.NewRouter()
	router.Get("/api/consent/{consentID}", ConsentGet(&stubConsentService{}, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/consent/abc", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestConsentUpsertSuccess(t *testing.T) {
	svc := &stubConsentService{upsertResult: consentFixture()}
	handler := ConsentUpsert(svc, nil)

	body, _ := json.Marshal(map[string]any{
		"user_id":    "user-1",
		"purpose_id": 1,
		"status":     true,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/consent", bytes.NewReader(body))
	req = req.WithContext(middleware.WithClientIP(req.Context(), "203.0.113.9"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.upsertInput.IPAddress != "203.0.113.9" {
		t.Fatalf("expected client ip forwarded, got %q", svc.upsertInput.IPAddress)
	}
}

func TestConsentUpsertStatusFalseIsPresent(t *testing.T) {
	fixture := consentFixture()
	fixture.Status = false
	svc := &stubConsentService{upsertResult: fixture}
	handler := ConsentUpsert(svc, nil)

	body, _ := json.Marshal(map[string]any{
		"user_id":    "user-1",
		"purpose_id": 1,
		"status":     false,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/consent", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.upsertInput.Status {
		t.Fatal("expected status false to reach the service")
	}
}

func TestConsentUpsertMissingStatus(t *testing.T) {
	handler := ConsentUpsert(&stubConsentService{}, nil)

	body, _ := json.Marshal(map[string]any{
		"user_id":    "user-1",
		"purpose_id": 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/consent", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestConsentBulkUpsertSuccess(t *testing.T) {
	svc := &stubConsentService{bulkRows: []models.Consent{*consentFixture()}}
	handler := ConsentBulkUpsert(svc, nil)

	body, _ := json.Marshal(map[string]any{
		"user_id": "user-1",
		"consents": []map[string]any{
			{"purpose_id": 1, "status": true},
			{"purpose_id": 2, "status": false},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/consent/bulk", bytes.NewReader(body))
	req = req.WithContext(middleware.WithClientIP(req.Context(), "198.51.100.4"))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.bulkIP != "198.51.100.4" {
		t.Fatalf("expected client ip forwarded, got %q", svc.bulkIP)
	}
	if len(svc.bulkItems) != 2 {
		t.Fatalf("expected 2 items forwarded, got %d", len(svc.bulkItems))
	}

	var payload consentBulkResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Message != "Bulk update successful" {
		t.Fatalf("unexpected message %q", payload.Message)
	}
}

func TestConsentBulkUpsertEmptyArray(t *testing.T) {
	handler := ConsentBulkUpsert(&stubConsentService{}, nil)

	body, _ := json.Marshal(map[string]any{
		"user_id":  "user-1",
		"consents": []map[string]any{},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/consent/bulk", bytes.NewReader(body))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestConsentDeleteSuccess(t *testing.T) {
	router := chi.NewRouter()
	router.Delete("/api/consent/{consentID}", ConsentDelete(&stubConsentService{}, nil))

	req := httptest.NewRequest(http.MethodDelete, "/api/consent/7", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var payload messageResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Message != "Consent record deleted successfully" {
		t.Fatalf("unexpected message %q", payload.Message)
	}
}

func TestConsentDeleteNotFound(t *testing.T) {
	svc := &stubConsentService{deleteErr: pkgerrors.New(pkgerrors.CodeNotFound, "consent not found")}
	router := chi.NewRouter()
	router.Delete("/api/consent/{consentID}", ConsentDelete(svc, nil))

	req := httptest.NewRequest(http.MethodDelete, "/api/consent/7", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestConsentDeleteForUserSuccess(t *testing.T) {
	svc := &stubConsentService{deleteCount: 3}
	router := chi.NewRouter()
	router.Delete("/api/consent/user/{userID}", ConsentDeleteForUser(svc, nil))

	req := httptest.NewRequest(http.MethodDelete, "/api/consent/user/user-1", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.deletedForUser != "user-1" {
		t.Fatalf("expected user-1 forwarded, got %q", svc.deletedForUser)
	}

	var payload messageResponse
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Message != "All consent records for user user-1 deleted successfully" {
		t.Fatalf("unexpected message %q", payload.Message)
	}
}
