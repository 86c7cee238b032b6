package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dosada05/tournament-settlement/models"
	"github.com/Dosada05/tournament-settlement/services"
	"github.com/Dosada05/tournament-settlement/storage"
)

func TestMapServiceErrorToHTTP(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		status   int
		wantCode string
	}{
		{"not found", fmt.Errorf("load: %w", services.ErrNotFound), http.StatusNotFound, ""},
		{"forbidden", services.ErrForbiddenOperation, http.StatusForbidden, ""},
		{"validation", &services.ValidationError{Fields: map[string]string{"reason": "is required"}}, http.StatusUnprocessableEntity, ""},
		{"missing fields", &services.MissingFieldsError{Missing: []string{"refundPlan"}, Assessment: &models.RiskAssessment{Level: models.RiskHigh}}, http.StatusUnprocessableEntity, "missing_required_fields"},
		{"already paid", fmt.Errorf("tournament 1: %w", services.ErrAlreadyPaid), http.StatusConflict, "already_processed"},
		{"already confirmed", &services.TransitionError{Entity: "registration", ID: 1, Current: "confirmed", Target: "confirmed", Err: services.ErrAlreadyProcessed}, http.StatusConflict, "already_processed"},
		{"invalid transition", &services.TransitionError{Entity: "registration", ID: 1, Current: "rejected", Target: "confirmed", Err: services.ErrInvalidTransition}, http.StatusConflict, "invalid_transition"},
		{"frozen", services.ErrPayoutsFrozen, http.StatusConflict, ""},
		{"settled", services.ErrLedgerSettled, http.StatusConflict, ""},
		{"bad image", fmt.Errorf("%w: %q", storage.ErrUnsupportedContentType, "text/plain"), http.StatusUnsupportedMediaType, ""},
		{"unexpected", errors.New("connection reset"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/x", nil)
			mapServiceErrorToHTTP(w, r, tt.err)

			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] == nil {
				t.Fatalf("expected an error field, got %v", body)
			}
			if tt.wantCode != "" && body["code"] != tt.wantCode {
				t.Fatalf("expected code %q, got %v", tt.wantCode, body["code"])
			}
		})
	}
}

func TestReadJSONRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x","extra":1}`))
	var dst reasonInput
	err := readJSON(httptest.NewRecorder(), r, &dst)
	if err == nil || !strings.Contains(err.Error(), "unknown key") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestParseInstallmentFilter(t *testing.T) {
	cases := map[string]models.InstallmentFilter{
		"1":   models.FilterInstallment1,
		"2":   models.FilterInstallment2,
		"all": models.FilterAll,
		"":    "",
	}
	for raw, want := range cases {
		if got := parseInstallmentFilter(raw); got != want {
			t.Fatalf("parseInstallmentFilter(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://app.example.com"})
	r := httptest.NewRequest(http.MethodGet, "/ws/users/me", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	if check(r) {
		t.Fatal("foreign origin must be refused")
	}
	r.Header.Set("Origin", "https://app.example.com")
	if !check(r) {
		t.Fatal("configured origin must be accepted")
	}
	if !originChecker([]string{"*"})(r) {
		t.Fatal("wildcard must accept any origin")
	}
}
