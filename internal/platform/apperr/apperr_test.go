package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestKindOf_AppError(t *testing.T) {
	if KindOf(NotFound("patient %s not found", "x")) != KindNotFound {
		t.Error("expected KindNotFound")
	}
	if KindOf(Conflict("invoice is already fully paid")) != KindConflict {
		t.Error("expected KindConflict")
	}
	if KindOf(RequiredField("patient_id")) != KindValidation {
		t.Error("expected KindValidation")
	}
}

func TestKindOf_UnknownError(t *testing.T) {
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("expected KindInternal for plain error")
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("dispense: %w", Conflict("insufficient inventory quantity"))
	if !IsConflict(err) {
		t.Error("expected wrapped conflict to classify as conflict")
	}
}

func TestRequiredField_CarriesFieldMap(t *testing.T) {
	var e *Error
	if !errors.As(RequiredField("doctor_id"), &e) {
		t.Fatal("expected *Error")
	}
	if e.Fields["doctor_id"] != "required" {
		t.Errorf("expected field map entry, got %v", e.Fields)
	}
}

func respondWith(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.Nop())(err, c)

	var body ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	return rec, body
}

func TestHTTPErrorHandler_NotFound(t *testing.T) {
	rec, body := respondWith(t, NotFound("patient not found"))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if body.Message != "patient not found" {
		t.Errorf("unexpected message: %q", body.Message)
	}
}

func TestHTTPErrorHandler_Conflict(t *testing.T) {
	rec, body := respondWith(t, Conflict("cannot cancel a paid invoice"))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
	if body.Error != "Business Rule Violation" {
		t.Errorf("unexpected error label: %q", body.Error)
	}
}

func TestHTTPErrorHandler_ValidationFields(t *testing.T) {
	rec, body := respondWith(t, Validation("invalid input", map[string]string{"amount": "must be positive"}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if body.FieldErrors["amount"] != "must be positive" {
		t.Errorf("expected field error, got %v", body.FieldErrors)
	}
}

func TestHTTPErrorHandler_EchoHTTPErrorPassthrough(t *testing.T) {
	rec, _ := respondWith(t, echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header"))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestHTTPErrorHandler_UnknownError(t *testing.T) {
	rec, body := respondWith(t, errors.New("pq: connection reset"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if body.Message != "an unexpected error occurred" {
		t.Errorf("internal detail leaked: %q", body.Message)
	}
}
