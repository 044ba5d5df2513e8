package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{"domain error passes through", NewTenantNotFound("acme"), CodeTenantNotFound, http.StatusNotFound},
		{"wrapped domain error", fmt.Errorf("resolve: %w", NewStaffNotFound("jd01")), CodeStaffNotFound, http.StatusNotFound},
		{"no rows becomes not found", pgx.ErrNoRows, CodeNotFound, http.StatusNotFound},
		{"unique violation becomes conflict", &pgconn.PgError{Code: "23505"}, CodeConflict, http.StatusConflict},
		{"unknown becomes internal", errors.New("boom"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			if got.Code != tt.wantCode || got.HTTPStatus != tt.wantStatus {
				t.Errorf("got %s/%d, want %s/%d", got.Code, got.HTTPStatus, tt.wantCode, tt.wantStatus)
			}
		})
	}
	if ToDomainError(nil) != nil {
		t.Error("nil error should map to nil")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NewTooManyAttempts("slow down"))
	if !HasCode(err, CodeTooManyAttempts) {
		t.Error("expected TOO_MANY_ATTEMPTS")
	}
	if HasCode(err, CodeValidation) {
		t.Error("unexpected VALIDATION_FAILED match")
	}
}
