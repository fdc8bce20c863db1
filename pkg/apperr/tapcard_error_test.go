package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("activate: %w", ActivationConflict("AB123"))

	if !errors.Is(err, ErrActivationConflict) {
		t.Fatal("expected wrapped activation conflict to match sentinel")
	}
	if errors.Is(err, ErrDuplicateUsername) {
		t.Fatal("activation conflict must not match duplicate username")
	}
}

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("card"), http.StatusNotFound},
		{"duplicate username", DuplicateUsername("alice"), http.StatusConflict},
		{"timeout", Timeout("profile lookup"), http.StatusGatewayTimeout},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHTTPStatus(tt.err); got != tt.want {
				t.Errorf("GetHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAsAppErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("connection reset")
	appErr := AsAppError(cause)

	if appErr.Code != CodeInternalError {
		t.Errorf("expected code %s, got %s", CodeInternalError, appErr.Code)
	}
	if !errors.Is(appErr, cause) {
		t.Error("expected cause to be preserved")
	}
}
