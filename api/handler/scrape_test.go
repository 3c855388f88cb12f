package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/inf-mc/NoteBot-sub001/executor"
	"github.com/inf-mc/NoteBot-sub001/models"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{models.ErrCodeTimeout, http.StatusGatewayTimeout},
		{models.ErrCodeNavigation, http.StatusBadGateway},
		{models.ErrCodeDisconnected, http.StatusBadGateway},
		{models.ErrCodeResourceLimit, http.StatusServiceUnavailable},
		{models.ErrCodeSecurity, http.StatusForbidden},
		{models.ErrCodeInvalidInput, http.StatusBadRequest},
		{models.ErrCodeRateLimited, http.StatusTooManyRequests},
		{models.ErrCodeUnauthorized, http.StatusUnauthorized},
		{models.ErrCodeInternal, http.StatusInternalServerError},
		{models.ErrCodeBrowserCreate, http.StatusInternalServerError},
		{models.ErrCodePoolClosed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		e := &models.Error{Code: tt.code}
		if got := statusFor(e); got != tt.want {
			t.Errorf("statusFor(%s) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestExecOptions(t *testing.T) {
	tests := []struct {
		timeoutS int
		want     executor.Options
	}{
		{0, executor.Options{}},
		{-5, executor.Options{}},
		{30, executor.Options{Timeout: 30 * time.Second}},
		{120, executor.Options{Timeout: 120 * time.Second}},
		{500, executor.Options{Timeout: 120 * time.Second}},
	}
	for _, tt := range tests {
		if got := execOptions(tt.timeoutS); got != tt.want {
			t.Errorf("execOptions(%d) = %+v, want %+v", tt.timeoutS, got, tt.want)
		}
	}
}
