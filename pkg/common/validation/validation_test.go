package validation

import (
	"errors"
	"math"
	"testing"
	"time"

	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
)

func TestValidatePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"positive value", 10, false},
		{"positive value 1", 1, false},
		{"zero value", 0, true},
		{"negative value", -1, true},
		{"large negative", -1000000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositive("test", "count", tt.value)
			checkResult(t, err, tt.wantError)
		})
	}
}

func TestValidateNonNegative(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		wantError bool
	}{
		{"positive value", 10.5, false},
		{"zero value", 0.0, false},
		{"negative value", -1.5, true},
		{"small negative", -0.001, true},
		{"NaN", math.NaN(), true},
		{"positive infinity", math.Inf(1), true},
		{"negative infinity", math.Inf(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonNegative("test", "interval", tt.value)
			checkResult(t, err, tt.wantError)
		})
	}
}

func TestValidateNonNegativeDuration(t *testing.T) {
	tests := []struct {
		name      string
		value     time.Duration
		wantError bool
	}{
		{"zero", 0, false},
		{"positive", 500 * time.Millisecond, false},
		{"negative", -time.Nanosecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonNegativeDuration("test", "interval", tt.value)
			checkResult(t, err, tt.wantError)
		})
	}
}

func TestValidateNotNil(t *testing.T) {
	checkResult(t, ValidateNotNil("test", "gate", nil), true)
	checkResult(t, ValidateNotNil("test", "gate", struct{}{}), false)
}

func TestValidateNotEmpty(t *testing.T) {
	checkResult(t, ValidateNotEmpty("test", "id", ""), true)
	checkResult(t, ValidateNotEmpty("test", "id", "job-1"), false)
}

func TestErrorMessageContainsModuleAndField(t *testing.T) {
	err := ValidatePositive("gate", "concurrency", 0)

	var verr *gferrors.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Module != "gate" || verr.Field != "concurrency" {
		t.Errorf("got module=%q field=%q", verr.Module, verr.Field)
	}
	if verr.Hint == "" {
		t.Error("expected a hint")
	}
}

func checkResult(t *testing.T, err error, wantError bool) {
	t.Helper()
	if !wantError {
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		return
	}
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !gferrors.IsValidationError(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}
	if !errors.Is(err, gferrors.ErrInvalidArgument) {
		t.Error("expected error to wrap ErrInvalidArgument")
	}
}
