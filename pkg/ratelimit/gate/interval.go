package gate

import (
	"fmt"
	"math"
	"reflect"
	"time"

	gferrors "github.com/vnykmshr/pacegate/pkg/common/errors"
	"github.com/vnykmshr/pacegate/pkg/common/validation"
)

// maxSeconds is the largest whole number of seconds a time.Duration can hold.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// ParseInterval normalizes an interval given as a structured duration
// (time.Duration or a duration string like "1m30s") or as a number of seconds
// (any integer or floating-point kind) into a time.Duration.
// Negative, non-finite, overflowing and unsupported values are rejected with
// a ValidationError.
func ParseInterval(v any) (time.Duration, error) {
	switch x := v.(type) {
	case nil:
		return 0, unsupportedInterval(v)
	case time.Duration:
		return x, validation.ValidateNonNegativeDuration("gate", "interval", x)
	case string:
		d, err := time.ParseDuration(x)
		if err != nil {
			return 0, gferrors.NewValidationError("gate", "interval", x, "not a duration").
				WithHint(`use a Go duration such as "500ms" or a number of seconds`)
		}
		return d, validation.ValidateNonNegativeDuration("gate", "interval", d)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fromSeconds(rv.Int(), v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, tooLarge(v)
		}
		return fromSeconds(int64(u), v)
	case reflect.Float32, reflect.Float64:
		return fromFractionalSeconds(rv.Float(), v)
	default:
		return 0, unsupportedInterval(v)
	}
}

// MustParseInterval is like ParseInterval but panics on error.
// It is meant for package-level variables built from constants.
func MustParseInterval(v any) time.Duration {
	d, err := ParseInterval(v)
	if err != nil {
		panic(err)
	}
	return d
}

func fromSeconds(s int64, original any) (time.Duration, error) {
	if err := validation.ValidateNonNegative("gate", "interval", float64(s)); err != nil {
		return 0, err
	}
	if s > maxSeconds {
		return 0, tooLarge(original)
	}
	return time.Duration(s) * time.Second, nil
}

func fromFractionalSeconds(f float64, original any) (time.Duration, error) {
	if err := validation.ValidateNonNegative("gate", "interval", f); err != nil {
		return 0, err
	}
	ns := math.Round(f * float64(time.Second))
	if ns >= math.MaxInt64 {
		return 0, tooLarge(original)
	}
	return time.Duration(ns), nil
}

func unsupportedInterval(v any) error {
	return gferrors.NewValidationError("gate", "interval", v, fmt.Sprintf("unsupported type %T", v)).
		WithHint("use a time.Duration, a duration string or a number of seconds")
}

func tooLarge(v any) error {
	return gferrors.NewValidationError("gate", "interval", v, "exceeds the maximum duration").
		WithHint("intervals are limited to about 292 years")
}
