package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestUnknownCRSError(t *testing.T) {
	err := &UnknownCRSError{Code: "EPSG:999999"}

	if !strings.Contains(err.Error(), "EPSG:999999") {
		t.Errorf("Error() = %q, should contain the code", err.Error())
	}
	if !errors.Is(err, ErrUnknownCRS) {
		t.Error("UnknownCRSError should unwrap to ErrUnknownCRS")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("UnknownCRSError should unwrap to ErrNotFound")
	}
}

func TestTransformationError(t *testing.T) {
	err := NewTransformationError("EPSG:4326", "EPSG:25832")
	if err.HasErrors() {
		t.Fatal("new error should not have errors")
	}

	err.SetPointError(3, "outside domain")
	err.SetPointError(1, "first")
	err.SetPointError(3, "overwritten")

	if got := err.Errors[3]; got != "outside domain" {
		t.Errorf("Errors[3] = %q, want first cause to win", got)
	}

	got := err.FailedIndexes()
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("FailedIndexes() = %v, want [1 3]", got)
	}
	if !strings.Contains(err.Error(), "2 point(s) failed") {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, ErrInvalidCoordinate) {
		t.Error("TransformationError without cause should unwrap to ErrInvalidCoordinate")
	}

	var te *TransformationError
	if !errors.As(error(err), &te) {
		t.Error("errors.As should find *TransformationError")
	}
}

func TestTransformationErrorMerge(t *testing.T) {
	a := NewTransformationError("a", "b")
	a.SetPointError(0, "a0")

	b := NewTransformationError("a", "b")
	b.SetPointError(0, "b0")
	b.SetPointError(2, "b2")
	b.Err = ErrOutOfDomain

	a.Merge(b)

	if a.Errors[0] != "a0" {
		t.Errorf("Errors[0] = %q, want a0", a.Errors[0])
	}
	if a.Errors[2] != "b2" {
		t.Errorf("Errors[2] = %q, want b2", a.Errors[2])
	}
	if !errors.Is(a, ErrOutOfDomain) {
		t.Error("merged error should unwrap to the merged cause")
	}
}

func TestStorageError(t *testing.T) {
	tests := []struct {
		name string
		err  *StorageError
	}{
		{
			name: "with key",
			err: &StorageError{
				Operation: "download",
				Key:       "points.csv",
				Err:       errors.New("network error"),
			},
		},
		{
			name: "without key",
			err: &StorageError{
				Operation: "list",
				Err:       errors.New("access denied"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() == "" {
				t.Error("Error() should not return empty string")
			}
			if !errors.Is(tt.err, tt.err.Err) {
				t.Error("Unwrap should return the underlying error")
			}
		})
	}
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "engine.target", Message: "required"}

	if err.Error() == "" {
		t.Error("Error() should not return empty string")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("ConfigError should unwrap to ErrInvalidInput")
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		parent error
	}{
		{"ErrUnknownCRS", ErrUnknownCRS, ErrNotFound},
		{"ErrNoTransformation", ErrNoTransformation, ErrNotFound},
		{"ErrMissingCode", ErrMissingCode, ErrInvalidInput},
		{"ErrInvalidAxisCount", ErrInvalidAxisCount, ErrInvalidInput},
		{"ErrUnsupportedUnderlying", ErrUnsupportedUnderlying, ErrUnsupported},
		{"ErrNonAffineMatrix", ErrNonAffineMatrix, ErrInvalidInput},
		{"ErrOutOfDomain", ErrOutOfDomain, ErrInvalidInput},
		{"ErrNotReady", ErrNotReady, ErrUnavailable},
		{"ErrStorageUnavailable", ErrStorageUnavailable, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.parent) {
				t.Errorf("%s should wrap %v", tt.name, tt.parent)
			}
		})
	}
}
