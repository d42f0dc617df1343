package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"previewd/internal/services"
)

func TestWrapTagsMarkerAndPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := services.Wrap(services.ErrTransient, "frames", "extract", "ffmpeg timed out", cause)

	if !services.IsTransient(err) {
		t.Fatalf("expected transient classification for %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive, got %v", err)
	}
	for _, part := range []string{"frames", "extract", "ffmpeg timed out"} {
		if !strings.Contains(err.Error(), part) {
			t.Fatalf("expected %q in error message %q", part, err.Error())
		}
	}
}

func TestWrapNilMarkerDefaultsToItemProcessing(t *testing.T) {
	err := services.Wrap(nil, "worker", "process", "", nil)
	if !errors.Is(err, services.ErrItemProcessing) {
		t.Fatalf("expected item processing marker, got %v", err)
	}
}

func TestClassificationHelpers(t *testing.T) {
	tests := []struct {
		marker error
		check  func(error) bool
	}{
		{services.ErrValidation, services.IsValidation},
		{services.ErrConflict, services.IsConflict},
		{services.ErrJobFatal, services.IsJobFatal},
		{services.ErrNotFound, services.IsNotFound},
	}
	for _, tc := range tests {
		wrapped := fmt.Errorf("outer: %w", services.Wrap(tc.marker, "jobs", "op", "", nil))
		if !tc.check(wrapped) {
			t.Fatalf("expected classification for marker %v", tc.marker)
		}
		if tc.check(errors.New("plain")) {
			t.Fatalf("unexpected classification of plain error for marker %v", tc.marker)
		}
	}
}
