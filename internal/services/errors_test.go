package services_test

import (
	"errors"
	"strings"
	"testing"

	"ferry/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransferFailure, "import", "copy", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransferFailure) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"import", "copy", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutCause(t *testing.T) {
	err := services.Wrap(services.ErrNoMediaFound, "", "", "", nil)
	if !errors.Is(err, services.ErrNoMediaFound) {
		t.Fatalf("expected marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected default detail, got %q", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	cases := []struct {
		err   error
		fatal bool
	}{
		{nil, false},
		{services.Wrap(services.ErrPermissionApplication, "transfer", "chmod", "", errors.New("eperm")), false},
		{services.Wrap(services.ErrAgentUnreachable, "agent", "status", "", nil), false},
		{services.Wrap(services.ErrInsufficientSpace, "transfer", "preflight", "", nil), true},
		{errors.New("plain"), true},
	}
	for _, tc := range cases {
		if got := services.IsFatal(tc.err); got != tc.fatal {
			t.Fatalf("IsFatal(%v) = %v, want %v", tc.err, got, tc.fatal)
		}
	}
}

func TestKindLabels(t *testing.T) {
	if kind := services.Kind(services.Wrap(services.ErrStorageUnavailable, "roots", "", "", nil)); kind != "storage_unavailable" {
		t.Fatalf("unexpected kind %q", kind)
	}
	if kind := services.Kind(errors.New("x")); kind != "unknown" {
		t.Fatalf("unexpected kind %q", kind)
	}
}
