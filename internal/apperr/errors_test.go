package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestStorageWrapsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Storage("insert guarantee", cause)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if Kind(err) != "storage" {
		t.Fatalf("unexpected kind %q", Kind(err))
	}
}

func TestStorageKeepsExistingKind(t *testing.T) {
	conflict := fmt.Errorf("%w: already inactive", ErrConflict)
	if err := Storage("update guarantee", conflict); err != conflict {
		t.Fatalf("expected conflict to pass through, got %v", err)
	}
	if Storage("noop", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestKind(t *testing.T) {
	cases := map[error]string{
		nil:                                     "ok",
		fmt.Errorf("%w: x", ErrForbidden):       "forbidden",
		fmt.Errorf("%w: x", ErrValidation):      "validation",
		fmt.Errorf("%w: x", ErrNotFound):        "not_found",
		fmt.Errorf("%w: x", ErrUnauthenticated): "unauthenticated",
		errors.New("boom"):                      "internal",
	}
	for err, want := range cases {
		if got := Kind(err); got != want {
			t.Fatalf("Kind(%v)=%q, want %q", err, got, want)
		}
	}
}
