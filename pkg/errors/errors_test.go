package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	wrapped := Wrap(CodeDependency, cause, "fetch transaction")

	if wrapped.Code() != CodeDependency {
		t.Fatalf("expected code %s, got %s", CodeDependency, wrapped.Code())
	}
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected wrapped error to unwrap to cause")
	}
}

func TestAsFindsTypedErrorThroughChain(t *testing.T) {
	inner := New(CodeStateConflict, "transition disallowed")
	outer := fmt.Errorf("handling hook: %w", inner)

	typed := As(outer)
	if typed == nil {
		t.Fatalf("expected typed error in chain")
	}
	if typed.Code() != CodeStateConflict {
		t.Fatalf("expected code %s, got %s", CodeStateConflict, typed.Code())
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("NOT_A_REAL_CODE"))
	if meta.HTTPStatus != 500 {
		t.Fatalf("expected 500 fallback, got %d", meta.HTTPStatus)
	}
}

func TestDumpIncludesChain(t *testing.T) {
	cause := errors.New("row not found")
	err := Wrap(CodeNotFound, cause, "load snapshot")

	dump := Dump(err)
	if dump.Code != CodeNotFound {
		t.Fatalf("expected code %s, got %s", CodeNotFound, dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected chain to include cause, got %v", dump.Chain)
	}
}
