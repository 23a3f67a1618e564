package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(CodeStateConflict, "order already confirmed")
	if err.Code() != CodeStateConflict {
		t.Fatalf("unexpected code %s", err.Code())
	}
	if err.Message() != "order already confirmed" {
		t.Fatalf("unexpected message %s", err.Message())
	}
	if err.Error() != "STATE_CONFLICT: order already confirmed" {
		t.Fatalf("unexpected error string %s", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeDependency, cause, "load loyalty policy")
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsFindsTypedErrorThroughWrapping(t *testing.T) {
	inner := New(CodeNotFound, "customer not found")
	wrapped := fmt.Errorf("upsert customer: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatalf("expected typed error")
	}
	if typed.Code() != CodeNotFound {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("BOGUS"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWithDetailsExposedOnlyWhenAllowed(t *testing.T) {
	err := New(CodeValidation, "discount exceeds subtotal").
		WithDetails(map[string]int{"discount": 5000, "subtotal": 4000})
	if err.Details() == nil {
		t.Fatalf("expected details to round-trip")
	}
	if !MetadataFor(err.Code()).DetailsAllowed {
		t.Fatalf("validation errors should allow details")
	}
}
