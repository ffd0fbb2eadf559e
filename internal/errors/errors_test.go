package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
)

func TestTetherError_Error(t *testing.T) {
	err := &TetherError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "connection not found",
	}

	expected := "NOT_FOUND: connection not found"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("intentionText is required")

	if err.Code != ErrValidation {
		t.Errorf("Code = %q, want %q", err.Code, ErrValidation)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "intentionText is required" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("01HX")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["id"] != "01HX" {
		t.Errorf("Details[id] = %v, want %q", err.Details["id"], "01HX")
	}
}

func TestNewPrecondition(t *testing.T) {
	err := NewPrecondition("poster", "no poster prompt; run analyze first")

	if err.Code != ErrPrecondition {
		t.Errorf("Code = %q, want %q", err.Code, ErrPrecondition)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Details["stage"] != "poster" {
		t.Errorf("Details[stage] = %v", err.Details["stage"])
	}
}

func TestNewEnrichment(t *testing.T) {
	cause := context.DeadlineExceeded
	err := NewEnrichment("analyze", "transcribe", cause)

	if err.Code != ErrEnrichment {
		t.Errorf("Code = %q, want %q", err.Code, ErrEnrichment)
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
	if err.Details["step"] != "transcribe" {
		t.Errorf("Details[step] = %v", err.Details["step"])
	}
	if err.Details["retriable"] != true {
		t.Errorf("Details[retriable] = %v, want true", err.Details["retriable"])
	}
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Error("expected enrichment error to unwrap to its cause")
	}
}

func TestNewEnrichment_NilCause(t *testing.T) {
	err := NewEnrichment("poster", "generate_image", nil)
	if err.Message != "poster failed at generate_image" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewStorage(t *testing.T) {
	err := NewStorage(fmt.Errorf("constraint violated"))

	if err.Code != ErrStorage {
		t.Errorf("Code = %q, want %q", err.Code, ErrStorage)
	}
	if err.Message != "constraint violated" {
		t.Errorf("Message = %q", err.Message)
	}
}

func TestNewInternal_NilError(t *testing.T) {
	err := NewInternal(nil)
	if err.Message != "internal error" {
		t.Errorf("Message = %q, want %q", err.Message, "internal error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{"matching code", NewNotFound("x"), ErrNotFound, true},
		{"different code", NewNotFound("x"), ErrValidation, false},
		{"wrapped", fmt.Errorf("get: %w", NewNotFound("x")), ErrNotFound, true},
		{"plain error", stderrors.New("boom"), ErrInternal, false},
		{"nil", nil, ErrInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	orig := NewPrecondition("analyze", "no audio to analyze")
	if got := As(fmt.Errorf("wrap: %w", orig)); got != orig {
		t.Errorf("As() = %v, want original error", got)
	}

	got := As(stderrors.New("boom"))
	if got.Code != ErrInternal {
		t.Errorf("As(plain).Code = %q, want %q", got.Code, ErrInternal)
	}
}
