package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("root")
	err := ErrInput(CodeReadFailed, "reading dump.json").WithCause(cause)

	if err.Unwrap() != cause {
		t.Fatalf("expected cause to be unwrapped")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to match cause")
	}
	if got := err.Error(); got != "reading dump.json: root" {
		t.Fatalf("unexpected message %q", got)
	}

	match := &DomainError{Category: ErrCatInput, Code: CodeReadFailed}
	if !errors.Is(err, match) {
		t.Fatalf("expected errors.Is to match category and code")
	}
	other := &DomainError{Category: ErrCatInput, Code: CodeMalformedDump}
	if errors.Is(err, other) {
		t.Fatalf("expected different code not to match")
	}
}

func TestDomainError_MessageWithoutCause(t *testing.T) {
	err := ErrRender(CodeRenderFailed, "unsupported diagram format")
	if err.Error() != "unsupported diagram format" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := ErrRender(CodeWriteFailed, "msg")
	err.WithDetail("path", "/tmp/out.mmd")
	if err.Details == nil || err.Details["path"] != "/tmp/out.mmd" {
		t.Fatalf("expected details to be set")
	}
}

func TestGetCategory(t *testing.T) {
	if GetCategory(ErrInput(CodeEmptyInput, "m")) != ErrCatInput {
		t.Fatalf("expected input category")
	}
	if GetCategory(ErrRender(CodeWriteFailed, "m")) != ErrCatRender {
		t.Fatalf("expected render category")
	}
	if GetCategory(errors.New("plain")) != ErrCatInternal {
		t.Fatalf("expected internal category for non-domain error")
	}
	wrapped := fmt.Errorf("loading: %w", ErrInput(CodeMalformedDump, "m"))
	if !IsCategory(wrapped, ErrCatInput) {
		t.Fatalf("expected category to survive wrapping")
	}
}

func TestGetCode(t *testing.T) {
	if GetCode(ErrInternal(CodePanic, "m")) != CodePanic {
		t.Fatalf("expected PANIC code")
	}
	if GetCode(errors.New("plain")) != "" {
		t.Fatalf("expected empty code for non-domain error")
	}
}
