package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/verte-zerg/tuiexam/internal/model"
)

func TestStructUsesJSONNames(t *testing.T) {
	err := Struct(model.Attempt{})
	if err == nil {
		t.Fatalf("expected missing attemptId to fail")
	}
	fields := TranslateErrors(err)
	msg, ok := fields["attemptId"]
	if !ok {
		t.Fatalf("expected attemptId field, got %v", fields)
	}
	if !strings.Contains(msg, "required") {
		t.Fatalf("expected English required message, got %q", msg)
	}
	if err := Struct(model.Attempt{ID: "a-1"}); err != nil {
		t.Fatalf("valid attempt rejected: %v", err)
	}
}

func TestTranslateNonValidationError(t *testing.T) {
	fields := TranslateErrors(errors.New("unexpected EOF"))
	if fields["detail"] != "unexpected EOF" {
		t.Fatalf("unexpected fields %v", fields)
	}
}
