package errors_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	. "codejudge/pkg/errors"
)

func TestErrorCode_Message(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want string
	}{
		{Success, "Success"},
		{InvalidParams, "Invalid parameters"},
		{DatabaseError, "Database operation failed"},
		{JudgeQueueFull, "Judge queue is full, please try again later"},
		{ErrorCode(99999), "Unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code       ErrorCode
		wantStatus int
	}{
		{Success, 200},
		{InvalidParams, 400},
		{ValidationFailed, 400},
		{LanguageNotSupported, 400},
		{CodeTooLarge, 400},
		{QuestionNotFound, 404},
		{JudgeQueueFull, 429},
		{QuestionSourceDown, 503},
		{Timeout, 504},
		{JudgeSystemError, 500},
		{InternalServerError, 500},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.wantStatus)
			}
		})
	}
}

func TestNew(t *testing.T) {
	err := New(QuestionNotFound)
	if err.Code != QuestionNotFound {
		t.Errorf("Code = %v, want %v", err.Code, QuestionNotFound)
	}
	if err.Error() != QuestionNotFound.Message() {
		t.Errorf("Error() = %v, want %v", err.Error(), QuestionNotFound.Message())
	}
	if !strings.Contains(err.Stack, "TestNew") {
		t.Errorf("stack should start at the caller, got %q", err.Stack)
	}
}

func TestNewf(t *testing.T) {
	err := Newf(QuestionNotFound, "question %s not found", "sum-two")
	if want := "question sum-two not found"; err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("connection refused")
	wrappedErr := Wrap(originalErr, DatabaseError)

	if wrappedErr.Code != DatabaseError {
		t.Errorf("Code = %v, want %v", wrappedErr.Code, DatabaseError)
	}
	if wrappedErr.Unwrap() != originalErr {
		t.Error("Unwrap() should return original error")
	}
	if Wrap(nil, DatabaseError) != nil {
		t.Error("Wrap(nil) should return nil")
	}

	rewrapped := Wrap(New(CacheError), QuestionSourceDown)
	if rewrapped.Code != QuestionSourceDown {
		t.Errorf("Code = %v, want %v", rewrapped.Code, QuestionSourceDown)
	}
}

func TestWrapf(t *testing.T) {
	cause := errors.New("dial unix /var/run/docker.sock: connect: no such file or directory")
	err := Wrapf(cause, SandboxStartError, "start %s failed", "judge-1")
	if err.Error() != "start judge-1 failed" {
		t.Errorf("Error() = %v", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
	if Wrapf(nil, SandboxStartError, "x") != nil {
		t.Error("Wrapf(nil) should return nil")
	}
}

func TestError_WithDetail(t *testing.T) {
	err := ValidationError("language", "required")
	if err.Code != ValidationFailed {
		t.Errorf("Code = %v, want %v", err.Code, ValidationFailed)
	}
	if err.Details["field"] != "language" || err.Details["reason"] != "required" {
		t.Errorf("unexpected details: %v", err.Details)
	}

	unsupported := Unsupported("cobol")
	if unsupported.Code != LanguageNotSupported || unsupported.Details["language"] != "cobol" {
		t.Errorf("unexpected unsupported error: %+v", unsupported)
	}
}

func TestError_WithMessage(t *testing.T) {
	customMsg := "custom error message"
	err := New(InternalServerError).WithMessage(customMsg)
	if err.Error() != customMsg {
		t.Errorf("Error() = %v, want %v", err.Error(), customMsg)
	}
}

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, Success},
		{"custom", New(JudgeQueueFull), JudgeQueueFull},
		{"wrapped by fmt", fmt.Errorf("outer: %w", New(WorkspaceError)), WorkspaceError},
		{"plain", errors.New("boom"), InternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetCode(tt.err); got != tt.want {
				t.Errorf("GetCode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsAndGetError(t *testing.T) {
	err := fmt.Errorf("launch: %w", New(SandboxStartError))
	if !Is(err, SandboxStartError) {
		t.Error("Is should find the code through fmt wrapping")
	}
	if Is(err, JudgeSystemError) {
		t.Error("Is matched the wrong code")
	}
	if Is(nil, SandboxStartError) {
		t.Error("Is(nil) should be false")
	}

	plain := GetError(errors.New("boom"))
	if plain.Code != InternalServerError || plain.Error() != "boom" {
		t.Errorf("unexpected GetError result: %+v", plain)
	}
	if GetError(nil) != nil {
		t.Error("GetError(nil) should be nil")
	}
}

func TestRequestErrorHelpers(t *testing.T) {
	unsupported := Unsupported("cobol")
	if unsupported.Code != LanguageNotSupported || unsupported.Details["language"] != "cobol" {
		t.Errorf("unexpected Unsupported result: %+v", unsupported)
	}

	invalid := ValidationError("code", "required")
	if invalid.Code != ValidationFailed {
		t.Errorf("expected ValidationFailed, got %v", invalid.Code)
	}
	if invalid.Details["field"] != "code" || invalid.Details["reason"] != "required" {
		t.Errorf("unexpected details: %v", invalid.Details)
	}
}
