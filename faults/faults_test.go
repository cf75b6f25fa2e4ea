package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// ============================================================================
// 1. Construction and category defaults
// ============================================================================

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		code         Code
		message      string
		wantCategory Category
	}{
		{"timeout", CodeTimeout, "operation timed out", CategoryTransient},
		{"classifier", CodeClassifier, "no usable decision", CategoryTransient},
		{"store_write", CodeStoreWrite, "patch failed", CategoryTransient},
		{"ledger_write", CodeLedgerWrite, "append failed", CategoryTransient},
		{"malformed", CodeMalformedRecord, "missing title", CategoryPermanent},
		{"invalid_input", CodeInvalidInput, "empty message", CategoryPermanent},
		{"rate_limited", CodeRateLimited, "too many requests", CategoryResource},
		{"internal", CodeInternal, "unexpected state", CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message)
			if err.Code() != tt.code {
				t.Errorf("Code() = %v, want %v", err.Code(), tt.code)
			}
			if err.Category() != tt.wantCategory {
				t.Errorf("Category() = %v, want %v", err.Category(), tt.wantCategory)
			}
			if err.Error() != tt.message {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.message)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CodeNotFound, "task %s not found", "abc123")
	want := "task abc123 not found"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestMalformedRecord(t *testing.T) {
	err := MalformedRecord("rec-9", "title missing")
	if err.Code() != CodeMalformedRecord {
		t.Errorf("Code() = %v, want %v", err.Code(), CodeMalformedRecord)
	}
	if err.TaskID() != "rec-9" {
		t.Errorf("TaskID() = %q, want %q", err.TaskID(), "rec-9")
	}
	if err.Retryable() {
		t.Error("malformed record should not be retryable")
	}
}

// ============================================================================
// 2. Retryability
// ============================================================================

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{"transient default", New(CodeStoreWrite, "patch failed"), true},
		{"permanent default", New(CodeMalformedRecord, "bad record"), false},
		{"resource default", New(CodeRateLimited, "slow down"), true},
		{"explicit override off", New(CodeTimeout, "gave up", WithRetryable(false)), false},
		{"explicit override on", New(CodeInvalidInput, "odd", WithRetryable(true)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Retryable(); got != tt.want {
				t.Errorf("Retryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryableNonTaxonomy(t *testing.T) {
	if IsRetryable(errors.New("plain")) {
		t.Error("plain errors should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}

// ============================================================================
// 3. Wrapping and chain inspection
// ============================================================================

func TestWrapPreservesCode(t *testing.T) {
	inner := New(CodeStoreWrite, "patch failed", WithTaskID("task-1"))
	outer := Wrap(fmt.Errorf("request: %w", inner), "award pipeline")

	if outer.Code() != CodeStoreWrite {
		t.Errorf("Code() = %v, want %v", outer.Code(), CodeStoreWrite)
	}
	if outer.TaskID() != "task-1" {
		t.Errorf("TaskID() = %q, want %q", outer.TaskID(), "task-1")
	}
	if !errors.Is(outer, inner) {
		t.Error("wrapped error should match inner via errors.Is")
	}
}

func TestWrapContextErrors(t *testing.T) {
	if got := Wrap(context.DeadlineExceeded, "classify").Code(); got != CodeTimeout {
		t.Errorf("deadline wrap Code() = %v, want %v", got, CodeTimeout)
	}
	if got := Wrap(context.Canceled, "classify").Code(); got != CodeCanceled {
		t.Errorf("cancel wrap Code() = %v, want %v", got, CodeCanceled)
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, "nothing") != nil {
		t.Error("Wrap(nil) should return nil")
	}
}

func TestWrapWithCode(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapWithCode(cause, CodeStoreRead, "query task database")
	if err.Code() != CodeStoreRead {
		t.Errorf("Code() = %v, want %v", err.Code(), CodeStoreRead)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable via errors.Is")
	}
}

func TestCodeOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeLedgerWrite, "append failed"))
	if got := CodeOf(err); got != CodeLedgerWrite {
		t.Errorf("CodeOf() = %v, want %v", got, CodeLedgerWrite)
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %v, want empty", got)
	}
}

func TestHasCode(t *testing.T) {
	err := WrapWithCode(errors.New("boom"), CodeClassifier, "classify")
	if !HasCode(err, CodeClassifier) {
		t.Error("HasCode should match the wrapped code")
	}
	if HasCode(err, CodeStoreWrite) {
		t.Error("HasCode should not match a different code")
	}
}

// ============================================================================
// 4. Error message formatting
// ============================================================================

func TestErrorMessageWithCause(t *testing.T) {
	cause := errors.New("status 503")
	err := New(CodeUnavailable, "notion query", WithCause(cause))
	want := "notion query: status 503"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestFromCode(t *testing.T) {
	err := FromCode(CodeLedgerWrite)
	if err.Error() != "ledger write failed" {
		t.Errorf("Error() = %q, want default description", err.Error())
	}
}
