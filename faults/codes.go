package faults

// Category classifies errors by their retry semantics.
type Category string

const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	CategoryTransient Category = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	CategoryPermanent Category = "permanent"

	// CategoryResource indicates exhaustion, most commonly rate limiting.
	CategoryResource Category = "resource"

	// CategoryInternal indicates unexpected errors or bugs.
	CategoryInternal Category = "internal"
)

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c Category) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// Code identifies a specific failure type.
type Code string

const (
	// Transient failures.
	CodeTimeout     Code = "TIMEOUT"      // Operation timed out
	CodeUnavailable Code = "UNAVAILABLE"  // Dependency not available
	CodeNetwork     Code = "NETWORK_ERR"  // Transport-level failure
	CodeClassifier  Code = "CLASSIFIER"   // Classifier produced no usable decision
	CodeStoreRead   Code = "STORE_READ"   // Task store fetch failed
	CodeStoreWrite  Code = "STORE_WRITE"  // Task store completion patch failed
	CodeLedgerWrite Code = "LEDGER_WRITE" // XP ledger append failed

	// Permanent failures.
	CodeMalformedRecord Code = "MALFORMED_RECORD" // Record failed strict extraction
	CodeInvalidInput    Code = "INVALID_INPUT"    // Malformed or invalid input
	CodeNotFound        Code = "NOT_FOUND"        // Resource does not exist
	CodeUnauthorized    Code = "UNAUTHORIZED"     // Credential rejected
	CodeCanceled        Code = "CANCELED"         // Operation was canceled

	// Resource failures.
	CodeRateLimited Code = "RATE_LIMITED" // Rate limit exceeded

	// Internal failures.
	CodeInternal Code = "INTERNAL" // Unexpected internal error
)

// String returns the string representation of the code.
func (c Code) String() string {
	return string(c)
}

// DefaultCategory returns the category a code belongs to unless overridden.
func (c Code) DefaultCategory() Category {
	switch c {
	case CodeTimeout, CodeUnavailable, CodeNetwork, CodeClassifier,
		CodeStoreRead, CodeStoreWrite, CodeLedgerWrite:
		return CategoryTransient
	case CodeMalformedRecord, CodeInvalidInput, CodeNotFound,
		CodeUnauthorized, CodeCanceled:
		return CategoryPermanent
	case CodeRateLimited:
		return CategoryResource
	default:
		return CategoryInternal
	}
}

var codeDescriptions = map[Code]string{
	CodeTimeout:         "operation timed out",
	CodeUnavailable:     "dependency unavailable",
	CodeNetwork:         "network error",
	CodeClassifier:      "classifier unavailable",
	CodeStoreRead:       "task store read failed",
	CodeStoreWrite:      "task store write failed",
	CodeLedgerWrite:     "ledger write failed",
	CodeMalformedRecord: "malformed task record",
	CodeInvalidInput:    "invalid input",
	CodeNotFound:        "resource not found",
	CodeUnauthorized:    "credential rejected",
	CodeCanceled:        "operation canceled",
	CodeRateLimited:     "rate limit exceeded",
	CodeInternal:        "internal error",
}

// Description returns a human-readable description for the code.
func (c Code) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
