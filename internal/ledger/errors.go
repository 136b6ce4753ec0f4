package ledger

import "errors"

// Code is the machine-readable outcome of a failed ledger operation.
type Code string

const (
	CodeInvalidName           Code = "INVALID_NAME"
	CodeInvalidEmail          Code = "INVALID_EMAIL"
	CodeWeakPassword          Code = "WEAK_PASSWORD"
	CodeInvalidPassword       Code = "INVALID_PASSWORD"
	CodeInvalidBalance        Code = "INVALID_BALANCE"
	CodeBalanceTooLow         Code = "BALANCE_TOO_LOW"
	CodeDuplicateEmail        Code = "DUPLICATE_EMAIL"
	CodeInvalidCredentials    Code = "INVALID_CREDENTIALS"
	CodeNotFound              Code = "NOT_FOUND"
	CodeInvalidRecipientEmail Code = "INVALID_RECIPIENT_EMAIL"
	CodeInvalidAmount         Code = "INVALID_AMOUNT"
	CodeInvalidDate           Code = "INVALID_DATE"
	CodeSelfTransfer          Code = "SELF_TRANSFER"
	CodeRecipientNotFound     Code = "RECIPIENT_NOT_FOUND"
	CodeSenderNotFound        Code = "SENDER_NOT_FOUND"
	CodeInsufficientBalance   Code = "INSUFFICIENT_BALANCE"
	CodeCorruptDocument       Code = "CORRUPT_DOCUMENT"
	CodeStaleDocument         Code = "STALE_DOCUMENT"
)

// Error is a ledger outcome carrying its code. Two errors match under errors.Is when their codes
// are equal, so callers compare against the Err* values below.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func newError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of a ledger error anywhere in err's chain, or "" for other errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var (
	// Registration
	ErrInvalidName     = newError(CodeInvalidName, "name must be at least 3 printable characters")
	ErrInvalidEmail    = newError(CodeInvalidEmail, "enter a valid email")
	ErrWeakPassword    = newError(CodeWeakPassword, "password must be at least 4 characters")
	ErrInvalidPassword = newError(CodeInvalidPassword, "password may only contain printable characters")
	ErrInvalidBalance  = newError(CodeInvalidBalance, "balance must have at most 2 decimal places and stay below 1000000000000")
	ErrBalanceTooLow   = newError(CodeBalanceTooLow, "minimum opening balance is 100")
	ErrDuplicateEmail  = newError(CodeDuplicateEmail, "email already registered")

	// Lookup and login. Unknown email and wrong password are deliberately the same outcome.
	ErrInvalidCredentials = newError(CodeInvalidCredentials, "invalid email or password")
	ErrNotFound           = newError(CodeNotFound, "user not found")

	// Transfers
	ErrInvalidRecipientEmail = newError(CodeInvalidRecipientEmail, "enter a valid recipient email")
	ErrInvalidAmount         = newError(CodeInvalidAmount, "amount must be greater than 0")
	ErrAmountOutOfRange      = newError(CodeInvalidAmount, "amount must have at most 2 decimal places and stay below 1000000000000")
	ErrInvalidDate           = newError(CodeInvalidDate, "date must be YYYY-MM-DD")
	ErrSelfTransfer          = newError(CodeSelfTransfer, "cannot transfer to yourself")
	ErrRecipientNotFound     = newError(CodeRecipientNotFound, "recipient not found")
	ErrSenderNotFound        = newError(CodeSenderNotFound, "sender not found")
	ErrInsufficientBalance   = newError(CodeInsufficientBalance, "insufficient balance")

	// Store integrity
	ErrCorruptDocument = newError(CodeCorruptDocument, "stored bank document is unreadable")
	ErrStaleDocument   = newError(CodeStaleDocument, "bank document changed since it was opened")
)
