package processors

import (
	stderrors "errors"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeInvalidRoute                    = "INVALID_ROUTE"
	ErrCodeDependencyBuildingFailure       = "DEPENDENCY_BUILDING_FAILURE"
	ErrCodeInvalidBindingType              = "INVALID_BINDING_TYPE"
	ErrCodeMissingParameter                = "MISSING_PARAMETER"
	ErrCodeMissingConfigurationParameter   = "MISSING_CONFIGURATION_PARAMETER"
	ErrCodeInvalidTransactionStatement     = "INVALID_TRANSACTION_STATEMENT"
	ErrCodeTransactionStatementNotSelected = "TRANSACTION_STATEMENT_NOT_SELECTED"
	ErrCodeTransactionPanic                = "TRANSACTION_PANIC"
	ErrCodeInvalidChain                    = "INVALID_CHAIN"
	ErrCodeNotImplemented                  = "NOT_IMPLEMENTED"
	ErrCodeInvalidHandler                  = "INVALID_HANDLER"
	ErrCodeInvalidRequest                  = "INVALID_REQUEST"
	ErrCodeInvalidConfig                   = "INVALID_CONFIG"
	ErrCodeInvalidEnvelope                 = "INVALID_ENVELOPE"
	ErrCodeRunFailed                       = "RUN_FAILED"
)

// Routing errors.
var (
	ErrInvalidRoute = apperrors.New("invalid route", apperrors.CategoryValidation).
		WithTextCode(ErrCodeInvalidRoute)
)

// Wiring errors. The dispatcher recovers these into category fallbacks.
var (
	ErrDependencyBuildingFailure = apperrors.New("dependency building failure", apperrors.CategoryInternal).
					WithTextCode(ErrCodeDependencyBuildingFailure)
	ErrInvalidBindingType = apperrors.New("invalid binding type", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidBindingType)
	ErrMissingParameter = apperrors.New("missing parameter", apperrors.CategoryNotFound).
				WithTextCode(ErrCodeMissingParameter)
	ErrMissingConfigurationParameter = apperrors.New("missing configuration parameter", apperrors.CategoryNotFound).
						WithTextCode(ErrCodeMissingConfigurationParameter)
)

// Selection errors.
var (
	ErrInvalidTransactionStatement = apperrors.New("invalid transaction statement", apperrors.CategoryBadInput).
					WithTextCode(ErrCodeInvalidTransactionStatement)
	ErrTransactionStatementNotSelected = apperrors.New("transaction statement not selected", apperrors.CategoryNotFound).
						WithTextCode(ErrCodeTransactionStatementNotSelected)
	ErrTransactionPanic = apperrors.New("transaction statement panicked", apperrors.CategoryInternal).
				WithTextCode(ErrCodeTransactionPanic)
	ErrInvalidChain = apperrors.New("invalid middleware chain", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeInvalidChain)
)

// Handler and input errors.
var (
	ErrNotImplemented = apperrors.New("not implemented", apperrors.CategoryHandler).
				WithTextCode(ErrCodeNotImplemented)
	ErrInvalidHandler = apperrors.New("invalid handler", apperrors.CategoryHandler).
				WithTextCode(ErrCodeInvalidHandler)
	ErrInvalidRequest = apperrors.New("invalid request document", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidRequest)
	ErrInvalidConfig = apperrors.New("invalid configuration", apperrors.CategoryValidation).
				WithTextCode(ErrCodeInvalidConfig)
	ErrInvalidEnvelope = apperrors.New("invalid event envelope", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidEnvelope)
)

// Scheduling errors.
var (
	ErrRunFailed = apperrors.New("run failed", apperrors.CategoryExternal).
		WithTextCode(ErrCodeRunFailed)
)

// NewError clones base, replacing its message and attaching source and metadata.
// Sentinels are never mutated, so callers may return the result freely.
func NewError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrInvalidRequest
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code of the outermost go-errors error in the chain.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// HasCode reports whether any go-errors error in the chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		var ge *apperrors.Error
		if !stderrors.As(err, &ge) {
			return false
		}
		if ge.TextCode == code {
			return true
		}
		err = ge.Source
	}
	return false
}

// IsBootstrapFailure reports whether err is a wiring error raised while a
// handler was being instantiated.
func IsBootstrapFailure(err error) bool {
	for _, code := range []string{
		ErrCodeDependencyBuildingFailure,
		ErrCodeInvalidBindingType,
		ErrCodeMissingParameter,
		ErrCodeMissingConfigurationParameter,
	} {
		if HasCode(err, code) {
			return true
		}
	}
	return false
}

// ErrorKind names the error for log lines, falling back to the Go type.
func ErrorKind(err error) string {
	switch {
	case HasCode(err, ErrCodeDependencyBuildingFailure):
		return "DependencyBuildingFailure"
	case HasCode(err, ErrCodeInvalidBindingType):
		return "InvalidBindingType"
	case HasCode(err, ErrCodeMissingParameter):
		return "MissingParameterError"
	case HasCode(err, ErrCodeMissingConfigurationParameter):
		return "MissingConfigurationParameterError"
	}
	if code := ErrorCode(err); code != "" {
		return code
	}
	return "Error"
}
