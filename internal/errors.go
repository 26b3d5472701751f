package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized  ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden     ErrorType = "FORBIDDEN"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeConfiguration ErrorType = "CONFIGURATION_ERROR"
	ErrorTypeUnclassified  ErrorType = "UNCLASSIFIED_RECORD"
	ErrorTypeInternal      ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidYear      ErrorCode = "INVALID_YEAR"
	ErrCodeInvalidKind      ErrorCode = "INVALID_RECORD_KIND"
	ErrCodeCommentRequired  ErrorCode = "COMMENT_REQUIRED"

	ErrCodeRecordNotFound     ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
	ErrCodeOrgUnitNotFound    ErrorCode = "ORG_UNIT_NOT_FOUND"
	ErrCodeDepartmentNotFound ErrorCode = "DEPARTMENT_NOT_FOUND"
	ErrCodeRuleTableNotFound  ErrorCode = "RULE_TABLE_NOT_FOUND"

	ErrCodeNotAuthorized        ErrorCode = "NOT_AUTHORIZED_FOR_STAGE"
	ErrCodeNotOwner             ErrorCode = "NOT_RECORD_OWNER"
	ErrCodeInvalidTransition    ErrorCode = "INVALID_TRANSITION"
	ErrCodeConcurrentUpdate     ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCodeMissingOrgAssignment ErrorCode = "MISSING_ORG_ASSIGNMENT"
	ErrCodeInvalidOrgStructure  ErrorCode = "INVALID_ORG_STRUCTURE"
	ErrCodeInvalidRoleScope     ErrorCode = "INVALID_ROLE_SCOPE"
	ErrCodeRuleTableMissing     ErrorCode = "RULE_TABLE_MISSING"
	ErrCodeUnclassifiedRecord   ErrorCode = "UNCLASSIFIED_RECORD"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so that sentinel errors compare equal to
// copies carrying a different message or cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *AppError) WithMessage(message string) *AppError {
	cp := *e
	cp.Message = message
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewConfigurationError reports an administrative data gap: a user without an
// org assignment or a rule table without the needed entry.
func NewConfigurationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConfiguration,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

func NewAuthorizationError(message string) *AppError {
	return NewForbiddenError(message, ErrCodeNotAuthorized)
}

func NewConcurrentModificationError(message string) *AppError {
	return NewConflictError(message, ErrCodeConcurrentUpdate)
}

func NewUnclassifiedRecordError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeUnclassified,
		Code:       ErrCodeUnclassifiedRecord,
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
	}
}

var (
	ErrRecordNotFound     = NewNotFoundError("record not found", ErrCodeRecordNotFound)
	ErrUserNotFound       = NewNotFoundError("user not found", ErrCodeUserNotFound)
	ErrOrgUnitNotFound    = NewNotFoundError("org unit not found", ErrCodeOrgUnitNotFound)
	ErrDepartmentNotFound = NewNotFoundError("department not found", ErrCodeDepartmentNotFound)
	ErrRuleTableNotFound  = NewNotFoundError("rule table version not found", ErrCodeRuleTableNotFound)

	ErrNotAuthorized          = NewAuthorizationError("actor holds no role matching the record's current stage")
	ErrNotOwner               = NewForbiddenError("only the record owner may perform this action", ErrCodeNotOwner)
	ErrInvalidTransition      = NewConflictError("transition is not legal from the record's current state", ErrCodeInvalidTransition)
	ErrConcurrentModification = NewConcurrentModificationError("record was modified by another request; re-read and retry")
	ErrMissingOrgAssignment   = NewConfigurationError("user has no department or office assignment", ErrCodeMissingOrgAssignment)
	ErrRuleTableMissing       = NewConfigurationError("no rule table has been published", ErrCodeRuleTableMissing)
	ErrUnclassifiedRecord     = NewUnclassifiedRecordError("record classification has no entry in the rule table")
	ErrCommentRequired        = NewValidationFieldError("comment", "comment is required when rejecting a record", ErrCodeCommentRequired)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func isType(err error, t ErrorType) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Type == t
}

func IsConfigurationError(err error) bool {
	return isType(err, ErrorTypeConfiguration)
}

func IsAuthorizationError(err error) bool {
	return isType(err, ErrorTypeForbidden)
}

func IsConcurrentModificationError(err error) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == ErrCodeConcurrentUpdate
}

func IsUnclassifiedRecordError(err error) bool {
	return isType(err, ErrorTypeUnclassified)
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
