package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrNotAuthorized         = errors.New("not authorized")
	ErrNotFound              = errors.New("not found")
	ErrConversationNotFound  = errors.New("conversation not found")
	ErrMessageNotFound       = errors.New("message not found")
	ErrConversationNotActive = errors.New("conversation is not active")
	ErrDuplicateConversation = errors.New("conversation already exists")
	ErrMessageDeleted        = errors.New("message is deleted")
	ErrValidationFailed      = errors.New("validation failed")
	ErrTransientStore        = errors.New("storage temporarily unavailable")
	ErrRateLimited           = errors.New("rate limit exceeded")
)

type APIError struct {
	Message string `json:"error"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrValidationFailed),
		errors.Is(err, ErrMessageDeleted):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateConversation),
		errors.Is(err, ErrConversationNotActive):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrTransientStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WireCode возвращает стабильный категорийный код для событий об ошибке.
// Внутренние тексты ошибок хранилища наружу не уходят.
func WireCode(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrNotAuthorized):
		return "not_authorized"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConversationNotFound),
		errors.Is(err, ErrMessageNotFound):
		return "not_found"
	case errors.Is(err, ErrConversationNotActive):
		return "conversation_not_active"
	case errors.Is(err, ErrMessageDeleted):
		return "message_deleted"
	case errors.Is(err, ErrDuplicateConversation):
		return "duplicate_conversation"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTransientStore):
		return "transient_store_failure"
	default:
		return "internal_error"
	}
}

// Retryable сообщает клиенту, имеет ли смысл повторить операцию.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransientStore) || errors.Is(err, ErrRateLimited)
}
