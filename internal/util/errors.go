package util

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"gorm.io/gorm"
)

// ErrorKind classifies failures so handlers can pick a status code without
// knowing which layer produced the error.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindConflict          ErrorKind = "conflict"
	KindInsufficientData  ErrorKind = "insufficient_data"
	KindUpstreamTimeout   ErrorKind = "upstream_timeout"
	KindUpstreamRateLimit ErrorKind = "upstream_rate_limit"
	KindUpstreamAuth      ErrorKind = "upstream_auth"
	KindUpstream          ErrorKind = "upstream"
	KindPersistence       ErrorKind = "persistence"
	KindUniqueViolation   ErrorKind = "unique_violation"
	KindForeignKey        ErrorKind = "foreign_key_violation"
	KindInternal          ErrorKind = "internal"
)

type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" && e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Message: message}
}

func Conflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

func NotFoundError(message string) *AppError {
	return &AppError{Kind: KindNotFound, Message: message}
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrInsufficientData   = &AppError{Kind: KindInsufficientData, Message: "fact search returned too little material to write an article"}
	ErrDraftTooShort      = &AppError{Kind: KindInsufficientData, Message: "draft stayed below the minimum word count after all expansion attempts"}
	ErrDuplicateTitle     = &AppError{Kind: KindConflict, Message: "an article with this title already exists"}
	ErrArticleNotFound    = &AppError{Kind: KindNotFound, Message: "article not found"}
	ErrCategoryNotFound   = &AppError{Kind: KindNotFound, Message: "article category not found"}
	ErrCategoryInUse      = &AppError{Kind: KindConflict, Message: "article category still has articles"}
	ErrMockTestNotFound   = &AppError{Kind: KindNotFound, Message: "mock test not found"}
	ErrNoQuestionsMatched = &AppError{Kind: KindValidation, Message: "no questions available for the requested distribution"}
	ErrInvalidImageExt    = &AppError{Kind: KindValidation, Message: "featured image must be png, jpg, jpeg or webp"}
	ErrInvalidImageType   = &AppError{Kind: KindValidation, Message: "uploaded file is not an image"}
)

// KindOf returns the kind of err, classifying database and network errors on the way.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return KindNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return KindUniqueViolation
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return KindForeignKey
	case errors.Is(err, context.DeadlineExceeded):
		return KindUpstreamTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindUpstreamTimeout
	}
	return KindInternal
}

// Persistence wraps a database error, keeping unique and foreign key violations distinct.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &AppError{Kind: KindUniqueViolation, Message: op + ": duplicate value", Err: err}
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return &AppError{Kind: KindForeignKey, Message: op + ": referenced row does not exist", Err: err}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &AppError{Kind: KindNotFound, Message: op + ": not found", Err: err}
	}
	return &AppError{Kind: KindPersistence, Message: op, Err: err}
}

// StatusFor maps an error kind onto an HTTP status.
func StatusFor(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindUniqueViolation:
		return http.StatusConflict
	case KindInsufficientData, KindForeignKey:
		return http.StatusUnprocessableEntity
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamRateLimit:
		return http.StatusTooManyRequests
	case KindUpstreamAuth, KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
