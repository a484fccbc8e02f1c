package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gaetan-warin/LearnREST/internal/catalog"
	"github.com/gaetan-warin/LearnREST/internal/journal"
	"github.com/gaetan-warin/LearnREST/internal/progress"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

var errHistoryDisabled = domainError(http.StatusNotFound, "HISTORY_DISABLED", "Document history is not enabled", nil)

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var validationErr *catalog.ValidationError
	if errors.As(err, &validationErr) {
		var fields any
		if len(validationErr.Fields) > 0 {
			fields = map[string]any{"fields": validationErr.Fields}
		}
		return http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Message, fields
	}
	if errors.Is(err, progress.ErrInvalidMode) {
		return http.StatusBadRequest, "VALIDATION_ERROR", progress.ErrInvalidMode.Error(), nil
	}
	if errors.Is(err, catalog.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Book not found", nil
	}
	if errors.Is(err, journal.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "History entry not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
