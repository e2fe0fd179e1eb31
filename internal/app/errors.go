package app

import (
	"fmt"
	"net/http"
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

func errValidation(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func errDuplicateClan() *DomainError {
	return domainError(http.StatusConflict, "DUPLICATE_CLAN", "Clan name or tag already exists", nil)
}

func errClanNotFound(ref string) *DomainError {
	return domainError(http.StatusNotFound, "CLAN_NOT_FOUND", fmt.Sprintf("Clan %q not found", ref), nil)
}

func errForbidden(message string) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", message, nil)
}
