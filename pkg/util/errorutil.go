package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by the chat commands and the HTTP API.
const (
	CodeValidation     = "VALIDATION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeConflict       = "CONFLICT"
	CodeTicketExists   = "TICKET_EXISTS"
	CodeAlreadyClaimed = "TICKET_ALREADY_CLAIMED"
	CodeNotClaimed     = "TICKET_NOT_CLAIMED"
	CodeTicketClosed   = "TICKET_CLOSED"
	CodePlatform       = "PLATFORM_FAILURE"
	CodeInternal       = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewTicketExists rejects a second open ticket of the same type.
func NewTicketExists(channelID, label string) error {
	return NewDomainError(CodeTicketExists,
		fmt.Sprintf("You already have an open %s: <#%s>", label, channelID),
		http.StatusConflict,
		map[string]any{"channel_id": channelID})
}

// NewAlreadyClaimed rejects a claim on a claimed ticket.
func NewAlreadyClaimed(claimer string) error {
	who := "<@" + claimer + ">"
	if claimer == "AI" {
		who = "the AI assistant"
	}
	return NewDomainError(CodeAlreadyClaimed,
		"This ticket is already claimed by "+who+".",
		http.StatusConflict,
		map[string]any{"claimed_by": claimer})
}

// NewNotClaimed rejects an unclaim on an unclaimed ticket.
func NewNotClaimed() error {
	return NewDomainError(CodeNotClaimed, "This ticket is not claimed.", http.StatusConflict, nil)
}

// NewTicketClosed rejects changes to a closed ticket.
func NewTicketClosed(channelID string) error {
	return NewDomainError(CodeTicketClosed, "This ticket is already closed.", http.StatusConflict,
		map[string]any{"channel_id": channelID})
}

// NewPlatformFailure reports a Discord API failure with a message safe to show in chat.
func NewPlatformFailure(message string, err error) error {
	return &DomainError{
		Code:       CodePlatform,
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

func MapError(err error) error {
	return ToDomainError(err)
}

// IsCode reports whether err is a DomainError carrying code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// UserMessage returns text safe to show in chat. Internal errors are not leaked.
func UserMessage(err error) string {
	de := ToDomainError(err)
	if de == nil {
		return ""
	}
	if de.HTTPStatus >= http.StatusInternalServerError && de.Code != CodePlatform {
		return "Something went wrong. Please try again later."
	}
	return de.Message
}
