package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	wrapped := fmt.Errorf("claim: %w", NewAlreadyClaimed("42"))
	de := ToDomainError(wrapped)
	assert.Equal(t, CodeAlreadyClaimed, de.Code)
	assert.Equal(t, http.StatusConflict, de.HTTPStatus)

	assert.Equal(t, CodeNotFound, ToDomainError(pgx.ErrNoRows).Code)
	assert.Equal(t, CodeInternal, ToDomainError(errors.New("boom")).Code)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "This ticket is already claimed by the AI assistant.", UserMessage(NewAlreadyClaimed("AI")))
	assert.Equal(t, "This ticket is already claimed by <@7>.", UserMessage(NewAlreadyClaimed("7")))
	assert.Equal(t, "Something went wrong. Please try again later.", UserMessage(errors.New("db password leaked")))
	assert.True(t, IsCode(NewTicketExists("1", "Support Ticket"), CodeTicketExists))
}

func TestPlatformFailureIsShownToUsers(t *testing.T) {
	err := NewPlatformFailure("Your ticket could not be created. Please contact an administrator.", errors.New("missing permissions"))
	assert.Equal(t, "Your ticket could not be created. Please contact an administrator.", UserMessage(err))
	assert.Equal(t, http.StatusBadGateway, ToDomainError(err).HTTPStatus)
}
