package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:       http.StatusBadRequest,
		CodeEmailExists:      http.StatusBadRequest,
		CodeAlreadySeller:    http.StatusBadRequest,
		CodeDownloadLimit:    http.StatusBadRequest,
		CodeAlreadyVoted:     http.StatusBadRequest,
		CodeUnauthorized:     http.StatusUnauthorized,
		CodeForbidden:        http.StatusForbidden,
		CodeNotFound:         http.StatusNotFound,
		CodeDatabase:         http.StatusInternalServerError,
		CodeRateLimited:      http.StatusTooManyRequests,
		CodePurchaseRequired: http.StatusBadRequest,
	}
	for code, status := range cases {
		assert.Equal(t, status, StatusFor(code), string(code))
	}
}

func TestErrorsIsMatchesOnCode(t *testing.T) {
	sentinel := New(CodeAlreadyVoted, "already voted")
	wrapped := fmt.Errorf("vote: %w", New(CodeAlreadyVoted, "different message"))

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.False(t, errors.Is(wrapped, New(CodeNotFound, "x")))
}

func TestDatabaseHidesCause(t *testing.T) {
	err := Database(errors.New("pq: relation does not exist"))

	assert.Equal(t, "Database error", err.Message)
	assert.True(t, HasCode(err, CodeDatabase))
	assert.ErrorContains(t, errors.Unwrap(err), "relation does not exist")
}
