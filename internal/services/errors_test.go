package services

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{nil, ""},
		{ErrInvalidAmount, KindValidation},
		{fmt.Errorf("%w: cannot trade with yourself", ErrInvalidTrade), KindValidation},
		{ErrInvalidMessage, KindValidation},
		{fmt.Errorf("listing abc: %w", ErrNotFound), KindNotFound},
		{ErrForbidden, KindForbidden},
		{fmt.Errorf("%w: trade is COMPLETED", ErrInvalidTransition), KindInvalidTransition},
		{ErrInsufficientFunds, KindInsufficientFunds},
		{ErrConflict, KindConflict},
		{ErrRateLimited, KindRateLimited},
		{ErrUnauthorized, KindUnauthorized},
		{fmt.Errorf("failed to get listing: %w", &pq.Error{Code: "22P02"}), KindValidation},
		{&pq.Error{Code: "23505"}, KindInternal},
		{sql.ErrConnDone, KindInternal},
		{errors.New("boom"), KindInternal},
	}

	for _, c := range cases {
		assert.Equal(t, c.kind, KindOf(c.err), "%v", c.err)
	}
}

func TestValidationf(t *testing.T) {
	err := validationf("title must be between %d and %d characters", 3, 255)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: title must be between 3 and 255 characters", err.Error())
}
