package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad input")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("no such row")))
	assert.Equal(t, KindConflict, KindOf(Conflict("already exists")))
	assert.Equal(t, KindPersistence, KindOf(errors.New("plain error")))

	// Wrapping with %w keeps the kind reachable through errors.As.
	wrapped := fmt.Errorf("accepting request: %w", Forbidden("not the recipient"))
	assert.Equal(t, KindForbidden, KindOf(wrapped))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "not the recipient", MessageOf(Forbidden("not the recipient")))
	assert.Equal(t, "internal server error", MessageOf(errors.New("pq: connection refused")))

	// Persistence errors expose only the generic message, the cause stays
	// in the wrapped error for logs.
	perr := Persistence(errors.New("pq: deadlock detected"), "failed to save challenge")
	assert.Equal(t, "failed to save challenge", MessageOf(perr))
	assert.Contains(t, perr.Error(), "deadlock")
}
