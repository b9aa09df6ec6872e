package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	cause := errors.New("dial tcp: i/o timeout")
	err := fmt.Errorf("generate: %w", NewTransportError("completion failed", cause))

	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUpstream)
	assert.Equal(t, KindTransport, KindOf(err))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "validation_error: destination is required", NewValidationError("destination is required").Error())
	assert.Equal(t, "upstream_error: rate limited: boom", NewUpstreamError("rate limited", 429, errors.New("boom")).Error())
	assert.Equal(t, "persistence_error: persistence_error", (&Error{Kind: KindPersistence}).Error())
}

func TestNewNotFoundOrForbiddenError_IsStable(t *testing.T) {
	a, b := NewNotFoundOrForbiddenError(), NewNotFoundOrForbiddenError()
	assert.Equal(t, a, b)
	assert.Equal(t, a.Error(), b.Error())
	assert.ErrorIs(t, a, ErrNotFoundOrForbidden)
}

func TestKindOfAndPublicMessage(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    ErrorKind
		message string
	}{
		{"untyped", errors.New("pq: relation missing"), "", "internal error"},
		{"nil", nil, "", "internal error"},
		{"malformed", NewMalformedResponseError("expected 3 days, model returned 2", nil), KindMalformedResponse, "expected 3 days, model returned 2"},
		{"protocol", NewProtocolError("no choices in response", 200, nil), KindProtocol, "no choices in response"},
		{"persistence hides cause", NewPersistenceError("failed to store itinerary", errors.New("password authentication failed")), KindPersistence, "failed to store itinerary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.message, PublicMessage(tt.err))
		})
	}
}
