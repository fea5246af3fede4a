package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := errors.New("UNIQUE constraint failed: invoices.invoice_number")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain error", errors.New("boom"), Unknown},
		{"direct", New(Validation, "items required"), Validation},
		{"wrapped once", fmt.Errorf("create order: %w", New(InvalidState, "not draft")), InvalidState},
		{"wrapped twice", fmt.Errorf("a: %w", fmt.Errorf("b: %w", Newf(NotFound, "order %s", "x"))), NotFound},
		{"wrap of store error", Wrap(Conflict, base, "invoice number taken"), Conflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
			assert.Equal(t, tt.want != Unknown, IsKind(tt.err, tt.want))
		})
	}
}

func TestIsKindNil(t *testing.T) {
	assert.False(t, IsKind(nil, Unknown))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("save: %w", Wrap(ResourceExhausted, cause, "no space"))

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "no space", Message(err))
	assert.Contains(t, err.Error(), "RESOURCE_EXHAUSTED")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "IMMUTABLE", Immutable.String())
	assert.Equal(t, "UNKNOWN", Kind(99).String())
}
