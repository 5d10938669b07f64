package genclient

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	badArg := Errorf(KindInvalidArgument, "mark %d", 3)
	assert.True(t, IsInvalidArgument(badArg))
	assert.False(t, IsUnavailable(badArg))
	assert.False(t, IsMalformed(badArg))
	assert.Equal(t, "invalid_argument: mark 3", badArg.Error())

	malformed := NewError(KindMalformed, errors.New("no json"))
	assert.True(t, IsMalformed(malformed))
	assert.False(t, IsUnavailable(malformed))

	// Wrapped classified errors keep their kind.
	wrapped := fmt.Errorf("attempt 2: %w", Errorf(KindUnavailable, "quota"))
	assert.True(t, IsUnavailable(wrapped))
	assert.Equal(t, KindUnavailable, KindOf(wrapped))

	// Unclassified errors default to the retryable kind.
	assert.Equal(t, KindUnavailable, KindOf(errors.New("connection reset")))
	assert.True(t, IsUnavailable(errors.New("connection reset")))
	assert.False(t, IsUnavailable(nil))
}

func TestCallBudget(t *testing.T) {
	b := NewCallBudget(2)
	require.NoError(t, b.Acquire())
	require.NoError(t, b.Acquire())

	err := b.Acquire()
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.EqualValues(t, 2, b.Used())

	// A later acquire still fails; the failed one was refunded.
	err = b.Acquire()
	require.Error(t, err)
	assert.EqualValues(t, 2, b.Used())
}

func TestCallBudget_Unlimited(t *testing.T) {
	b := NewCallBudget(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, b.Acquire())
	}
	assert.EqualValues(t, 100, b.Used())

	var nilBudget *CallBudget
	assert.NoError(t, nilBudget.Acquire())
	assert.EqualValues(t, 0, nilBudget.Used())
}
