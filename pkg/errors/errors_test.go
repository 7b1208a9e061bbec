package errors

import (
	stderr "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
}

func TestWrapKeepsSentinel(t *testing.T) {
	sentinel := New("not found")
	cause := stderr.New("disk on fire")

	wrapped := sentinel.Wrap(cause)
	require.NotSame(t, sentinel, wrapped)
	assert.Nil(t, sentinel.Unwrap(), "wrapping must not mutate the sentinel")
	assert.True(t, Is(wrapped, sentinel))
	assert.True(t, Is(wrapped, cause))
	assert.Equal(t, "not found: disk on fire", wrapped.Error())

	detailed := sentinel.WrapMessage("key %q", "abc")
	assert.True(t, Is(detailed, sentinel))
	assert.Equal(t, `not found: key "abc"`, detailed.Error())

	other := New("not found")
	assert.False(t, Is(wrapped, other), "sentinels with the same text are distinct")

	outer := fmt.Errorf("loading: %w", detailed)
	assert.True(t, Is(outer, sentinel))

	var target *Error
	require.True(t, As(outer, &target))
	assert.True(t, target.Is(sentinel))
}
