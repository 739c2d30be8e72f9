package lazy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfIsResolved(t *testing.T) {
	l := Of(42)
	assert.True(t, l.Resolved())

	v, err := l.Get()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDeferLoadsOnce(t *testing.T) {
	calls := 0
	l := Defer(func() (string, error) {
		calls++
		return "snapshot", nil
	})
	assert.False(t, l.Resolved())
	assert.Equal(t, 0, calls)

	for i := 0; i < 3; i++ {
		v, err := l.Get()
		require.NoError(t, err)
		assert.Equal(t, "snapshot", v)
	}
	assert.Equal(t, 1, calls)
	assert.True(t, l.Resolved())
}

func TestDeferMemoizesError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	l := Defer(func() (*int, error) {
		calls++
		return nil, boom
	})

	_, err := l.Get()
	assert.ErrorIs(t, err, boom)
	_, err = l.Get()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}
