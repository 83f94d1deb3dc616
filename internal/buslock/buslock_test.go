package buslock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	r := &Registry{}
	release, err := r.Acquire("SPI0.0")
	require.NoError(t, err)
	assert.True(t, r.Held("SPI0.0"))

	_, err = r.Acquire("SPI0.0")
	require.ErrorIs(t, err, ErrHeld)
	assert.Contains(t, err.Error(), "SPI0.0")

	release()
	assert.False(t, r.Held("SPI0.0"))

	release2, err := r.Acquire("SPI0.0")
	require.NoError(t, err)
	release2()
}

func TestReleaseIdempotent(t *testing.T) {
	t.Parallel()

	r := &Registry{}
	release, err := r.Acquire("a")
	require.NoError(t, err)
	release()

	other, err := r.Acquire("a")
	require.NoError(t, err)

	// A stale release must not free the new owner's claim.
	release()
	assert.True(t, r.Held("a"))
	other()
}

func TestIndependentNames(t *testing.T) {
	t.Parallel()

	r := &Registry{}
	ra, err := r.Acquire("spi:SPI0.0")
	require.NoError(t, err)
	rb, err := r.Acquire("uart:/dev/ttyS0")
	require.NoError(t, err)
	ra()
	rb()
	assert.False(t, r.Held("spi:SPI0.0"))
	assert.False(t, r.Held("uart:/dev/ttyS0"))
}
