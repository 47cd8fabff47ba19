package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		hash, err := HashPassword("s3cret-pass", 4)
		require.NoError(t, err)
		assert.True(t, VerifyPassword(hash, "s3cret-pass"))
		assert.False(t, VerifyPassword(hash, "wrong-pass"))
	})

	t.Run("out-of-range cost falls back to the default", func(t *testing.T) {
		for _, cost := range []int{-1, 0, 99} {
			hash, err := HashPassword("s3cret-pass", cost)
			require.NoError(t, err)
			assert.True(t, VerifyPassword(hash, "s3cret-pass"))
		}
	})
}
