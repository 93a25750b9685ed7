package idnumber

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	t.Run("valid checksum", func(t *testing.T) {
		assert.NoError(t, Validate("8001015009087"))
	})

	t.Run("invalid checksum", func(t *testing.T) {
		assert.ErrorIs(t, Validate("1234567890123"), ErrInvalidChecksum)
	})

	t.Run("too short", func(t *testing.T) {
		assert.ErrorIs(t, Validate("80010150090"), ErrInvalidLength)
	})

	t.Run("non digits", func(t *testing.T) {
		assert.ErrorIs(t, Validate("80010150090AB"), ErrInvalidLength)
	})
}

func TestMask(t *testing.T) {
	assert.Equal(t, "8001******087", Mask("8001015009087"))
	assert.Equal(t, "***********", Mask("123"))
}
