package keys_test

import (
	"math"
	"testing"

	"github.com/serroba/shortlink/internal/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		input    uint64
		width    int
		expected string
	}{
		{"zero unpadded", 0, 0, "0"},
		{"zero padded", 0, 7, "0000000"},
		{"ten is first uppercase", 10, 1, "A"},
		{"base minus one", 61, 1, "z"},
		{"base", 62, 7, "0000010"},
		{"large number", 123456789, 7, "008M0kX"},
		{"wider than padding", 3521614606207, 6, "zzzzzzz"},
		{"max uint64", math.MaxUint64, 7, "LygHa16AHYF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, keys.Encode(tt.input, tt.width))
		})
	}
}

func TestDecode(t *testing.T) {
	t.Run("inverts padded codes", func(t *testing.T) {
		for _, n := range []uint64{0, 1, 61, 62, 123456789, math.MaxUint64} {
			got, err := keys.Decode(keys.Encode(n, 7))

			require.NoError(t, err)
			assert.Equal(t, n, got)
		}
	})

	t.Run("rejects foreign symbols", func(t *testing.T) {
		_, err := keys.Decode("00-0000")

		assert.ErrorIs(t, err, keys.ErrInvalidCharacter)
	})

	t.Run("rejects overflow", func(t *testing.T) {
		_, err := keys.Decode("zzzzzzzzzzzz")

		assert.ErrorIs(t, err, keys.ErrOverflow)
	})
}
