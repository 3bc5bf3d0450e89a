package keys

import (
	"errors"
	"strings"
)

// Alphabet orders digits, then uppercase, then lowercase letters.
const Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

const base = uint64(len(Alphabet))

var (
	ErrInvalidCharacter = errors.New("invalid character in base62 string")
	ErrOverflow         = errors.New("decoded value exceeds uint64 range")
)

// Encode writes n in positional base62, left-padded with the first symbol to width.
// Values needing more than width symbols are returned unpadded.
func Encode(n uint64, width int) string {
	var buf [11]byte // 62^11 > 2^64

	i := len(buf)

	for {
		i--
		buf[i] = Alphabet[n%base]
		n /= base

		if n == 0 {
			break
		}
	}

	encoded := string(buf[i:])
	if len(encoded) >= width {
		return encoded
	}

	return strings.Repeat(Alphabet[:1], width-len(encoded)) + encoded
}

// Decode is the inverse of Encode. Padding decodes as leading zeros.
// It is intended for diagnostics only.
func Decode(s string) (uint64, error) {
	var n uint64

	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(Alphabet, s[i])
		if idx < 0 {
			return 0, ErrInvalidCharacter
		}

		if n > (^uint64(0)-uint64(idx))/base {
			return 0, ErrOverflow
		}

		n = n*base + uint64(idx)
	}

	return n, nil
}
