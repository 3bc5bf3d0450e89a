package shortener

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// MaxURLLength is the longest URL accepted for shortening.
const MaxURLLength = 2048

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(rawURL string) error {
	if rawURL == "" || len(rawURL) > MaxURLLength {
		return ErrInvalidURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrInvalidURL
	}

	if u.Host == "" {
		return ErrInvalidURL
	}

	return nil
}

// HashURL computes a SHA256 hash of the long URL exactly as submitted.
// Owners are deduplicated on the literal string, so no normalization is applied.
func HashURL(longURL string) URLHash {
	h := sha256.Sum256([]byte(longURL))

	return URLHash(hex.EncodeToString(h[:]))
}
