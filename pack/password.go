package pack

import (
	"crypto/rand"
	"errors"
	"math/big"
)

const fallbackCharset = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// GeneratePassword draws a random password from the configured policy.
func GeneratePassword(length int, charset string) (string, error) {
	if length <= 0 {
		length = 12
	}
	if charset == "" {
		charset = fallbackCharset
	}
	return randomString(length, charset)
}

func randomString(length int, charset string) (string, error) {
	if charset == "" {
		charset = fallbackCharset
	}
	runes := []rune(charset)
	if len(runes) == 0 {
		return "", errors.New("empty charset")
	}

	max := big.NewInt(int64(len(runes)))
	out := make([]rune, length)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = runes[idx.Int64()]
	}
	return string(out), nil
}
