package pack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNamingBase(t *testing.T) {
	const key = "a3f1c9d2e5b7a3f1c9d2e5b7a3f1c9d2e5b7a3f1c9d2e5b7a3f1c9d2e5b7a3f1"

	t.Run("album_id", func(t *testing.T) {
		n := Naming{Rule: "album_id"}
		assert.Equal(t, "1000", n.Base("1000", key))
	})

	t.Run("short_hash", func(t *testing.T) {
		n := Naming{Rule: "short_hash", HashLength: 12}
		assert.Equal(t, key[:12], n.Base("1000", key))
	})

	t.Run("short_hash defaults to eight characters", func(t *testing.T) {
		n := Naming{Rule: "short_hash"}
		assert.Equal(t, key[:8], n.Base("1000", key))
	})

	t.Run("unknown rule falls back to short_hash", func(t *testing.T) {
		n := Naming{Rule: "bogus"}
		assert.Equal(t, key[:8], n.Base("1000", key))
	})

	t.Run("random", func(t *testing.T) {
		n := Naming{Rule: "random", RandomLength: 10, RandomCharset: "ab"}
		got := n.Base("1000", key)
		assert.Len(t, got, 10)
		for _, r := range got {
			assert.Contains(t, "ab", string(r))
		}
	})

	t.Run("date", func(t *testing.T) {
		n := Naming{Rule: "date", DateFormat: "20060102"}
		assert.Equal(t, time.Now().Format("20060102"), n.Base("1000", key))
	})
}

func TestGeneratePassword(t *testing.T) {
	t.Run("honors length and charset", func(t *testing.T) {
		pwd, err := GeneratePassword(16, "abc123")
		assert.NoError(t, err)
		assert.Len(t, pwd, 16)
		for _, r := range pwd {
			assert.Contains(t, "abc123", string(r))
		}
	})

	t.Run("defaults on zero values", func(t *testing.T) {
		pwd, err := GeneratePassword(0, "")
		assert.NoError(t, err)
		assert.Len(t, pwd, 12)
	})

	t.Run("two draws differ", func(t *testing.T) {
		a, err := GeneratePassword(24, "")
		assert.NoError(t, err)
		b, err := GeneratePassword(24, "")
		assert.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}
