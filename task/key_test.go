package task

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalized(t *testing.T, req Request) *Request {
	t.Helper()
	require.NoError(t, req.Normalize())
	return &req
}

func TestCacheKey(t *testing.T) {
	t.Run("identical effective parameters map to the same key", func(t *testing.T) {
		a := normalized(t, Request{AlbumID: "1000", OutputFormat: "zip", Encrypt: true, Password: "s3cret"})
		b := normalized(t, Request{AlbumID: "1000", OutputFormat: "zip", Encrypt: true, Password: "s3cret"})
		assert.Equal(t, CacheKey(a), CacheKey(b))
	})

	t.Run("every parameter participates", func(t *testing.T) {
		base := normalized(t, Request{AlbumID: "1000", OutputFormat: "zip"})
		variants := []Request{
			{AlbumID: "1001", OutputFormat: "zip"},
			{AlbumID: "1000", OutputFormat: "pdf"},
			{AlbumID: "1000", OutputFormat: "zip", Quality: 85},
			{AlbumID: "1000", OutputFormat: "zip", Encrypt: true},
			{AlbumID: "1000", OutputFormat: "zip", Compression: intPtr(9)},
			{AlbumID: "1000", OutputFormat: "zip", Encrypt: true, Password: "x"},
		}
		for _, v := range variants {
			assert.NotEqual(t, CacheKey(base), CacheKey(normalized(t, v)))
		}
	})

	t.Run("proxy override does not affect the key", func(t *testing.T) {
		proxy := "127.0.0.1:7890"
		a := normalized(t, Request{AlbumID: "1000", OutputFormat: "zip"})
		b := normalized(t, Request{AlbumID: "1000", OutputFormat: "zip", Proxy: &proxy})
		assert.Equal(t, CacheKey(a), CacheKey(b))
	})

	t.Run("password never appears in plaintext", func(t *testing.T) {
		req := normalized(t, Request{AlbumID: "1000", OutputFormat: "zip", Encrypt: true, Password: "hunter2hunter2"})
		key := CacheKey(req)
		assert.False(t, strings.Contains(key, "hunter2"))
		assert.Len(t, key, 64)
	})
}

func TestRequestNormalize(t *testing.T) {
	t.Run("defaults format and compression", func(t *testing.T) {
		req := Request{AlbumID: "1000"}
		require.NoError(t, req.Normalize())
		assert.Equal(t, "zip", req.OutputFormat)
		require.NotNil(t, req.Compression)
		assert.Equal(t, 6, *req.Compression)
	})

	t.Run("rejects bad parameters", func(t *testing.T) {
		bad := []Request{
			{},
			{AlbumID: "1000", OutputFormat: "rar"},
			{AlbumID: "1000", Quality: 101},
			{AlbumID: "1000", Compression: intPtr(10)},
			{AlbumID: "1000", Proxy: strPtr("no-port")},
			{AlbumID: "1000", Proxy: strPtr("")},
			{AlbumID: "../escaped"},
			{AlbumID: "a/b"},
			{AlbumID: `a\b`},
			{AlbumID: "a:b"},
			{AlbumID: ".."},
			{AlbumID: "1000 "},
		}
		for _, req := range bad {
			err := req.Normalize()
			assert.ErrorIs(t, err, ErrInvalidParameter)
		}
	})

	t.Run("accepts host:port proxy", func(t *testing.T) {
		req := Request{AlbumID: "1000", Proxy: strPtr("127.0.0.1:7890")}
		assert.NoError(t, req.Normalize())
	})
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
