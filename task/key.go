package task

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CacheKey derives the digest identifying the artifact a request resolves
// to. Two requests with the same effective parameters always map to the
// same key; the password participates only as its own hash, never in
// plaintext. The request must be normalized first.
func CacheKey(r *Request) string {
	payload := struct {
		AlbumID      string `json:"album_id"`
		OutputFormat string `json:"output_format"`
		Quality      int    `json:"quality"`
		Encrypt      bool   `json:"encrypt"`
		Compression  int    `json:"compression"`
		PasswordHash string `json:"password_hash"`
	}{
		AlbumID:      r.AlbumID,
		OutputFormat: r.OutputFormat,
		Quality:      r.Quality,
		Encrypt:      r.Encrypt,
		Compression:  *r.Compression,
		PasswordHash: hashPassword(r.Password),
	}

	// Struct field order fixes the serialization, so the digest is stable.
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func hashPassword(password string) string {
	if password == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
