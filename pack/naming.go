package pack

import "time"

// Naming selects the artifact filename rule. album_id and short_hash are
// pure functions of their inputs; random and date are not, which is why the
// cache index, not the rule, is the authority for existing artifacts.
type Naming struct {
	Rule          string // album_id | short_hash | random | date
	HashLength    int
	RandomLength  int
	RandomCharset string
	DateFormat    string
}

// Base returns the artifact filename without extension.
func (n Naming) Base(albumID, cacheKey string) string {
	switch n.Rule {
	case "album_id":
		return albumID
	case "random":
		length := n.RandomLength
		if length <= 0 {
			length = 8
		}
		token, err := randomString(length, n.RandomCharset)
		if err != nil {
			// Out of entropy; the short hash is still collision-safe per key.
			return n.shortHash(cacheKey)
		}
		return token
	case "date":
		format := n.DateFormat
		if format == "" {
			format = "20060102"
		}
		return time.Now().Format(format)
	default:
		return n.shortHash(cacheKey)
	}
}

func (n Naming) shortHash(cacheKey string) string {
	length := n.HashLength
	if length <= 0 || length > len(cacheKey) {
		length = 8
	}
	return cacheKey[:length]
}
