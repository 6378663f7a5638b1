package review

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"unicode"
)

// NormalizeProductURL derives the cache key for a product URL: lowercase
// scheme and host, path preserved, query and fragment stripped. Two URLs that
// normalize equally are the same product for caching purposes.
func NormalizeProductURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", &url.Error{Op: "normalize", URL: raw, Err: errMissingHost}
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}

var errMissingHost = &missingHostError{}

type missingHostError struct{}

func (*missingHostError) Error() string { return "url must include scheme and host" }

// NormalizeText canonicalizes review text for deduplication: lowercased with
// runs of whitespace collapsed to a single space.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Fingerprint computes the dedup key for a review: the hex SHA-256 of its
// source URL and normalized text. The store enforces uniqueness per product
// on this value.
func Fingerprint(sourceURL, text string) string {
	h := sha256.New()
	h.Write([]byte(sourceURL))
	h.Write([]byte{0})
	h.Write([]byte(NormalizeText(text)))
	return hex.EncodeToString(h.Sum(nil))
}

// ProductNameFromURL extracts a human-readable product name from the last
// meaningful path segment, mirroring typical storefront URL shapes.
func ProductNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "Unknown Product"
	}
	parts := strings.Split(u.Path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		part := parts[i]
		if len(part) <= 2 || isAllDigits(part) {
			continue
		}
		part = strings.NewReplacer("-", " ", "_", " ").Replace(part)
		return titleCase(part)
	}
	return "Unknown Product"
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
