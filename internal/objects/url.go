package objects

import (
	"strings"
)

const urlSafe = "/~:@?=&#+%,-_."

// quoteURL percent-encodes every byte outside the unreserved set and urlSafe.
func quoteURL(s string) string {
	var b strings.Builder
	const hex = "0123456789ABCDEF"
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') || strings.IndexByte(urlSafe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

// SanitizeURL quotes unsafe characters and requires an http(s) scheme.
func SanitizeURL(raw string) (string, error) {
	quoted := quoteURL(raw)
	if !strings.HasPrefix(quoted, "http://") && !strings.HasPrefix(quoted, "https://") {
		return "", errorf("Invalid URL: Sanitized URL should start with 'http://' or 'https://'; received %s", quoted)
	}
	return quoted, nil
}

func normSanitizedURL(v interface{}) (interface{}, error) {
	s, err := normUnicode(v)
	if err != nil {
		return nil, err
	}
	return SanitizeURL(s.(string))
}
