package extractor

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// decodeText reads raw bytes as UTF-8, replacing every invalid sequence
// with U+FFFD. It never fails.
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	out, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return string([]rune(string(data)))
	}
	return string(out)
}

// decodeLatin1 reinterprets s byte by byte as ISO-8859-1.
func decodeLatin1(s string) string {
	out, err := charmap.ISO8859_1.NewDecoder().String(s)
	if err != nil {
		return decodeText([]byte(s))
	}
	return out
}
