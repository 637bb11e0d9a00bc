package encoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ToUTF8 converts a WIN1252 byte slice (the usual charset of legacy Firebird
// databases) to a trimmed UTF-8 string. Data that is already valid UTF-8 is
// passed through unchanged.
func ToUTF8(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	if utf8.Valid(b) {
		return strings.TrimSpace(string(b))
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		// Better a raw string than a dropped value
		return strings.TrimSpace(string(b))
	}

	return strings.TrimSpace(string(decoded))
}
