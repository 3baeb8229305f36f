package certinfo

import (
	"encoding/hex"
	"strings"
)

// HexString renders b as lowercase, colon-delimited hex.
func HexString(b []byte) string {
	return Delimit(hex.EncodeToString(b))
}

// Delimit inserts ':' after every two digits of a hex digit string.
// An odd number of digits is first padded with a leading '0', so "abc"
// becomes "0a:bc".
func Delimit(digits string) string {
	if len(digits)%2 != 0 {
		digits = "0" + digits
	}
	if digits == "" {
		return ""
	}

	var sb strings.Builder
	sb.Grow(len(digits) + len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(digits[i : i+2])
	}
	return sb.String()
}
