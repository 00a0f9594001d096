package validation

import (
	"strings"
	"unicode"
)

// formulaLeaders start a formula in Excel, LibreOffice and Google Sheets.
const formulaLeaders = "=+-@"

// EscapeCell prefixes s with a single quote when a spreadsheet would
// evaluate it as a formula. Leading spaces do not protect a cell; a leading
// tab or carriage return is escaped too.
func EscapeCell(s string) string {
	if s == "" {
		return s
	}
	if s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	if lead := strings.TrimLeft(s, " "); lead != "" && strings.IndexByte(formulaLeaders, lead[0]) >= 0 {
		return "'" + s
	}
	return s
}

func keepRune(r rune) bool {
	return r == '\t' || r == '\n' || r == '\r' || unicode.IsPrint(r)
}

// StripControl drops control and format runes (NUL, a UTF-8 byte order
// mark) from broker CSV cells.
func StripControl(s string) string {
	if strings.IndexFunc(s, func(r rune) bool { return !keepRune(r) }) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if keepRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
