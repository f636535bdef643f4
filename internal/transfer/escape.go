package transfer

import "strings"

// formulaTriggers are leading characters spreadsheet applications treat as
// the start of a formula or control sequence.
const formulaTriggers = "=+-@\t\r\x00"

// spaceTriggers may follow a single leading space and still be evaluated.
const spaceTriggers = "=+-@"

// guarded reports whether v would be read as a formula and therefore needs an
// apostrophe prefix. A value that already starts with an apostrophe in front of
// such a prefix is guarded as well, so the decoder can strip exactly one
// apostrophe and recover the original text.
func guarded(v string) bool {
	if v == "" {
		return false
	}
	switch {
	case strings.IndexByte(formulaTriggers, v[0]) >= 0:
		return true
	case v[0] == ' ' && len(v) > 1 && strings.IndexByte(spaceTriggers, v[1]) >= 0:
		return true
	case v[0] == '\'':
		return guarded(v[1:])
	}
	return false
}

// EscapeCSVField renders v as a single CSV field that spreadsheet
// applications will not evaluate.
//
// Quotes are doubled first, then a formula-looking value gets an apostrophe
// prefix, and only then is the field wrapped in quotes if it contains a
// delimiter, quote or newline.
func EscapeCSVField(v string) string {
	s := strings.ReplaceAll(v, `"`, `""`)
	if guarded(s) {
		s = "'" + s
	}
	if strings.ContainsAny(s, ",\"\r\n") {
		s = `"` + s + `"`
	}
	return s
}

// UnescapeCSVField reverses the apostrophe prefix added by EscapeCSVField on a
// field that has already been unquoted by a CSV reader.
//
// The prefix cannot be told apart from an apostrophe typed by a person, so a
// value from another tool that starts with one in front of a formula
// character, such as '=x, loses that apostrophe on import.
func UnescapeCSVField(v string) string {
	if len(v) > 1 && v[0] == '\'' && guarded(v[1:]) {
		return v[1:]
	}
	return v
}
