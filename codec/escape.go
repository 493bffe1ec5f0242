package codec

import "strings"

// Sentinels replacing characters that collide with the file format's
// delimiters. Every higher layer shares this convention.
const (
	// NewlineSentinel stands in for a literal newline inside a value.
	NewlineSentinel = "_newline_"
	// RecordSeparator separates records in data files.
	RecordSeparator = "----------"
	// SeparatorSentinel stands in for a literal record separator
	// inside a value.
	SeparatorSentinel = "---"
)

// EscapeValue replaces newlines and record separators in a value with
// their sentinels before the value is embedded in a line.
func EscapeValue(v string) string {
	v = strings.ReplaceAll(v, RecordSeparator, SeparatorSentinel)
	return strings.ReplaceAll(v, "\n", NewlineSentinel)
}

// UnescapeValue reverses EscapeValue.
func UnescapeValue(v string) string {
	v = strings.ReplaceAll(v, NewlineSentinel, "\n")
	return strings.ReplaceAll(v, SeparatorSentinel, RecordSeparator)
}
