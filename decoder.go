package datamine

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"
)

// commaToken temporarily stands in for escaped commas so the field split
// only breaks on real delimiters.
const commaToken = "$|$"

// maxLineBytes bounds a single raw result line.
const maxLineBytes = 1 << 20

// newLineScanner wraps the result stream in a line scanner sized for wide rows.
func newLineScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return scanner
}

// decodeASCII decodes a raw line permissively: bytes outside 7-bit ASCII are
// dropped rather than failing the row.
func decodeASCII(raw []byte) string {
	var sb strings.Builder
	sb.Grow(len(raw))
	for _, b := range raw {
		if b < utf8.RuneSelf {
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

// decodeFields decodes one raw data row into trimmed field values.
// Steps, in order: permissive byte decode, strip the NULL sentinel,
// unescape colons, protect escaped commas, split, restore commas, trim.
func decodeFields(raw []byte) []string {
	line := decodeASCII(raw)
	line = strings.ReplaceAll(line, `\N`, ``)
	line = strings.ReplaceAll(line, `\:`, `:`)
	line = strings.ReplaceAll(line, `\,`, commaToken)

	fields := strings.Split(line, ",")
	for i, field := range fields {
		field = strings.ReplaceAll(field, commaToken, ",")
		fields[i] = strings.TrimSpace(field)
	}
	return fields
}

// parseHeader decodes the header row into uppercased, trimmed column names.
// The header uses the plain decode/trim pipeline without escape handling.
func parseHeader(raw []byte) []string {
	line := strings.ToUpper(decodeASCII(raw))

	columns := strings.Split(line, ",")
	for i, column := range columns {
		columns[i] = strings.TrimSpace(column)
	}
	return columns
}
