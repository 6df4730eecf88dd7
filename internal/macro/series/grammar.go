// Package series enumerates candidate series identifiers from classification
// code universes and validates them against a structural grammar and the
// upstream source.
package series

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Charset restricts the characters of a fixed-width field.
type Charset string

const (
	Digits       Charset = "digit"
	Letters      Charset = "alpha" // upper-case A-Z
	Alphanumeric Charset = "alnum" // upper-case A-Z and 0-9
)

func (c Charset) allows(r byte) bool {
	isDigit := r >= '0' && r <= '9'
	isUpper := r >= 'A' && r <= 'Z'
	switch c {
	case Digits:
		return isDigit
	case Letters:
		return isUpper
	default:
		return isDigit || isUpper
	}
}

// Field is one fixed-width segment of an identifier.
type Field struct {
	Name    string
	Width   int
	Charset Charset
}

// Grammar is a literal prefix followed by fixed-width fields, e.g. "PC" +
// 2-digit industry + 1-letter data type.
type Grammar struct {
	Prefix string
	Fields []Field
}

// MalformedError describes why an identifier or code does not fit a grammar.
type MalformedError struct {
	Input  string
	Reason string
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed identifier %q: %s", e.Input, e.Reason)
}

// IsMalformed reports whether err (or its chain) is a MalformedError.
func IsMalformed(err error) bool {
	var me *MalformedError
	return eris.As(err, &me)
}

// Width returns the total identifier length.
func (g Grammar) Width() int {
	n := len(g.Prefix)
	for _, f := range g.Fields {
		n += f.Width
	}
	return n
}

// CheckField validates a single code against field i.
func (g Grammar) CheckField(i int, code string) error {
	if i < 0 || i >= len(g.Fields) {
		return eris.Errorf("series: field index %d out of range", i)
	}
	f := g.Fields[i]
	if len(code) != f.Width {
		return &MalformedError{Input: code, Reason: fmt.Sprintf("field %s wants width %d, got %d", f.Name, f.Width, len(code))}
	}
	for j := 0; j < len(code); j++ {
		if !f.Charset.allows(code[j]) {
			return &MalformedError{Input: code, Reason: fmt.Sprintf("field %s: character %q not in %s", f.Name, code[j], f.Charset)}
		}
	}
	return nil
}

// Parse splits a full identifier into its field codes.
func (g Grammar) Parse(id string) ([]string, error) {
	if len(id) != g.Width() {
		return nil, &MalformedError{Input: id, Reason: fmt.Sprintf("want length %d, got %d", g.Width(), len(id))}
	}
	if !strings.HasPrefix(id, g.Prefix) {
		return nil, &MalformedError{Input: id, Reason: fmt.Sprintf("want prefix %q", g.Prefix)}
	}
	codes := make([]string, len(g.Fields))
	off := len(g.Prefix)
	for i, f := range g.Fields {
		code := id[off : off+f.Width]
		if err := g.CheckField(i, code); err != nil {
			return nil, &MalformedError{Input: id, Reason: err.(*MalformedError).Reason}
		}
		codes[i] = code
		off += f.Width
	}
	return codes, nil
}

// Compose joins one code per field into an identifier and validates it.
func (g Grammar) Compose(codes []string) (string, error) {
	if len(codes) != len(g.Fields) {
		return "", &MalformedError{Input: strings.Join(codes, "|"), Reason: fmt.Sprintf("want %d codes, got %d", len(g.Fields), len(codes))}
	}
	var b strings.Builder
	b.Grow(g.Width())
	b.WriteString(g.Prefix)
	for _, c := range codes {
		b.WriteString(c)
	}
	id := b.String()
	if _, err := g.Parse(id); err != nil {
		return "", err
	}
	return id, nil
}
