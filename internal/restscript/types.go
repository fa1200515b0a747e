// Package restscript implements the grammar and parser for .http request
// script files: it turns the bytes of a file into an ordered Document of
// RequestScript entries, each carrying its own variable declarations,
// pre/response handler bodies and a templated request.
package restscript

import "strings"

// Segment is one piece of a Template: either literal text or a
// placeholder name extracted from a balanced {{ ... }} span.
type Segment struct {
	Literal     string
	Placeholder string
	IsPlaceholder bool
}

// Template is literal text interleaved with {{name}} placeholders, in the
// order they appeared in the source.
type Template struct {
	Segments []Segment
}

// Raw reconstructs the pre-substitution text of the template. Placeholder
// names come back trimmed, so whitespace inside the braces is not kept.
func (t Template) Raw() string {
	var b []byte
	for _, seg := range t.Segments {
		if seg.IsPlaceholder {
			b = append(b, "{{"...)
			b = append(b, seg.Placeholder...)
			b = append(b, "}}"...)
			continue
		}
		b = append(b, seg.Literal...)
	}
	return string(b)
}

// NewTemplate parses {{name}} placeholders out of raw text. Whitespace
// inside the braces is trimmed from the placeholder name; a nested "{{"
// before the matching "}}" is a parse error.
func NewTemplate(raw string) (Template, error) {
	var tpl Template
	i := 0
	for i < len(raw) {
		start := indexFrom(raw, "{{", i)
		if start < 0 {
			tpl.Segments = append(tpl.Segments, Segment{Literal: raw[i:]})
			break
		}
		if start > i {
			tpl.Segments = append(tpl.Segments, Segment{Literal: raw[i:start]})
		}
		bodyStart := start + 2
		if nested := indexFrom(raw, "{{", bodyStart); nested >= 0 {
			if end := indexFrom(raw, "}}", bodyStart); end < 0 || nested < end {
				return Template{}, &ParseError{Message: "nested {{ inside placeholder"}
			}
		}
		end := indexFrom(raw, "}}", bodyStart)
		if end < 0 {
			return Template{}, &ParseError{Message: "unterminated {{ placeholder"}
		}
		name := strings.TrimSpace(raw[bodyStart:end])
		tpl.Segments = append(tpl.Segments, Segment{Placeholder: name, IsPlaceholder: true})
		i = end + 2
	}
	return tpl, nil
}

func indexFrom(s, sub string, from int) int {
	if from > len(s) {
		return -1
	}
	idx := strings.Index(s[from:], sub)
	if idx < 0 {
		return -1
	}
	return idx + from
}

// HeaderField is one header line of a request: both the name and the
// value may themselves contain placeholders.
type HeaderField struct {
	Name  Template
	Value Template
	Line  int
}

// VariableDeclaration is an `@name = value` line appearing before the
// request line of a script; the value is stored as a template and
// re-substituted at use.
type VariableDeclaration struct {
	Name  string
	Value Template
	Line  int
}

// Request is the templated method/target/headers/http-version of a
// RequestScript, before substitution.
type Request struct {
	Method      string
	Target      Template
	HTTPVersion string
	Headers     []HeaderField
	Line        int
}

// RequestScript is one ###-delimited block of a .http file.
type RequestScript struct {
	Name               string
	VariableDecls      []VariableDeclaration
	PreHandler         string
	HasPreHandler      bool
	Request            Request
	Body               Template
	HasBody            bool
	ResponseHandler    string
	HasResponseHandler bool
	Line               int
}

// Document is the parsed form of one .http file.
type Document struct {
	Path     string
	Scripts  []RequestScript
}

// ParseError is fatal for the file it occurred in; other CLI files still
// process independently.
type ParseError struct {
	Line     int
	Column   int
	Expected string
	Message  string
}

func (e *ParseError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "parse error: expected " + e.Expected
}
