// Package substitute expands {{name}} placeholders in a restscript.Template
// against a resolver snapshot taken once at the start of a request.
package substitute

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kvz-tools/dothttp/internal/restscript"
	"github.com/kvz-tools/dothttp/internal/vars"
)

// Resolve looks a placeholder name up in whatever scope snapshot the
// caller bound it to (request/global/env); it does not itself know about
// dynamic variables, which Expander falls back to for any name it misses.
type Resolve func(name string) (any, bool)

// Expander expands templates against a single resolver, warning at most
// once per missing name for the lifetime of the Expander. One Expander is
// built per request so the "one warning per name per request" rule in
// spec.md §4.D holds without extra bookkeeping in the executor.
type Expander struct {
	resolve Resolve
	warn    func(format string, args ...any)
	warned  map[string]bool
}

func NewExpander(resolve Resolve, warn func(format string, args ...any)) *Expander {
	return &Expander{resolve: resolve, warn: warn, warned: make(map[string]bool)}
}

// Expand renders a template to its final string, substituting each
// placeholder exactly once with the snapshot value (or a dynamic
// variable) it resolved to. A placeholder that resolves to nothing is
// left as literal "{{name}}" text, never re-scanned for further
// placeholders.
func (e *Expander) Expand(tpl restscript.Template) string {
	var out []byte
	for _, seg := range tpl.Segments {
		if !seg.IsPlaceholder {
			out = append(out, seg.Literal...)
			continue
		}
		out = append(out, e.resolveOne(seg.Placeholder)...)
	}
	return string(out)
}

func (e *Expander) resolveOne(name string) string {
	if e.resolve != nil {
		if v, ok := e.resolve(name); ok {
			return serialize(v)
		}
	}

	if v, ok, err := vars.ResolveDynamic(name); ok {
		if err != nil {
			e.warnOnce(name, "dynamic variable %q failed: %v", name, err)
			return "{{" + name + "}}"
		}
		return serialize(v)
	}

	e.warnOnce(name, "unresolved variable: %s", name)
	return "{{" + name + "}}"
}

func (e *Expander) warnOnce(name, format string, args ...any) {
	if e.warned[name] {
		return
	}
	e.warned[name] = true
	if e.warn != nil {
		e.warn(format, args...)
	}
}

// serialize renders a resolved value for insertion into templated text.
// Strings are inserted verbatim; numbers and booleans use their literal
// textual form; objects and arrays are JSON-encoded, matching how a
// response.body or client.global value is expected to render inline.
func serialize(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
