package restscript

import "strings"

// line is one line of source, with its 1-based line number and the byte
// offsets (within the full source) of its first character and of the
// character following its terminating newline (or len(source) at EOF).
type line struct {
	number int
	start  int
	end    int
	text   string
}

// lexer splits source into lines up front. The grammar in this package is
// line-structured everywhere except request bodies, which are taken as a
// raw byte range by scanning forward for a boundary rather than by
// tokenizing line by line; splitLines still gives the byte offsets that
// lookahead needs.
type lexer struct {
	source string
	lines  []line
	pos    int
}

func newLexer(source string) *lexer {
	return &lexer{source: source, lines: splitLines(source)}
}

func splitLines(source string) []line {
	var lines []line
	start := 0
	n := 1
	for start <= len(source) {
		idx := strings.IndexByte(source[start:], '\n')
		if idx < 0 {
			if start < len(source) {
				lines = append(lines, line{number: n, start: start, end: len(source), text: source[start:]})
			}
			break
		}
		end := start + idx + 1
		text := strings.TrimSuffix(source[start:end], "\n")
		text = strings.TrimSuffix(text, "\r")
		lines = append(lines, line{number: n, start: start, end: end, text: text})
		start = end
		n++
	}
	return lines
}

func (lx *lexer) peek() (line, bool) {
	if lx.pos >= len(lx.lines) {
		return line{}, false
	}
	return lx.lines[lx.pos], true
}

func (lx *lexer) peekAt(offset int) (line, bool) {
	idx := lx.pos + offset
	if idx < 0 || idx >= len(lx.lines) {
		return line{}, false
	}
	return lx.lines[idx], true
}

func (lx *lexer) next() (line, bool) {
	l, ok := lx.peek()
	if ok {
		lx.pos++
	}
	return l, ok
}

func (lx *lexer) atEOF() bool {
	return lx.pos >= len(lx.lines)
}

// byteOffsetAt returns the byte offset in source where the given
// lexer position starts, or len(source) if it's past the last line.
func (lx *lexer) byteOffsetAt(pos int) int {
	if pos >= len(lx.lines) {
		return len(lx.source)
	}
	return lx.lines[pos].start
}

func isSeparatorLine(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "###")
}

func isCommentLine(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, "###")
}

func isVariableDeclLine(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), "@")
}

func isPreHandlerStart(text string) bool {
	return strings.TrimSpace(text) == "< {%"
}

func isResponseHandlerStart(text string) bool {
	return strings.TrimSpace(text) == "> {%"
}

func isHandlerEnd(text string) bool {
	return strings.TrimSpace(text) == "%}"
}

func isBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
