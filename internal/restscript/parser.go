package restscript

import "strings"

// Parse turns the full text of one .http file into a Document. A parse
// failure is fatal only for the file it occurred in; callers processing
// multiple files should keep going with the rest.
func Parse(path, source string) (*Document, error) {
	lx := newLexer(source)
	doc := &Document{Path: path}

	skipBlankAndComments(lx)
	for !lx.atEOF() {
		script, err := parseScript(lx)
		if err != nil {
			return nil, err
		}
		doc.Scripts = append(doc.Scripts, script)
		skipBlankAndComments(lx)
	}
	return doc, nil
}

func skipBlankAndComments(lx *lexer) {
	for {
		l, ok := lx.peek()
		if !ok {
			return
		}
		if isBlank(l.text) || isCommentLine(l.text) {
			lx.next()
			continue
		}
		return
	}
}

func parseScript(lx *lexer) (RequestScript, error) {
	var script RequestScript

	if l, ok := lx.peek(); ok && isSeparatorLine(l.text) {
		lx.next()
		script.Name = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l.text), "###"))
		script.Line = l.number
	}

	skipBlankAndComments(lx)
	if script.Line == 0 {
		if l, ok := lx.peek(); ok {
			script.Line = l.number
		}
	}

	for {
		l, ok := lx.peek()
		if !ok || !isVariableDeclLine(l.text) {
			break
		}
		lx.next()
		decl, err := parseVariableDecl(l)
		if err != nil {
			return script, err
		}
		script.VariableDecls = append(script.VariableDecls, decl)
		skipBlankAndComments(lx)
	}

	if l, ok := lx.peek(); ok && isPreHandlerStart(l.text) {
		body, err := consumeHandlerBlock(lx)
		if err != nil {
			return script, err
		}
		script.PreHandler = body
		script.HasPreHandler = true
		skipBlankAndComments(lx)
	}

	req, err := parseRequestLine(lx)
	if err != nil {
		return script, err
	}
	script.Request = req

	headers, err := parseHeaders(lx)
	if err != nil {
		return script, err
	}
	script.Request.Headers = headers

	if l, ok := lx.peek(); ok && isBlank(l.text) {
		lx.next()
		bodyRaw := consumeBodyRaw(lx)
		if bodyRaw != "" {
			tpl, err := NewTemplate(bodyRaw)
			if err != nil {
				return script, err
			}
			script.Body = tpl
			script.HasBody = true
		}
	}

	skipBlankAndComments(lx)
	if l, ok := lx.peek(); ok && isResponseHandlerStart(l.text) {
		body, err := consumeHandlerBlock(lx)
		if err != nil {
			return script, err
		}
		script.ResponseHandler = body
		script.HasResponseHandler = true
	}

	skipBlankAndComments(lx)
	return script, nil
}

func parseVariableDecl(l line) (VariableDeclaration, error) {
	trimmed := strings.TrimSpace(l.text)
	rest := strings.TrimPrefix(trimmed, "@")
	eq := strings.Index(rest, "=")
	if eq < 0 {
		return VariableDeclaration{}, &ParseError{Line: l.number, Message: "expected '=' in @ variable declaration"}
	}
	name := strings.TrimSpace(rest[:eq])
	if name == "" {
		return VariableDeclaration{}, &ParseError{Line: l.number, Message: "empty variable name in @ declaration"}
	}
	valueRaw := strings.TrimSpace(rest[eq+1:])
	tpl, err := NewTemplate(valueRaw)
	if err != nil {
		return VariableDeclaration{}, err
	}
	return VariableDeclaration{Name: name, Value: tpl, Line: l.number}, nil
}

// consumeHandlerBlock consumes the opening marker line, every line up to
// (not including) the "%}" closer, and the closer itself, returning the
// raw script text between them.
func consumeHandlerBlock(lx *lexer) (string, error) {
	open, _ := lx.next()
	var b strings.Builder
	for {
		l, ok := lx.peek()
		if !ok {
			return "", &ParseError{Line: open.number, Message: "unterminated handler block, expected %}"}
		}
		if isHandlerEnd(l.text) {
			lx.next()
			return strings.TrimSpace(b.String()), nil
		}
		lx.next()
		b.WriteString(l.text)
		b.WriteByte('\n')
	}
}

// parseRequestLine reads the method, the (possibly multi-line) target,
// and an optional trailing HTTP version token.
func parseRequestLine(lx *lexer) (Request, error) {
	l, ok := lx.next()
	if !ok {
		return Request{}, &ParseError{Message: "expected request line, found end of file"}
	}
	trimmed := strings.TrimSpace(l.text)
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return Request{}, &ParseError{Line: l.number, Message: "expected 'METHOD target' request line"}
	}

	// No method given, or the first token isn't a recognized method: the
	// whole line is the target and the method defaults to GET.
	method, targetRaw := "GET", trimmed
	if len(fields) > 1 && isValidMethod(fields[0]) {
		method = fields[0]
		targetRaw = strings.TrimSpace(strings.TrimPrefix(trimmed, method))
	}

	for {
		cont, ok := lx.peek()
		if !ok || isBlank(cont.text) || !startsIndented(cont.text) {
			break
		}
		lx.next()
		targetRaw += strings.TrimSpace(cont.text)
	}

	httpVersion := ""
	if idx := strings.LastIndex(targetRaw, " HTTP/"); idx >= 0 {
		httpVersion = strings.TrimSpace(targetRaw[idx+1:])
		targetRaw = strings.TrimSpace(targetRaw[:idx])
	}

	tpl, err := NewTemplate(targetRaw)
	if err != nil {
		return Request{}, err
	}
	return Request{Method: method, Target: tpl, HTTPVersion: httpVersion, Line: l.number}, nil
}

func parseHeaders(lx *lexer) ([]HeaderField, error) {
	var headers []HeaderField
	for {
		l, ok := lx.peek()
		if !ok || isBlank(l.text) || isSeparatorLine(l.text) ||
			isPreHandlerStart(l.text) || isResponseHandlerStart(l.text) {
			break
		}
		lx.next()
		colon := strings.Index(l.text, ":")
		if colon < 0 {
			return nil, &ParseError{Line: l.number, Message: "expected 'Name: value' header line"}
		}
		nameTpl, err := NewTemplate(strings.TrimSpace(l.text[:colon]))
		if err != nil {
			return nil, err
		}
		valueTpl, err := NewTemplate(strings.TrimSpace(l.text[colon+1:]))
		if err != nil {
			return nil, err
		}
		headers = append(headers, HeaderField{Name: nameTpl, Value: valueTpl, Line: l.number})
	}
	return headers, nil
}

// consumeBodyRaw returns the raw, untokenized bytes of the request body:
// everything up to (not including) the next request separator, response
// handler marker, or end of file. Trailing blank lines and line endings
// before that boundary are kept as part of the body.
func consumeBodyRaw(lx *lexer) string {
	startOffset := lx.byteOffsetAt(lx.pos)
	endPos := lx.pos
	for endPos < len(lx.lines) {
		l := lx.lines[endPos]
		if isSeparatorLine(l.text) || isResponseHandlerStart(l.text) {
			break
		}
		endPos++
	}
	endOffset := lx.byteOffsetAt(endPos)
	lx.pos = endPos

	return lx.source[startOffset:endOffset]
}

func startsIndented(text string) bool {
	return len(text) > 0 && (text[0] == ' ' || text[0] == '\t')
}

func isValidMethod(s string) bool {
	if len(s) < 3 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
