// Package executor orchestrates one RequestScript end to end: variable
// declarations, pre-request handler, substitution, dispatch, response
// handler, and the Event the reporter renders for it.
package executor

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kvz-tools/dothttp/internal/report"
	"github.com/kvz-tools/dothttp/internal/restscript"
	"github.com/kvz-tools/dothttp/internal/scripthost"
	"github.com/kvz-tools/dothttp/internal/substitute"
	"github.com/kvz-tools/dothttp/internal/transport"
	"github.com/kvz-tools/dothttp/internal/vars"
)

// RequestValidationError marks a substituted request that can't be
// dispatched at all (spec.md §7): an unparseable URL, most commonly.
type RequestValidationError struct {
	Message string
}

func (e *RequestValidationError) Error() string { return "invalid request: " + e.Message }

// Executor runs request scripts sequentially against one Store, one
// transport.Client, and one scripthost.Host — the single-in-flight
// execution model of spec.md §5.
type Executor struct {
	Store      *vars.Store
	Transport  *transport.Client
	ScriptHost *scripthost.Host
	Warn       func(format string, args ...any)
}

func New(store *vars.Store, client *transport.Client, host *scripthost.Host, warn func(string, ...any)) *Executor {
	return &Executor{Store: store, Transport: client, ScriptHost: host, Warn: warn}
}

// Run executes one script and returns the Event the reporter should
// render for it. A transport or handler failure never panics the batch:
// it comes back as Event.Err so the caller can move on to the next script.
func (ex *Executor) Run(ctx context.Context, file string, script restscript.RequestScript) report.Event {
	requestScope := vars.NewMapScope()

	// Snapshot taken once, at request start: every substitution in this
	// request — @var declarations, URL, headers, body — reads this frozen
	// view of global/env, so a pre-request handler's client.global.set
	// only becomes visible starting with the *next* request.
	globalSnap := ex.Store.Global.Snapshot()
	envSnap := ex.Store.Env.Snapshot()
	resolve := func(name string) (any, bool) {
		if v, ok := requestScope.Get(name); ok {
			return v, true
		}
		if v, ok := globalSnap[name]; ok {
			return v, true
		}
		if v, ok := envSnap[name]; ok {
			return v, true
		}
		return nil, false
	}

	expander := substitute.NewExpander(resolve, ex.warnf)
	for _, decl := range script.VariableDecls {
		requestScope.Set(decl.Name, expander.Expand(decl.Value))
	}

	rc := &scripthost.RequestContext{
		Method:  script.Request.Method,
		URLRaw:  script.Request.Target.Raw(),
		Request: requestScope,
		Global:  ex.Store.Global,
		Env:     ex.Store.Env,
	}
	if script.HasBody {
		rc.BodyRaw = script.Body.Raw()
	}
	for _, h := range script.Request.Headers {
		rc.Headers = append(rc.Headers, scripthost.HeaderView{
			NameRaw:  h.Name.Raw(),
			ValueRaw: h.Value.Raw(),
		})
	}

	var tests []scripthost.TestOutcome
	if script.HasPreHandler {
		outcomes, err := ex.ScriptHost.RunPreHandler(ctx, script.PreHandler, rc)
		tests = append(tests, outcomes...)
		if err != nil {
			return report.Event{File: file, Name: script.Name, Method: script.Request.Method, Tests: tests, Err: err}
		}
	}

	method := script.Request.Method
	substitutedURL := expander.Expand(script.Request.Target)
	headers := map[string][]string{}
	for i, h := range script.Request.Headers {
		name := expander.Expand(h.Name)
		value := expander.Expand(h.Value)
		headers[name] = append(headers[name], value)
		rc.Headers[i].NameSubstituted = &name
		rc.Headers[i].ValueSubstituted = &value
	}
	rc.URLSubstituted = &substitutedURL

	var body string
	if script.HasBody {
		body = expander.Expand(script.Body)
		rc.BodySubstituted = &body
	}

	event := report.Event{
		File:    file,
		Name:    script.Name,
		Method:  method,
		URL:     substitutedURL,
		Headers: toHTTPHeader(headers),
		Body:    body,
	}

	if err := validate(method, substitutedURL); err != nil {
		event.Err = err
		event.Tests = tests
		return event
	}

	resp, err := ex.Transport.Dispatch(ctx, &transport.Request{
		Method:  method,
		URL:     substitutedURL,
		Headers: headers,
		Body:    []byte(body),
	})
	if err != nil {
		event.Err = err
		event.Tests = tests
		return event
	}

	event.StatusCode = resp.StatusCode
	event.Status = resp.Status
	event.RespHeaders = resp.Headers
	event.RespBody = resp.Body
	event.Duration = resp.Duration

	if script.HasResponseHandler {
		respCtx := &scripthost.ResponseContext{
			Status:      resp.StatusCode,
			Headers:     resp.Headers,
			Body:        resp.Body,
			ContentType: resp.Headers.Get("Content-Type"),
		}
		outcomes, herr := ex.ScriptHost.RunResponseHandler(ctx, script.ResponseHandler, rc, respCtx)
		tests = append(tests, outcomes...)
		if herr != nil {
			event.Err = herr
		}
	}
	event.Tests = tests
	return event
}

func (ex *Executor) warnf(format string, args ...any) {
	if ex.Warn != nil {
		ex.Warn(format, args...)
	}
}

func validate(method, rawURL string) error {
	if strings.TrimSpace(method) == "" {
		return &RequestValidationError{Message: "empty method"}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return &RequestValidationError{Message: fmt.Sprintf("invalid URL %q: %v", rawURL, err)}
	}
	if u.Scheme == "" || u.Host == "" {
		return &RequestValidationError{Message: fmt.Sprintf("URL %q must be absolute", rawURL)}
	}
	return nil
}

func toHTTPHeader(m map[string][]string) map[string][]string {
	return m
}
