// Package scripthost embeds a synchronous JavaScript runtime for the
// pre-request and response handler blocks of a request script, binding
// client/request/response objects the way scripts written against this
// tool expect.
package scripthost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/tidwall/gjson"

	"github.com/kvz-tools/dothttp/internal/vars"
)

// HandlerError is fatal for the request whose handler produced it: a
// pre-request or response handler that throws outside of a named test
// aborts that request (spec.md §7).
type HandlerError struct {
	Stage   string // "pre-request" or "response"
	Message string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler error: %s", e.Stage, e.Message)
}

// TestOutcome is one client.test(...) invocation's result.
type TestOutcome struct {
	Name    string
	Passed  bool
	Message string
	Elapsed time.Duration
}

// HeaderView is one request header as seen by a script: its raw,
// pre-substitution text and, once substitution has run, the value that
// was actually sent.
type HeaderView struct {
	NameRaw          string
	NameSubstituted  *string
	ValueRaw         string
	ValueSubstituted *string
}

// RequestContext is everything a pre-request or response handler script
// can see and mutate about the request it belongs to. URLSubstituted and
// BodySubstituted are nil until the executor has run substitution, which
// happens after the pre-request handler — so request.url.tryGetSubstituted()
// correctly reports "not yet available" when called from a pre-request
// script.
type RequestContext struct {
	Method         string
	URLRaw         string
	URLSubstituted *string
	BodyRaw        string
	BodySubstituted *string
	Headers        []HeaderView

	Request *vars.MapScope
	Global  *vars.MapScope
	Env     *vars.MapScope
}

// ResponseContext is the dispatched response, available only to response
// handler scripts.
type ResponseContext struct {
	Status      int
	Headers     http.Header
	Body        []byte
	ContentType string
}

// Host runs pre-request and response handler scripts against a goja
// runtime constructed fresh for each call, matching the one-VM-per-script
// lifetime used by the scripting host this package is grounded on.
type Host struct {
	Stdout io.Writer
}

func NewHost(stdout io.Writer) *Host {
	if stdout == nil {
		stdout = io.Discard
	}
	return &Host{Stdout: stdout}
}

// RunPreHandler executes a pre-request handler script. A script that
// throws aborts the whole request with a HandlerError; client.test calls
// made from a pre-request script behave the same as from a response
// handler and their outcomes are returned alongside the error (nil on
// success).
func (h *Host) RunPreHandler(ctx context.Context, script string, rc *RequestContext) ([]TestOutcome, error) {
	return h.run(ctx, "pre-request", script, rc, nil)
}

// RunResponseHandler executes a response handler script against the
// dispatched response.
func (h *Host) RunResponseHandler(ctx context.Context, script string, rc *RequestContext, resp *ResponseContext) ([]TestOutcome, error) {
	return h.run(ctx, "response", script, rc, resp)
}

func (h *Host) run(ctx context.Context, stage, script string, rc *RequestContext, resp *ResponseContext) ([]TestOutcome, error) {
	script = normalizeScript(script)
	if script == "" {
		return nil, nil
	}

	vm := goja.New()
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if done := ctx.Done(); done != nil {
			go func() {
				<-done
				vm.Interrupt(ctx.Err())
			}()
		}
	}

	var global *vars.MapScope
	if rc != nil {
		global = rc.Global
	}
	tester := &clientBinding{vm: vm, stdout: h.Stdout, global: global}

	if err := vm.Set("console", consoleBinding(h.Stdout)); err != nil {
		return nil, &HandlerError{Stage: stage, Message: "bind console: " + err.Error()}
	}
	if err := vm.Set("client", tester.object()); err != nil {
		return nil, &HandlerError{Stage: stage, Message: "bind client: " + err.Error()}
	}
	if err := vm.Set("request", requestBinding(rc)); err != nil {
		return nil, &HandlerError{Stage: stage, Message: "bind request: " + err.Error()}
	}
	if resp != nil {
		if err := vm.Set("response", responseBinding(resp)); err != nil {
			return nil, &HandlerError{Stage: stage, Message: "bind response: " + err.Error()}
		}
	}

	_, err := vm.RunString(script)
	if err != nil {
		if ctx != nil {
			if cerr := ctx.Err(); cerr != nil {
				return tester.outcomes, cerr
			}
		}
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			return tester.outcomes, err
		}
		return tester.outcomes, &HandlerError{Stage: stage, Message: err.Error()}
	}
	return tester.outcomes, nil
}

func normalizeScript(raw string) string {
	script := strings.TrimSpace(raw)
	script = strings.TrimPrefix(script, "{%")
	script = strings.TrimSuffix(script, "%}")
	return strings.TrimSpace(script)
}

func consoleBinding(w io.Writer) map[string]interface{} {
	print := func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		fmt.Fprintln(w, strings.Join(parts, " "))
		return goja.Undefined()
	}
	return map[string]interface{}{"log": print, "warn": print, "error": print}
}

type clientBinding struct {
	vm       *goja.Runtime
	stdout   io.Writer
	global   *vars.MapScope
	outcomes []TestOutcome
}

func (c *clientBinding) object() map[string]interface{} {
	return map[string]interface{}{
		"log":    c.log,
		"test":   c.test,
		"assert": c.assert,
		"global": scopeBinding(c.global),
	}
}

func (c *clientBinding) log(msg string) {
	fmt.Fprintln(c.stdout, msg)
}

// assert throws a JS error on failure so that a client.test callback
// calling it fails only that named test (the callback's call returns the
// throw as an error, which test records), while a top-level call outside
// any test aborts the whole handler.
func (c *clientBinding) assert(condition bool, message string) {
	if condition {
		return
	}
	if message == "" {
		message = "assertion failed"
	}
	panic(c.vm.NewGoError(errors.New(message)))
}

func (c *clientBinding) test(name string, fn goja.Callable) {
	start := time.Now()
	outcome := TestOutcome{Name: name, Passed: true}
	defer func() {
		if r := recover(); r != nil {
			outcome.Passed = false
			outcome.Message = fmt.Sprint(r)
		}
		outcome.Elapsed = time.Since(start)
		c.outcomes = append(c.outcomes, outcome)
	}()

	if fn == nil {
		outcome.Passed = false
		outcome.Message = "client.test requires a function argument"
		return
	}
	if _, err := fn(goja.Undefined()); err != nil {
		outcome.Passed = false
		outcome.Message = err.Error()
		var exc *goja.Exception
		if errors.As(err, &exc) {
			if obj, ok := exc.Value().(*goja.Object); ok {
				if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
					outcome.Message = m.String()
				}
			}
		}
	}
}

func requestBinding(rc *RequestContext) map[string]interface{} {
	if rc == nil {
		rc = &RequestContext{}
	}
	return map[string]interface{}{
		"method": rc.Method,
		"url":    resolvableBinding(rc.URLRaw, rc.URLSubstituted),
		"body":   resolvableBinding(rc.BodyRaw, rc.BodySubstituted),
		"headers": map[string]interface{}{
			"findByName": func(name string) interface{} {
				for _, h := range rc.Headers {
					if strings.EqualFold(h.NameRaw, name) {
						return resolvableBinding(h.ValueRaw, h.ValueSubstituted)
					}
				}
				return nil
			},
		},
		"variables": scopeBinding(rc.Request),
		"environment": map[string]interface{}{
			"get": func(name string) interface{} {
				if rc.Env == nil {
					return nil
				}
				if v, ok := rc.Env.Get(name); ok {
					return v
				}
				return nil
			},
		},
	}
}

func resolvableBinding(raw string, substituted *string) map[string]interface{} {
	return map[string]interface{}{
		"getRaw": func() string { return raw },
		"tryGetSubstituted": func() map[string]interface{} {
			if substituted == nil {
				return map[string]interface{}{"found": false}
			}
			return map[string]interface{}{"found": true, "value": *substituted}
		},
	}
}

func scopeBinding(scope *vars.MapScope) map[string]interface{} {
	if scope == nil {
		scope = vars.NewMapScope()
	}
	return map[string]interface{}{
		"get": func(name string) interface{} {
			if v, ok := scope.Get(name); ok {
				return v
			}
			return nil
		},
		"set":      func(name string, value interface{}) { scope.Set(name, value) },
		"clear":    func(name string) { scope.Unset(name) },
		"clearAll": func() { scope.Clear() },
		"isEmpty":  func() bool { return scope.IsEmpty() },
	}
}

func responseBinding(resp *ResponseContext) map[string]interface{} {
	headers := map[string]interface{}{}
	for name, values := range resp.Headers {
		if len(values) == 0 {
			continue
		}
		headers[name] = values[len(values)-1]
	}

	var body interface{} = string(resp.Body)
	if strings.Contains(strings.ToLower(resp.ContentType), "json") && gjson.ValidBytes(resp.Body) {
		body = gjson.ParseBytes(resp.Body).Value()
	}

	return map[string]interface{}{
		"status":  resp.Status,
		"body":    body,
		"headers": headers,
	}
}
