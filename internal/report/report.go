// Package report renders executed requests to the configured output
// format and persists the global variable scope between CLI invocations.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"

	"github.com/kvz-tools/dothttp/internal/scripthost"
)

const (
	DefaultRequestFormat  = "%N\n%R\n\n"
	DefaultResponseFormat = "%R\n%H\n%B\n\n%T\n"
)

// Event is everything the reporter needs to render one executed request
// script. Err is set when the request failed before producing a response
// (validation, transport, or pre-request handler error) or when the
// response handler threw; in the latter case the response fields and
// Tests are populated as well.
type Event struct {
	File    string
	Name    string
	Method  string
	URL     string
	Headers http.Header
	Body    string

	StatusCode int
	Status     string
	RespHeaders http.Header
	RespBody   []byte
	Duration   time.Duration

	Tests []scripthost.TestOutcome
	Err   error
}

// AnyFailed reports whether this event should count toward a CI-mode
// failing exit code: a request-level error, or at least one failed test
// (spec.md §6, confirmed literal by the original's errors-vec behavior).
func (e Event) AnyFailed() bool {
	if e.Err != nil {
		return true
	}
	for _, tr := range e.Tests {
		if !tr.Passed {
			return true
		}
	}
	return false
}

// Reporter renders one Event at a time; Finish returns the process exit
// code to use once every file in the batch has been reported.
type Reporter interface {
	Report(Event)
	Finish() int
}

// NewReporter builds the reporter for the requested --format value.
func NewReporter(format string, w io.Writer, requestFormat, responseFormat string) Reporter {
	switch format {
	case "ci":
		return &CIReporter{writer: w}
	default:
		if requestFormat == "" {
			requestFormat = DefaultRequestFormat
		}
		if responseFormat == "" {
			responseFormat = DefaultResponseFormat
		}
		return &StandardReporter{writer: w, requestFormat: requestFormat, responseFormat: responseFormat}
	}
}

// StandardReporter renders each request/response/test block using the
// %-token format strings documented in spec.md §6.
type StandardReporter struct {
	writer         io.Writer
	requestFormat  string
	responseFormat string
	anyFailed      bool
}

func (r *StandardReporter) Report(e Event) {
	fmt.Fprint(r.writer, r.renderRequest(e))
	if e.Err != nil {
		r.anyFailed = true
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(r.writer, "%s %v\n\n", red("error:"), e.Err)
		return
	}
	fmt.Fprint(r.writer, r.renderResponse(e))
	if e.AnyFailed() {
		r.anyFailed = true
	}
}

func (r *StandardReporter) renderRequest(e Event) string {
	line := fmt.Sprintf("%s %s", e.Method, e.URL)
	headers := formatHeaders(e.Headers)
	body := e.Body

	replacer := strings.NewReplacer(
		"%N", e.Name,
		"%R", line,
		"%H", headers,
		"%B", body,
	)
	return replacer.Replace(r.requestFormat)
}

func (r *StandardReporter) renderResponse(e Event) string {
	statusLine := fmt.Sprintf("HTTP %d %s", e.StatusCode, strings.TrimSpace(e.Status))
	headers := formatHeaders(e.RespHeaders)
	body := formatBody(e.RespHeaders, e.RespBody)
	tests := formatTests(e.Tests)

	replacer := strings.NewReplacer(
		"%R", statusLine,
		"%H", headers,
		"%B", body,
		"%T", tests,
	)
	return replacer.Replace(r.responseFormat)
}

func (r *StandardReporter) Finish() int {
	if r.anyFailed {
		return 1
	}
	return 0
}

// CIReporter renders a compact table, one line per test plus one line
// per request error, and fails the run on either.
type CIReporter struct {
	writer    io.Writer
	anyFailed bool
}

func (r *CIReporter) Report(e Event) {
	if e.Err != nil {
		r.anyFailed = true
		fmt.Fprintf(r.writer, "ERROR\t%s\t%s\t%v\n", e.File, e.Name, e.Err)
		return
	}
	for _, tr := range e.Tests {
		status := "PASS"
		if !tr.Passed {
			status = "FAIL"
			r.anyFailed = true
		}
		fmt.Fprintf(r.writer, "%s\t%s\t%s\t%s\n", status, e.File, e.Name, tr.Name)
	}
}

func (r *CIReporter) Finish() int {
	if r.anyFailed {
		return 1
	}
	return 0
}

func formatHeaders(h http.Header) string {
	if len(h) == 0 {
		return ""
	}
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(h[name], ", "))
	}
	return b.String()
}

func formatBody(headers http.Header, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	ct := ""
	if headers != nil {
		ct = headers.Get("Content-Type")
	}
	if strings.Contains(strings.ToLower(ct), "json") && gjson.ValidBytes(body) {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, body, "", "  "); err == nil {
			return pretty.String()
		}
	}
	return string(body)
}

func formatTests(tests []scripthost.TestOutcome) string {
	if len(tests) == 0 {
		return ""
	}
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	var b strings.Builder
	for i, tr := range tests {
		if i > 0 {
			b.WriteByte('\n')
		}
		if tr.Passed {
			fmt.Fprintf(&b, "%s %s", green("PASS"), tr.Name)
		} else {
			fmt.Fprintf(&b, "%s %s: %s", red("FAIL"), tr.Name, tr.Message)
		}
	}
	return b.String()
}
