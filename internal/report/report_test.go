package report

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvz-tools/dothttp/internal/scripthost"
)

func TestStandardReporter_RendersRequestAndResponse(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter("standard", &buf, "", "")

	r.Report(Event{
		Name:       "Get user",
		Method:     "GET",
		URL:        "https://api.example.com/users/1",
		StatusCode: 200,
		Status:     "200 OK",
		RespHeaders: http.Header{"Content-Type": []string{"application/json"}},
		RespBody:   []byte(`{"id":1}`),
		Tests: []scripthost.TestOutcome{
			{Name: "status is 200", Passed: true},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Get user")
	assert.Contains(t, out, "GET https://api.example.com/users/1")
	assert.Contains(t, out, "HTTP 200 200 OK")
	assert.Contains(t, out, "status is 200")
	assert.Equal(t, 0, r.Finish())
}

func TestStandardReporter_RequestErrorFailsTheRun(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter("standard", &buf, "", "")

	r.Report(Event{Name: "Broken", Method: "GET", URL: "https://example.com", Err: assertErr{}})
	assert.Contains(t, buf.String(), "error:")
	assert.Equal(t, 1, r.Finish())
}

func TestCIReporter_FailsOnAnyFailedTestOrError(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter("ci", &buf, "", "")

	r.Report(Event{File: "a.http", Name: "ok", Tests: []scripthost.TestOutcome{{Name: "t1", Passed: true}}})
	assert.Equal(t, 0, r.Finish())

	r.Report(Event{File: "a.http", Name: "not ok", Tests: []scripthost.TestOutcome{{Name: "t2", Passed: false}}})
	assert.Equal(t, 1, r.Finish())
}

func TestCIReporter_RequestErrorAloneFailsTheRun(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter("ci", &buf, "", "")
	r.Report(Event{File: "a.http", Name: "broken", Err: assertErr{}})
	assert.Equal(t, 1, r.Finish())
	assert.Contains(t, buf.String(), "ERROR")
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/global.json"

	err := SaveGlobalSnapshot(path, map[string]any{"token": "abc", "count": float64(3)})
	require.NoError(t, err)

	loaded, err := LoadGlobalSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", loaded["token"])
	assert.Equal(t, float64(3), loaded["count"])
}

func TestSnapshot_MissingFileReturnsEmptyNotError(t *testing.T) {
	loaded, err := LoadGlobalSnapshot("/nonexistent/dir/global.json")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
