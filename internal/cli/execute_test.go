package cli

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvz-tools/dothttp/internal/report"
)

func resetFlags() {
	environmentFileFlag = ""
	environmentFlag = ""
	snapshotPathFlag = ""
	acceptInvalidCertsFlag = false
	formatFlag = "standard"
	requestFormatFlag = ""
	responseFormatFlag = ""
	exitCode = ExitSuccess
}

func runForTest(t *testing.T, args []string) (string, string, int) {
	t.Helper()
	resetFlags()

	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)

	err := runExecute(cmd, args)
	require.NoError(t, err)
	return out.String(), errOut.String(), exitCode
}

func TestRunExecute_SuccessfulRequestExitsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.http")
	require.NoError(t, os.WriteFile(file, []byte("GET "+server.URL+"\n"), 0o644))

	out, _, code := runForTest(t, []string{file})
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "GET "+server.URL)
}

func TestRunExecute_ParseErrorExitsTwo(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.http")
	require.NoError(t, os.WriteFile(file, []byte("GET https://example.com\nNoColonHeader\n"), 0o644))

	_, errOut, code := runForTest(t, []string{file})
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, errOut, "error:")
}

func TestRunExecute_FileIndexSelectorRunsOnlyThatRequest(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dir := t.TempDir()
	file := filepath.Join(dir, "multi.http")
	content := "GET " + server.URL + "/one\n\n###\nGET " + server.URL + "/two\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	_, _, code := runForTest(t, []string{file + ":2"})
	assert.Equal(t, 0, code)
	assert.Equal(t, 1, hits)
}

func TestRunExecute_FailedTestExitsOne(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.http")
	content := "GET " + server.URL + "\n\n> {%\n" +
		"client.test(\"ok\", function() { client.assert(response.status === 200); });\n" +
		"%}\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	_, _, code := runForTest(t, []string{file})
	assert.Equal(t, 1, code)
}

func TestRunExecute_SnapshotRoundTripsAcrossInvocations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"token":"abc"}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.http")
	content := "GET " + server.URL + "\n\n> {%\n" +
		"client.global.set(\"saved\", response.body.token);\n" +
		"%}\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))

	snapshotPath := filepath.Join(dir, "snap.json")
	resetFlags()
	snapshotPathFlag = snapshotPath

	var out, errOut bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	require.NoError(t, runExecute(cmd, []string{file}))

	values, err := report.LoadGlobalSnapshot(snapshotPath)
	require.NoError(t, err)
	assert.Equal(t, "abc", values["saved"])
}
