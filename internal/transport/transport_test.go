package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatch_GetSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/users/1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id": 1}`))
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Dispatch(context.Background(), &Request{
		Method: "GET",
		URL:    server.URL + "/users/1",
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Headers.Get("Content-Type"))
	assert.Contains(t, string(resp.Body), `"id": 1`)
}

func TestDispatch_HeadersAndBodySent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Dispatch(context.Background(), &Request{
		Method:  "POST",
		URL:     server.URL,
		Headers: map[string][]string{"Authorization": {"Bearer abc"}},
		Body:    []byte(`{"name":"x"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
}

func TestDispatch_TimeoutClassifiedAsTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	_, err := client.Dispatch(context.Background(), &Request{
		Method:  "GET",
		URL:     server.URL,
		Timeout: 10 * time.Millisecond,
	})
	require.Error(t, err)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindTimeout, terr.Kind)
}

func TestDispatch_NoTimeoutSetRunsUnbounded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient()
	resp, err := client.Dispatch(context.Background(), &Request{
		Method: "GET",
		URL:    server.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestDispatch_DNSFailureClassifiedAsDNS(t *testing.T) {
	client := NewClient()
	_, err := client.Dispatch(context.Background(), &Request{
		Method: "GET",
		URL:    "http://no-such-host.invalid.example",
	})
	require.Error(t, err)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindDNS, terr.Kind)
}

func TestDispatch_CancelledContextClassifiedAsCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	client := NewClient()
	_, err := client.Dispatch(ctx, &Request{Method: "GET", URL: server.URL})
	require.Error(t, err)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, KindCancelled, terr.Kind)
}

func TestDispatch_RedirectsFollowedByDefault(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("landed"))
	}))
	defer final.Close()

	redirector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer redirector.Close()

	client := NewClient()
	resp, err := client.Dispatch(context.Background(), &Request{Method: "GET", URL: redirector.URL})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "landed", string(resp.Body))
}
