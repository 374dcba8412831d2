package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDoSendsBodyAndTrace(t *testing.T) {
	var gotBody, gotTrace, gotPath, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotTrace = r.Header.Get(traceIDHeader)
		gotPath = r.URL.Path
		gotCustom = r.Header.Get("X-Custom")
		w.Header().Set(traceIDHeader, gotTrace)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"accepted","logs":[]}`))
	}))
	defer server.Close()

	client := New(server.URL+"/", time.Second)
	info, err := client.Do(context.Background(), http.MethodPost, "/api/execute", map[string]string{"X-Custom": "1", "X-Empty": ""}, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("do failed: %v", err)
	}
	if info.StatusCode != http.StatusAccepted || string(info.Body) != `{"status":"accepted","logs":[]}` {
		t.Fatalf("unexpected response: %+v", info)
	}
	if gotBody != `{"a":1}` || gotPath != "/api/execute" || gotCustom != "1" {
		t.Fatalf("unexpected request: body=%q path=%q custom=%q", gotBody, gotPath, gotCustom)
	}
	if gotTrace == "" || info.TraceID() != gotTrace {
		t.Fatalf("trace id not propagated: %q vs %q", gotTrace, info.TraceID())
	}
}

func TestDoTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := New(server.URL, 50*time.Millisecond)
	if _, err := client.Do(context.Background(), http.MethodGet, "/", nil, nil); err == nil {
		t.Fatalf("expected timeout error")
	}
}

func TestSetters(t *testing.T) {
	client := New("http://a/", time.Second)
	client.SetTimeout(0)
	if client.Timeout() != time.Second {
		t.Fatalf("zero timeout should be ignored")
	}
	client.SetTimeout(3 * time.Second)
	client.SetBaseURL("http://b//")
	if client.Timeout() != 3*time.Second || client.BaseURL() != "http://b" {
		t.Fatalf("unexpected client state: %s %s", client.BaseURL(), client.Timeout())
	}
}
