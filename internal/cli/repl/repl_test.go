package repl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"codejudge/internal/cli/command"
	httpclient "codejudge/internal/cli/http"
	"codejudge/internal/cli/state"
)

type capturedRequest struct {
	Method string
	Path   string
	Body   map[string]string
}

func newTestSession(t *testing.T, handler http.HandlerFunc) (*Session, *bytes.Buffer, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := capturedRequest{Method: r.Method, Path: r.URL.Path}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &req.Body)
		}
		captured = append(captured, req)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	out := &bytes.Buffer{}
	st := &state.SessionState{}
	session := New(httpclient.New(server.URL, time.Second), command.Registry(), st, filepath.Join(t.TempDir(), "state.json"), true)
	session.out = out
	return session, out, &captured
}

func verdictHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"accepted","logs":["Test Case 1: PASSED","VERDICT: ACCEPTED (1/1)"]}`))
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Main.py")
	if err := os.WriteFile(path, []byte("print(2)"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	return path
}

func TestRunCommandRendersVerdict(t *testing.T) {
	session, out, captured := newTestSession(t, verdictHandler)
	source := writeSource(t)

	if err := session.HandleLine(context.Background(), `run python "`+source+`" q1`); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(*captured) != 1 {
		t.Fatalf("expected one request, got %d", len(*captured))
	}
	req := (*captured)[0]
	if req.Method != http.MethodPost || req.Path != "/api/execute" || req.Body["questionId"] != "q1" || req.Body["code"] != "print(2)" {
		t.Fatalf("unexpected request: %+v", req)
	}
	text := out.String()
	if !strings.Contains(text, "VERDICT: ACCEPTED (1/1)") || !strings.Contains(text, "status: accepted") {
		t.Fatalf("unexpected output: %s", text)
	}
	if session.state.LastLanguage != "python" {
		t.Fatalf("last language not remembered")
	}
}

func TestCustomCommandReadsInlineInput(t *testing.T) {
	session, _, captured := newTestSession(t, verdictHandler)
	source := writeSource(t)
	lines := []string{"1 2", "3", "."}
	session.readLine = func(string) (string, error) {
		if len(lines) == 0 {
			return "", io.EOF
		}
		line := lines[0]
		lines = lines[1:]
		return line, nil
	}

	if err := session.HandleLine(context.Background(), "custom python "+source+" -"); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if got := (*captured)[0].Body["customInput"]; got != "1 2\n3" {
		t.Fatalf("unexpected custom input: %q", got)
	}
}

func TestLanguagesRendersTable(t *testing.T) {
	session, out, _ := newTestSession(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":10000,"message":"Success","data":[{"id":"python","name":"Python 3","image":"judge-python","compiled":false}]}`))
	})
	if err := session.HandleLine(context.Background(), "languages"); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if !strings.Contains(out.String(), "python") || !strings.Contains(out.String(), "judge-python") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestSystemCommands(t *testing.T) {
	session, out, captured := newTestSession(t, verdictHandler)
	ctx := context.Background()

	if err := session.HandleLine(ctx, "set timeout 3s"); err != nil {
		t.Fatalf("set timeout failed: %v", err)
	}
	if err := session.HandleLine(ctx, "set base http://judge.local:8085/"); err != nil {
		t.Fatalf("set base failed: %v", err)
	}
	saved, err := state.Load(session.statePath)
	if err != nil {
		t.Fatalf("load state failed: %v", err)
	}
	if saved.BaseURL != "http://judge.local:8085" || saved.Timeout != 3*time.Second {
		t.Fatalf("unexpected saved state: %+v", saved)
	}

	if err := session.HandleLine(ctx, "help"); err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(out.String(), "run <language> <file> [questionId]") {
		t.Fatalf("help missing usage: %s", out.String())
	}
	if err := session.HandleLine(ctx, "exit"); !errors.Is(err, errExit) {
		t.Fatalf("expected exit, got %v", err)
	}
	if len(*captured) != 0 {
		t.Fatalf("system commands must not hit the server")
	}
}

func TestHandleLineErrors(t *testing.T) {
	session, _, _ := newTestSession(t, verdictHandler)
	cases := []string{
		"bogus",
		"run python",
		`run "unterminated`,
		"set timeout soon",
		"set timeout -1s",
		"custom python Main.py -",
	}
	for _, line := range cases {
		t.Run(line, func(t *testing.T) {
			if err := session.HandleLine(context.Background(), line); err == nil {
				t.Fatalf("expected error for %q", line)
			}
		})
	}
}
