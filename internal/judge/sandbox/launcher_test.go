package sandbox_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/profile"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/internal/judge/sandbox/spec"
	appErr "codejudge/pkg/errors"
)

type fakeEngine struct {
	mu     sync.Mutex
	specs  []spec.RunSpec
	source string
	res    result.RunResult
	err    error
}

func (f *fakeEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, runSpec)
	entries, _ := os.ReadDir(runSpec.HostDir)
	for _, e := range entries {
		data, _ := os.ReadFile(filepath.Join(runSpec.HostDir, e.Name()))
		f.source = e.Name() + "=" + string(data)
	}
	return f.res, f.err
}

type recordingObserver struct {
	outcomes []result.Outcome
}

func (r *recordingObserver) ObserveExecution(_ context.Context, _ string, res result.ExecutionResult) {
	r.outcomes = append(r.outcomes, res.Outcome)
}

func newLauncher(t *testing.T, eng *fakeEngine, opts ...sandbox.Option) (*sandbox.Launcher, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "work")
	seq := 0
	opts = append(opts, sandbox.WithJobIDGenerator(func() string {
		seq++
		return "job-" + string(rune('a'+seq-1))
	}))
	return sandbox.NewLauncher(profile.DefaultTable(), eng, nil, root, opts...), root
}

func assertEmptyRoot(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("read root failed: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected workspace removed, found %d entries", len(entries))
	}
}

func TestExecuteWritesSourceAndClassifies(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{ExitCode: 0, Stdout: "2"}}
	obs := &recordingObserver{}
	l, root := newLauncher(t, eng, sandbox.WithObserver(obs))

	res, err := l.Execute(context.Background(), sandbox.Job{Language: "python", Source: "print(1+1)", Stdin: "in"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.Outcome != result.OutcomeSuccess || res.Stdout != "2" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if eng.source != "Main.py=print(1+1)" {
		t.Fatalf("unexpected workspace content: %q", eng.source)
	}
	got := eng.specs[0]
	if got.Image != "judge-python" || got.Stdin != "in" || got.JobID != "job-a" {
		t.Fatalf("unexpected run spec: %+v", got)
	}
	if filepath.Base(got.HostDir) != "job-a" {
		t.Fatalf("unexpected host dir: %s", got.HostDir)
	}
	assertEmptyRoot(t, root)
	if len(obs.outcomes) != 1 {
		t.Fatalf("expected one observed execution, got %d", len(obs.outcomes))
	}
}

func TestExecuteUnknownLanguageCreatesNothing(t *testing.T) {
	eng := &fakeEngine{}
	l, root := newLauncher(t, eng)

	_, err := l.Execute(context.Background(), sandbox.Job{Language: "cobol", Source: "x"})
	if !appErr.Is(err, appErr.LanguageNotSupported) {
		t.Fatalf("expected language not supported, got %v", err)
	}
	if len(eng.specs) != 0 {
		t.Fatalf("engine should not run")
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("work root should not exist, stat err=%v", err)
	}
}

func TestExecuteMapsEngineFailures(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		prefix string
	}{
		{
			name:   "start failure",
			err:    appErr.New(appErr.SandboxStartError).WithMessage("start docker failed"),
			prefix: "Docker Execution Error: start docker failed",
		},
		{
			name:   "daemon failure while running",
			err:    appErr.New(appErr.SandboxRuntimeError).WithMessage("wait container failed"),
			prefix: "Docker Execution Error: wait container failed",
		},
		{
			name:   "interrupted",
			err:    errors.New("sandbox interrupted: context canceled"),
			prefix: "System Error: sandbox interrupted",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng := &fakeEngine{err: tc.err}
			l, root := newLauncher(t, eng)

			res, err := l.Execute(context.Background(), sandbox.Job{Language: "cpp", Source: "int main(){}"})
			if err != nil {
				t.Fatalf("execute should not fail: %v", err)
			}
			if res.Outcome != result.OutcomeRuntime {
				t.Fatalf("expected runtime outcome, got %s", res.Outcome)
			}
			if !strings.HasPrefix(res.Stderr, tc.prefix) {
				t.Fatalf("unexpected stderr: %q", res.Stderr)
			}
			assertEmptyRoot(t, root)
		})
	}
}

func TestExecuteWorkspaceFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("write blocker failed: %v", err)
	}
	eng := &fakeEngine{}
	l := sandbox.NewLauncher(profile.DefaultTable(), eng, nil, blocker)

	res, err := l.Execute(context.Background(), sandbox.Job{Language: "python", Source: "x"})
	if err != nil {
		t.Fatalf("execute should not fail: %v", err)
	}
	if res.Outcome != result.OutcomeRuntime || !strings.HasPrefix(res.Stderr, "System Error: ") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(eng.specs) != 0 {
		t.Fatalf("engine should not run")
	}
}

func TestExecuteKilledIsTimeout(t *testing.T) {
	eng := &fakeEngine{res: result.RunResult{Killed: true, ExitCode: 0, Stdout: "partial"}}
	l, root := newLauncher(t, eng)

	res, err := l.Execute(context.Background(), sandbox.Job{Language: "javascript", Source: "while(true){}"})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if res.Outcome != result.OutcomeTimeout {
		t.Fatalf("expected timeout, got %s", res.Outcome)
	}
	if res.Stderr != "Time Limit Exceeded" {
		t.Fatalf("unexpected stderr: %q", res.Stderr)
	}
	assertEmptyRoot(t, root)
}

func TestExecuteUniqueJobIDs(t *testing.T) {
	eng := &fakeEngine{}
	l := sandbox.NewLauncher(profile.DefaultTable(), eng, nil, t.TempDir())
	for i := 0; i < 3; i++ {
		if _, err := l.Execute(context.Background(), sandbox.Job{Language: "python"}); err != nil {
			t.Fatalf("execute failed: %v", err)
		}
	}
	seen := map[string]bool{}
	for _, s := range eng.specs {
		if seen[s.JobID] {
			t.Fatalf("job id reused: %s", s.JobID)
		}
		seen[s.JobID] = true
	}
}
