package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox"
	"codejudge/internal/judge/sandbox/observer"
	"codejudge/internal/judge/sandbox/result"
	appErr "codejudge/pkg/errors"
	"codejudge/pkg/utils/logger"

	"go.uber.org/zap"
)

// Log lines emitted outside the per-case loop.
const (
	NoTestCasesLog          = "no test cases found"
	QuestionNotFoundLog     = "> Question not found."
	LanguageNotSupportedLog = "> Language not supported."
	ExecutionCancelledLog   = "> Execution cancelled."
	ServerErrorPrefix       = "Server Error: "
)

var architecturalLogs = []string{
	"> System Design questions are architectural.",
	"> No automated tests available.",
	"VERDICT: SUBMITTED",
}

// Mode selects between judging output and just reporting it.
type Mode string

const (
	ModeCompare Mode = "compare"
	ModeCustom  Mode = "custom"
)

// Case is one flattened test case handed to the sandbox.
type Case struct {
	Input       string
	Expected    string
	HasExpected bool
}

// CasesFromQuestion flattens stored test cases.
func CasesFromQuestion(tcs []model.TestCase) []Case {
	cases := make([]Case, 0, len(tcs))
	for _, tc := range tcs {
		c := Case{Input: FlattenInput(tc.Input)}
		if tc.Output != nil {
			c.Expected = scalarString(tc.Output)
			c.HasExpected = true
		}
		cases = append(cases, c)
	}
	return cases
}

// GradeRequest is one submission against an ordered case list.
type GradeRequest struct {
	Language string
	Code     string
	Cases    []Case
	Mode     Mode
	Observer observer.TraceObserver
}

// Harness runs cases strictly one after another and folds their outcomes.
type Harness struct {
	exec sandbox.Executor
}

// NewHarness creates a harness on top of an executor.
func NewHarness(exec sandbox.Executor) *Harness {
	return &Harness{exec: exec}
}

type trace struct {
	ctx  context.Context
	obs  observer.TraceObserver
	logs []string
}

func (t *trace) emit(line string) {
	t.logs = append(t.logs, line)
	t.obs.OnLine(t.ctx, line)
}

// Grade runs req and returns the submission verdict. It never returns an error;
// every failure becomes part of the verdict.
func (h *Harness) Grade(ctx context.Context, req GradeRequest) model.Verdict {
	obs := req.Observer
	if obs == nil {
		obs = observer.Noop{}
	}
	tr := &trace{ctx: ctx, obs: obs}
	total := len(req.Cases)
	if total == 0 {
		tr.emit(NoTestCasesLog)
		return model.Verdict{Status: result.StatusError, Logs: tr.logs}
	}

	custom := req.Mode == ModeCustom
	status := result.StatusAccepted
	passed := 0

	for i, tc := range req.Cases {
		n := i + 1
		if err := ctx.Err(); err != nil {
			logger.Warn(ctx, "grading cancelled", zap.Int("case", n), zap.Error(err))
			tr.emit(ExecutionCancelledLog)
			return model.Verdict{Status: result.StatusError, Logs: tr.logs, Passed: passed, Total: total}
		}

		tr.emit(fmt.Sprintf("Test Case %d: RUNNING...", n))
		res, err := h.exec.Execute(ctx, sandbox.Job{Language: req.Language, Source: req.Code, Stdin: tc.Input})
		if err != nil {
			if appErr.Is(err, appErr.LanguageNotSupported) {
				tr.emit(LanguageNotSupportedLog)
			} else {
				tr.emit(ServerErrorPrefix + err.Error())
			}
			return model.Verdict{Status: result.StatusError, Logs: tr.logs, Passed: passed, Total: total}
		}

		if res.Outcome != result.OutcomeSuccess {
			detail := res.Stderr
			if detail == "" {
				detail = "Error"
			}
			tr.emit(fmt.Sprintf("Test Case %d: %s (%s)", n, res.Outcome, detail))
			status = result.StatusForOutcome(res.Outcome)
			if res.Outcome == result.OutcomeCompile {
				break
			}
			continue
		}

		if custom || !tc.HasExpected {
			tr.emit("Output: " + res.Stdout)
			if !custom {
				tr.emit("(No expected output provided)")
			}
			continue
		}

		expected := strings.TrimSpace(tc.Expected)
		actual := strings.TrimSpace(res.Stdout)
		if actual == expected {
			passed++
			tr.emit(fmt.Sprintf("Test Case %d: PASSED", n))
			continue
		}
		tr.emit(fmt.Sprintf("Test Case %d: FAILED", n))
		tr.emit("Expected: " + expected)
		tr.emit("Got: " + actual)
		if status == result.StatusAccepted {
			status = result.StatusWrongAnswer
		}
	}

	switch {
	case custom:
		status = result.StatusCustomRunComplete
		tr.emit("VERDICT: CUSTOM RUN COMPLETE")
	case status == result.StatusAccepted && passed == total:
		tr.emit(fmt.Sprintf("VERDICT: ACCEPTED (%d/%d)", passed, total))
	case status == result.StatusAccepted || status == result.StatusWrongAnswer:
		status = result.StatusWrongAnswer
		tr.emit(fmt.Sprintf("VERDICT: WRONG ANSWER (%d/%d)", passed, total))
	default:
		tr.emit("VERDICT: " + strings.ToUpper(string(status)))
	}
	return model.Verdict{Status: status, Logs: tr.logs, Passed: passed, Total: total}
}

// FlattenInput turns a stored input into a stdin payload. Arrays become one
// line per element, with inner arrays joined by spaces.
func FlattenInput(v any) string {
	switch in := v.(type) {
	case nil:
		return ""
	case string:
		return in
	case []any:
		lines := make([]string, len(in))
		for i, item := range in {
			if inner, ok := item.([]any); ok {
				parts := make([]string, len(inner))
				for j, x := range inner {
					parts[j] = scalarString(x)
				}
				lines[i] = strings.Join(parts, " ")
				continue
			}
			lines[i] = scalarString(item)
		}
		return strings.Join(lines, "\n")
	default:
		return scalarString(v)
	}
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = scalarString(item)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		data, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(data)
	default:
		return fmt.Sprint(x)
	}
}
