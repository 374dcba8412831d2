package model

import "codejudge/internal/judge/sandbox/result"

// ExecuteRequest is the body of POST /api/execute.
type ExecuteRequest struct {
	Language    string `json:"language"`
	Code        string `json:"code"`
	QuestionID  string `json:"questionId,omitempty"`
	CustomInput string `json:"customInput,omitempty"`
}

// ExecuteResponse is the verdict and trace returned to the caller.
type ExecuteResponse struct {
	Status result.Status `json:"status"`
	Logs   []string      `json:"logs"`
}

// Verdict is the aggregate grading result of one submission.
type Verdict struct {
	Status result.Status
	Logs   []string
	Passed int
	Total  int
}

// Response converts a verdict to its wire form.
func (v Verdict) Response() ExecuteResponse {
	logs := v.Logs
	if logs == nil {
		logs = []string{}
	}
	return ExecuteResponse{Status: v.Status, Logs: logs}
}

// ErrorResponse builds a status=error response with the given log lines.
func ErrorResponse(logs ...string) ExecuteResponse {
	return ExecuteResponse{Status: result.StatusError, Logs: append([]string{}, logs...)}
}

// LanguageInfo is the public view of one supported language.
type LanguageInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Image      string `json:"image"`
	SourceFile string `json:"sourceFile"`
	Compiled   bool   `json:"compiled"`
}
