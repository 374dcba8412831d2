package model

import "codejudge/internal/judge/sandbox/result"

// VerdictEvent is published once per graded submission.
type VerdictEvent struct {
	JobID      string        `json:"jobId"`
	QuestionID string        `json:"questionId,omitempty"`
	Language   string        `json:"language"`
	Status     result.Status `json:"status"`
	Passed     int           `json:"passed"`
	Total      int           `json:"total"`
	Custom     bool          `json:"custom"`
	DurationMs int64         `json:"durationMs"`
	CreatedAt  int64         `json:"createdAt"`
}
