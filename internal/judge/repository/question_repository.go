package repository

import (
	"context"

	"codejudge/internal/judge/model"
)

// QuestionRepository resolves a question id to its topic and test cases.
// A missing question is reported as (nil, nil).
type QuestionRepository interface {
	GetQuestion(ctx context.Context, id string) (*model.Question, error)
}
