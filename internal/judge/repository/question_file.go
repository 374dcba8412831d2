package repository

import (
	"context"
	"fmt"
	"os"

	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"

	"gopkg.in/yaml.v3"
)

// questionBank is the on-disk layout of a question file. JSON files parse too.
type questionBank struct {
	Questions []model.Question `yaml:"questions" json:"questions"`
}

// FileQuestionRepository serves questions loaded once from a yaml file.
type FileQuestionRepository struct {
	questions map[string]*model.Question
}

// NewFileQuestionRepository reads and indexes path.
func NewFileQuestionRepository(path string) (*FileQuestionRepository, error) {
	questions, err := LoadQuestionBank(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryQuestionRepository(questions)
}

// LoadQuestionBank parses a yaml or json question file without indexing it.
func LoadQuestionBank(path string) ([]model.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank failed: %w", err)
	}
	var bank questionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("parse question bank failed: %w", err)
	}
	return bank.Questions, nil
}

// NewMemoryQuestionRepository indexes questions by id. Duplicate or empty ids are rejected.
func NewMemoryQuestionRepository(questions []model.Question) (*FileQuestionRepository, error) {
	index := make(map[string]*model.Question, len(questions))
	for i := range questions {
		q := questions[i]
		if q.ID == "" {
			return nil, appErr.ValidationError("question.id", "required")
		}
		if _, ok := index[q.ID]; ok {
			return nil, appErr.Newf(appErr.InvalidParams, "duplicate question id %q", q.ID)
		}
		index[q.ID] = &q
	}
	return &FileQuestionRepository{questions: index}, nil
}

// GetQuestion returns a copy of the stored question.
func (r *FileQuestionRepository) GetQuestion(_ context.Context, id string) (*model.Question, error) {
	q, ok := r.questions[id]
	if !ok {
		return nil, nil
	}
	out := *q
	out.TestCases = append([]model.TestCase(nil), q.TestCases...)
	return &out, nil
}

// Len returns the number of loaded questions.
func (r *FileQuestionRepository) Len() int {
	return len(r.questions)
}
