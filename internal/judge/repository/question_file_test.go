package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	appErr "codejudge/pkg/errors"
)

const sampleBank = `
questions:
  - id: two-sum
    title: Two Sum
    topic: Arrays
    testCases:
      - input: [[2, 7, 11, 15], [9]]
        output: "0 1"
      - input: "1 2\n3"
        output: 3
  - id: url-shortener
    title: Design a URL shortener
    topic: System Design
`

func TestFileQuestionRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	if err := os.WriteFile(path, []byte(sampleBank), 0644); err != nil {
		t.Fatalf("write bank failed: %v", err)
	}
	repo, err := NewFileQuestionRepository(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if repo.Len() != 2 {
		t.Fatalf("expected 2 questions, got %d", repo.Len())
	}

	q, err := repo.GetQuestion(context.Background(), "two-sum")
	if err != nil || q == nil {
		t.Fatalf("expected question, got %v %v", q, err)
	}
	if len(q.TestCases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(q.TestCases))
	}
	if _, ok := q.TestCases[0].Input.([]any); !ok {
		t.Fatalf("expected array input, got %T", q.TestCases[0].Input)
	}

	design, _ := repo.GetQuestion(context.Background(), "url-shortener")
	if !design.IsArchitectural() {
		t.Fatalf("expected architectural question")
	}

	missing, err := repo.GetQuestion(context.Background(), "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for missing question, got %v %v", missing, err)
	}
}

func TestFileQuestionRepositoryReturnsCopies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	if err := os.WriteFile(path, []byte(sampleBank), 0644); err != nil {
		t.Fatalf("write bank failed: %v", err)
	}
	repo, err := NewFileQuestionRepository(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	q, _ := repo.GetQuestion(context.Background(), "two-sum")
	q.TestCases = nil
	q.Topic = "changed"
	again, _ := repo.GetQuestion(context.Background(), "two-sum")
	if again.Topic != "Arrays" || len(again.TestCases) != 2 {
		t.Fatalf("stored question was mutated: %+v", again)
	}
}

func TestFileQuestionRepositoryRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.yaml")
	bank := "questions:\n  - id: a\n  - id: a\n"
	if err := os.WriteFile(path, []byte(bank), 0644); err != nil {
		t.Fatalf("write bank failed: %v", err)
	}
	_, err := NewFileQuestionRepository(path)
	if appErr.GetCode(err) != appErr.InvalidParams {
		t.Fatalf("expected invalid params, got %v", err)
	}
}

func TestFileQuestionRepositoryMissingFile(t *testing.T) {
	if _, err := NewFileQuestionRepository(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
