package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"codejudge/internal/common/db"
	"codejudge/internal/judge/model"
	appErr "codejudge/pkg/errors"
)

const selectQuestionSQL = "SELECT id, title, topic, test_cases FROM questions WHERE id = ?"

// MySQLQuestionRepository reads questions from the questions table.
// test_cases holds a JSON array of {input, output}.
type MySQLQuestionRepository struct {
	db db.Database
}

// NewMySQLQuestionRepository creates a repository on top of database.
func NewMySQLQuestionRepository(database db.Database) *MySQLQuestionRepository {
	return &MySQLQuestionRepository{db: database}
}

// GetQuestion loads one question row.
func (r *MySQLQuestionRepository) GetQuestion(ctx context.Context, id string) (*model.Question, error) {
	var (
		q     model.Question
		topic sql.NullString
		cases []byte
	)
	err := r.db.QueryRow(ctx, selectQuestionSQL, id).Scan(&q.ID, &q.Title, &topic, &cases)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, nil
		}
		return nil, appErr.Wrapf(err, appErr.DatabaseError, "query question failed")
	}
	q.Topic = topic.String
	if len(cases) > 0 {
		if err := json.Unmarshal(cases, &q.TestCases); err != nil {
			return nil, appErr.Wrapf(err, appErr.TestCaseInvalid, "decode test cases of question %s failed", id)
		}
	}
	return &q, nil
}
