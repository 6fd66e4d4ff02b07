package repository

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"satbank/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a new sqlx.DB instance and sqlmock for adapter testing.
func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	sqlxDB := sqlx.NewDb(mockDB, "sqlmock")
	return sqlxDB, mock
}

func questionColumns() []string {
	return []string{"uid", "question_text", "question_image", "answer", "difficulty", "created_at", "updated_at"}
}

func TestGetByUIDNotFound(t *testing.T) {
	db, mock := setupTestDB(t)
	adapter := NewQuestionDatabaseAdapter(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT uid, question_text, question_image, answer, difficulty, created_at, updated_at")).
		WillReturnError(sql.ErrNoRows)

	q, err := adapter.GetByUID("missing-uid")

	assert.NoError(t, err, "absence is a normal outcome, not an error")
	assert.Nil(t, q)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByUIDJoinsChildRelations(t *testing.T) {
	db, mock := setupTestDB(t)
	adapter := NewQuestionDatabaseAdapter(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT uid, question_text, question_image, answer, difficulty, created_at, updated_at")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(questionColumns()).
			AddRow("u1", "What is 2 + 2?", nil, "B", "Easy", now, now))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, question_uid, option_key, option_text, option_image")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "question_uid", "option_key", "option_text", "option_image"}).
			AddRow(1, "u1", "A", "3", nil).
			AddRow(2, "u1", "B", "4", "figures/four.png"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT t.name")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("algebra").AddRow("arithmetic"))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT question_uid, explanation_text")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"question_uid", "explanation_text"}).
			AddRow("u1", "Two plus two equals four."))

	q, err := adapter.GetByUID("u1")
	require.NoError(t, err)
	require.NotNil(t, q)

	assert.Equal(t, "u1", q.UID)
	assert.Equal(t, "What is 2 + 2?", q.Content.Text)
	assert.Equal(t, "B", q.Answer)
	assert.Len(t, q.Options, 2)
	assert.Equal(t, "4", q.Options["B"].Text)
	require.NotNil(t, q.Options["B"].Image)
	assert.Equal(t, "figures/four.png", *q.Options["B"].Image)
	assert.Equal(t, []string{"algebra", "arithmetic"}, q.Tags)
	assert.Equal(t, "Two plus two equals four.", q.Explanation.Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByUIDMissingExplanation(t *testing.T) {
	db, mock := setupTestDB(t)
	adapter := NewQuestionDatabaseAdapter(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT uid, question_text")).
		WillReturnRows(sqlmock.NewRows(questionColumns()).
			AddRow("u1", "q", nil, "A", nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, question_uid, option_key")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "question_uid", "option_key", "option_text", "option_image"}).
			AddRow(1, "u1", "A", "a", nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT t.name")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT question_uid, explanation_text")).
		WillReturnError(sql.ErrNoRows)

	q, err := adapter.GetByUID("u1")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "", q.Explanation.Text)
	assert.Equal(t, []string{}, q.Tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountWithFilters(t *testing.T) {
	db, mock := setupTestDB(t)
	adapter := NewQuestionDatabaseAdapter(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM questions WHERE")).
		WithArgs("algebra", "geometry", "Hard").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := adapter.Count(domain.Filter{Tags: []string{"algebra", "geometry"}, Difficulty: "Hard"})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAllTagsOrdered(t *testing.T) {
	db, mock := setupTestDB(t)
	adapter := NewQuestionDatabaseAdapter(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM tags ORDER BY name")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("algebra").AddRow("geometry"))

	tags, err := adapter.AllTags()
	require.NoError(t, err)
	assert.Equal(t, []string{"algebra", "geometry"}, tags)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRunsInTransaction(t *testing.T) {
	db, mock := setupTestDB(t)
	adapter := NewQuestionDatabaseAdapter(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM questions WHERE uid =")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, adapter.Delete("u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRollsBackOnFailure(t *testing.T) {
	db, mock := setupTestDB(t)
	adapter := NewQuestionDatabaseAdapter(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO questions")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	q := &domain.Question{
		UID:     "u1",
		Content: domain.Content{Text: "q"},
		Options: map[string]domain.Option{"A": {Text: "a"}},
		Answer:  "A",
	}
	err := adapter.Save(q, false)
	require.Error(t, err, "a failed write must surface, never half-commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveReplacesChildRows(t *testing.T) {
	db, mock := setupTestDB(t)
	adapter := NewQuestionDatabaseAdapter(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO questions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM options WHERE question_uid =")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO options")).
		WithArgs("u1", "A", "yes", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO options")).
		WithArgs("u1", "B", "no", nil).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM question_tags WHERE question_uid =")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING")).
		WithArgs("logic").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM tags WHERE name =")).
		WithArgs("logic").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO question_tags")).
		WithArgs("u1", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO explanations")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	q := &domain.Question{
		UID:     "u1",
		Content: domain.Content{Text: "q"},
		Options: map[string]domain.Option{
			"A": {Text: "yes"},
			"B": {Text: "no"},
		},
		Answer:      "A",
		Tags:        []string{"logic"},
		Explanation: domain.Explanation{Text: "why"},
	}
	require.NoError(t, adapter.Save(q, false))
	assert.NoError(t, mock.ExpectationsWereMet())
}
