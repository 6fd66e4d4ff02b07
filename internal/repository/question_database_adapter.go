package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"satbank/internal/domain"
	"satbank/internal/repository/models"
	"satbank/internal/util"

	"github.com/jmoiron/sqlx"
)

// QuestionDatabaseAdapter implements the relational half of
// domain.QuestionStore over an sqlx SQLite handle. Every write runs as one
// bounded transaction; foreign-key cascades take care of options, tag
// links and explanations when a question row goes away.
type QuestionDatabaseAdapter struct {
	db *sqlx.DB
	tm *TransactionManager
}

// NewQuestionDatabaseAdapter creates a new adapter over db.
func NewQuestionDatabaseAdapter(db *sqlx.DB) *QuestionDatabaseAdapter {
	return &QuestionDatabaseAdapter{db: db, tm: NewTransactionManager(db)}
}

// toDomainQuestion assembles a domain record from its four relations.
func toDomainQuestion(row *models.Question, options []models.Option, tags []string, explanation *models.Explanation) *domain.Question {
	opts := make(map[string]domain.Option, len(options))
	for _, o := range options {
		opts[o.OptionKey] = domain.Option{
			Text:  o.OptionText,
			Image: util.NullStringToPtr(o.OptionImage),
		}
	}
	if tags == nil {
		tags = []string{}
	}
	explanationText := ""
	if explanation != nil {
		explanationText = explanation.ExplanationText
	}
	return &domain.Question{
		UID: row.UID,
		Content: domain.Content{
			Text:  row.QuestionText,
			Image: util.NullStringToPtr(row.QuestionImage),
		},
		Options:     opts,
		Answer:      row.Answer,
		Difficulty:  row.Difficulty.String,
		Tags:        tags,
		Explanation: domain.Explanation{Text: explanationText},
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}

// GetByUID returns the question with the given UID, or nil when absent.
func (a *QuestionDatabaseAdapter) GetByUID(uid string) (*domain.Question, error) {
	return a.getByUID(context.Background(), a.db, uid)
}

func (a *QuestionDatabaseAdapter) getByUID(ctx context.Context, exec DBTX, uid string) (*domain.Question, error) {
	var row models.Question
	query := `SELECT uid, question_text, question_image, answer, difficulty, created_at, updated_at
	FROM questions
	WHERE uid = ?`
	if err := exec.GetContext(ctx, &row, query, uid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get question %s: %w", uid, err)
	}

	var options []models.Option
	optionsQuery := `SELECT id, question_uid, option_key, option_text, option_image
	FROM options
	WHERE question_uid = ?
	ORDER BY option_key`
	if err := exec.SelectContext(ctx, &options, optionsQuery, uid); err != nil {
		return nil, fmt.Errorf("failed to get options for %s: %w", uid, err)
	}

	var tags []string
	tagsQuery := `SELECT t.name
	FROM tags t
	JOIN question_tags qt ON t.id = qt.tag_id
	WHERE qt.question_uid = ?
	ORDER BY t.name`
	if err := exec.SelectContext(ctx, &tags, tagsQuery, uid); err != nil {
		return nil, fmt.Errorf("failed to get tags for %s: %w", uid, err)
	}

	var explanation models.Explanation
	explanationQuery := `SELECT question_uid, explanation_text
	FROM explanations
	WHERE question_uid = ?`
	explanationPtr := &explanation
	if err := exec.GetContext(ctx, &explanation, explanationQuery, uid); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to get explanation for %s: %w", uid, err)
		}
		explanationPtr = nil
	}

	return toDomainQuestion(&row, options, tags, explanationPtr), nil
}

// filterClauses builds WHERE fragments for tag/difficulty filters. Tags use
// OR semantics: a question matches when it carries at least one of them.
func filterClauses(filter domain.Filter) ([]string, []any) {
	var clauses []string
	var args []any
	if len(filter.Tags) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Tags)), ", ")
		clauses = append(clauses, fmt.Sprintf(`uid IN (
			SELECT question_uid
			FROM question_tags
			JOIN tags ON question_tags.tag_id = tags.id
			WHERE tags.name IN (%s)
		)`, placeholders))
		for _, tag := range filter.Tags {
			args = append(args, tag)
		}
	}
	if filter.Difficulty != "" {
		clauses = append(clauses, "difficulty = ?")
		args = append(args, filter.Difficulty)
	}
	return clauses, args
}

func appendPagination(queryParts []string, args []any, filter domain.Filter) ([]string, []any) {
	if filter.Limit > 0 {
		queryParts = append(queryParts, "LIMIT ?")
		args = append(args, filter.Limit)
	} else if filter.Offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET; -1 means unbounded.
		queryParts = append(queryParts, "LIMIT -1")
	}
	if filter.Offset > 0 {
		queryParts = append(queryParts, "OFFSET ?")
		args = append(args, filter.Offset)
	}
	return queryParts, args
}

// List returns questions matching the filter, most recently created first.
func (a *QuestionDatabaseAdapter) List(filter domain.Filter) ([]*domain.Question, error) {
	ctx := context.Background()

	queryParts := []string{"SELECT uid FROM questions"}
	clauses, args := filterClauses(filter)
	if len(clauses) > 0 {
		queryParts = append(queryParts, "WHERE "+strings.Join(clauses, " AND "))
	}
	// rowid breaks created_at ties in favor of the later insert.
	queryParts = append(queryParts, "ORDER BY created_at DESC, rowid DESC")
	queryParts, args = appendPagination(queryParts, args, filter)

	var uids []string
	if err := a.db.SelectContext(ctx, &uids, strings.Join(queryParts, " "), args...); err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return a.loadByUIDs(ctx, uids)
}

func (a *QuestionDatabaseAdapter) loadByUIDs(ctx context.Context, uids []string) ([]*domain.Question, error) {
	questions := make([]*domain.Question, 0, len(uids))
	for _, uid := range uids {
		q, err := a.getByUID(ctx, a.db, uid)
		if err != nil {
			return nil, err
		}
		if q != nil {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// Save persists the question in a single transaction: upsert the question
// row, replace the option set, replace the tag links (creating tag rows on
// demand) and upsert the explanation. Any failure rolls the whole
// operation back.
func (a *QuestionDatabaseAdapter) Save(q *domain.Question, isNew bool) error {
	if q == nil {
		return domain.NewValidationFailedError("cannot save nil question")
	}
	if isNew && q.UID == "" {
		q.UID = util.NewUID()
	}
	if q.UID == "" {
		return domain.NewValidationFailedError("cannot update question with empty UID")
	}

	now := time.Now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now

	err := a.tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		exec := GetExecutor(ctx, a.db)

		questionQuery := `INSERT INTO questions
		(uid, question_text, question_image, answer, difficulty, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			question_text = excluded.question_text,
			question_image = excluded.question_image,
			answer = excluded.answer,
			difficulty = excluded.difficulty,
			updated_at = excluded.updated_at`
		if _, err := exec.ExecContext(ctx, questionQuery,
			q.UID,
			q.Content.Text,
			util.PtrToNullString(q.Content.Image),
			q.Answer,
			util.StringToNullString(q.Difficulty),
			q.CreatedAt,
			q.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert question row: %w", err)
		}

		// Options are replaced wholesale; diffing them buys nothing.
		if _, err := exec.ExecContext(ctx, `DELETE FROM options WHERE question_uid = ?`, q.UID); err != nil {
			return fmt.Errorf("failed to clear options: %w", err)
		}
		for _, key := range q.OptionKeys() {
			opt := q.Options[key]
			if _, err := exec.ExecContext(ctx, `INSERT INTO options
			(question_uid, option_key, option_text, option_image)
			VALUES (?, ?, ?, ?)`,
				q.UID, key, opt.Text, util.PtrToNullString(opt.Image),
			); err != nil {
				return fmt.Errorf("failed to insert option %s: %w", key, err)
			}
		}

		if _, err := exec.ExecContext(ctx, `DELETE FROM question_tags WHERE question_uid = ?`, q.UID); err != nil {
			return fmt.Errorf("failed to clear tag links: %w", err)
		}
		for _, tag := range q.Tags {
			if _, err := exec.ExecContext(ctx,
				`INSERT INTO tags (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, tag); err != nil {
				return fmt.Errorf("failed to ensure tag %q: %w", tag, err)
			}
			var tagID int64
			if err := exec.GetContext(ctx, &tagID, `SELECT id FROM tags WHERE name = ?`, tag); err != nil {
				return fmt.Errorf("failed to resolve tag %q: %w", tag, err)
			}
			if _, err := exec.ExecContext(ctx,
				`INSERT OR IGNORE INTO question_tags (question_uid, tag_id) VALUES (?, ?)`,
				q.UID, tagID); err != nil {
				return fmt.Errorf("failed to link tag %q: %w", tag, err)
			}
		}

		explanationQuery := `INSERT INTO explanations (question_uid, explanation_text)
		VALUES (?, ?)
		ON CONFLICT(question_uid) DO UPDATE SET explanation_text = excluded.explanation_text`
		if _, err := exec.ExecContext(ctx, explanationQuery, q.UID, q.Explanation.Text); err != nil {
			return fmt.Errorf("failed to upsert explanation: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.NewInternalError(fmt.Sprintf("failed to save question %s", q.UID), err)
	}
	return nil
}

// Delete removes the question row; cascades take the options, tag links
// and explanation with it. Deleting an absent UID is not an error.
func (a *QuestionDatabaseAdapter) Delete(uid string) error {
	err := a.tm.WithTransaction(context.Background(), func(ctx context.Context) error {
		exec := GetExecutor(ctx, a.db)
		if _, err := exec.ExecContext(ctx, `DELETE FROM questions WHERE uid = ?`, uid); err != nil {
			return fmt.Errorf("failed to delete question row: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.NewInternalError(fmt.Sprintf("failed to delete question %s", uid), err)
	}
	return nil
}

// Count returns the number of questions matching the filter.
func (a *QuestionDatabaseAdapter) Count(filter domain.Filter) (int, error) {
	queryParts := []string{"SELECT COUNT(*) FROM questions"}
	clauses, args := filterClauses(filter)
	if len(clauses) > 0 {
		queryParts = append(queryParts, "WHERE "+strings.Join(clauses, " AND "))
	}
	var count int
	if err := a.db.GetContext(context.Background(), &count, strings.Join(queryParts, " "), args...); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return count, nil
}

// Search returns questions whose text, option text, explanation text, tag
// names or difficulty contain the given substring, newest first.
func (a *QuestionDatabaseAdapter) Search(text string, filter domain.Filter) ([]*domain.Question, error) {
	ctx := context.Background()

	queryParts := []string{`SELECT DISTINCT q.uid, q.created_at, q.rowid
	FROM questions q
	LEFT JOIN options o ON q.uid = o.question_uid
	LEFT JOIN explanations e ON q.uid = e.question_uid
	LEFT JOIN question_tags qt ON q.uid = qt.question_uid
	LEFT JOIN tags t ON qt.tag_id = t.id
	WHERE (q.question_text LIKE ? OR
		o.option_text LIKE ? OR
		e.explanation_text LIKE ? OR
		t.name LIKE ? OR
		q.difficulty LIKE ?)`}
	pattern := "%" + text + "%"
	args := []any{pattern, pattern, pattern, pattern, pattern}

	clauses, filterArgs := filterClauses(domain.Filter{Tags: filter.Tags, Difficulty: filter.Difficulty})
	for _, clause := range clauses {
		queryParts = append(queryParts, "AND q."+strings.TrimSpace(clause))
	}
	args = append(args, filterArgs...)

	queryParts = append(queryParts, "ORDER BY q.created_at DESC, q.rowid DESC")
	queryParts, args = appendPagination(queryParts, args, filter)

	rows, err := a.db.QueryxContext(ctx, strings.Join(queryParts, " "), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search questions: %w", err)
	}
	defer rows.Close()

	var uids []string
	for rows.Next() {
		var uid string
		var createdAt time.Time
		var rowid int64
		if err := rows.Scan(&uid, &createdAt, &rowid); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}
	return a.loadByUIDs(ctx, uids)
}

// AllTags returns all distinct tags, alphabetically ordered.
func (a *QuestionDatabaseAdapter) AllTags() ([]string, error) {
	var tags []string
	if err := a.db.SelectContext(context.Background(), &tags,
		`SELECT name FROM tags ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	return tags, nil
}

// Close closes the underlying database handle.
func (a *QuestionDatabaseAdapter) Close() error {
	return a.db.Close()
}
