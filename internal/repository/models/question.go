package models

import (
	"database/sql"
	"time"
)

// Question mirrors one row of the questions table.
type Question struct {
	UID           string         `db:"uid"`
	QuestionText  string         `db:"question_text"`
	QuestionImage sql.NullString `db:"question_image"`
	Answer        string         `db:"answer"`
	Difficulty    sql.NullString `db:"difficulty"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

// Option mirrors one row of the options table.
type Option struct {
	ID          int64          `db:"id"`
	QuestionUID string         `db:"question_uid"`
	OptionKey   string         `db:"option_key"`
	OptionText  string         `db:"option_text"`
	OptionImage sql.NullString `db:"option_image"`
}

// Tag mirrors one row of the tags table.
type Tag struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Explanation mirrors one row of the explanations table.
type Explanation struct {
	QuestionUID     string `db:"question_uid"`
	ExplanationText string `db:"explanation_text"`
}
