package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"satbank/internal/logger"
)

// Schema statements are idempotent (IF NOT EXISTS) so RunMigrations can be
// called on every open of a database file.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS questions (
		uid TEXT PRIMARY KEY,
		question_text TEXT NOT NULL,
		question_image TEXT,
		answer TEXT NOT NULL,
		difficulty TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS options (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question_uid TEXT NOT NULL,
		option_key TEXT NOT NULL,
		option_text TEXT NOT NULL,
		option_image TEXT,
		FOREIGN KEY (question_uid) REFERENCES questions(uid) ON DELETE CASCADE,
		UNIQUE(question_uid, option_key)
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS question_tags (
		question_uid TEXT NOT NULL,
		tag_id INTEGER NOT NULL,
		PRIMARY KEY (question_uid, tag_id),
		FOREIGN KEY (question_uid) REFERENCES questions(uid) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS explanations (
		question_uid TEXT PRIMARY KEY,
		explanation_text TEXT NOT NULL,
		FOREIGN KEY (question_uid) REFERENCES questions(uid) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_options_question_uid ON options (question_uid)`,
	`CREATE INDEX IF NOT EXISTS idx_question_tags_tag_id ON question_tags (tag_id)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_created_at ON questions (created_at)`,
}

// RunMigrations creates the question schema if it does not exist yet.
func RunMigrations(db *sqlx.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("could not execute migration %d: %w", i+1, err)
		}
	}
	logger.Get().Info("Migrations completed successfully")
	return nil
}
