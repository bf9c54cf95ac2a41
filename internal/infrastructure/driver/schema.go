package driver

import (
	"context"
	"fmt"
)

// keep the DDL within the subset shared by postgres, mysql and sqlite
var schema = []string{
	`CREATE TABLE IF NOT EXISTS micro_course (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		creator_id VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		cover_image VARCHAR(1024) NOT NULL,
		tags TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS course_lesson (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		course_id VARCHAR(64) NOT NULL,
		reel_id VARCHAR(64) NOT NULL,
		"position" INTEGER NOT NULL,
		created_at BIGINT NOT NULL,
		CONSTRAINT uq_course_lesson_position UNIQUE (course_id, "position"),
		CONSTRAINT uq_course_lesson_reel UNIQUE (course_id, reel_id),
		CONSTRAINT fk_course_lesson_course FOREIGN KEY (course_id) REFERENCES micro_course (id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS course_progress (
		user_id VARCHAR(64) NOT NULL,
		course_id VARCHAR(64) NOT NULL,
		completed_lesson_ids TEXT NOT NULL,
		progress_percentage INTEGER NOT NULL,
		version INTEGER NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (user_id, course_id),
		CONSTRAINT fk_course_progress_course FOREIGN KEY (course_id) REFERENCES micro_course (id) ON DELETE CASCADE
	)`,
}

// EnsureSchema create tables if they don't exist
func EnsureSchema(ctx context.Context, conn ITransactionalDB) error {
	for _, ddl := range schema {
		if _, err := conn.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
