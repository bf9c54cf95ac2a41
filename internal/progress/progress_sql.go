package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pot-code/microcourse/internal/domain"
	"github.com/pot-code/microcourse/internal/infrastructure/driver"
)

// ProgressSQLRepository stores the completed set as a JSON array, version guards every update
type ProgressSQLRepository struct {
	Conn driver.ITransactionalDB
}

var _ ProgressRepository = &ProgressSQLRepository{}

// NewProgressRepository .
func NewProgressRepository(Conn driver.ITransactionalDB) *ProgressSQLRepository {
	return &ProgressSQLRepository{Conn: Conn}
}

func (repo *ProgressSQLRepository) Get(ctx context.Context, userID, courseID string) (*ProgressModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    user_id, course_id, completed_lesson_ids, progress_percentage, version, updated_at
FROM
    course_progress
WHERE
    user_id = $1 AND course_id = $2
	`, userID, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("progress of %s in %s: %w", userID, courseID, domain.ErrNotFound)
	}
	return scanProgress(rows)
}

func (repo *ProgressSQLRepository) Insert(ctx context.Context, progress *ProgressModel) error {
	ids, err := encodeIDs(progress.CompletedLessonIDs)
	if err != nil {
		return err
	}
	_, err = repo.Conn.ExecContext(ctx, `
INSERT INTO course_progress
    (user_id, course_id, completed_lesson_ids, progress_percentage, version, updated_at)
VALUES
    ($1, $2, $3, $4, $5, $6)
	`, progress.UserID, progress.CourseID, ids, progress.ProgressPercentage, progress.Version, progress.UpdatedAt)
	if driver.IsUniqueViolation(err) {
		return ErrStaleProgress
	}
	return err
}

func (repo *ProgressSQLRepository) CompareAndSwap(ctx context.Context, progress *ProgressModel, version int64) error {
	ids, err := encodeIDs(progress.CompletedLessonIDs)
	if err != nil {
		return err
	}
	res, err := repo.Conn.ExecContext(ctx, `
UPDATE course_progress
SET
    completed_lesson_ids = $1, progress_percentage = $2, version = $3, updated_at = $4
WHERE
    user_id = $5 AND course_id = $6 AND version = $7
	`, ids, progress.ProgressPercentage, progress.Version, progress.UpdatedAt, progress.UserID, progress.CourseID, version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStaleProgress
	}
	return nil
}

func (repo *ProgressSQLRepository) ListByCourse(ctx context.Context, courseID string) ([]*ProgressModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    user_id, course_id, completed_lesson_ids, progress_percentage, version, updated_at
FROM
    course_progress
WHERE
    course_id = $1
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*ProgressModel
	for rows.Next() {
		item, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func scanProgress(rows driver.ISQLRows) (*ProgressModel, error) {
	var (
		item = new(ProgressModel)
		ids  string
	)
	if err := rows.Scan(&item.UserID, &item.CourseID, &ids, &item.ProgressPercentage, &item.Version, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.CompletedLessonIDs = []string{}
	if ids != "" {
		if err := json.Unmarshal([]byte(ids), &item.CompletedLessonIDs); err != nil {
			return nil, fmt.Errorf("corrupted completed_lesson_ids of %s in %s: %w", item.UserID, item.CourseID, err)
		}
		sort.Strings(item.CompletedLessonIDs)
	}
	if item.CompletedLessonIDs == nil {
		item.CompletedLessonIDs = []string{}
	}
	return item, nil
}

func encodeIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	return string(data), err
}
