package lesson

import (
	"context"
	"fmt"

	"github.com/pot-code/microcourse/internal/domain"
	"github.com/pot-code/microcourse/internal/infrastructure/driver"
)

// LessonSQLRepository every mutation runs in its own transaction holding the course row,
// so concurrent writers of one course are serialized
type LessonSQLRepository struct {
	Conn driver.ITransactionalDB
}

var _ LessonRepository = &LessonSQLRepository{}

// NewLessonRepository .
func NewLessonRepository(Conn driver.ITransactionalDB) *LessonSQLRepository {
	return &LessonSQLRepository{Conn: Conn}
}

func (repo *LessonSQLRepository) Append(ctx context.Context, lesson *LessonModel) error {
	return driver.WithTx(ctx, repo.Conn, nil, func(tx driver.ITransactionalDB) error {
		if err := lockCourse(ctx, tx, lesson.CourseID); err != nil {
			return err
		}
		if err := checkReel(ctx, tx, lesson.CourseID, lesson.ReelID); err != nil {
			return err
		}

		var count, last int64
		err := scanOne(ctx, tx, []interface{}{&count, &last}, `
SELECT
    COUNT(*), COALESCE(MAX("position"), 0)
FROM
    course_lesson
WHERE
    course_id = $1
		`, lesson.CourseID)
		if err != nil {
			return err
		}
		if count == 0 {
			lesson.Position = 1
		} else {
			lesson.Position = int(last) + 1
		}
		return insertLesson(ctx, tx, lesson)
	})
}

func (repo *LessonSQLRepository) InsertAt(ctx context.Context, lesson *LessonModel) error {
	return driver.WithTx(ctx, repo.Conn, nil, func(tx driver.ITransactionalDB) error {
		if err := lockCourse(ctx, tx, lesson.CourseID); err != nil {
			return err
		}
		if err := checkReel(ctx, tx, lesson.CourseID, lesson.ReelID); err != nil {
			return err
		}

		var occupied int64
		err := scanOne(ctx, tx, []interface{}{&occupied}, `
SELECT COUNT(*) FROM course_lesson WHERE course_id = $1 AND "position" = $2
		`, lesson.CourseID, lesson.Position)
		if err != nil {
			return err
		}
		if occupied > 0 {
			if err := shiftFrom(ctx, tx, lesson.CourseID, lesson.Position); err != nil {
				return err
			}
		}
		return insertLesson(ctx, tx, lesson)
	})
}

func (repo *LessonSQLRepository) List(ctx context.Context, courseID string) ([]*LessonModel, error) {
	if err := findCourse(ctx, repo.Conn, courseID, ""); err != nil {
		return nil, err
	}

	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    id, course_id, reel_id, "position", created_at
FROM
    course_lesson
WHERE
    course_id = $1
ORDER BY "position" ASC
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*LessonModel, 0)
	for rows.Next() {
		item := new(LessonModel)
		if err := rows.Scan(&item.ID, &item.CourseID, &item.ReelID, &item.Position, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (repo *LessonSQLRepository) Remove(ctx context.Context, courseID, lessonID string) error {
	return driver.WithTx(ctx, repo.Conn, nil, func(tx driver.ITransactionalDB) error {
		if err := lockCourse(ctx, tx, courseID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
DELETE FROM course_lesson WHERE course_id = $1 AND id = $2
		`, courseID, lessonID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("lesson %s: %w", lessonID, domain.ErrNotFound)
		}
		return nil
	})
}

func (repo *LessonSQLRepository) Count(ctx context.Context, courseID string) (int, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    COUNT(l.id)
FROM
    micro_course c
        LEFT JOIN
    course_lesson l ON (l.course_id = c.id)
WHERE
    c.id = $1
GROUP BY c.id
	`, courseID)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return 0, err
		}
		return 0, fmt.Errorf("course %s: %w", courseID, domain.ErrNotFound)
	}
	var count int64
	if err := rows.Scan(&count); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (repo *LessonSQLRepository) Has(ctx context.Context, courseID, lessonID string) (bool, error) {
	var count int64
	err := scanOne(ctx, repo.Conn, []interface{}{&count}, `
SELECT COUNT(*) FROM course_lesson WHERE course_id = $1 AND id = $2
	`, courseID, lessonID)
	return count > 0, err
}

// lockCourse fails with domain.ErrNotFound if the course is missing, the course
// row stays locked until tx ends
func lockCourse(ctx context.Context, tx driver.ITransactionalDB, courseID string) error {
	return findCourse(ctx, tx, courseID, driver.LockClause(tx))
}

func findCourse(ctx context.Context, db driver.ITransactionalDB, courseID string, suffix string) error {
	query := `SELECT id FROM micro_course WHERE id = $1` + suffix
	rows, err := db.QueryContext(ctx, query, courseID)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return fmt.Errorf("course %s: %w", courseID, domain.ErrNotFound)
	}
	return nil
}

func checkReel(ctx context.Context, tx driver.ITransactionalDB, courseID, reelID string) error {
	var count int64
	err := scanOne(ctx, tx, []interface{}{&count}, `
SELECT COUNT(*) FROM course_lesson WHERE course_id = $1 AND reel_id = $2
	`, courseID, reelID)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("reel %s in course %s: %w", reelID, courseID, domain.ErrDuplicate)
	}
	return nil
}

// shiftFrom moves every lesson at or after position one slot back, the highest
// first so the (course_id, position) constraint holds after each statement
func shiftFrom(ctx context.Context, tx driver.ITransactionalDB, courseID string, position int) error {
	rows, err := tx.QueryContext(ctx, `
SELECT id FROM course_lesson WHERE course_id = $1 AND "position" >= $2 ORDER BY "position" DESC
	`, courseID, position)
	if err != nil {
		return err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `
UPDATE course_lesson SET "position" = "position" + 1 WHERE id = $1
		`, id); err != nil {
			return err
		}
	}
	return nil
}

func insertLesson(ctx context.Context, tx driver.ITransactionalDB, lesson *LessonModel) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO course_lesson
    (id, course_id, reel_id, "position", created_at)
VALUES
    ($1, $2, $3, $4, $5)
	`, lesson.ID, lesson.CourseID, lesson.ReelID, lesson.Position, lesson.CreatedAt)
	if driver.IsUniqueViolation(err) {
		return fmt.Errorf("reel %s in course %s: %w", lesson.ReelID, lesson.CourseID, domain.ErrDuplicate)
	}
	return err
}

func scanOne(ctx context.Context, db driver.ITransactionalDB, dest []interface{}, query string, args ...interface{}) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return fmt.Errorf("no row returned: %w", domain.ErrNotFound)
	}
	return rows.Scan(dest...)
}
