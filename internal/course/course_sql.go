package course

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pot-code/microcourse/internal/domain"
	"github.com/pot-code/microcourse/internal/infrastructure/driver"
)

// CourseSQLRepository .
type CourseSQLRepository struct {
	Conn driver.ITransactionalDB
}

var _ CourseRepository = &CourseSQLRepository{}

// NewCourseRepository .
func NewCourseRepository(Conn driver.ITransactionalDB) *CourseSQLRepository {
	return &CourseSQLRepository{Conn: Conn}
}

func (repo *CourseSQLRepository) Create(ctx context.Context, course *CourseModel) error {
	tags, err := marshalTags(course.Tags)
	if err != nil {
		return err
	}
	_, err = repo.Conn.ExecContext(ctx, `
INSERT INTO micro_course
    (id, creator_id, title, description, cover_image, tags, created_at)
VALUES
    ($1, $2, $3, $4, $5, $6, $7)
	`, course.ID, course.CreatorID, course.Title, course.Description, course.CoverImage, tags, course.CreatedAt)
	if driver.IsUniqueViolation(err) {
		return fmt.Errorf("course %s: %w", course.ID, domain.ErrDuplicate)
	}
	return err
}

func (repo *CourseSQLRepository) Get(ctx context.Context, id string) (*CourseModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    id, creator_id, title, description, cover_image, tags, created_at
FROM
    micro_course
WHERE
    id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("course %s: %w", id, domain.ErrNotFound)
	}
	return scanCourse(rows)
}

func (repo *CourseSQLRepository) List(ctx context.Context, limit, offset int) ([]*CourseModel, error) {
	rows, err := repo.Conn.QueryContext(ctx, `
SELECT
    id, creator_id, title, description, cover_image, tags, created_at
FROM
    micro_course
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*CourseModel, 0)
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, course)
	}
	return result, rows.Err()
}

func scanCourse(rows driver.ISQLRows) (*CourseModel, error) {
	var tags string
	course := new(CourseModel)
	if err := rows.Scan(&course.ID, &course.CreatorID, &course.Title, &course.Description, &course.CoverImage, &tags, &course.CreatedAt); err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &course.Tags); err != nil {
			return nil, fmt.Errorf("corrupted tags of course %s: %w", course.ID, err)
		}
	}
	if course.Tags == nil {
		course.Tags = []string{}
	}
	return course, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	return string(data), err
}
