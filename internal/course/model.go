package course

import (
	"context"
)

// CourseModel micro-course metadata, lessons are owned by the lesson package
type CourseModel struct {
	ID          string   `json:"id"`
	CreatorID   string   `json:"creator_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CoverImage  string   `json:"cover_image"`
	Tags        []string `json:"tags"`
	CreatedAt   int64    `json:"created_at"` // unix milliseconds
}

// CreateCourseInput .
type CreateCourseInput struct {
	Title       string   `json:"title" validate:"required,max=255"`
	Description string   `json:"description" validate:"max=4096"`
	CoverImage  string   `json:"cover_image" validate:"omitempty,url,max=1024"`
	Tags        []string `json:"tags" validate:"max=20,dive,required,max=50"`
}

type CourseRepository interface {
	Create(ctx context.Context, course *CourseModel) error
	// Get returns domain.ErrNotFound if course doesn't exist
	Get(ctx context.Context, id string) (*CourseModel, error)
	List(ctx context.Context, limit, offset int) ([]*CourseModel, error)
}

type CourseUseCase interface {
	CreateCourse(ctx context.Context, creatorID string, input *CreateCourseInput) (*CourseModel, error)
	GetCourse(ctx context.Context, id string) (*CourseModel, error)
	ListCourses(ctx context.Context, limit, offset int) ([]*CourseModel, error)
	// CheckOwner returns domain.ErrForbidden if userID didn't create the course
	CheckOwner(ctx context.Context, courseID, userID string) error
}
