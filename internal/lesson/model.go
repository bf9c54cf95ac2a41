package lesson

import (
	"context"
)

// LessonModel a reel placed in a course, position orders the lessons of a course
// and is unique within it, gaps are allowed
type LessonModel struct {
	ID        string `json:"id"`
	CourseID  string `json:"course_id"`
	ReelID    string `json:"reel_id"`
	Position  int    `json:"position"`
	CreatedAt int64  `json:"created_at"` // unix milliseconds
}

type LessonRepository interface {
	// Append stores lesson after the last lesson of the course and fills in its position
	Append(ctx context.Context, lesson *LessonModel) error
	// InsertAt stores lesson at lesson.Position, shifting the occupied positions by +1
	InsertAt(ctx context.Context, lesson *LessonModel) error
	// List returns lessons by ascending position, domain.ErrNotFound if the course doesn't exist
	List(ctx context.Context, courseID string) ([]*LessonModel, error)
	Remove(ctx context.Context, courseID, lessonID string) error
	// Count returns domain.ErrNotFound if the course doesn't exist
	Count(ctx context.Context, courseID string) (int, error)
	Has(ctx context.Context, courseID, lessonID string) (bool, error)
}

type LessonUseCase interface {
	AppendLesson(ctx context.Context, courseID, reelID string) (*LessonModel, error)
	InsertLessonAt(ctx context.Context, courseID, reelID string, position int) (*LessonModel, error)
	ListLessons(ctx context.Context, courseID string) ([]*LessonModel, error)
	RemoveLesson(ctx context.Context, courseID, lessonID string) error
	CountLessons(ctx context.Context, courseID string) (int, error)
	HasLesson(ctx context.Context, courseID, lessonID string) (bool, error)
}

// ProgressPurger drops a removed lesson from the progress records of its course
type ProgressPurger interface {
	PurgeLesson(ctx context.Context, courseID, lessonID string) error
}
