package progress

import (
	"context"
	"errors"
	"sort"
)

// ErrStaleProgress the record was written by someone else since it was read
var ErrStaleProgress = errors.New("progress record changed concurrently")

// ProgressModel completion state of one user in one course
type ProgressModel struct {
	UserID             string   `json:"user_id"`
	CourseID           string   `json:"course_id"`
	CompletedLessonIDs []string `json:"completed_lesson_ids"` // sorted, no duplicates
	ProgressPercentage int      `json:"progress_percentage"`
	Version            int64    `json:"-"`
	UpdatedAt          int64    `json:"updated_at,omitempty"` // unix milliseconds
}

// Has reports whether lessonID is marked complete
func (pm *ProgressModel) Has(lessonID string) bool {
	i := sort.SearchStrings(pm.CompletedLessonIDs, lessonID)
	return i < len(pm.CompletedLessonIDs) && pm.CompletedLessonIDs[i] == lessonID
}

// with returns a copy with lessonID added or removed and the percentage recomputed against total
func (pm *ProgressModel) with(lessonID string, completed bool, total int) *ProgressModel {
	ids := make([]string, 0, len(pm.CompletedLessonIDs)+1)
	for _, id := range pm.CompletedLessonIDs {
		if id != lessonID {
			ids = append(ids, id)
		}
	}
	if completed {
		ids = append(ids, lessonID)
		sort.Strings(ids)
	}
	return &ProgressModel{
		UserID:             pm.UserID,
		CourseID:           pm.CourseID,
		CompletedLessonIDs: ids,
		ProgressPercentage: Percentage(len(ids), total),
		Version:            pm.Version,
		UpdatedAt:          pm.UpdatedAt,
	}
}

func (pm *ProgressModel) sameAs(other *ProgressModel) bool {
	if pm.ProgressPercentage != other.ProgressPercentage || len(pm.CompletedLessonIDs) != len(other.CompletedLessonIDs) {
		return false
	}
	for i := range pm.CompletedLessonIDs {
		if pm.CompletedLessonIDs[i] != other.CompletedLessonIDs[i] {
			return false
		}
	}
	return true
}

func emptyProgress(userID, courseID string) *ProgressModel {
	return &ProgressModel{
		UserID:             userID,
		CourseID:           courseID,
		CompletedLessonIDs: []string{},
	}
}

// Percentage round(100 * completed / max(1, total)) with halves rounded up, capped to 0..100
func Percentage(completed, total int) int {
	if total < 1 {
		total = 1
	}
	if completed < 0 {
		completed = 0
	}
	p := (200*completed + total) / (2 * total)
	if p > 100 {
		return 100
	}
	return p
}

type ProgressRepository interface {
	// Get returns domain.ErrNotFound if the user has no record for the course
	Get(ctx context.Context, userID, courseID string) (*ProgressModel, error)
	// Insert creates the first record of the pair, ErrStaleProgress if one already exists
	Insert(ctx context.Context, progress *ProgressModel) error
	// CompareAndSwap replaces the record if it's still at version, ErrStaleProgress otherwise
	CompareAndSwap(ctx context.Context, progress *ProgressModel, version int64) error
	ListByCourse(ctx context.Context, courseID string) ([]*ProgressModel, error)
}

// LessonIndex current lessons of a course
type LessonIndex interface {
	// CountLessons returns domain.ErrNotFound if the course doesn't exist
	CountLessons(ctx context.Context, courseID string) (int, error)
	HasLesson(ctx context.Context, courseID, lessonID string) (bool, error)
}

type ProgressTracker interface {
	GetProgress(ctx context.Context, userID, courseID string) (*ProgressModel, error)
	SetLessonCompletion(ctx context.Context, userID, courseID, lessonID string, completed bool) (*ProgressModel, error)
	PurgeLesson(ctx context.Context, courseID, lessonID string) error
}
