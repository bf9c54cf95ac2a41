package lesson

import (
	"context"
	"fmt"
	"time"

	"github.com/pot-code/microcourse/internal/domain"
	"github.com/pot-code/microcourse/internal/infrastructure/logging"
	"github.com/pot-code/microcourse/internal/infrastructure/retry"
	"github.com/pot-code/microcourse/internal/infrastructure/uuid"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// LessonUseCaseImpl ...
type LessonUseCaseImpl struct {
	LessonRepository LessonRepository
	UUIDGenerator    uuid.Generator
	RetryPolicy      *retry.Policy
	progressPurger   ProgressPurger
}

var _ LessonUseCase = &LessonUseCaseImpl{}

// NewLessonUseCase ...
func NewLessonUseCase(
	LessonRepository LessonRepository,
	UUIDGenerator uuid.Generator,
	RetryPolicy *retry.Policy,
) *LessonUseCaseImpl {
	return &LessonUseCaseImpl{
		LessonRepository: LessonRepository,
		UUIDGenerator:    UUIDGenerator,
		RetryPolicy:      RetryPolicy,
	}
}

// SetProgressPurger register the purger notified after a lesson is removed
func (lu *LessonUseCaseImpl) SetProgressPurger(purger ProgressPurger) {
	lu.progressPurger = purger
}

// AppendLesson place reel after the last lesson of the course
func (lu *LessonUseCaseImpl) AppendLesson(ctx context.Context, courseID, reelID string) (*LessonModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "LessonUseCaseImpl.AppendLesson", "service")
	defer apmSpan.End()

	lesson, err := lu.newLesson(courseID, reelID, 0)
	if err != nil {
		return nil, err
	}
	err = retry.Exec(ctx, lu.RetryPolicy, func() error {
		return lu.LessonRepository.Append(ctx, lesson)
	})
	if err != nil {
		return nil, err
	}
	return lesson, nil
}

// InsertLessonAt place reel at position, lessons at or after it move back by one
func (lu *LessonUseCaseImpl) InsertLessonAt(ctx context.Context, courseID, reelID string, position int) (*LessonModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "LessonUseCaseImpl.InsertLessonAt", "service")
	defer apmSpan.End()

	lesson, err := lu.newLesson(courseID, reelID, position)
	if err != nil {
		return nil, err
	}
	err = retry.Exec(ctx, lu.RetryPolicy, func() error {
		return lu.LessonRepository.InsertAt(ctx, lesson)
	})
	if err != nil {
		return nil, err
	}
	return lesson, nil
}

// ListLessons lessons of the course by ascending position
func (lu *LessonUseCaseImpl) ListLessons(ctx context.Context, courseID string) ([]*LessonModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "LessonUseCaseImpl.ListLessons", "service")
	defer apmSpan.End()

	return retry.Do(ctx, lu.RetryPolicy, func() ([]*LessonModel, error) {
		return lu.LessonRepository.List(ctx, courseID)
	})
}

// RemoveLesson delete the lesson without renumbering the others, then drop it
// from the progress records of the course
func (lu *LessonUseCaseImpl) RemoveLesson(ctx context.Context, courseID, lessonID string) error {
	apmSpan, ctx := apm.StartSpan(ctx, "LessonUseCaseImpl.RemoveLesson", "service")
	defer apmSpan.End()

	err := retry.Exec(ctx, lu.RetryPolicy, func() error {
		return lu.LessonRepository.Remove(ctx, courseID, lessonID)
	})
	if err != nil {
		return err
	}

	if lu.progressPurger != nil {
		// the lesson is gone either way, views ignore ids that are no longer listed
		if err := lu.progressPurger.PurgeLesson(ctx, courseID, lessonID); err != nil {
			logging.ExtractLoggerFromContext(ctx).Warn("failed to purge removed lesson from progress",
				zap.String("course.id", courseID),
				zap.String("lesson.id", lessonID),
				zap.Error(err))
		}
	}
	return nil
}

// CountLessons .
func (lu *LessonUseCaseImpl) CountLessons(ctx context.Context, courseID string) (int, error) {
	return retry.Do(ctx, lu.RetryPolicy, func() (int, error) {
		return lu.LessonRepository.Count(ctx, courseID)
	})
}

// HasLesson .
func (lu *LessonUseCaseImpl) HasLesson(ctx context.Context, courseID, lessonID string) (bool, error) {
	return retry.Do(ctx, lu.RetryPolicy, func() (bool, error) {
		return lu.LessonRepository.Has(ctx, courseID, lessonID)
	})
}

func (lu *LessonUseCaseImpl) newLesson(courseID, reelID string, position int) (*LessonModel, error) {
	if reelID == "" {
		return nil, fmt.Errorf("reel_id is required: %w", domain.ErrInvalid)
	}
	id, err := lu.UUIDGenerator.Generate()
	if err != nil {
		return nil, err
	}
	return &LessonModel{
		ID:        id,
		CourseID:  courseID,
		ReelID:    reelID,
		Position:  position,
		CreatedAt: time.Now().UnixNano() / int64(time.Millisecond),
	}, nil
}
