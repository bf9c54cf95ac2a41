package progress

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pot-code/microcourse/internal/domain"
	"github.com/pot-code/microcourse/internal/infrastructure/logging"
	"github.com/pot-code/microcourse/internal/infrastructure/retry"
	"go.elastic.co/apm"
	"go.uber.org/zap"
)

// DefaultConflictRetries read-modify-write attempts before ErrConflict
const DefaultConflictRetries = 5

// ProgressTrackerImpl ...
type ProgressTrackerImpl struct {
	ProgressRepository ProgressRepository
	LessonIndex        LessonIndex
	RetryPolicy        *retry.Policy
	ConflictRetries    int
}

var _ ProgressTracker = &ProgressTrackerImpl{}

// NewProgressTracker ...
func NewProgressTracker(
	ProgressRepository ProgressRepository,
	LessonIndex LessonIndex,
	RetryPolicy *retry.Policy,
	ConflictRetries int,
) *ProgressTrackerImpl {
	if ConflictRetries < 1 {
		ConflictRetries = DefaultConflictRetries
	}
	return &ProgressTrackerImpl{ProgressRepository, LessonIndex, RetryPolicy, ConflictRetries}
}

// GetProgress stored record of the pair, or an empty one
func (pt *ProgressTrackerImpl) GetProgress(ctx context.Context, userID, courseID string) (*ProgressModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressTrackerImpl.GetProgress", "service")
	defer apmSpan.End()

	current, err := pt.load(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return emptyProgress(userID, courseID), nil
	}
	return current, nil
}

// SetLessonCompletion mark lessonID complete or incomplete and recompute the percentage.
//
// Calls on the same pair race through compare-and-swap on the record version, the
// loser re-reads and applies its change again so no toggle is lost.
func (pt *ProgressTrackerImpl) SetLessonCompletion(ctx context.Context, userID, courseID, lessonID string, completed bool) (*ProgressModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressTrackerImpl.SetLessonCompletion", "service")
	defer apmSpan.End()

	if userID == "" || lessonID == "" {
		return nil, fmt.Errorf("user and lesson are required: %w", domain.ErrInvalid)
	}

	logger := logging.ExtractLoggerFromContext(ctx)
	for attempt := 1; attempt <= pt.ConflictRetries; attempt++ {
		total, err := pt.LessonIndex.CountLessons(ctx, courseID)
		if err != nil {
			return nil, err
		}
		if completed {
			has, err := pt.LessonIndex.HasLesson(ctx, courseID, lessonID)
			if err != nil {
				return nil, err
			}
			if !has {
				return nil, fmt.Errorf("lesson %s in course %s: %w", lessonID, courseID, domain.ErrNotFound)
			}
		}

		current, err := pt.load(ctx, userID, courseID)
		if err != nil {
			return nil, err
		}
		next, err := pt.write(ctx, current, userID, courseID, func(p *ProgressModel) *ProgressModel {
			return p.with(lessonID, completed, total)
		})
		if errors.Is(err, ErrStaleProgress) {
			logger.Debug("progress changed concurrently, retrying",
				zap.String("course.id", courseID),
				zap.Int("occ.attempt", attempt))
			continue
		}
		if err != nil {
			return nil, err
		}
		return next, nil
	}
	return nil, fmt.Errorf("progress of %s in %s after %d attempts: %w", userID, courseID, pt.ConflictRetries, domain.ErrConflict)
}

// PurgeLesson drop a removed lesson from every record of the course and recompute their percentage
func (pt *ProgressTrackerImpl) PurgeLesson(ctx context.Context, courseID, lessonID string) error {
	apmSpan, ctx := apm.StartSpan(ctx, "ProgressTrackerImpl.PurgeLesson", "service")
	defer apmSpan.End()

	records, err := retry.Do(ctx, pt.RetryPolicy, func() ([]*ProgressModel, error) {
		return pt.ProgressRepository.ListByCourse(ctx, courseID)
	})
	if err != nil {
		return err
	}

	var errs []error
	for _, record := range records {
		if !record.Has(lessonID) {
			continue
		}
		if err := pt.purgeOne(ctx, record.UserID, courseID, lessonID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (pt *ProgressTrackerImpl) purgeOne(ctx context.Context, userID, courseID, lessonID string) error {
	for attempt := 1; attempt <= pt.ConflictRetries; attempt++ {
		total, err := pt.LessonIndex.CountLessons(ctx, courseID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil // course deleted, its records went with it
		}
		if err != nil {
			return err
		}
		current, err := pt.load(ctx, userID, courseID)
		if err != nil {
			return err
		}
		if current == nil || !current.Has(lessonID) {
			return nil
		}
		_, err = pt.write(ctx, current, userID, courseID, func(p *ProgressModel) *ProgressModel {
			return p.with(lessonID, false, total)
		})
		if errors.Is(err, ErrStaleProgress) {
			continue
		}
		return err
	}
	return fmt.Errorf("purge %s from progress of %s: %w", lessonID, userID, domain.ErrConflict)
}

// load returns nil if the pair has no record yet
func (pt *ProgressTrackerImpl) load(ctx context.Context, userID, courseID string) (*ProgressModel, error) {
	current, err := retry.Do(ctx, pt.RetryPolicy, func() (*ProgressModel, error) {
		return pt.ProgressRepository.Get(ctx, userID, courseID)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return current, err
}

// write stores change(current) as the next version, a missing record is created.
// Unchanged records are returned as is.
func (pt *ProgressTrackerImpl) write(
	ctx context.Context,
	current *ProgressModel,
	userID, courseID string,
	change func(*ProgressModel) *ProgressModel,
) (*ProgressModel, error) {
	base := current
	if base == nil {
		base = emptyProgress(userID, courseID)
	}
	next := change(base)
	if current != nil && next.sameAs(current) {
		return current, nil
	}

	next.UpdatedAt = time.Now().UnixNano() / int64(time.Millisecond)
	next.Version = base.Version + 1
	err := retry.Exec(ctx, pt.RetryPolicy, func() error {
		if current == nil {
			return pt.ProgressRepository.Insert(ctx, next)
		}
		return pt.ProgressRepository.CompareAndSwap(ctx, next, current.Version)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}
