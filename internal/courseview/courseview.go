package courseview

import (
	"context"
	"errors"

	"github.com/pot-code/microcourse/internal/course"
	"github.com/pot-code/microcourse/internal/domain"
	"github.com/pot-code/microcourse/internal/lesson"
	"github.com/pot-code/microcourse/internal/progress"
	"go.elastic.co/apm"
	"golang.org/x/sync/errgroup"
)

// LessonView lesson annotated with the completion state of the viewer
type LessonView struct {
	*lesson.LessonModel
	Completed bool `json:"completed"`
}

// CourseView course with its ordered lessons as seen by one user
type CourseView struct {
	*course.CourseModel
	Lessons            []*LessonView `json:"lessons"`
	ProgressPercentage int           `json:"progress_percentage"`
}

// CourseSummary course listing entry with its lessons in order
type CourseSummary struct {
	*course.CourseModel
	Lessons []*lesson.LessonModel `json:"lessons"`
}

type CourseReader interface {
	GetCourse(ctx context.Context, id string) (*course.CourseModel, error)
	ListCourses(ctx context.Context, limit, offset int) ([]*course.CourseModel, error)
}

type LessonLister interface {
	ListLessons(ctx context.Context, courseID string) ([]*lesson.LessonModel, error)
}

type ProgressReader interface {
	GetProgress(ctx context.Context, userID, courseID string) (*progress.ProgressModel, error)
}

type CourseViewUseCase interface {
	// GetCourseView userID may be empty for anonymous viewers
	GetCourseView(ctx context.Context, courseID, userID string) (*CourseView, error)
	ListCourseSummaries(ctx context.Context, limit, offset int) ([]*CourseSummary, error)
}

// lessonFetchLimit concurrent lesson reads of one listing page
const lessonFetchLimit = 8

// CourseViewUseCaseImpl ...
type CourseViewUseCaseImpl struct {
	CourseReader   CourseReader
	LessonLister   LessonLister
	ProgressReader ProgressReader
}

var _ CourseViewUseCase = &CourseViewUseCaseImpl{}

// NewCourseViewUseCase ...
func NewCourseViewUseCase(
	CourseReader CourseReader,
	LessonLister LessonLister,
	ProgressReader ProgressReader,
) *CourseViewUseCaseImpl {
	return &CourseViewUseCaseImpl{CourseReader, LessonLister, ProgressReader}
}

// GetCourseView read course, lessons and progress concurrently and merge them.
//
// A lesson counts as completed only while it is still listed, so ids left behind
// by removed lessons never show up nor count.
func (cu *CourseViewUseCaseImpl) GetCourseView(ctx context.Context, courseID, userID string) (*CourseView, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CourseViewUseCaseImpl.GetCourseView", "service")
	defer apmSpan.End()

	var (
		meta    *course.CourseModel
		lessons []*lesson.LessonModel
		record  *progress.ProgressModel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		meta, err = cu.CourseReader.GetCourse(gctx, courseID)
		return
	})
	g.Go(func() (err error) {
		lessons, err = cu.LessonLister.ListLessons(gctx, courseID)
		return
	})
	if userID != "" {
		g.Go(func() (err error) {
			record, err = cu.ProgressReader.GetProgress(gctx, userID, courseID)
			return
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &CourseView{
		CourseModel: meta,
		Lessons:     make([]*LessonView, 0, len(lessons)),
	}
	completed := 0
	for _, l := range lessons {
		done := record != nil && record.Has(l.ID)
		if done {
			completed++
		}
		view.Lessons = append(view.Lessons, &LessonView{LessonModel: l, Completed: done})
	}
	view.ProgressPercentage = progress.Percentage(completed, len(lessons))
	return view, nil
}

// ListCourseSummaries one page of courses, newest first, each with its ordered lessons
func (cu *CourseViewUseCaseImpl) ListCourseSummaries(ctx context.Context, limit, offset int) ([]*CourseSummary, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CourseViewUseCaseImpl.ListCourseSummaries", "service")
	defer apmSpan.End()

	courses, err := cu.CourseReader.ListCourses(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	summaries := make([]*CourseSummary, len(courses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lessonFetchLimit)
	for i, c := range courses {
		g.Go(func() error {
			lessons, err := cu.LessonLister.ListLessons(gctx, c.ID)
			if errors.Is(err, domain.ErrNotFound) {
				lessons = []*lesson.LessonModel{} // deleted after the page was read
			} else if err != nil {
				return err
			}
			summaries[i] = &CourseSummary{CourseModel: c, Lessons: lessons}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
