package courseview

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pot-code/microcourse/internal/course"
	"github.com/pot-code/microcourse/internal/domain"
	"github.com/pot-code/microcourse/internal/infrastructure/driver/drivertest"
	"github.com/pot-code/microcourse/internal/infrastructure/uuid"
	"github.com/pot-code/microcourse/internal/lesson"
	"github.com/pot-code/microcourse/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx     context.Context
	courses *course.CourseUseCaseImpl
	lessons *lesson.LessonUseCaseImpl
	tracker *progress.ProgressTrackerImpl
	view    *CourseViewUseCaseImpl
}

// newFixture lessons are not purged from progress on removal, so the view has to mask stale ids itself
func newFixture(t *testing.T) *fixture {
	ctx := drivertest.Context(t)
	conn := drivertest.NewSQLite(t)
	gen := uuid.NewNanoIDGenerator(uuid.DefaultLength)

	courses := course.NewCourseUseCase(course.NewCourseRepository(conn), gen, nil)
	lessons := lesson.NewLessonUseCase(lesson.NewLessonRepository(conn), gen, nil)
	tracker := progress.NewProgressTracker(progress.NewProgressRepository(conn), lessons, nil, 0)
	return &fixture{
		ctx:     ctx,
		courses: courses,
		lessons: lessons,
		tracker: tracker,
		view:    NewCourseViewUseCase(courses, lessons, tracker),
	}
}

func (f *fixture) course(t *testing.T, reels ...string) (string, []string) {
	c, err := f.courses.CreateCourse(f.ctx, "owner", &course.CreateCourseInput{Title: "course"})
	require.NoError(t, err)
	var ids []string
	for _, reel := range reels {
		l, err := f.lessons.AppendLesson(f.ctx, c.ID, reel)
		require.NoError(t, err)
		ids = append(ids, l.ID)
	}
	return c.ID, ids
}

func completedFlags(view *CourseView) []bool {
	flags := make([]bool, 0, len(view.Lessons))
	for _, l := range view.Lessons {
		flags = append(flags, l.Completed)
	}
	return flags
}

func TestGetCourseView_MergesLessonsAndProgress(t *testing.T) {
	f := newFixture(t)
	courseID, ids := f.course(t, "a", "b", "c", "d")
	_, err := f.tracker.SetLessonCompletion(f.ctx, "u1", courseID, ids[1], true)
	require.NoError(t, err)

	_, err = f.lessons.InsertLessonAt(f.ctx, courseID, "head", 1)
	require.NoError(t, err)

	view, err := f.view.GetCourseView(f.ctx, courseID, "u1")
	require.NoError(t, err)
	assert.Equal(t, courseID, view.ID)
	assert.Equal(t, "course", view.Title)
	require.Len(t, view.Lessons, 5)
	assert.Equal(t, "head", view.Lessons[0].ReelID)
	assert.Equal(t, []bool{false, false, true, false, false}, completedFlags(view))
	assert.Equal(t, 20, view.ProgressPercentage)
}

func TestGetCourseView_MasksRemovedLessons(t *testing.T) {
	f := newFixture(t)
	courseID, ids := f.course(t, "a", "b", "c", "d")
	for _, id := range ids[:2] {
		_, err := f.tracker.SetLessonCompletion(f.ctx, "u1", courseID, id, true)
		require.NoError(t, err)
	}

	require.NoError(t, f.lessons.RemoveLesson(f.ctx, courseID, ids[0]))
	stored, err := f.tracker.GetProgress(f.ctx, "u1", courseID)
	require.NoError(t, err)
	assert.Contains(t, stored.CompletedLessonIDs, ids[0])

	view, err := f.view.GetCourseView(f.ctx, courseID, "u1")
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, completedFlags(view))
	assert.Equal(t, 33, view.ProgressPercentage)

	// removing every completed lesson never lifts the percentage past 100
	require.NoError(t, f.lessons.RemoveLesson(f.ctx, courseID, ids[2]))
	require.NoError(t, f.lessons.RemoveLesson(f.ctx, courseID, ids[3]))
	view, err = f.view.GetCourseView(f.ctx, courseID, "u1")
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, completedFlags(view))
	assert.Equal(t, 100, view.ProgressPercentage)
}

func TestGetCourseView_Anonymous(t *testing.T) {
	f := newFixture(t)
	courseID, ids := f.course(t, "a", "b")
	_, err := f.tracker.SetLessonCompletion(f.ctx, "u1", courseID, ids[0], true)
	require.NoError(t, err)

	view, err := f.view.GetCourseView(f.ctx, courseID, "")
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false}, completedFlags(view))
	assert.Equal(t, 0, view.ProgressPercentage)
}

func TestGetCourseView_EmptyCourse(t *testing.T) {
	f := newFixture(t)
	courseID, _ := f.course(t)

	view, err := f.view.GetCourseView(f.ctx, courseID, "u1")
	require.NoError(t, err)
	assert.NotNil(t, view.Lessons)
	assert.Empty(t, view.Lessons)
	assert.Equal(t, 0, view.ProgressPercentage)

	data, err := json.Marshal(view)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"lessons":[]`)
}

func TestGetCourseView_UnknownCourse(t *testing.T) {
	f := newFixture(t)
	_, err := f.view.GetCourseView(f.ctx, "missing", "u1")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestListCourseSummaries_EmbedsOrderedLessons(t *testing.T) {
	f := newFixture(t)
	first, _ := f.course(t, "a", "b")
	second, _ := f.course(t)
	_, err := f.lessons.InsertLessonAt(f.ctx, first, "head", 1)
	require.NoError(t, err)

	summaries, err := f.view.ListCourseSummaries(f.ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byID := make(map[string]*CourseSummary)
	for _, s := range summaries {
		byID[s.ID] = s
	}
	require.Contains(t, byID, first)
	require.Contains(t, byID, second)
	var reels []string
	for _, l := range byID[first].Lessons {
		reels = append(reels, l.ReelID)
	}
	assert.Equal(t, []string{"head", "a", "b"}, reels)
	assert.NotNil(t, byID[second].Lessons)
	assert.Empty(t, byID[second].Lessons)
}
