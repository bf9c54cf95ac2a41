package progress

import (
	"context"
	"database/sql/driver"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pot-code/microcourse/internal/course"
	"github.com/pot-code/microcourse/internal/domain"
	"github.com/pot-code/microcourse/internal/infrastructure/driver/drivertest"
	"github.com/pot-code/microcourse/internal/infrastructure/retry"
	"github.com/pot-code/microcourse/internal/infrastructure/uuid"
	"github.com/pot-code/microcourse/internal/lesson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = &retry.Policy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

type fixture struct {
	ctx     context.Context
	repo    *ProgressSQLRepository
	lessons *lesson.LessonUseCaseImpl
	tracker *ProgressTrackerImpl
}

// newFixture creates course c1 holding n lessons
func newFixture(t *testing.T, n int) (*fixture, []string) {
	ctx := drivertest.Context(t)
	conn := drivertest.NewSQLite(t)
	require.NoError(t, course.NewCourseRepository(conn).Create(ctx, &course.CourseModel{ID: "c1", CreatorID: "owner", Title: "c1"}))

	lessons := lesson.NewLessonUseCase(lesson.NewLessonRepository(conn), uuid.NewNanoIDGenerator(uuid.DefaultLength), fastRetry)
	repo := NewProgressRepository(conn)
	tracker := NewProgressTracker(repo, lessons, fastRetry, 0)
	lessons.SetProgressPurger(tracker)

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		l, err := lessons.AppendLesson(ctx, "c1", string(rune('a'+i)))
		require.NoError(t, err)
		ids = append(ids, l.ID)
	}
	return &fixture{ctx, repo, lessons, tracker}, ids
}

func TestPercentage(t *testing.T) {
	cases := []struct{ completed, total, want int }{
		{0, 0, 0},
		{1, 0, 100},
		{0, 5, 0},
		{2, 5, 40},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{4, 4, 100},
		{5, 4, 100},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Percentage(tc.completed, tc.total), "%d/%d", tc.completed, tc.total)
	}
}

func TestProgressTracker_CompletionScenario(t *testing.T) {
	f, ids := newFixture(t, 5)
	l1, l3 := ids[0], ids[2]

	_, err := f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", l1, true)
	require.NoError(t, err)
	p, err := f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", l3, true)
	require.NoError(t, err)
	assert.Equal(t, 40, p.ProgressPercentage)

	got, err := f.tracker.GetProgress(f.ctx, "u1", "c1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{l1, l3}, got.CompletedLessonIDs)
	assert.Equal(t, 40, got.ProgressPercentage)

	again, err := f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", l1, true)
	require.NoError(t, err)
	assert.Equal(t, got, again)
	stored, err := f.repo.Get(f.ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, got.Version, stored.Version, "idempotent toggle must not write")

	p, err = f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", l3, false)
	require.NoError(t, err)
	assert.Equal(t, []string{l1}, p.CompletedLessonIDs)
	assert.Equal(t, 20, p.ProgressPercentage)

	// un-completing an incomplete lesson changes nothing
	p2, err := f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", l3, false)
	require.NoError(t, err)
	assert.Equal(t, p, p2)
}

func TestProgressTracker_ZeroRecord(t *testing.T) {
	f, _ := newFixture(t, 2)

	p, err := f.tracker.GetProgress(f.ctx, "nobody", "c1")
	require.NoError(t, err)
	assert.Equal(t, "nobody", p.UserID)
	assert.Equal(t, "c1", p.CourseID)
	assert.NotNil(t, p.CompletedLessonIDs)
	assert.Empty(t, p.CompletedLessonIDs)
	assert.Equal(t, 0, p.ProgressPercentage)

	p, err = f.tracker.GetProgress(f.ctx, "nobody", "no-such-course")
	require.NoError(t, err)
	assert.Equal(t, 0, p.ProgressPercentage)
}

func TestProgressTracker_FirstToggleCreatesRecord(t *testing.T) {
	f, ids := newFixture(t, 2)

	p, err := f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", ids[0], false)
	require.NoError(t, err)
	assert.Empty(t, p.CompletedLessonIDs)

	stored, err := f.repo.Get(f.ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
}

func TestProgressTracker_ConcurrentTogglesDoNotLoseUpdates(t *testing.T) {
	f, ids := newFixture(t, 4)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", ids[i], true)
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	p, err := f.tracker.GetProgress(f.ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Subset(t, p.CompletedLessonIDs, []string{ids[0], ids[1]})
	assert.Equal(t, 50, p.ProgressPercentage)
}

func TestProgressTracker_ConcurrentTogglesOnEveryLesson(t *testing.T) {
	f, ids := newFixture(t, 4)
	f.tracker.ConflictRetries = 20

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", id, true)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	p, err := f.tracker.GetProgress(f.ctx, "u1", "c1")
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, p.CompletedLessonIDs)
	assert.Equal(t, 100, p.ProgressPercentage)
}

func TestProgressTracker_NotFound(t *testing.T) {
	f, ids := newFixture(t, 1)

	_, err := f.tracker.SetLessonCompletion(f.ctx, "u1", "missing", ids[0], true)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", "not-a-lesson", true)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", "", true)
	assert.True(t, errors.Is(err, domain.ErrInvalid))
}

func TestProgressTracker_RemovedLessonIsPurged(t *testing.T) {
	f, ids := newFixture(t, 4)
	for _, user := range []string{"u1", "u2"} {
		for _, id := range ids[:2] {
			_, err := f.tracker.SetLessonCompletion(f.ctx, user, "c1", id, true)
			require.NoError(t, err)
		}
	}
	_, err := f.tracker.SetLessonCompletion(f.ctx, "u3", "c1", ids[3], true)
	require.NoError(t, err)

	require.NoError(t, f.lessons.RemoveLesson(f.ctx, "c1", ids[0]))

	for _, user := range []string{"u1", "u2"} {
		p, err := f.tracker.GetProgress(f.ctx, user, "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{ids[1]}, p.CompletedLessonIDs)
		assert.Equal(t, 33, p.ProgressPercentage)
	}
	// records without the lesson are left alone
	p, err := f.tracker.GetProgress(f.ctx, "u3", "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{ids[3]}, p.CompletedLessonIDs)
	assert.Equal(t, 25, p.ProgressPercentage)
	assert.Equal(t, int64(1), p.Version)
}

func TestProgressTracker_PercentageFollowsLessonCount(t *testing.T) {
	f, ids := newFixture(t, 2)
	p, err := f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", ids[0], true)
	require.NoError(t, err)
	assert.Equal(t, 50, p.ProgressPercentage)

	_, err = f.lessons.AppendLesson(f.ctx, "c1", "z")
	require.NoError(t, err)

	// same set, new denominator
	p, err = f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", ids[0], true)
	require.NoError(t, err)
	assert.Equal(t, 33, p.ProgressPercentage)
}

// staleRepo loses every write race
type staleRepo struct {
	ProgressRepository
	writes int32
}

func (sr *staleRepo) Insert(ctx context.Context, progress *ProgressModel) error {
	atomic.AddInt32(&sr.writes, 1)
	return ErrStaleProgress
}

func (sr *staleRepo) CompareAndSwap(ctx context.Context, progress *ProgressModel, version int64) error {
	atomic.AddInt32(&sr.writes, 1)
	return ErrStaleProgress
}

func TestProgressTracker_ConflictAfterBoundedRetries(t *testing.T) {
	f, ids := newFixture(t, 2)
	repo := &staleRepo{ProgressRepository: f.repo}
	tracker := NewProgressTracker(repo, f.lessons, fastRetry, 3)

	_, err := tracker.SetLessonCompletion(f.ctx, "u1", "c1", ids[0], true)
	assert.True(t, errors.Is(err, domain.ErrConflict))
	assert.Equal(t, int32(3), repo.writes)
}

// flakyRepo fails every update with a dropped connection
type flakyRepo struct {
	ProgressRepository
}

func (fr *flakyRepo) CompareAndSwap(ctx context.Context, progress *ProgressModel, version int64) error {
	return driver.ErrBadConn
}

func TestProgressTracker_FailedWriteLeavesRecordUntouched(t *testing.T) {
	f, ids := newFixture(t, 2)
	before, err := f.tracker.SetLessonCompletion(f.ctx, "u1", "c1", ids[0], true)
	require.NoError(t, err)

	tracker := NewProgressTracker(&flakyRepo{f.repo}, f.lessons, fastRetry, 3)
	_, err = tracker.SetLessonCompletion(f.ctx, "u1", "c1", ids[1], true)
	assert.True(t, errors.Is(err, domain.ErrUnavailable))

	after, err := f.tracker.GetProgress(f.ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
