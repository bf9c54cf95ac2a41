package course

import (
	"errors"
	"testing"

	"github.com/pot-code/microcourse/internal/domain"
	"github.com/pot-code/microcourse/internal/infrastructure/driver/drivertest"
	"github.com/pot-code/microcourse/internal/infrastructure/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUseCase(t *testing.T) *CourseUseCaseImpl {
	conn := drivertest.NewSQLite(t)
	return NewCourseUseCase(NewCourseRepository(conn), uuid.NewNanoIDGenerator(uuid.DefaultLength), nil)
}

func TestCourseUseCase_CreateAndGet(t *testing.T) {
	ctx := drivertest.Context(t)
	cu := newUseCase(t)

	created, err := cu.CreateCourse(ctx, "creator", &CreateCourseInput{Title: "Go in 60s", Description: "short"})
	require.NoError(t, err)
	assert.Len(t, created.ID, uuid.DefaultLength)

	got, err := cu.GetCourse(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	_, err = cu.GetCourse(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCourseUseCase_StoresTags(t *testing.T) {
	ctx := drivertest.Context(t)
	cu := newUseCase(t)

	tagged, err := cu.CreateCourse(ctx, "creator", &CreateCourseInput{Title: "t", Tags: []string{"go", "concurrency"}})
	require.NoError(t, err)
	got, err := cu.GetCourse(ctx, tagged.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "concurrency"}, got.Tags)

	untagged, err := cu.CreateCourse(ctx, "creator", &CreateCourseInput{Title: "u"})
	require.NoError(t, err)
	courses, err := cu.ListCourses(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	for _, c := range courses {
		if c.ID == untagged.ID {
			assert.NotNil(t, c.Tags)
			assert.Empty(t, c.Tags)
		}
	}
}

func TestCourseUseCase_CreateRequiresCreator(t *testing.T) {
	cu := newUseCase(t)
	_, err := cu.CreateCourse(drivertest.Context(t), "", &CreateCourseInput{Title: "t"})
	assert.True(t, errors.Is(err, domain.ErrInvalid))
}

func TestCourseUseCase_ListNewestFirst(t *testing.T) {
	ctx := drivertest.Context(t)
	conn := drivertest.NewSQLite(t)
	repo := NewCourseRepository(conn)
	cu := NewCourseUseCase(repo, uuid.NewNanoIDGenerator(8), nil)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Create(ctx, &CourseModel{ID: id, CreatorID: "u", Title: id, CreatedAt: int64(i)}))
	}

	courses, err := cu.ListCourses(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, courses, 3)
	assert.Equal(t, "c", courses[0].ID)
	assert.Equal(t, "a", courses[2].ID)

	courses, err = cu.ListCourses(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "b", courses[0].ID)
}

func TestCourseUseCase_CheckOwner(t *testing.T) {
	ctx := drivertest.Context(t)
	cu := newUseCase(t)
	created, err := cu.CreateCourse(ctx, "owner", &CreateCourseInput{Title: "t"})
	require.NoError(t, err)

	assert.NoError(t, cu.CheckOwner(ctx, created.ID, "owner"))
	assert.True(t, errors.Is(cu.CheckOwner(ctx, created.ID, "intruder"), domain.ErrForbidden))
	assert.True(t, errors.Is(cu.CheckOwner(ctx, "missing", "owner"), domain.ErrNotFound))
}
