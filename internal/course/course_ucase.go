package course

import (
	"context"
	"fmt"
	"time"

	"github.com/pot-code/microcourse/internal/domain"
	"github.com/pot-code/microcourse/internal/infrastructure/retry"
	"github.com/pot-code/microcourse/internal/infrastructure/uuid"
	"go.elastic.co/apm"
)

// page size bounds of ListCourses
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// CourseUseCaseImpl ...
type CourseUseCaseImpl struct {
	CourseRepository CourseRepository
	UUIDGenerator    uuid.Generator
	RetryPolicy      *retry.Policy
}

var _ CourseUseCase = &CourseUseCaseImpl{}

// NewCourseUseCase ...
func NewCourseUseCase(
	CourseRepository CourseRepository,
	UUIDGenerator uuid.Generator,
	RetryPolicy *retry.Policy,
) *CourseUseCaseImpl {
	return &CourseUseCaseImpl{CourseRepository, UUIDGenerator, RetryPolicy}
}

// CreateCourse create an empty course owned by creatorID
func (cu *CourseUseCaseImpl) CreateCourse(ctx context.Context, creatorID string, input *CreateCourseInput) (*CourseModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CourseUseCaseImpl.CreateCourse", "service")
	defer apmSpan.End()

	if creatorID == "" {
		return nil, fmt.Errorf("creator is required: %w", domain.ErrInvalid)
	}
	id, err := cu.UUIDGenerator.Generate()
	if err != nil {
		return nil, err
	}
	if input.Tags == nil {
		input.Tags = []string{}
	}
	course := &CourseModel{
		ID:          id,
		CreatorID:   creatorID,
		Title:       input.Title,
		Description: input.Description,
		CoverImage:  input.CoverImage,
		Tags:        input.Tags,
		CreatedAt:   time.Now().UnixNano() / int64(time.Millisecond),
	}
	err = retry.Exec(ctx, cu.RetryPolicy, func() error {
		return cu.CourseRepository.Create(ctx, course)
	})
	if err != nil {
		return nil, err
	}
	return course, nil
}

// GetCourse .
func (cu *CourseUseCaseImpl) GetCourse(ctx context.Context, id string) (*CourseModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CourseUseCaseImpl.GetCourse", "service")
	defer apmSpan.End()

	return retry.Do(ctx, cu.RetryPolicy, func() (*CourseModel, error) {
		return cu.CourseRepository.Get(ctx, id)
	})
}

// ListCourses newest first
func (cu *CourseUseCaseImpl) ListCourses(ctx context.Context, limit, offset int) ([]*CourseModel, error) {
	apmSpan, ctx := apm.StartSpan(ctx, "CourseUseCaseImpl.ListCourses", "service")
	defer apmSpan.End()

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return retry.Do(ctx, cu.RetryPolicy, func() ([]*CourseModel, error) {
		return cu.CourseRepository.List(ctx, limit, offset)
	})
}

// CheckOwner .
func (cu *CourseUseCaseImpl) CheckOwner(ctx context.Context, courseID, userID string) error {
	course, err := cu.GetCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if course.CreatorID != userID {
		return fmt.Errorf("course %s: %w", courseID, domain.ErrForbidden)
	}
	return nil
}
