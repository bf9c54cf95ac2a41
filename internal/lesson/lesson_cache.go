package lesson

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/pot-code/microcourse/internal/infrastructure/driver"
	"github.com/pot-code/microcourse/internal/infrastructure/logging"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix        = "course:lessons:"
	cacheGenerationPrefix = "course:lessons-gen:"
)

// CachedLessonRepository keeps List results in kv storage. Entries are keyed by a
// per-course generation that every mutation bumps before and after its write, so a
// list read while a write is in flight is filed under a generation nobody reads again.
type CachedLessonRepository struct {
	LessonRepository
	KV  driver.KeyValueDB
	TTL time.Duration
}

var _ LessonRepository = &CachedLessonRepository{}

// NewCachedLessonRepository .
func NewCachedLessonRepository(LessonRepository LessonRepository, KV driver.KeyValueDB, TTL time.Duration) *CachedLessonRepository {
	return &CachedLessonRepository{LessonRepository, KV, TTL}
}

func (cr *CachedLessonRepository) List(ctx context.Context, courseID string) ([]*LessonModel, error) {
	logger := logging.ExtractLoggerFromContext(ctx)

	gen, err := cr.generation(ctx, courseID)
	if err != nil {
		logger.Warn("failed to read lesson cache generation", zap.String("course.id", courseID), zap.Error(err))
		return cr.LessonRepository.List(ctx, courseID)
	}
	key := cacheKey(courseID, gen)

	raw, err := cr.KV.Get(ctx, key)
	if err == nil {
		var lessons []*LessonModel
		if err := json.Unmarshal([]byte(raw), &lessons); err == nil {
			return lessons, nil
		}
		logger.Warn("corrupted lesson cache entry", zap.String("cache.key", key))
	} else if !errors.Is(err, driver.ErrKeyNotFound) {
		logger.Warn("failed to read lesson cache", zap.String("cache.key", key), zap.Error(err))
	}

	lessons, err := cr.LessonRepository.List(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(lessons); err == nil {
		if err := cr.KV.SetEX(ctx, key, string(data), cr.TTL); err != nil {
			logger.Warn("failed to fill lesson cache", zap.String("cache.key", key), zap.Error(err))
		}
	}
	return lessons, nil
}

func (cr *CachedLessonRepository) Append(ctx context.Context, lesson *LessonModel) error {
	return cr.invalidating(ctx, lesson.CourseID, func() error {
		return cr.LessonRepository.Append(ctx, lesson)
	})
}

func (cr *CachedLessonRepository) InsertAt(ctx context.Context, lesson *LessonModel) error {
	return cr.invalidating(ctx, lesson.CourseID, func() error {
		return cr.LessonRepository.InsertAt(ctx, lesson)
	})
}

func (cr *CachedLessonRepository) Remove(ctx context.Context, courseID, lessonID string) error {
	return cr.invalidating(ctx, courseID, func() error {
		return cr.LessonRepository.Remove(ctx, courseID, lessonID)
	})
}

// invalidating bumps the course generation around write, write is skipped when the first bump fails
func (cr *CachedLessonRepository) invalidating(ctx context.Context, courseID string, write func() error) error {
	logger := logging.ExtractLoggerFromContext(ctx)

	if err := cr.bump(ctx, courseID); err != nil {
		return err
	}
	werr := write()
	if err := cr.bump(ctx, courseID); err != nil {
		logger.Error("failed to invalidate lesson cache", zap.String("course.id", courseID), zap.Error(err))
	}
	return werr
}

// bump moves the course to a new generation and drops the entry of the previous one
func (cr *CachedLessonRepository) bump(ctx context.Context, courseID string) error {
	gen, err := cr.KV.Incr(ctx, generationKey(courseID))
	if err != nil {
		return err
	}
	if err := cr.KV.Delete(ctx, cacheKey(courseID, gen-1)); err != nil {
		logging.ExtractLoggerFromContext(ctx).Warn("failed to drop outdated lesson cache entry",
			zap.String("course.id", courseID), zap.Error(err))
	}
	return nil
}

func (cr *CachedLessonRepository) generation(ctx context.Context, courseID string) (int64, error) {
	raw, err := cr.KV.Get(ctx, generationKey(courseID))
	if errors.Is(err, driver.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func cacheKey(courseID string, gen int64) string {
	return cacheKeyPrefix + courseID + ":" + strconv.FormatInt(gen, 10)
}

func generationKey(courseID string) string {
	return cacheGenerationPrefix + courseID
}
