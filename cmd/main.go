package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/pot-code/microcourse/internal/course"
	"github.com/pot-code/microcourse/internal/courseview"
	infra "github.com/pot-code/microcourse/internal/infrastructure"
	"github.com/pot-code/microcourse/internal/infrastructure/driver"
	"github.com/pot-code/microcourse/internal/infrastructure/logging"
	"github.com/pot-code/microcourse/internal/infrastructure/retry"
	"github.com/pot-code/microcourse/internal/infrastructure/uuid"
	"github.com/pot-code/microcourse/internal/interfaces/rest"
	"github.com/pot-code/microcourse/internal/lesson"
	"github.com/pot-code/microcourse/internal/progress"
	"go.uber.org/zap"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := driver.GetDBConnection(&driver.DBConfig{
		User:     option.Database.User,
		Password: option.Database.Password,
		MaxConn:  option.Database.MaxConn,
		Protocol: option.Database.Protocol,
		Driver:   option.Database.Driver,
		Host:     option.Database.Host,
		Port:     option.Database.Port,
		Query:    option.Database.Query,
		Schema:   option.Database.Schema,
	})
	if err != nil {
		logger.Fatal("Failed to create DB connection", zap.Error(err))
	}
	defer dbConn.Close(context.Background())
	logger.Debug("Create DB connection instance",
		zap.String("db.driver", option.Database.Driver),
		zap.String("db.schema", option.Database.Schema),
		zap.String("db.host", option.Database.Host),
	)
	if err := driver.EnsureSchema(logging.SetLoggerInContext(ctx, logger), dbConn); err != nil {
		logger.Fatal("Failed to prepare schema", zap.Error(err))
	}

	rdb := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)
	defer rdb.Close()

	RetryPolicy := &retry.Policy{
		Attempts:        option.Store.RetryAttempts,
		InitialInterval: option.Store.RetryInitialInterval,
		MaxInterval:     retry.DefaultPolicy.MaxInterval,
	}
	UUIDGenerator := uuid.NewNanoIDGenerator(uuid.DefaultLength)

	CourseRepo := course.NewCourseRepository(dbConn)
	CourseUseCase := course.NewCourseUseCase(CourseRepo, UUIDGenerator, RetryPolicy)

	var LessonRepo lesson.LessonRepository = lesson.NewLessonRepository(dbConn)
	if option.Cache.Enabled {
		LessonRepo = lesson.NewCachedLessonRepository(LessonRepo, rdb, option.Cache.TTL)
	}
	LessonUseCase := lesson.NewLessonUseCase(LessonRepo, UUIDGenerator, RetryPolicy)

	ProgressRepo := progress.NewProgressRepository(dbConn)
	ProgressTracker := progress.NewProgressTracker(ProgressRepo, LessonUseCase, RetryPolicy, option.Store.ConflictRetries)
	LessonUseCase.SetProgressPurger(ProgressTracker)

	CourseViewUseCase := courseview.NewCourseViewUseCase(CourseUseCase, LessonUseCase, ProgressTracker)

	app := rest.NewServer(dbConn, rdb, option, CourseUseCase, LessonUseCase, ProgressTracker, CourseViewUseCase, logger)
	if err := rest.Serve(ctx, app, option, logger); err != nil {
		logger.Error("Server stopped", zap.Error(err))
	}
}
