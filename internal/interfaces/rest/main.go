package rest

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/microcourse/internal/course"
	"github.com/pot-code/microcourse/internal/courseview"
	infra "github.com/pot-code/microcourse/internal/infrastructure"
	"github.com/pot-code/microcourse/internal/infrastructure/auth"
	"github.com/pot-code/microcourse/internal/infrastructure/driver"
	"github.com/pot-code/microcourse/internal/infrastructure/logging"
	"github.com/pot-code/microcourse/internal/infrastructure/validate"
	"github.com/pot-code/microcourse/internal/interfaces/rest/handler"
	"github.com/pot-code/microcourse/internal/interfaces/rest/middleware"
	"github.com/pot-code/microcourse/internal/lesson"
	"github.com/pot-code/microcourse/internal/progress"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

// NewServer create http transport server
func NewServer(
	conn driver.ITransactionalDB,
	rdb driver.KeyValueDB,
	option *infra.AppConfig,
	CourseUseCase course.CourseUseCase,
	LessonUseCase lesson.LessonUseCase,
	ProgressTracker progress.ProgressTracker,
	CourseViewUseCase courseview.CourseViewUseCase,
	logger *zap.Logger,
) *echo.Echo {
	var (
		app       = echo.New()
		validator = validate.NewValidator()
		jwtUtil   = auth.NewJWTUtil(option.Security.JWTMethod, option.Security.JWTSecret)
		blacklist = &middleware.ValidateTokenOption{
			InBlackList: func(ctx context.Context, token string) (bool, error) {
				return rdb.Exists(ctx, handler.RevokedTokenPrefix+token)
			},
		}
		jwtMiddleware         = middleware.VerifyToken(jwtUtil, blacklist)
		optionalJWTMiddleware = middleware.VerifyToken(jwtUtil, &middleware.ValidateTokenOption{
			InBlackList: blacklist.InBlackList,
			Optional:    true,
		})
	)
	app.HideBanner = true
	app.HidePort = true

	registerLivenessProbe(app, conn, rdb)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)
	}

	app.Use(echo_middleware.RequestID())
	app.Use(middleware.SetTraceLogger(logger))
	app.Use(middleware.Logging(&middleware.LoggingConfig{
		Skipper: func(e echo.Context) bool {
			return strings.HasPrefix(e.Request().RequestURI, "/healthz")
		},
	}))
	app.Use(middleware.ErrorHandling(
		&middleware.ErrorHandlingOption{
			Handler: func(c echo.Context, err error) {
				traceID := c.Response().Header().Get(echo.HeaderXRequestID)
				code, typ := handler.StatusOf(err)
				detail := err.Error()
				if code == http.StatusInternalServerError {
					detail = "internal error"
					logging.ExtractLoggerFromContext(c.Request().Context()).Error(err.Error(), zap.String("trace.id", traceID))
				}
				c.JSON(code, handler.NewRESTStandardError(code, detail).SetType(typ).SetTraceID(traceID))
			},
		},
	))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())
	app.Use(middleware.AbortRequest(&middleware.AbortRequestOption{
		Timeout: option.RequestTimeout,
	}))

	var (
		CourseHandler   = handler.NewCourseHandler(CourseUseCase, LessonUseCase, CourseViewUseCase, jwtUtil, validator)
		ProgressHandler = handler.NewProgressHandler(ProgressTracker, jwtUtil, validator)
		SessionHandler  = handler.NewSessionHandler(jwtUtil, rdb)
	)

	createEndpoint(app,
		&endpoint{
			apiVersion: "/",
			groups: []*apiGroup{
				{
					prefix: "microcourses",
					routes: []*route{
						{"GET", "", CourseHandler.HandleListCourses, nil},
						{"POST", "", CourseHandler.HandleCreateCourse, []echo.MiddlewareFunc{jwtMiddleware}},
						{"GET", "/:id", CourseHandler.HandleGetCourse, []echo.MiddlewareFunc{optionalJWTMiddleware}},
						{"POST", "/:id/add-reel", CourseHandler.HandleAddReel, []echo.MiddlewareFunc{jwtMiddleware}},
						{"DELETE", "/:id/lessons/:lesson_id", CourseHandler.HandleRemoveLesson, []echo.MiddlewareFunc{jwtMiddleware}},
						{"GET", "/:id/progress", ProgressHandler.HandleGetProgress, []echo.MiddlewareFunc{jwtMiddleware}},
						{"POST", "/:id/progress", ProgressHandler.HandleSetProgress, []echo.MiddlewareFunc{jwtMiddleware}},
					},
				},
				{
					prefix:      "session",
					middlewares: []echo.MiddlewareFunc{jwtMiddleware},
					routes: []*route{
						{"PUT", "/sign-out", SessionHandler.HandleSignOut, nil},
					},
				},
			},
		})
	return app
}

// Serve start the server and block until ctx is done, then shut it down gracefully
func Serve(ctx context.Context, app *echo.Echo, option *infra.AppConfig, logger *zap.Logger) error {
	printRoutes(app, logger)

	errc := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", option.Host, option.Port)
		logger.Info("Server started", zap.String("server.address", addr))
		errc <- app.Start(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Info("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerLivenessProbe(app *echo.Echo, db driver.ITransactionalDB, rdb driver.KeyValueDB) {
	app.GET("/healthz", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if db.Ping(ctx) == nil && rdb.Ping(ctx) == nil {
			return c.NoContent(http.StatusOK)
		}
		return c.NoContent(http.StatusServiceUnavailable)
	})
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
