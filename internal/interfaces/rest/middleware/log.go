package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/microcourse/internal/infrastructure/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig .
type LoggingConfig struct {
	// Skipper defines a function to skip middleware.
	Skipper middleware.Skipper
}

// Logging log every request with the logger bound by SetTraceLogger, 5xx at error and 4xx at warn
func Logging(options ...*LoggingConfig) echo.MiddlewareFunc {
	cfg := &LoggingConfig{
		Skipper: middleware.DefaultSkipper,
	}
	if len(options) > 0 {
		option := options[0]
		if option.Skipper != nil {
			cfg.Skipper = option.Skipper
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.Skipper(c) {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			req := c.Request()
			logger := logging.ExtractLoggerFromContext(req.Context())
			fields := []zap.Field{
				zap.String("url.path", req.URL.Path),
				zap.String("client.address", c.RealIP()),
				zap.String("http.request.method", req.Method),
				zap.Int64("http.request.body.byte", req.ContentLength),
				zap.Int("http.response.status_code", c.Response().Status),
				zap.Duration("event.duration", time.Since(start)),
			}
			if len(c.ParamNames()) > 0 {
				fields = append(fields,
					zap.Strings("route.params.name", c.ParamNames()),
					zap.Strings("route.params.value", c.ParamValues()),
				)
			}

			code := c.Response().Status
			level := zapcore.DebugLevel
			if code >= http.StatusInternalServerError {
				level = zapcore.ErrorLevel
			} else if code >= http.StatusBadRequest {
				level = zapcore.WarnLevel
			}
			if ce := logger.Check(level, http.StatusText(code)); ce != nil {
				ce.Write(fields...)
			}
			return err
		}
	}
}

// SetTraceLogger set logger binding with trace ID into context
func SetTraceLogger(base *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			logger := base.With(zap.String("trace.id", c.Response().Header().Get(echo.HeaderXRequestID)))
			c.SetRequest(r.WithContext(logging.SetLoggerInContext(r.Context(), logger)))
			return next(c)
		}
	}
}
