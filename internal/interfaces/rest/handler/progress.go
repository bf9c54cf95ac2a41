package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/microcourse/internal/infrastructure/auth"
	"github.com/pot-code/microcourse/internal/infrastructure/validate"
	"github.com/pot-code/microcourse/internal/progress"
)

type ProgressHandler struct {
	progressTracker progress.ProgressTracker
	jwtUtil         *auth.JWTUtil
	validator       validate.Validator
}

func NewProgressHandler(
	ProgressTracker progress.ProgressTracker,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *ProgressHandler {
	return &ProgressHandler{ProgressTracker, JWTUtil, Validator}
}

type setProgressRequest struct {
	LessonID  string `json:"lesson_id" validate:"required,max=64"`
	Completed *bool  `json:"completed" validate:"required"`
}

// HandleGetProgress GET /microcourses/:id/progress
func (ph *ProgressHandler) HandleGetProgress(c echo.Context) error {
	claims := ph.jwtUtil.GetContextToken(c)

	record, err := ph.progressTracker.GetProgress(c.Request().Context(), claims.UID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

// HandleSetProgress POST /microcourses/:id/progress
func (ph *ProgressHandler) HandleSetProgress(c echo.Context) error {
	claims := ph.jwtUtil.GetContextToken(c)
	req := new(setProgressRequest)
	if err := c.Bind(req); err != nil {
		return err
	}
	if err := ph.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", err))
	}

	record, err := ph.progressTracker.SetLessonCompletion(c.Request().Context(), claims.UID, c.Param("id"), req.LessonID, *req.Completed)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}
