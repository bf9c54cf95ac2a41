package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pot-code/microcourse/internal/course"
	"github.com/pot-code/microcourse/internal/courseview"
	"github.com/pot-code/microcourse/internal/infrastructure/auth"
	"github.com/pot-code/microcourse/internal/infrastructure/validate"
	"github.com/pot-code/microcourse/internal/lesson"
)

type CourseHandler struct {
	courseUseCase     course.CourseUseCase
	lessonUseCase     lesson.LessonUseCase
	courseViewUseCase courseview.CourseViewUseCase
	jwtUtil           *auth.JWTUtil
	validator         validate.Validator
}

func NewCourseHandler(
	CourseUseCase course.CourseUseCase,
	LessonUseCase lesson.LessonUseCase,
	CourseViewUseCase courseview.CourseViewUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *CourseHandler {
	return &CourseHandler{CourseUseCase, LessonUseCase, CourseViewUseCase, JWTUtil, Validator}
}

type addReelRequest struct {
	ReelID   string `json:"reel_id" validate:"required,max=64"`
	Position *int   `json:"position"` // append when omitted
}

// HandleCreateCourse POST /microcourses
func (ch *CourseHandler) HandleCreateCourse(c echo.Context) error {
	claims := ch.jwtUtil.GetContextToken(c)
	input := new(course.CreateCourseInput)
	if err := c.Bind(input); err != nil {
		return err
	}
	if err := ch.validator.Struct(input); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", err))
	}

	created, err := ch.courseUseCase.CreateCourse(c.Request().Context(), claims.UID, input)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

// HandleListCourses GET /microcourses?limit=&offset=, each course carries its ordered lessons
func (ch *CourseHandler) HandleListCourses(c echo.Context) error {
	var invalid []*validate.FieldError
	limit, ferr := intQueryParam(c, "limit")
	if ferr != nil {
		invalid = append(invalid, ferr)
	}
	offset, ferr := intQueryParam(c, "offset")
	if ferr != nil {
		invalid = append(invalid, ferr)
	}
	if len(invalid) > 0 {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", invalid))
	}

	courses, err := ch.courseViewUseCase.ListCourseSummaries(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, courses)
}

// HandleGetCourse GET /microcourses/:id, anonymous viewers see nothing completed
func (ch *CourseHandler) HandleGetCourse(c echo.Context) error {
	var userID string
	if claims := ch.jwtUtil.GetContextToken(c); claims != nil {
		userID = claims.UID
	}

	view, err := ch.courseViewUseCase.GetCourseView(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// HandleAddReel POST /microcourses/:id/add-reel
func (ch *CourseHandler) HandleAddReel(c echo.Context) error {
	claims := ch.jwtUtil.GetContextToken(c)
	courseID := c.Param("id")
	req := new(addReelRequest)
	if err := c.Bind(req); err != nil {
		return err
	}
	if err := ch.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", err))
	}

	ctx := c.Request().Context()
	if err := ch.courseUseCase.CheckOwner(ctx, courseID, claims.UID); err != nil {
		return err
	}

	var (
		added *lesson.LessonModel
		err   error
	)
	if req.Position == nil {
		added, err = ch.lessonUseCase.AppendLesson(ctx, courseID, req.ReelID)
	} else {
		added, err = ch.lessonUseCase.InsertLessonAt(ctx, courseID, req.ReelID, *req.Position)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, added)
}

// HandleRemoveLesson DELETE /microcourses/:id/lessons/:lesson_id
func (ch *CourseHandler) HandleRemoveLesson(c echo.Context) error {
	claims := ch.jwtUtil.GetContextToken(c)
	courseID := c.Param("id")
	ctx := c.Request().Context()

	if err := ch.courseUseCase.CheckOwner(ctx, courseID, claims.UID); err != nil {
		return err
	}
	if err := ch.lessonUseCase.RemoveLesson(ctx, courseID, c.Param("lesson_id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func intQueryParam(c echo.Context, name string) (int, *validate.FieldError) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, validate.NewFieldError(name, name+" must be a non-negative integer")
	}
	return v, nil
}
