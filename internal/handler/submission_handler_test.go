package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/lumen-lms-api/internal/config"
	"github.com/noah-isme/lumen-lms-api/internal/dto"
	"github.com/noah-isme/lumen-lms-api/internal/handler"
	"github.com/noah-isme/lumen-lms-api/internal/models"
	"github.com/noah-isme/lumen-lms-api/internal/repository"
	"github.com/noah-isme/lumen-lms-api/internal/router"
	"github.com/noah-isme/lumen-lms-api/internal/service"
	"github.com/noah-isme/lumen-lms-api/pkg/judge"
)

// echoRunner maps stdin to a canned stdout, standing in for the judge backend.
type echoRunner struct {
	outputs map[string]string
}

func (r *echoRunner) Run(_ context.Context, req judge.RunRequest) (judge.Result, error) {
	stdout, ok := r.outputs[req.Stdin]
	if !ok {
		stdout = req.Stdin
	}
	result := judge.Result{Stdout: stdout, Status: "Accepted", StatusID: 3, Time: "0.01"}
	if req.ExpectedOutput != nil {
		passed := strings.TrimSpace(stdout) == strings.TrimSpace(*req.ExpectedOutput)
		result.Passed = &passed
	}
	return result, nil
}

// failingRunner simulates an unreachable or erroring judge backend.
type failingRunner struct {
	err error
}

func (r *failingRunner) Run(context.Context, judge.RunRequest) (judge.Result, error) {
	return judge.Result{}, r.err
}

func setupApp(t *testing.T, runner judge.Runner, webhookSecret string) (*fiber.App, *gorm.DB) {
	t.Helper()
	return setupAppEnv(t, runner, webhookSecret, "development")
}

func setupAppEnv(t *testing.T, runner judge.Runner, webhookSecret, env string) (*fiber.App, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Assignment{},
		&models.AssignmentQuestion{},
		&models.CodeQuestion{},
		&models.TestCase{},
		&models.Submission{},
		&models.SubmissionGrade{},
		&models.CodeSubmission{},
		&models.CodeSubmissionResult{},
	))

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	redisServer := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: redisServer.Addr()})

	assignmentRepo := repository.NewAssignmentRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	evaluationService := service.NewEvaluationService(questionRepo, submissionRepo, runner, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, evaluationService, validate, logger)
	gradingService := service.NewGradingService(submissionRepo, nil, "", nil, validate, logger)
	progressService := service.NewProgressService(assignmentRepo, submissionRepo, redisClient, time.Minute, logger)

	cfg := config.Config{AppName: "Test", AppEnv: env, JWTSecret: "secret"}

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, cfg, logger),
		GradingHandler:    handler.NewGradingHandler(gradingService, webhookSecret, logger),
		JudgeHandler:      handler.NewJudgeHandler(evaluationService, cfg, logger),
		ProgressHandler:   handler.NewProgressHandler(progressService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if id, err := strconv.ParseUint(c.Get("X-Test-User"), 10, 64); err == nil {
				c.Locals("user_id", uint(id))
			}
			if role := c.Get("X-Test-Role"); role != "" {
				c.Locals("user_role", role)
			}
			return c.Next()
		},
	})

	return app, db
}

func seedCodeQuestion(t *testing.T, db *gorm.DB) (models.Assignment, models.CodeQuestion) {
	t.Helper()

	assignment := models.Assignment{
		CourseOfferingID: 1,
		Title:            "Squares",
		AssignmentType:   models.AssignmentTypeCode,
		MaxScore:         100,
	}
	require.NoError(t, db.Create(&assignment).Error)

	question := models.CodeQuestion{Title: "Square a number", CreatedBy: 2}
	require.NoError(t, db.Create(&question).Error)

	in1, out1 := "2", "4"
	in2, out2 := "3", "9"
	require.NoError(t, db.Create(&models.TestCase{QuestionID: question.ID, InputText: &in1, ExpectedText: &out1}).Error)
	require.NoError(t, db.Create(&models.TestCase{QuestionID: question.ID, InputText: &in2, ExpectedText: &out2}).Error)

	link := models.AssignmentQuestion{AssignmentID: assignment.ID, QuestionID: question.ID, Points: 100}
	require.NoError(t, db.Create(&link).Error)

	return assignment, question
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func jsonRequest(t *testing.T, method, path string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asStudent(req *http.Request, id uint) *http.Request {
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(id), 10))
	req.Header.Set("X-Test-Role", models.RoleStudent)
	return req
}

func asTeacher(req *http.Request, id uint) *http.Request {
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(id), 10))
	req.Header.Set("X-Test-Role", models.RoleTeacher)
	return req
}

func asTA(req *http.Request, id uint) *http.Request {
	req.Header.Set("X-Test-User", strconv.FormatUint(uint64(id), 10))
	req.Header.Set("X-Test-Role", models.RoleTA)
	return req
}

func TestSubmitCodeEndpoint(t *testing.T) {
	runner := &echoRunner{outputs: map[string]string{"2\n": "4\n", "3\n": "9\n", "2": "4", "3": "9"}}
	app, db := setupApp(t, runner, "")
	assignment, question := seedCodeQuestion(t, db)

	payload := dto.CodeSubmitRequest{
		AssignmentID: assignment.ID,
		Language:     "python",
		Source:       "print(int(input())**2)",
		QuestionID:   &question.ID,
	}

	resp, err := app.Test(asStudent(jsonRequest(t, "POST", "/api/v1/submissions/code", payload), 7), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var envelope struct {
		Success bool                   `json:"success"`
		Data    dto.CodeSubmitResponse `json:"data"`
		Message string                 `json:"message"`
	}
	decodeResponse(t, resp, &envelope)
	require.True(t, envelope.Success)
	require.NotZero(t, envelope.Data.Submission.ID)
	require.Equal(t, 1, envelope.Data.Submission.Attempt)
	require.NotNil(t, envelope.Data.TestResults)
	require.Equal(t, 2, envelope.Data.TestResults.Total)
	require.Equal(t, 2, envelope.Data.TestResults.Passed)
}

func TestSubmitCodeRequiresKnownLanguage(t *testing.T) {
	app, db := setupApp(t, &echoRunner{}, "")
	assignment, _ := seedCodeQuestion(t, db)

	payload := dto.CodeSubmitRequest{AssignmentID: assignment.ID, Language: "cobol", Source: "x"}
	resp, err := app.Test(asStudent(jsonRequest(t, "POST", "/api/v1/submissions/code", payload), 7), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSubmitCodeRejectsNonStudents(t *testing.T) {
	app, db := setupApp(t, &echoRunner{}, "")
	assignment, question := seedCodeQuestion(t, db)

	payload := dto.CodeSubmitRequest{
		AssignmentID: assignment.ID,
		Language:     "python",
		Source:       "print(int(input())**2)",
		QuestionID:   &question.ID,
	}

	resp, err := app.Test(asTeacher(jsonRequest(t, "POST", "/api/v1/submissions/code", payload), 2), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(asTA(jsonRequest(t, "POST", "/api/v1/submissions/code", payload), 3), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestGetSubmissionHidesOtherStudents(t *testing.T) {
	app, db := setupApp(t, &echoRunner{}, "")
	assignment, _ := seedCodeQuestion(t, db)

	submission := models.Submission{AssignmentID: assignment.ID, StudentID: 7, Attempt: 1, Status: models.SubmissionStatusSubmitted, SubmittedAt: time.Now()}
	require.NoError(t, db.Create(&submission).Error)

	path := "/api/v1/submissions/" + strconv.FormatUint(uint64(submission.ID), 10)

	resp, err := app.Test(asStudent(httptest.NewRequest("GET", path, nil), 8), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(asStudent(httptest.NewRequest("GET", path, nil), 7), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(asTeacher(httptest.NewRequest("GET", path, nil), 2), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestGetSubmissionNotFound(t *testing.T) {
	app, _ := setupApp(t, &echoRunner{}, "")

	resp, err := app.Test(asStudent(httptest.NewRequest("GET", "/api/v1/submissions/999", nil), 7), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestEvaluateRequiresGraderRole(t *testing.T) {
	app, db := setupApp(t, &echoRunner{}, "")
	assignment, _ := seedCodeQuestion(t, db)

	submission := models.Submission{AssignmentID: assignment.ID, StudentID: 7, Attempt: 1, Status: models.SubmissionStatusSubmitted, SubmittedAt: time.Now()}
	require.NoError(t, db.Create(&submission).Error)

	path := "/api/v1/submissions/" + strconv.FormatUint(uint64(submission.ID), 10) + "/evaluate"

	resp, err := app.Test(asStudent(httptest.NewRequest("POST", path, nil), 7), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, err = app.Test(asTeacher(httptest.NewRequest("POST", path, nil), 2), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(asTA(httptest.NewRequest("POST", path, nil), 3), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJudgeEndpointRunsSingle(t *testing.T) {
	runner := &echoRunner{outputs: map[string]string{"5": "25\n"}}
	app, _ := setupApp(t, runner, "")

	stdin := "5"
	expected := "25"
	payload := dto.JudgeRunRequest{Source: "print(25)", Language: "python", Stdin: &stdin, ExpectedOutput: &expected}

	resp, err := app.Test(asStudent(jsonRequest(t, "POST", "/api/v1/judge", payload), 7), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope struct {
		Success bool                 `json:"success"`
		Data    dto.JudgeRunResponse `json:"data"`
	}
	decodeResponse(t, resp, &envelope)
	require.True(t, envelope.Success)
	require.Equal(t, "25\n", envelope.Data.Stdout)
	require.NotNil(t, envelope.Data.Passed)
	require.True(t, *envelope.Data.Passed)
}

func TestJudgeEndpointRunsSamples(t *testing.T) {
	runner := &echoRunner{outputs: map[string]string{}}
	app, db := setupApp(t, runner, "")
	_, question := seedCodeQuestion(t, db)

	in, out := "1", "1"
	require.NoError(t, db.Create(&models.TestCase{QuestionID: question.ID, IsSample: true, InputText: &in, ExpectedText: &out}).Error)

	payload := dto.JudgeRunRequest{Source: "print(input())", Language: "python", QuestionID: &question.ID}
	resp, err := app.Test(asStudent(jsonRequest(t, "POST", "/api/v1/judge", payload), 7), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope struct {
		Success bool                  `json:"success"`
		Data    dto.SampleRunResponse `json:"data"`
	}
	decodeResponse(t, resp, &envelope)
	require.Len(t, envelope.Data.Runs, 1)
}

func TestJudgeUpstreamFailureSurfacesBodyInDevelopment(t *testing.T) {
	runner := &failingRunner{err: &judge.UpstreamError{StatusCode: 503, Body: "queue is full"}}
	app, _ := setupApp(t, runner, "")

	payload := dto.JudgeRunRequest{Source: "print(1)", Language: "python"}
	resp, err := app.Test(asStudent(jsonRequest(t, "POST", "/api/v1/judge", payload), 7), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var envelope struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Details string `json:"details"`
	}
	decodeResponse(t, resp, &envelope)
	require.False(t, envelope.Success)
	require.Equal(t, "judge backend unavailable", envelope.Message)
	require.Contains(t, envelope.Details, "queue is full")
}

func TestJudgeUpstreamFailureHidesBodyInProduction(t *testing.T) {
	runner := &failingRunner{err: &judge.UpstreamError{StatusCode: 503, Body: "queue is full"}}
	app, _ := setupAppEnv(t, runner, "", "production")

	payload := dto.JudgeRunRequest{Source: "print(1)", Language: "python"}
	resp, err := app.Test(asStudent(jsonRequest(t, "POST", "/api/v1/judge", payload), 7), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var envelope struct {
		Message string `json:"message"`
		Details string `json:"details"`
	}
	decodeResponse(t, resp, &envelope)
	require.Equal(t, "judge backend unavailable", envelope.Message)
	require.Empty(t, envelope.Details)
}

func TestProgressEndpoint(t *testing.T) {
	app, db := setupApp(t, &echoRunner{}, "")
	seedCodeQuestion(t, db)

	resp, err := app.Test(asStudent(httptest.NewRequest("GET", "/api/v1/students/me/progress", nil), 7), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var envelope struct {
		Success bool                        `json:"success"`
		Data    dto.StudentProgressResponse `json:"data"`
	}
	decodeResponse(t, resp, &envelope)
	require.True(t, envelope.Success)
	require.Equal(t, 1, envelope.Data.Summary.TotalAssignments)
}

func TestHealthEndpoint(t *testing.T) {
	app, _ := setupApp(t, &echoRunner{}, "")

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
