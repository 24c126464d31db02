package service

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/lumen-lms-api/internal/dto"
	"github.com/noah-isme/lumen-lms-api/internal/models"
	"github.com/noah-isme/lumen-lms-api/internal/repository"
	"github.com/noah-isme/lumen-lms-api/pkg/judge"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Student{},
		&models.Assignment{},
		&models.CodeQuestion{},
		&models.TestCase{},
		&models.AssignmentQuestion{},
		&models.Submission{},
		&models.CodeSubmission{},
		&models.CodeSubmissionResult{},
		&models.SubmissionGrade{},
	))
	return db
}

// scriptedRunner maps stdin to stdout, simulating a deterministic program.
type scriptedRunner struct {
	outputs map[string]string
	failOn  map[string]error
	calls   []judge.RunRequest
}

func (r *scriptedRunner) Run(ctx context.Context, req judge.RunRequest) (judge.Result, error) {
	r.calls = append(r.calls, req)
	if err, ok := r.failOn[req.Stdin]; ok {
		return judge.Result{}, err
	}

	stdout := r.outputs[req.Stdin]
	result := judge.Result{Stdout: stdout, Status: "Accepted", StatusID: 3, Time: "0.01"}
	if req.ExpectedOutput != nil {
		passed := stdout == *req.ExpectedOutput
		result.Passed = &passed
	}
	return result, nil
}

func strPtr(value string) *string {
	return &value
}

func seedQuestion(t *testing.T, db *gorm.DB, cases []models.TestCase) models.CodeQuestion {
	t.Helper()
	question := models.CodeQuestion{Title: "Square", Description: "square the input", CreatedBy: 1}
	require.NoError(t, db.Create(&question).Error)
	for i := range cases {
		cases[i].QuestionID = question.ID
		require.NoError(t, db.Create(&cases[i]).Error)
	}
	return question
}

func seedCodeSubmission(t *testing.T, db *gorm.DB) models.CodeSubmission {
	t.Helper()
	assignment := models.Assignment{CourseOfferingID: 1, Title: "Lab", AssignmentType: models.AssignmentTypeCode, MaxScore: 100}
	require.NoError(t, db.Create(&assignment).Error)
	submission := models.Submission{AssignmentID: assignment.ID, StudentID: 7, Attempt: 1, Status: models.SubmissionStatusSubmitted}
	require.NoError(t, db.Create(&submission).Error)
	code := models.CodeSubmission{SubmissionID: submission.ID, Language: "python", Source: "print(int(input())**2)"}
	require.NoError(t, db.Create(&code).Error)
	return code
}

func newEvaluationService(db *gorm.DB, runner judge.Runner) EvaluationService {
	validate := validator.New(validator.WithRequiredStructEnabled())
	return NewEvaluationService(
		repository.NewQuestionRepository(db),
		repository.NewSubmissionRepository(db),
		runner,
		validate,
		testLogger(),
	)
}

func TestEvaluateHiddenFullPass(t *testing.T) {
	db := setupServiceDB(t)
	question := seedQuestion(t, db, []models.TestCase{
		{IsSample: true, InputText: strPtr("1"), ExpectedText: strPtr("1")},
		{InputText: strPtr("2"), ExpectedText: strPtr("4")},
		{InputText: strPtr("3"), ExpectedText: strPtr("9")},
	})
	code := seedCodeSubmission(t, db)

	runner := &scriptedRunner{outputs: map[string]string{"2": "4", "3": "9"}}
	svc := newEvaluationService(db, runner)

	summary, err := svc.EvaluateHidden(context.Background(), code, question.ID)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Total, "sample case must not run during hidden evaluation")
	require.Equal(t, 2, summary.Passed)
	require.True(t, summary.AllPassed())

	var results []models.CodeSubmissionResult
	require.NoError(t, db.Where("code_submission_id = ?", code.ID).Order("test_case_id ASC").Find(&results).Error)
	require.Len(t, results, 2)
	require.True(t, results[0].Passed)
	require.True(t, results[1].Passed)
}

func TestEvaluateHiddenTrimmedComparison(t *testing.T) {
	db := setupServiceDB(t)
	question := seedQuestion(t, db, []models.TestCase{
		{InputText: strPtr("2"), ExpectedText: strPtr("42\n")},
	})
	code := seedCodeSubmission(t, db)

	runner := &scriptedRunner{outputs: map[string]string{"2": "42"}}
	svc := newEvaluationService(db, runner)

	summary, err := svc.EvaluateHidden(context.Background(), code, question.ID)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Passed, "trailing newline must be ignored by comparison")
}

func TestEvaluateHiddenSkipsCasesWithoutInput(t *testing.T) {
	db := setupServiceDB(t)
	question := seedQuestion(t, db, []models.TestCase{
		{ExpectedText: strPtr("4")}, // no input, not runnable
		{InputText: strPtr("3"), ExpectedText: strPtr("9")},
	})
	code := seedCodeSubmission(t, db)

	runner := &scriptedRunner{outputs: map[string]string{"3": "9"}}
	svc := newEvaluationService(db, runner)

	summary, err := svc.EvaluateHidden(context.Background(), code, question.ID)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Total)

	var count int64
	require.NoError(t, db.Model(&models.CodeSubmissionResult{}).Where("code_submission_id = ?", code.ID).Count(&count).Error)
	require.Equal(t, int64(1), count, "a skipped case must produce no result row")
	require.Len(t, runner.calls, 1)
}

func TestEvaluateHiddenAbsorbsCaseFailure(t *testing.T) {
	db := setupServiceDB(t)
	question := seedQuestion(t, db, []models.TestCase{
		{InputText: strPtr("2"), ExpectedText: strPtr("4")},
		{InputText: strPtr("3"), ExpectedText: strPtr("9")},
	})
	code := seedCodeSubmission(t, db)

	runner := &scriptedRunner{
		outputs: map[string]string{"3": "9"},
		failOn:  map[string]error{"2": fmt.Errorf("judge unreachable")},
	}
	svc := newEvaluationService(db, runner)

	summary, err := svc.EvaluateHidden(context.Background(), code, question.ID)
	require.NoError(t, err, "a single case failure must not abort the evaluation")
	require.Equal(t, 2, summary.Total)
	require.Equal(t, 1, summary.Passed)

	var results []models.CodeSubmissionResult
	require.NoError(t, db.Where("code_submission_id = ?", code.ID).Order("test_case_id ASC").Find(&results).Error)
	require.Len(t, results, 2)
	require.False(t, results[0].Passed)
	require.Contains(t, results[0].ErrorOutput, "judge unreachable")
	require.True(t, results[1].Passed)
}

func TestEvaluateHiddenRerunUpserts(t *testing.T) {
	db := setupServiceDB(t)
	question := seedQuestion(t, db, []models.TestCase{
		{InputText: strPtr("2"), ExpectedText: strPtr("4")},
		{InputText: strPtr("3"), ExpectedText: strPtr("9")},
	})
	code := seedCodeSubmission(t, db)

	failing := &scriptedRunner{outputs: map[string]string{"2": "5", "3": "10"}}
	svc := newEvaluationService(db, failing)
	_, err := svc.EvaluateHidden(context.Background(), code, question.ID)
	require.NoError(t, err)

	passing := &scriptedRunner{outputs: map[string]string{"2": "4", "3": "9"}}
	svc = newEvaluationService(db, passing)
	summary, err := svc.EvaluateHidden(context.Background(), code, question.ID)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Passed)

	var count int64
	require.NoError(t, db.Model(&models.CodeSubmissionResult{}).Where("code_submission_id = ?", code.ID).Count(&count).Error)
	require.Equal(t, int64(2), count, "re-running must not duplicate result rows")

	var results []models.CodeSubmissionResult
	require.NoError(t, db.Where("code_submission_id = ?", code.ID).Find(&results).Error)
	for _, result := range results {
		require.True(t, result.Passed, "fields must reflect the second run")
	}
}

func TestEvaluateHiddenWritesAggregateSummary(t *testing.T) {
	db := setupServiceDB(t)
	question := seedQuestion(t, db, []models.TestCase{
		{InputText: strPtr("2"), ExpectedText: strPtr("4")},
		{InputText: strPtr("3"), ExpectedText: strPtr("10")},
	})
	code := seedCodeSubmission(t, db)

	runner := &scriptedRunner{outputs: map[string]string{"2": "4", "3": "9"}}
	svc := newEvaluationService(db, runner)

	_, err := svc.EvaluateHidden(context.Background(), code, question.ID)
	require.NoError(t, err)

	var stored models.CodeSubmission
	require.NoError(t, db.First(&stored, code.ID).Error)
	response := dto.NewCodeSubmissionResponse(stored, false)
	require.NotNil(t, response.TestResults)
	require.Equal(t, 2, response.TestResults.Total)
	require.Equal(t, 1, response.TestResults.Passed)
	require.Equal(t, "9", stored.RunOutput, "run output keeps the last case's stdout")
}

func TestRunSamplesUsesOnlySampleCases(t *testing.T) {
	db := setupServiceDB(t)
	question := seedQuestion(t, db, []models.TestCase{
		{IsSample: true, InputText: strPtr("1"), ExpectedText: strPtr("1")},
		{InputText: strPtr("2"), ExpectedText: strPtr("4")},
	})

	runner := &scriptedRunner{outputs: map[string]string{"1": "1"}}
	svc := newEvaluationService(db, runner)

	response, err := svc.RunSamples(context.Background(), dto.JudgeRunRequest{
		Source:     "print(int(input())**2)",
		Language:   "python",
		QuestionID: &question.ID,
	})
	require.NoError(t, err)
	require.Len(t, response.Runs, 1, "hidden cases are never exposed to Run Code")
	require.NotNil(t, response.Runs[0].Result.Passed)
	require.True(t, *response.Runs[0].Result.Passed)
}

func TestRunSingleForwardsStdinAndExpected(t *testing.T) {
	db := setupServiceDB(t)
	runner := &scriptedRunner{outputs: map[string]string{"5": "25"}}
	svc := newEvaluationService(db, runner)

	expected := "25"
	response, err := svc.RunSingle(context.Background(), dto.JudgeRunRequest{
		Source:         "print(int(input())**2)",
		Language:       "python",
		Stdin:          strPtr("5"),
		ExpectedOutput: &expected,
	})
	require.NoError(t, err)
	require.Equal(t, "25", response.Stdout)
	require.NotNil(t, response.Passed)
	require.True(t, *response.Passed)
}
