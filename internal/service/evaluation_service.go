package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/lumen-lms-api/internal/dto"
	"github.com/noah-isme/lumen-lms-api/internal/models"
	"github.com/noah-isme/lumen-lms-api/internal/repository"
	"github.com/noah-isme/lumen-lms-api/pkg/judge"
)

// ErrQuestionNotFound indicates the code question cannot be located.
var ErrQuestionNotFound = errors.New("question not found")

// EvaluationService runs student code against test cases and persists outcomes.
type EvaluationService interface {
	// EvaluateHidden runs every hidden test case of the question against the
	// code submission and upserts one result row per case. A failure on one
	// case is absorbed as a failing result and does not abort the rest.
	EvaluateHidden(ctx context.Context, code models.CodeSubmission, questionID uint) (dto.TestRunSummary, error)
	RunSingle(ctx context.Context, payload dto.JudgeRunRequest) (dto.JudgeRunResponse, error)
	RunSamples(ctx context.Context, payload dto.JudgeRunRequest) (dto.SampleRunResponse, error)
}

type evaluationService struct {
	questions   repository.QuestionRepository
	submissions repository.SubmissionRepository
	runner      judge.Runner
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewEvaluationService constructs the evaluation orchestrator.
func NewEvaluationService(questionRepo repository.QuestionRepository, submissionRepo repository.SubmissionRepository, runner judge.Runner, validate *validator.Validate, logger zerolog.Logger) EvaluationService {
	return &evaluationService{
		questions:   questionRepo,
		submissions: submissionRepo,
		runner:      runner,
		validator:   validate,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/lumen-lms-api/internal/service/evaluation"),
	}
}

func (s *evaluationService) EvaluateHidden(parent context.Context, code models.CodeSubmission, questionID uint) (dto.TestRunSummary, error) {
	// The evaluation keeps running and persisting results even when the
	// originating HTTP request has been abandoned.
	ctx, span := s.tracer.Start(context.WithoutCancel(parent), "evaluation.hidden", trace.WithAttributes(
		attribute.Int64("evaluation.code_submission_id", int64(code.ID)),
		attribute.Int64("evaluation.question_id", int64(questionID)),
	))
	defer span.End()

	cases, err := s.questions.GetHiddenTestCases(ctx, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.TestRunSummary{}, ErrQuestionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "load_test_cases_failed")
		return dto.TestRunSummary{}, err
	}

	summary := dto.TestRunSummary{Cases: make([]dto.CaseSummary, 0, len(cases))}
	lastStdout := ""

	// Cases run sequentially in ascending id order.
	for _, testCase := range cases {
		if !testCase.IsRunnable() {
			s.logger.Debug().Uint("test_case_id", testCase.ID).Msg("skipping test case without input")
			continue
		}

		summary.Total++
		entry := s.runCase(ctx, code, testCase)
		if entry.Passed {
			summary.Passed++
		}
		summary.Cases = append(summary.Cases, entry.summary())
		if entry.StudentOutput != "" {
			lastStdout = entry.StudentOutput
		}
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return summary, err
	}

	if err := s.submissions.UpdateCodeSummary(ctx, code.ID, datatypes.JSON(payload), lastStdout); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "summary_update_failed")
		return summary, err
	}

	span.SetAttributes(
		attribute.Int("evaluation.total", summary.Total),
		attribute.Int("evaluation.passed", summary.Passed),
	)

	return summary, nil
}

type caseOutcome struct {
	models.CodeSubmissionResult
	failure string
}

func (o caseOutcome) summary() dto.CaseSummary {
	return dto.CaseSummary{
		TestCaseID:      o.TestCaseID,
		Passed:          o.Passed,
		ExecutionTimeMs: o.ExecutionTimeMs,
		Error:           o.failure,
	}
}

func (s *evaluationService) runCase(ctx context.Context, code models.CodeSubmission, testCase models.TestCase) caseOutcome {
	outcome := caseOutcome{
		CodeSubmissionResult: models.CodeSubmissionResult{
			CodeSubmissionID: code.ID,
			TestCaseID:       testCase.ID,
		},
	}

	result, err := s.runner.Run(ctx, judge.RunRequest{
		Source:   code.Source,
		Language: code.Language,
		Stdin:    testCase.Input(),
	})
	if err != nil {
		// Absorbed: recorded as a failing result, evaluation moves on.
		outcome.Passed = false
		outcome.ErrorOutput = err.Error()
		outcome.failure = err.Error()
		s.logger.Warn().Err(err).Uint("test_case_id", testCase.ID).Msg("test case execution failed")
	} else {
		// Comparison happens here rather than inside the judge so the
		// semantics stay uniform regardless of backend configuration.
		outcome.Passed = strings.TrimSpace(result.Stdout) == strings.TrimSpace(testCase.Expected())
		outcome.StudentOutput = result.Stdout
		outcome.ErrorOutput = combineOutputs(result.Stderr, result.CompileOutput, result.Message)
		outcome.ExecutionTimeMs = executionMillis(result)
	}

	if err := s.submissions.UpsertResult(ctx, &outcome.CodeSubmissionResult); err != nil {
		s.logger.Error().Err(err).Uint("test_case_id", testCase.ID).Msg("failed to persist test case result")
	}

	return outcome
}

func (s *evaluationService) RunSingle(ctx context.Context, payload dto.JudgeRunRequest) (dto.JudgeRunResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.JudgeRunResponse{}, err
	}

	stdin := ""
	if payload.Stdin != nil {
		stdin = *payload.Stdin
	}

	result, err := s.runner.Run(ctx, judge.RunRequest{
		Source:         payload.Source,
		Language:       payload.Language,
		Stdin:          stdin,
		ExpectedOutput: payload.ExpectedOutput,
	})
	if err != nil {
		return dto.JudgeRunResponse{}, err
	}

	return dto.NewJudgeRunResponse(result), nil
}

// RunSamples executes code against the sample test cases of a question,
// backing the student-facing "Run Code" action. Hidden cases are never used.
func (s *evaluationService) RunSamples(ctx context.Context, payload dto.JudgeRunRequest) (dto.SampleRunResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SampleRunResponse{}, err
	}

	if payload.QuestionID == nil {
		return dto.SampleRunResponse{}, ErrQuestionNotFound
	}

	if _, err := s.questions.GetByID(ctx, *payload.QuestionID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SampleRunResponse{}, ErrQuestionNotFound
		}
		return dto.SampleRunResponse{}, err
	}

	cases, err := s.questions.GetSampleTestCases(ctx, *payload.QuestionID)
	if err != nil {
		return dto.SampleRunResponse{}, err
	}

	response := dto.SampleRunResponse{Runs: make([]dto.SampleCaseRun, 0, len(cases))}
	for _, testCase := range cases {
		if !testCase.IsRunnable() {
			continue
		}

		expected := testCase.Expected()
		result, err := s.runner.Run(ctx, judge.RunRequest{
			Source:         payload.Source,
			Language:       payload.Language,
			Stdin:          testCase.Input(),
			ExpectedOutput: &expected,
		})
		run := dto.SampleCaseRun{TestCaseID: testCase.ID}
		if err != nil {
			run.Error = err.Error()
		} else {
			run.Result = dto.NewJudgeRunResponse(result)
		}
		response.Runs = append(response.Runs, run)
	}

	return response, nil
}

func combineOutputs(parts ...string) string {
	combined := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			combined = append(combined, trimmed)
		}
	}
	return strings.Join(combined, "\n")
}

// executionMillis prefers the judge-reported CPU time, falling back to the
// observed round-trip duration.
func executionMillis(result judge.Result) int64 {
	if result.Time != "" {
		if seconds, err := strconv.ParseFloat(result.Time, 64); err == nil {
			return int64(seconds * 1000)
		}
	}
	return result.DurationMs
}
