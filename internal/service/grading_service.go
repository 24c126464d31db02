package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/lumen-lms-api/internal/dto"
	"github.com/noah-isme/lumen-lms-api/internal/models"
	"github.com/noah-isme/lumen-lms-api/internal/repository"
	"github.com/noah-isme/lumen-lms-api/pkg/ai"
)

// ErrScoreExceedsMax indicates a grading score surpasses the assignment max.
var ErrScoreExceedsMax = errors.New("score exceeds assignment max")

// ErrGradingForbidden indicates the caller may not grade submissions.
var ErrGradingForbidden = errors.New("forbidden")

// ErrDrafterUnavailable indicates no AI feedback provider is configured.
var ErrDrafterUnavailable = errors.New("feedback drafter unavailable")

// AutoGradeFeedback is the feedback text recorded on webhook-applied grades.
const AutoGradeFeedback = "Auto-graded"

// GradingService converges manual grading and webhook auto-grading on the
// submission store's grade recording.
type GradingService interface {
	Grade(ctx context.Context, graderID uint, role string, payload dto.GradeRequest) (dto.SubmissionResponse, error)
	HandleWebhook(ctx context.Context, payload dto.GraderWebhookRequest) error
	DraftFeedback(ctx context.Context, submissionID uint, role string) (dto.FeedbackDraftResponse, error)
}

type gradingService struct {
	submissions repository.SubmissionRepository
	drafter     ai.Drafter
	provider    string
	events      GradeEventPublisher
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewGradingService constructs the grading facade.
func NewGradingService(submissionRepo repository.SubmissionRepository, drafter ai.Drafter, provider string, events GradeEventPublisher, validate *validator.Validate, logger zerolog.Logger) GradingService {
	return &gradingService{
		submissions: submissionRepo,
		drafter:     drafter,
		provider:    provider,
		events:      events,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "grading_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/lumen-lms-api/internal/service/grading"),
	}
}

func (s *gradingService) Grade(parent context.Context, graderID uint, role string, payload dto.GradeRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(parent, "grading.record", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(payload.SubmissionID)),
		attribute.Int64("grading.grader_id", int64(graderID)),
	))
	defer span.End()

	if !canGrade(role) {
		return dto.SubmissionResponse{}, ErrGradingForbidden
	}

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, payload.SubmissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	maxScore := submission.Assignment.MaxScore
	if maxScore <= 0 {
		maxScore = 100
	}
	if payload.Score > maxScore+1e-9 {
		span.SetStatus(codes.Error, "score_exceeds_max")
		return dto.SubmissionResponse{}, ErrScoreExceedsMax
	}

	feedback := strings.TrimSpace(s.sanitizer.Sanitize(payload.Feedback))

	graded, err := s.submissions.RecordGrade(ctx, submission.ID, payload.Score, feedback, &graderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_record_failed")
		return dto.SubmissionResponse{}, err
	}

	s.publishGraded(ctx, graded, false)

	span.SetAttributes(attribute.Float64("grading.score", payload.Score))
	s.logger.Info().Uint("submission_id", graded.ID).Float64("score", payload.Score).Msg("submission graded")

	reloaded, err := s.submissions.GetByID(ctx, graded.ID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(reloaded, false), nil
}

// HandleWebhook applies an external grader's report. A grade row is recorded
// only when a final score is present; otherwise only the status is updated.
func (s *gradingService) HandleWebhook(parent context.Context, payload dto.GraderWebhookRequest) error {
	ctx, span := s.tracer.Start(parent, "grading.webhook", trace.WithAttributes(
		attribute.Int64("grading.submission_id", int64(payload.SubmissionID)),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return err
	}

	if payload.FinalScore == nil {
		if payload.Status == "" {
			return nil
		}
		err := s.submissions.UpdateStatus(ctx, payload.SubmissionID, payload.Status)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		return err
	}

	graded, err := s.submissions.RecordGrade(ctx, payload.SubmissionID, *payload.FinalScore, AutoGradeFeedback, nil)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSubmissionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_record_failed")
		return err
	}

	s.publishGraded(ctx, graded, true)
	s.logger.Info().Uint("submission_id", graded.ID).Float64("score", *payload.FinalScore).Msg("submission auto-graded via webhook")

	return nil
}

func (s *gradingService) DraftFeedback(ctx context.Context, submissionID uint, role string) (dto.FeedbackDraftResponse, error) {
	if !canGrade(role) {
		return dto.FeedbackDraftResponse{}, ErrGradingForbidden
	}
	if s.drafter == nil {
		return dto.FeedbackDraftResponse{}, ErrDrafterUnavailable
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.FeedbackDraftResponse{}, ErrSubmissionNotFound
		}
		return dto.FeedbackDraftResponse{}, err
	}

	if len(submission.Code) == 0 {
		return dto.FeedbackDraftResponse{}, fmt.Errorf("submission has no code to review")
	}

	code := submission.Code[0]
	result, err := s.drafter.Draft(ctx, ai.DraftInput{
		QuestionTitle: submission.Assignment.Title,
		Description:   submission.Assignment.Description,
		Language:      code.Language,
		Source:        code.Source,
		TestSummary:   testSummaryText(code),
	})
	if err != nil {
		return dto.FeedbackDraftResponse{}, err
	}

	return dto.FeedbackDraftResponse{
		Feedback: result.Feedback,
		Verdict:  result.Verdict,
		Provider: s.provider,
	}, nil
}

func (s *gradingService) publishGraded(ctx context.Context, submission models.Submission, auto bool) {
	if s.events == nil || submission.FinalScore == nil || submission.GradedAt == nil {
		return
	}

	event := GradeEvent{
		SubmissionID: submission.ID,
		StudentID:    submission.StudentID,
		AssignmentID: submission.AssignmentID,
		Score:        *submission.FinalScore,
		GraderID:     submission.GraderID,
		Auto:         auto,
		GradedAt:     *submission.GradedAt,
	}

	if err := s.events.PublishGraded(ctx, event); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("grade event publish failed")
	}
}

func testSummaryText(code models.CodeSubmission) string {
	if len(code.Results) == 0 {
		return "no hidden test results recorded"
	}

	passed := 0
	builder := strings.Builder{}
	for _, result := range code.Results {
		if result.Passed {
			passed++
			continue
		}
		fmt.Fprintf(&builder, "case %d failed", result.TestCaseID)
		if result.ErrorOutput != "" {
			fmt.Fprintf(&builder, ": %s", result.ErrorOutput)
		}
		builder.WriteString("\n")
	}

	return fmt.Sprintf("%d/%d hidden cases passed\n%s", passed, len(code.Results), builder.String())
}

// Grading is open to teaching assistants as well as faculty.
func canGrade(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	return role == models.RoleTA || role == models.RoleTeacher || role == models.RoleAdmin
}
