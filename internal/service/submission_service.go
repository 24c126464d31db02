package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/lumen-lms-api/internal/dto"
	"github.com/noah-isme/lumen-lms-api/internal/models"
	"github.com/noah-isme/lumen-lms-api/internal/repository"
	"github.com/noah-isme/lumen-lms-api/pkg/judge"
)

// ErrAssignmentNotFound indicates the assignment could not be found.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrSubmissionNotFound indicates a submission could not be found.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionForbidden indicates the caller may not access the submission.
var ErrSubmissionForbidden = errors.New("forbidden")

// ErrNotCodeAssignment indicates code was submitted against a non-code assignment.
var ErrNotCodeAssignment = errors.New("assignment does not accept code submissions")

// ErrQuestionNotInAssignment indicates the (assignment, question) pair has no join row.
var ErrQuestionNotInAssignment = errors.New("question does not belong to assignment")

// ErrUnsupportedLanguage indicates the requested language is not allowed.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// SubmissionService orchestrates code submission workflows.
type SubmissionService interface {
	SubmitCode(ctx context.Context, studentID uint, payload dto.CodeSubmitRequest) (dto.CodeSubmitResponse, error)
	Get(ctx context.Context, id uint, viewerID uint, role string) (dto.SubmissionResponse, error)
	Evaluate(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	evaluation  EvaluationService
	validator   *validator.Validate
	logger      zerolog.Logger
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(submissionRepo repository.SubmissionRepository, assignmentRepo repository.AssignmentRepository, evaluation EvaluationService, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		submissions: submissionRepo,
		assignments: assignmentRepo,
		evaluation:  evaluation,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
	}
}

func (s *submissionService) SubmitCode(ctx context.Context, studentID uint, payload dto.CodeSubmitRequest) (dto.CodeSubmitResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.CodeSubmitResponse{}, err
	}

	if _, ok := judge.LanguageID(payload.Language); !ok {
		return dto.CodeSubmitResponse{}, ErrUnsupportedLanguage
	}

	assignment, err := s.assignments.GetByID(ctx, payload.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.CodeSubmitResponse{}, ErrAssignmentNotFound
		}
		return dto.CodeSubmitResponse{}, err
	}

	if assignment.AssignmentType != models.AssignmentTypeCode {
		return dto.CodeSubmitResponse{}, ErrNotCodeAssignment
	}

	var assignmentQuestionID *uint
	var questionID uint
	if payload.QuestionID != nil {
		link, err := s.assignments.GetAssignmentQuestion(ctx, assignment.ID, *payload.QuestionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.CodeSubmitResponse{}, ErrQuestionNotInAssignment
			}
			return dto.CodeSubmitResponse{}, err
		}
		assignmentQuestionID = &link.ID
		questionID = link.QuestionID
	}

	submission, err := s.submissions.GetOrCreate(ctx, assignment, studentID)
	if err != nil {
		return dto.CodeSubmitResponse{}, err
	}

	code, err := s.submissions.UpsertCode(ctx, submission.ID, assignmentQuestionID, payload.Language, payload.Source)
	if err != nil {
		return dto.CodeSubmitResponse{}, err
	}

	var summary *dto.TestRunSummary
	if payload.QuestionID != nil {
		result, err := s.evaluation.EvaluateHidden(ctx, code, questionID)
		if err != nil {
			// Partial failures are already absorbed per case; this only
			// covers a broken question bank or storage failure.
			s.logger.Error().Err(err).Uint("code_submission_id", code.ID).Msg("hidden evaluation failed")
		} else {
			summary = &result
		}
	}

	reloaded, err := s.submissions.GetByID(ctx, submission.ID)
	if err != nil {
		return dto.CodeSubmitResponse{}, err
	}

	var codeResponse dto.CodeSubmissionResponse
	for _, entry := range reloaded.Code {
		if entry.ID == code.ID {
			codeResponse = dto.NewCodeSubmissionResponse(entry, true)
			break
		}
	}

	s.logger.Info().
		Uint("submission_id", reloaded.ID).
		Int("attempt", reloaded.Attempt).
		Uint("code_submission_id", code.ID).
		Msg("code submitted")

	return dto.CodeSubmitResponse{
		Submission:     dto.NewSubmissionResponse(reloaded, true),
		CodeSubmission: codeResponse,
		TestResults:    summary,
	}, nil
}

func (s *submissionService) Get(ctx context.Context, id uint, viewerID uint, role string) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !canViewSubmission(viewerID, role, submission) {
		return dto.SubmissionResponse{}, ErrSubmissionForbidden
	}

	return dto.NewSubmissionResponse(submission, true), nil
}

// Evaluate re-runs hidden test cases for every question-bound code submission
// of the given submission. Used by faculty for review.
func (s *submissionService) Evaluate(ctx context.Context, submissionID uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	for _, code := range submission.Code {
		if code.AssignmentQuestionID == nil {
			continue
		}

		link, err := s.assignments.GetAssignmentQuestionByID(ctx, *code.AssignmentQuestionID)
		if err != nil {
			s.logger.Warn().Err(err).Uint("assignment_question_id", *code.AssignmentQuestionID).Msg("dangling assignment question reference")
			continue
		}

		if _, err := s.evaluation.EvaluateHidden(ctx, code, link.QuestionID); err != nil {
			s.logger.Error().Err(err).Uint("code_submission_id", code.ID).Msg("re-evaluation failed")
		}
	}

	reloaded, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(reloaded, true), nil
}

func canViewSubmission(viewerID uint, role string, submission models.Submission) bool {
	if viewerID != 0 && viewerID == submission.StudentID {
		return true
	}
	return role == models.RoleTA || role == models.RoleTeacher || role == models.RoleAdmin
}
