package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/lumen-lms-api/internal/models"
)

// CodeSubmitRequest is the payload for submitting code against an assignment.
// QuestionID is optional: without it the code is saved but not evaluated.
type CodeSubmitRequest struct {
	AssignmentID uint   `json:"assignment_id" validate:"required,gt=0"`
	Language     string `json:"language" validate:"required"`
	Source       string `json:"source" validate:"required,min=1"`
	QuestionID   *uint  `json:"question_id" validate:"omitempty,gt=0"`
}

// CaseSummary is one entry of the aggregated test summary stored on a code submission.
type CaseSummary struct {
	TestCaseID      uint   `json:"test_case_id"`
	Passed          bool   `json:"passed"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	Error           string `json:"error,omitempty"`
}

// TestRunSummary aggregates one evaluation pass across all hidden test cases.
type TestRunSummary struct {
	Passed int           `json:"passed"`
	Total  int           `json:"total"`
	Cases  []CaseSummary `json:"cases"`
}

// AllPassed reports whether every executed case passed.
func (s TestRunSummary) AllPassed() bool {
	return s.Total > 0 && s.Passed == s.Total
}

// TestCaseResultResponse serializes one durable per-test-case result row.
type TestCaseResultResponse struct {
	TestCaseID      uint      `json:"test_case_id"`
	Passed          bool      `json:"passed"`
	StudentOutput   string    `json:"student_output"`
	ErrorOutput     string    `json:"error_output"`
	ExecutionTimeMs int64     `json:"execution_time_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// CodeSubmissionResponse represents a code submission to API consumers.
type CodeSubmissionResponse struct {
	ID                   uint                     `json:"id"`
	SubmissionID         uint                     `json:"submission_id"`
	AssignmentQuestionID *uint                    `json:"assignment_question_id"`
	Language             string                   `json:"language"`
	Source               string                   `json:"source,omitempty"`
	TestResults          *TestRunSummary          `json:"test_results"`
	RunOutput            string                   `json:"run_output"`
	TestCaseResults      []TestCaseResultResponse `json:"test_case_results"`
	UpdatedAt            time.Time                `json:"updated_at"`
}

// GradeHistoryResponse serializes grading history entries.
type GradeHistoryResponse struct {
	Score     float64   `json:"score"`
	Feedback  string    `json:"feedback"`
	GraderID  *uint     `json:"grader_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmissionResponse is the full submission detail returned to API clients.
type SubmissionResponse struct {
	ID           uint                     `json:"id"`
	AssignmentID uint                     `json:"assignment_id"`
	StudentID    uint                     `json:"student_id"`
	Attempt      int                      `json:"attempt"`
	Status       string                   `json:"status"`
	FinalScore   *float64                 `json:"final_score"`
	GraderID     *uint                    `json:"grader_id"`
	GradedAt     *time.Time               `json:"graded_at"`
	SubmittedAt  time.Time                `json:"submitted_at"`
	Assignment   AssignmentLite           `json:"assignment"`
	Code         []CodeSubmissionResponse `json:"code"`
	Grades       []GradeHistoryResponse   `json:"grades"`
}

// AssignmentLite summarizes an assignment in submission responses.
type AssignmentLite struct {
	ID                       uint       `json:"id"`
	Title                    string     `json:"title"`
	AssignmentType           string     `json:"assignment_type"`
	MaxScore                 float64    `json:"max_score"`
	AllowMultipleSubmissions bool       `json:"allow_multiple_submissions"`
	DueAt                    *time.Time `json:"due_at"`
}

// CodeSubmitResponse is returned by the code submit endpoint.
type CodeSubmitResponse struct {
	Submission     SubmissionResponse     `json:"submission"`
	CodeSubmission CodeSubmissionResponse `json:"code_submission"`
	TestResults    *TestRunSummary        `json:"test_results"`
}

// NewCodeSubmissionResponse builds a response DTO from a model.
func NewCodeSubmissionResponse(code models.CodeSubmission, includeSource bool) CodeSubmissionResponse {
	response := CodeSubmissionResponse{
		ID:                   code.ID,
		SubmissionID:         code.SubmissionID,
		AssignmentQuestionID: code.AssignmentQuestionID,
		Language:             code.Language,
		RunOutput:            code.RunOutput,
		UpdatedAt:            code.UpdatedAt,
	}

	if includeSource {
		response.Source = code.Source
	}

	if len(code.TestResults) > 0 {
		var summary TestRunSummary
		if err := json.Unmarshal(code.TestResults, &summary); err == nil {
			response.TestResults = &summary
		}
	}

	if len(code.Results) > 0 {
		results := make([]TestCaseResultResponse, 0, len(code.Results))
		for _, result := range code.Results {
			results = append(results, TestCaseResultResponse{
				TestCaseID:      result.TestCaseID,
				Passed:          result.Passed,
				StudentOutput:   result.StudentOutput,
				ErrorOutput:     result.ErrorOutput,
				ExecutionTimeMs: result.ExecutionTimeMs,
				CreatedAt:       result.CreatedAt,
			})
		}
		response.TestCaseResults = results
	}

	return response
}

// NewSubmissionResponse converts a Submission model into a DTO.
func NewSubmissionResponse(submission models.Submission, includeSource bool) SubmissionResponse {
	response := SubmissionResponse{
		ID:           submission.ID,
		AssignmentID: submission.AssignmentID,
		StudentID:    submission.StudentID,
		Attempt:      submission.Attempt,
		Status:       submission.Status,
		FinalScore:   submission.FinalScore,
		GraderID:     submission.GraderID,
		GradedAt:     submission.GradedAt,
		SubmittedAt:  submission.SubmittedAt,
	}

	if submission.Assignment.ID != 0 {
		response.Assignment = AssignmentLite{
			ID:                       submission.Assignment.ID,
			Title:                    submission.Assignment.Title,
			AssignmentType:           submission.Assignment.AssignmentType,
			MaxScore:                 submission.Assignment.MaxScore,
			AllowMultipleSubmissions: submission.Assignment.AllowMultipleSubmissions,
			DueAt:                    submission.Assignment.DueAt,
		}
	}

	if len(submission.Code) > 0 {
		code := make([]CodeSubmissionResponse, 0, len(submission.Code))
		for _, entry := range submission.Code {
			code = append(code, NewCodeSubmissionResponse(entry, includeSource))
		}
		response.Code = code
	}

	if len(submission.Grades) > 0 {
		grades := make([]GradeHistoryResponse, 0, len(submission.Grades))
		for _, grade := range submission.Grades {
			grades = append(grades, GradeHistoryResponse{
				Score:     grade.Score,
				Feedback:  grade.Feedback,
				GraderID:  grade.GraderID,
				CreatedAt: grade.CreatedAt,
			})
		}
		response.Grades = grades
	}

	return response
}
