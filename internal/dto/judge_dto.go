package dto

import "github.com/noah-isme/lumen-lms-api/pkg/judge"

// JudgeRunRequest is the payload for a single ad-hoc code run. When QuestionID
// is set, the run executes against the question's sample test cases instead of
// the provided stdin.
type JudgeRunRequest struct {
	Source         string  `json:"source" validate:"required,min=1"`
	Language       string  `json:"language" validate:"required"`
	Stdin          *string `json:"stdin"`
	ExpectedOutput *string `json:"expected_output"`
	QuestionID     *uint   `json:"question_id" validate:"omitempty,gt=0"`
}

// JudgeRunResponse mirrors the normalized judge result.
type JudgeRunResponse struct {
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
	Message       string `json:"message"`
	Status        string `json:"status"`
	Time          string `json:"time"`
	Memory        int    `json:"memory"`
	Passed        *bool  `json:"passed"`
}

// SampleRunResponse carries results of running code against sample test cases.
type SampleRunResponse struct {
	Runs []SampleCaseRun `json:"runs"`
}

// SampleCaseRun is the outcome of one sample test case execution.
type SampleCaseRun struct {
	TestCaseID uint             `json:"test_case_id"`
	Result     JudgeRunResponse `json:"result"`
	Error      string           `json:"error,omitempty"`
}

// NewJudgeRunResponse converts a judge result into a DTO.
func NewJudgeRunResponse(result judge.Result) JudgeRunResponse {
	return JudgeRunResponse{
		Stdout:        result.Stdout,
		Stderr:        result.Stderr,
		CompileOutput: result.CompileOutput,
		Message:       result.Message,
		Status:        result.Status,
		Time:          result.Time,
		Memory:        result.Memory,
		Passed:        result.Passed,
	}
}
