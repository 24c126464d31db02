package models

import (
	"time"

	"gorm.io/datatypes"
)

// CodeSubmission holds the latest code a student saved for one question of a
// submission. Re-saving the same question overwrites in place.
type CodeSubmission struct {
	ID                   uint           `gorm:"primaryKey" json:"id"`
	SubmissionID         uint           `gorm:"not null;uniqueIndex:idx_code_submission_question" json:"submission_id"`
	AssignmentQuestionID *uint          `gorm:"uniqueIndex:idx_code_submission_question" json:"assignment_question_id"`
	Language             string         `gorm:"size:32;not null" json:"language"`
	Source               string         `gorm:"type:text;not null" json:"source"`
	TestResults          datatypes.JSON `json:"test_results"`
	RunOutput            string         `gorm:"type:text" json:"run_output"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`

	Results []CodeSubmissionResult `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"results"`
}

// CodeSubmissionResult is the durable per-test-case audit row, unique on
// (code_submission_id, test_case_id). Re-running evaluation upserts.
type CodeSubmissionResult struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	CodeSubmissionID uint      `gorm:"not null;uniqueIndex:idx_result_case" json:"code_submission_id"`
	TestCaseID       uint      `gorm:"not null;uniqueIndex:idx_result_case" json:"test_case_id"`
	Passed           bool      `gorm:"not null" json:"passed"`
	StudentOutput    string    `gorm:"type:text" json:"student_output"`
	ErrorOutput      string    `gorm:"type:text" json:"error_output"`
	ExecutionTimeMs  int64     `gorm:"default:0" json:"execution_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}
