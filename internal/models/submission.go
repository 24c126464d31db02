package models

import "time"

// Submission lifecycle states.
const (
	SubmissionStatusSubmitted = "submitted"
	SubmissionStatusGraded    = "graded"
)

// Submission is one numbered attempt at an assignment by one student.
// Identity is (assignment_id, student_id, attempt); the attempt counter only
// advances when the assignment allows multiple submissions.
type Submission struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	AssignmentID uint       `gorm:"not null;uniqueIndex:idx_submission_attempt" json:"assignment_id"`
	StudentID    uint       `gorm:"not null;uniqueIndex:idx_submission_attempt" json:"student_id"`
	Attempt      int        `gorm:"not null;default:1;uniqueIndex:idx_submission_attempt" json:"attempt"`
	Status       string     `gorm:"size:32;not null" json:"status"`
	FinalScore   *float64   `json:"final_score"`
	GraderID     *uint      `json:"grader_id"`
	GradedAt     *time.Time `json:"graded_at"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Assignment Assignment       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Code       []CodeSubmission `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"code"`
	Grades     []SubmissionGrade
}

// IsGraded reports whether the submission carries a final grade.
func (s Submission) IsGraded() bool {
	return s.Status == SubmissionStatusGraded
}

// SubmissionGrade is one entry in the append-only grading history. The
// current-grade projection lives on Submission and is refreshed on insert.
type SubmissionGrade struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	Score        float64   `gorm:"not null" json:"score"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	GraderID     *uint     `json:"grader_id"`
	CreatedAt    time.Time `json:"created_at"`
}
