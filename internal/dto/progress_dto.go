package dto

import "time"

// ProgressSummary aggregates counts across a student's assignments.
type ProgressSummary struct {
	TotalAssignments int      `json:"total_assignments"`
	Submitted        int      `json:"submitted"`
	Graded           int      `json:"graded"`
	Pending          int      `json:"pending"`
	Overdue          int      `json:"overdue"`
	AverageScore     *float64 `json:"average_score"`
}

// AssignmentProgress describes one assignment's state for a student.
type AssignmentProgress struct {
	AssignmentID   uint       `json:"assignment_id"`
	Title          string     `json:"title"`
	AssignmentType string     `json:"assignment_type"`
	DueAt          *time.Time `json:"due_at"`
	Status         string     `json:"status"`
	SubmissionID   *uint      `json:"submission_id"`
	Attempt        *int       `json:"attempt"`
	FinalScore     *float64   `json:"final_score"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// StudentProgressResponse is the cached aggregate returned to students.
type StudentProgressResponse struct {
	Summary     ProgressSummary      `json:"summary"`
	Assignments []AssignmentProgress `json:"assignments"`
	GeneratedAt time.Time            `json:"generated_at"`
}
