package models

import "time"

// Assignment type discriminators.
const (
	AssignmentTypeFile = "file"
	AssignmentTypeCode = "code"
	AssignmentTypeLink = "link"
	AssignmentTypeQuiz = "quiz"
)

// Assignment represents a gradable unit of work within a course offering.
type Assignment struct {
	ID                       uint       `gorm:"primaryKey" json:"id"`
	CourseOfferingID         uint       `gorm:"not null;index" json:"course_offering_id"`
	Title                    string     `gorm:"size:255;not null" json:"title"`
	Description              string     `gorm:"type:text" json:"description"`
	AssignmentType           string     `gorm:"size:16;not null" json:"assignment_type"`
	MaxScore                 float64    `gorm:"not null;default:100" json:"max_score"`
	AllowMultipleSubmissions bool       `gorm:"not null;default:false" json:"allow_multiple_submissions"`
	ReleaseAt                *time.Time `json:"release_at"`
	DueAt                    *time.Time `json:"due_at"`
	CreatedAt                time.Time  `json:"created_at"`
	UpdatedAt                time.Time  `json:"updated_at"`
	Questions                []AssignmentQuestion
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return a.DueAt != nil && reference.After(*a.DueAt)
}

// IsReleased reports whether students may see the assignment yet.
func (a Assignment) IsReleased(reference time.Time) bool {
	return a.ReleaseAt == nil || !reference.Before(*a.ReleaseAt)
}

// AssignmentQuestion links a code question into an assignment with its weight.
type AssignmentQuestion struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AssignmentID uint      `gorm:"not null;uniqueIndex:idx_assignment_question" json:"assignment_id"`
	QuestionID   uint      `gorm:"not null;uniqueIndex:idx_assignment_question" json:"question_id"`
	Points       float64   `gorm:"not null;default:0" json:"points"`
	Position     int       `gorm:"not null;default:0" json:"position"`
	CreatedAt    time.Time `json:"created_at"`

	Question CodeQuestion `gorm:"foreignKey:QuestionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"question"`
}
