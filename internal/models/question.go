package models

import "time"

// CodeQuestion represents a programming exercise that assignments can reference.
type CodeQuestion struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Constraints string    `gorm:"type:text" json:"constraints"`
	CreatedBy   uint      `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	TestCases   []TestCase `gorm:"foreignKey:QuestionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TestCase holds one input/expected-output pair for a code question.
// Text fields are pointers: an absent value is distinct from an empty string.
type TestCase struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	QuestionID   uint      `gorm:"not null;index" json:"question_id"`
	IsSample     bool      `gorm:"not null;default:false" json:"is_sample"`
	InputText    *string   `gorm:"type:text" json:"input_text"`
	InputPath    *string   `gorm:"size:512" json:"input_path"`
	ExpectedText *string   `gorm:"type:text" json:"expected_text"`
	ExpectedPath *string   `gorm:"size:512" json:"expected_path"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsRunnable reports whether the case carries any usable input. Cases without
// input are skipped by evaluation rather than treated as empty-input runs.
func (t TestCase) IsRunnable() bool {
	return t.InputText != nil || t.InputPath != nil
}

// Input returns the inline stdin for the case, or empty when only a path is set.
func (t TestCase) Input() string {
	if t.InputText != nil {
		return *t.InputText
	}
	return ""
}

// Expected returns the inline expected output, or empty when absent.
func (t TestCase) Expected() string {
	if t.ExpectedText != nil {
		return *t.ExpectedText
	}
	return ""
}
