package ai

import "context"

// DraftInput contains the artefacts used to draft grading feedback.
type DraftInput struct {
	QuestionTitle string
	Description   string
	Constraints   string
	Language      string
	Source        string
	TestSummary   string
}

// DraftResult is the structured feedback suggestion returned by the model.
// It is advisory text for graders and never becomes a grade on its own.
type DraftResult struct {
	Feedback string                 `json:"feedback"`
	Verdict  string                 `json:"verdict"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Raw      map[string]interface{} `json:"raw,omitempty"`
}

// Drafter describes a model capable of drafting grading feedback.
type Drafter interface {
	Draft(ctx context.Context, input DraftInput) (DraftResult, error)
}
