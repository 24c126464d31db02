package dto

import "encoding/json"

// GradeRequest is the manual grading payload.
type GradeRequest struct {
	SubmissionID uint    `json:"submission_id" validate:"required,gt=0"`
	Score        float64 `json:"score" validate:"gte=0"`
	Feedback     string  `json:"feedback" validate:"omitempty"`
}

// GraderWebhookRequest is posted by an external grader. FinalScore absent
// means a status-only update; no grade row is recorded.
type GraderWebhookRequest struct {
	SubmissionID uint            `json:"submission_id" validate:"required,gt=0"`
	TestResults  json.RawMessage `json:"test_results"`
	Status       string          `json:"status"`
	FinalScore   *float64        `json:"final_score" validate:"omitempty,gte=0"`
}

// FeedbackDraftResponse is an AI-suggested feedback text for graders.
type FeedbackDraftResponse struct {
	Feedback string `json:"feedback"`
	Verdict  string `json:"verdict"`
	Provider string `json:"provider"`
}
