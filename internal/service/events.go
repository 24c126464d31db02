package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// GradeEvent is published whenever a grade is recorded for a submission.
type GradeEvent struct {
	SubmissionID uint      `json:"submission_id"`
	StudentID    uint      `json:"student_id"`
	AssignmentID uint      `json:"assignment_id"`
	Score        float64   `json:"score"`
	GraderID     *uint     `json:"grader_id"`
	Auto         bool      `json:"auto"`
	GradedAt     time.Time `json:"graded_at"`
}

// GradeEventPublisher delivers grading events to downstream consumers.
type GradeEventPublisher interface {
	PublishGraded(ctx context.Context, event GradeEvent) error
}

const gradeEventSubject = "lms.submission.graded"

type natsGradePublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSGradePublisher wraps a NATS connection as a grade event publisher.
func NewNATSGradePublisher(conn *nats.Conn, logger zerolog.Logger) GradeEventPublisher {
	return &natsGradePublisher{
		conn:   conn,
		logger: logger.With().Str("component", "grade_publisher").Logger(),
	}
}

func (p *natsGradePublisher) PublishGraded(_ context.Context, event GradeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if err := p.conn.Publish(gradeEventSubject, payload); err != nil {
		p.logger.Warn().Err(err).Uint("submission_id", event.SubmissionID).Msg("failed to publish grade event")
		return err
	}

	return nil
}
