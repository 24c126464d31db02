package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lumen-lms-api/internal/dto"
	"github.com/noah-isme/lumen-lms-api/internal/models"
	"github.com/noah-isme/lumen-lms-api/internal/repository"
)

// ProgressService produces a student's aggregated progress view.
type ProgressService interface {
	GetProgress(ctx context.Context, studentID uint) (dto.StudentProgressResponse, error)
}

type progressService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewProgressService builds the progress aggregator.
func NewProgressService(assignments repository.AssignmentRepository, submissions repository.SubmissionRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ProgressService {
	return &progressService{
		assignments: assignments,
		submissions: submissions,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "progress_service").Logger(),
		now:         time.Now,
	}
}

func (s *progressService) GetProgress(ctx context.Context, studentID uint) (dto.StudentProgressResponse, error) {
	cacheKey := fmt.Sprintf("progress:student:%d", studentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.StudentProgressResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Uint("student_id", studentID).Msg("progress cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read progress cache")
		}
	}

	assignments, err := s.assignments.List(ctx)
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	submissions, err := s.submissions.ListByStudent(ctx, studentID)
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	response := s.buildResponse(assignments, submissions)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store progress cache")
			}
		}
	}

	return response, nil
}

func (s *progressService) buildResponse(assignments []models.Assignment, submissions []models.Submission) dto.StudentProgressResponse {
	now := s.now()

	// Latest attempt wins; ListByStudent orders newest first.
	latestByAssignment := map[uint]models.Submission{}
	for _, submission := range submissions {
		if _, exists := latestByAssignment[submission.AssignmentID]; !exists {
			latestByAssignment[submission.AssignmentID] = submission
		}
	}

	summary := dto.ProgressSummary{}
	progress := make([]dto.AssignmentProgress, 0, len(assignments))
	var scoreTotal float64
	var gradedCount int

	for _, assignment := range assignments {
		if !assignment.IsReleased(now) {
			continue
		}

		summary.TotalAssignments++
		entry := dto.AssignmentProgress{
			AssignmentID:   assignment.ID,
			Title:          assignment.Title,
			AssignmentType: assignment.AssignmentType,
			DueAt:          assignment.DueAt,
			Status:         "pending",
			UpdatedAt:      assignment.UpdatedAt,
		}

		submission, submitted := latestByAssignment[assignment.ID]
		if submitted {
			entry.SubmissionID = &submission.ID
			attempt := submission.Attempt
			entry.Attempt = &attempt
			entry.UpdatedAt = submission.UpdatedAt
			summary.Submitted++

			if submission.IsGraded() {
				entry.Status = models.SubmissionStatusGraded
				entry.FinalScore = submission.FinalScore
				summary.Graded++
				if submission.FinalScore != nil {
					scoreTotal += *submission.FinalScore
					gradedCount++
				}
			} else {
				entry.Status = models.SubmissionStatusSubmitted
				summary.Pending++
			}
		} else {
			summary.Pending++
			if assignment.IsPastDue(now) {
				summary.Overdue++
			}
		}

		progress = append(progress, entry)
	}

	if gradedCount > 0 {
		average := scoreTotal / float64(gradedCount)
		summary.AverageScore = &average
	}

	return dto.StudentProgressResponse{
		Summary:     summary,
		Assignments: progress,
		GeneratedAt: now,
	}
}
