package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/lumen-lms-api/internal/models"
)

// SubmissionRepository owns submission identity, attempt numbering, and the
// upsert semantics for code submissions and their per-test-case results.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.Submission, error)
	GetOrCreate(ctx context.Context, assignment models.Assignment, studentID uint) (models.Submission, error)
	UpsertCode(ctx context.Context, submissionID uint, assignmentQuestionID *uint, language, source string) (models.CodeSubmission, error)
	GetCodeSubmission(ctx context.Context, id uint) (models.CodeSubmission, error)
	UpsertResult(ctx context.Context, result *models.CodeSubmissionResult) error
	UpdateCodeSummary(ctx context.Context, codeSubmissionID uint, summary datatypes.JSON, runOutput string) error
	RecordGrade(ctx context.Context, submissionID uint, score float64, feedback string, graderID *uint) (models.Submission, error)
	UpdateStatus(ctx context.Context, submissionID uint, status string) error
}

type submissionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db, now: time.Now}
}

func (r *submissionRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).
		Preload("Assignment").
		Preload("Code").
		Preload("Code.Results").
		Preload("Grades")
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.baseQuery(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Assignment").
		Where("student_id = ?", studentID).
		Order("submitted_at DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	return submissions, nil
}

// GetOrCreate returns the student's submission for the assignment. When the
// assignment disallows multiple submissions, the existing row is reused;
// otherwise a new row is created with the next attempt number.
func (r *submissionRepository) GetOrCreate(ctx context.Context, assignment models.Assignment, studentID uint) (models.Submission, error) {
	if !assignment.AllowMultipleSubmissions {
		var existing models.Submission
		err := r.db.WithContext(ctx).
			Where("assignment_id = ?", assignment.ID).
			Where("student_id = ?", studentID).
			Order("attempt DESC").
			First(&existing).Error
		if err == nil {
			existing.SubmittedAt = r.now()
			if updateErr := r.db.WithContext(ctx).Save(&existing).Error; updateErr != nil {
				return models.Submission{}, updateErr
			}
			return existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Submission{}, err
		}

		return r.createSubmission(ctx, assignment.ID, studentID, 1)
	}

	var maxAttempt int
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("assignment_id = ?", assignment.ID).
		Where("student_id = ?", studentID).
		Select("COALESCE(MAX(attempt), 0)").
		Scan(&maxAttempt).Error; err != nil {
		return models.Submission{}, err
	}

	return r.createSubmission(ctx, assignment.ID, studentID, maxAttempt+1)
}

func (r *submissionRepository) createSubmission(ctx context.Context, assignmentID, studentID uint, attempt int) (models.Submission, error) {
	submission := models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Attempt:      attempt,
		Status:       models.SubmissionStatusSubmitted,
		SubmittedAt:  r.now(),
	}

	if err := r.db.WithContext(ctx).Create(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

// UpsertCode finds the code submission for (submission, assignment question)
// and overwrites language and source in place, or inserts when absent. A nil
// assignment question id matches only rows where it is NULL.
func (r *submissionRepository) UpsertCode(ctx context.Context, submissionID uint, assignmentQuestionID *uint, language, source string) (models.CodeSubmission, error) {
	query := r.db.WithContext(ctx).Where("submission_id = ?", submissionID)
	if assignmentQuestionID == nil {
		query = query.Where("assignment_question_id IS NULL")
	} else {
		query = query.Where("assignment_question_id = ?", *assignmentQuestionID)
	}

	var code models.CodeSubmission
	err := query.First(&code).Error
	switch {
	case err == nil:
		code.Language = language
		code.Source = source
		if updateErr := r.db.WithContext(ctx).Save(&code).Error; updateErr != nil {
			return models.CodeSubmission{}, updateErr
		}
		return code, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		code = models.CodeSubmission{
			SubmissionID:         submissionID,
			AssignmentQuestionID: assignmentQuestionID,
			Language:             language,
			Source:               source,
		}
		if createErr := r.db.WithContext(ctx).Create(&code).Error; createErr != nil {
			return models.CodeSubmission{}, createErr
		}
		return code, nil
	default:
		return models.CodeSubmission{}, err
	}
}

func (r *submissionRepository) GetCodeSubmission(ctx context.Context, id uint) (models.CodeSubmission, error) {
	var code models.CodeSubmission
	if err := r.db.WithContext(ctx).
		Preload("Results").
		First(&code, id).Error; err != nil {
		return models.CodeSubmission{}, err
	}

	return code, nil
}

// UpsertResult inserts the per-test-case result or, on conflict with the
// (code_submission_id, test_case_id) unique index, refreshes all fields.
func (r *submissionRepository) UpsertResult(ctx context.Context, result *models.CodeSubmissionResult) error {
	result.CreatedAt = r.now()

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "code_submission_id"}, {Name: "test_case_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"passed", "student_output", "error_output", "execution_time_ms", "created_at",
		}),
	}).Create(result).Error
}

func (r *submissionRepository) UpdateCodeSummary(ctx context.Context, codeSubmissionID uint, summary datatypes.JSON, runOutput string) error {
	return r.db.WithContext(ctx).Model(&models.CodeSubmission{}).
		Where("id = ?", codeSubmissionID).
		Updates(map[string]interface{}{
			"test_results": summary,
			"run_output":   runOutput,
		}).Error
}

// RecordGrade appends a grade history row and refreshes the current-grade
// projection on the submission inside one transaction.
func (r *submissionRepository) RecordGrade(ctx context.Context, submissionID uint, score float64, feedback string, graderID *uint) (models.Submission, error) {
	var submission models.Submission

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&submission, submissionID).Error; err != nil {
			return err
		}

		grade := models.SubmissionGrade{
			SubmissionID: submissionID,
			Score:        score,
			Feedback:     feedback,
			GraderID:     graderID,
		}
		if err := tx.Create(&grade).Error; err != nil {
			return err
		}

		gradedAt := r.now()
		submission.FinalScore = &score
		submission.GraderID = graderID
		submission.GradedAt = &gradedAt
		submission.Status = models.SubmissionStatusGraded

		return tx.Save(&submission).Error
	})
	if err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) UpdateStatus(ctx context.Context, submissionID uint, status string) error {
	result := r.db.WithContext(ctx).Model(&models.Submission{}).
		Where("id = ?", submissionID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
