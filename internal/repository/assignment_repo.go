package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/lumen-lms-api/internal/models"
)

// AssignmentRepository defines read operations on assignments used by the
// submission pipeline. Assignment CRUD itself is owned elsewhere.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	List(ctx context.Context) ([]models.Assignment, error)
	GetAssignmentQuestion(ctx context.Context, assignmentID, questionID uint) (models.AssignmentQuestion, error)
	GetAssignmentQuestionByID(ctx context.Context, id uint) (models.AssignmentQuestion, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates the repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) List(ctx context.Context) ([]models.Assignment, error) {
	var assignments []models.Assignment
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&assignments).Error; err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) GetAssignmentQuestion(ctx context.Context, assignmentID, questionID uint) (models.AssignmentQuestion, error) {
	var link models.AssignmentQuestion
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("question_id = ?", questionID).
		First(&link).Error; err != nil {
		return models.AssignmentQuestion{}, err
	}

	return link, nil
}

func (r *assignmentRepository) GetAssignmentQuestionByID(ctx context.Context, id uint) (models.AssignmentQuestion, error) {
	var link models.AssignmentQuestion
	if err := r.db.WithContext(ctx).First(&link, id).Error; err != nil {
		return models.AssignmentQuestion{}, err
	}

	return link, nil
}
