package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/lumen-lms-api/internal/models"
)

// QuestionRepository is the read-only question bank accessor.
type QuestionRepository interface {
	GetByID(ctx context.Context, id uint) (models.CodeQuestion, error)
	GetTestCases(ctx context.Context, questionID uint) ([]models.TestCase, error)
	GetHiddenTestCases(ctx context.Context, questionID uint) ([]models.TestCase, error)
	GetSampleTestCases(ctx context.Context, questionID uint) ([]models.TestCase, error)
}

type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository instantiates the repository.
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (models.CodeQuestion, error) {
	var question models.CodeQuestion
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return models.CodeQuestion{}, err
	}

	return question, nil
}

func (r *questionRepository) GetTestCases(ctx context.Context, questionID uint) ([]models.TestCase, error) {
	return r.listCases(ctx, questionID, nil)
}

func (r *questionRepository) GetHiddenTestCases(ctx context.Context, questionID uint) ([]models.TestCase, error) {
	isSample := false
	return r.listCases(ctx, questionID, &isSample)
}

func (r *questionRepository) GetSampleTestCases(ctx context.Context, questionID uint) ([]models.TestCase, error) {
	isSample := true
	return r.listCases(ctx, questionID, &isSample)
}

func (r *questionRepository) listCases(ctx context.Context, questionID uint, isSample *bool) ([]models.TestCase, error) {
	query := r.db.WithContext(ctx).
		Where("question_id = ?", questionID).
		Order("id ASC")

	if isSample != nil {
		query = query.Where("is_sample = ?", *isSample)
	}

	var cases []models.TestCase
	if err := query.Find(&cases).Error; err != nil {
		return nil, err
	}

	return cases, nil
}
