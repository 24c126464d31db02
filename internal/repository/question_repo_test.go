package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/lumen-lms-api/internal/models"
)

func seedQuestionWithCases(t *testing.T, db *gorm.DB) models.CodeQuestion {
	t.Helper()

	question := models.CodeQuestion{Title: "Sum two numbers", CreatedBy: 1}
	require.NoError(t, db.Create(&question).Error)

	sampleIn, sampleOut := "1 2", "3"
	hiddenIn, hiddenOut := "10 20", "30"
	noInput := "unused"
	require.NoError(t, db.Create(&models.TestCase{QuestionID: question.ID, IsSample: true, InputText: &sampleIn, ExpectedText: &sampleOut}).Error)
	require.NoError(t, db.Create(&models.TestCase{QuestionID: question.ID, InputText: &hiddenIn, ExpectedText: &hiddenOut}).Error)
	require.NoError(t, db.Create(&models.TestCase{QuestionID: question.ID, ExpectedText: &noInput}).Error)

	return question
}

func TestQuestionTestCaseRelation(t *testing.T) {
	db := setupTestDB(t)
	question := seedQuestionWithCases(t, db)

	var loaded models.CodeQuestion
	require.NoError(t, db.Preload("TestCases").First(&loaded, question.ID).Error)
	require.Len(t, loaded.TestCases, 3)
	for _, testCase := range loaded.TestCases {
		require.Equal(t, question.ID, testCase.QuestionID)
	}
}

func TestQuestionRepoSplitsSampleAndHidden(t *testing.T) {
	db := setupTestDB(t)
	question := seedQuestionWithCases(t, db)
	repo := NewQuestionRepository(db)

	samples, err := repo.GetSampleTestCases(context.Background(), question.ID)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	require.True(t, samples[0].IsSample)

	hidden, err := repo.GetHiddenTestCases(context.Background(), question.ID)
	require.NoError(t, err)
	require.Len(t, hidden, 2)

	all, err := repo.GetTestCases(context.Background(), question.ID)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestQuestionRepoRunnableSkipMarker(t *testing.T) {
	db := setupTestDB(t)
	question := seedQuestionWithCases(t, db)
	repo := NewQuestionRepository(db)

	hidden, err := repo.GetHiddenTestCases(context.Background(), question.ID)
	require.NoError(t, err)

	runnable := 0
	for _, testCase := range hidden {
		if testCase.IsRunnable() {
			runnable++
		}
	}
	require.Equal(t, 1, runnable)
}
