package service

import (
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/repository"
	"exam_tracker_backend/pkg/cache"
	"exam_tracker_backend/pkg/database/dbtest"
	"testing"
	"time"

	"gorm.io/gorm"
)

func newQuestionService(t *testing.T, db *gorm.DB) *QuestionService {
	t.Helper()
	return NewQuestionService(repository.NewQuestionRepository(db), cache.NewLoader(cache.NewMemoryStore(time.Minute)))
}

func seedQuestions(t *testing.T, db *gorm.DB, n int, q model.Question) []model.Question {
	t.Helper()
	rows := make([]model.Question, n)
	for i := range rows {
		rows[i] = q
		rows[i].QuestionText = q.Topic + " question"
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed questions: %v", err)
	}
	return rows
}

func newTestDB(t *testing.T) *gorm.DB {
	return dbtest.NewTestDB(t)
}
