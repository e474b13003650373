package repository

import (
	"context"
	"exam_tracker_backend/internal/model"

	"gorm.io/gorm"
)

type MockTestRepository struct {
	DB *gorm.DB
}

func NewMockTestRepository(db *gorm.DB) *MockTestRepository {
	return &MockTestRepository{DB: db}
}

func (r *MockTestRepository) CreateHeader(ctx context.Context, test *model.MockTest) error {
	return r.DB.WithContext(ctx).Create(test).Error
}

// CreateQuestions inserts rows in batches inside one transaction, so either every
// row is written or none is.
func (r *MockTestRepository) CreateQuestions(ctx context.Context, rows []model.MockTestQuestion) error {
	if len(rows) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, 100).Error
	})
}

// DeleteHeader removes a header that has no question rows yet.
func (r *MockTestRepository) DeleteHeader(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Where("id = ?", id).Delete(&model.MockTest{}).Error
}

func (r *MockTestRepository) FindByID(ctx context.Context, id string) (*model.MockTest, error) {
	var test model.MockTest
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&test).Error
	return &test, err
}

func (r *MockTestRepository) Questions(ctx context.Context, testID string) ([]model.MockTestQuestion, error) {
	var rows []model.MockTestQuestion
	err := r.DB.WithContext(ctx).
		Where("mock_test_id = ?", testID).
		Order("position ASC").
		Find(&rows).Error
	return rows, err
}

func (r *MockTestRepository) List(ctx context.Context, category string, page, limit int) ([]model.MockTest, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.MockTest{})
	if category != "" {
		q = q.Where("category = ?", category)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var tests []model.MockTest
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&tests).Error
	return tests, total, err
}

func (r *MockTestRepository) UpdateHeader(ctx context.Context, test *model.MockTest) error {
	return r.DB.WithContext(ctx).Save(test).Error
}

// ReplaceQuestions swaps the whole question list of a test and updates its total.
func (r *MockTestRepository) ReplaceQuestions(ctx context.Context, testID string, rows []model.MockTestQuestion) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("mock_test_id = ?", testID).Delete(&model.MockTestQuestion{}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, 100).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.MockTest{}).Where("id = ?", testID).
			Update("total_questions", len(rows)).Error
	})
}

// Delete removes a test and its questions.
func (r *MockTestRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("mock_test_id = ?", id).Delete(&model.MockTestQuestion{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.MockTest{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
