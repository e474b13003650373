package repository

import (
	"context"
	"errors"
	"exam_tracker_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// FindByKey returns the stored record, or nil when the user has no record for the key.
func (r *ProgressRepository) FindByKey(ctx context.Context, key model.ProgressKey) (*model.ProgressRecord, error) {
	var rec model.ProgressRecord
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND area = ? AND topic = ?", key.UserID, key.Area, key.Topic).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByTopics returns the records for the given topics. Topics without a record are
// simply missing from the result.
func (r *ProgressRepository) FindByTopics(ctx context.Context, userID, area string, topics []string) ([]model.ProgressRecord, error) {
	if len(topics) == 0 {
		return nil, nil
	}
	var records []model.ProgressRecord
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND area = ? AND topic IN ?", userID, area, topics).
		Find(&records).Error
	return records, err
}

func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]model.ProgressRecord, error) {
	var records []model.ProgressRecord
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("area ASC, topic ASC").
		Find(&records).Error
	return records, err
}

var progressKeyColumns = []clause.Column{{Name: "user_id"}, {Name: "topic"}, {Name: "area"}}

// Apply loads the latest stored record for key inside a transaction, lets mutate
// change it and saves the result. A missing record is inserted empty first, so the
// row lock (where the dialect supports it) serializes even the first concurrent
// writers of a key instead of letting the second one hit the unique index.
func (r *ProgressRepository) Apply(ctx context.Context, key model.ProgressKey, mutate func(rec *model.ProgressRecord) error) (*model.ProgressRecord, error) {
	var saved *model.ProgressRecord
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		empty := model.NewProgressRecord(key)
		empty.Normalize()
		if err := tx.Clauses(clause.OnConflict{Columns: progressKeyColumns, DoNothing: true}).Create(empty).Error; err != nil {
			return err
		}

		q := tx.Where("user_id = ? AND area = ? AND topic = ?", key.UserID, key.Area, key.Topic)
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var rec model.ProgressRecord
		if err := q.First(&rec).Error; err != nil {
			return err
		}

		if err := mutate(&rec); err != nil {
			return err
		}
		rec.Normalize()
		if err := tx.Save(&rec).Error; err != nil {
			return err
		}
		saved = &rec
		return nil
	})
	return saved, err
}
