package repository

import (
	"context"
	"exam_tracker_backend/internal/model"
	"strings"

	"gorm.io/gorm"
)

// QuestionFilter narrows a question query. Empty fields do not filter. Matching is
// case-insensitive so that normalized cache keys and queries agree.
type QuestionFilter struct {
	Category   string
	Subject    string
	Chapter    string
	Topic      string
	Difficulty model.Difficulty
}

func (f QuestionFilter) apply(db *gorm.DB) *gorm.DB {
	eq := func(db *gorm.DB, column, value string) *gorm.DB {
		value = strings.TrimSpace(value)
		if value == "" {
			return db
		}
		return db.Where("LOWER("+column+") = ?", strings.ToLower(value))
	}
	db = eq(db, "category", f.Category)
	db = eq(db, "subject", f.Subject)
	db = eq(db, "chapter", f.Chapter)
	db = eq(db, "topic", f.Topic)
	db = eq(db, "difficulty", string(f.Difficulty))
	return db
}

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) query(ctx context.Context, f QuestionFilter) *gorm.DB {
	return f.apply(r.DB.WithContext(ctx).Model(&model.Question{}))
}

// List returns up to limit questions after skipping offset, ordered by id.
func (r *QuestionRepository) List(ctx context.Context, f QuestionFilter, offset, limit int) ([]model.Question, error) {
	var questions []model.Question
	err := r.query(ctx, f).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&questions).Error
	return questions, err
}

func (r *QuestionRepository) Count(ctx context.Context, f QuestionFilter) (int64, error) {
	var n int64
	err := r.query(ctx, f).Count(&n).Error
	return n, err
}

type difficultyRow struct {
	Difficulty string
	Total      int64
}

// CountByDifficulty groups the filtered questions by difficulty. Rows tagged with an
// unknown difficulty are ignored.
func (r *QuestionRepository) CountByDifficulty(ctx context.Context, f QuestionFilter) (model.DifficultyCounts, error) {
	var rows []difficultyRow
	var counts model.DifficultyCounts
	err := r.query(ctx, f).
		Select("LOWER(difficulty) AS difficulty, COUNT(*) AS total").
		Group("LOWER(difficulty)").
		Scan(&rows).Error
	if err != nil {
		return counts, err
	}
	for _, row := range rows {
		counts.Add(model.Difficulty(row.Difficulty), row.Total)
	}
	return counts, nil
}

func (r *QuestionRepository) distinct(ctx context.Context, column string, f QuestionFilter) ([]string, error) {
	var values []string
	err := r.query(ctx, f).
		Where(column+" IS NOT NULL AND "+column+" <> ''").
		Distinct(column).
		Order(column+" ASC").
		Pluck(column, &values).Error
	return values, err
}

// Subjects lists the subjects that have questions in category.
func (r *QuestionRepository) Subjects(ctx context.Context, category string) ([]string, error) {
	return r.distinct(ctx, "subject", QuestionFilter{Category: category})
}

func (r *QuestionRepository) Chapters(ctx context.Context, category, subject string) ([]string, error) {
	return r.distinct(ctx, "chapter", QuestionFilter{Category: category, Subject: subject})
}

func (r *QuestionRepository) Topics(ctx context.Context, category, chapter string) ([]string, error) {
	return r.distinct(ctx, "topic", QuestionFilter{Category: category, Chapter: chapter})
}

// IDs returns the ids of every question matching f.
func (r *QuestionRepository) IDs(ctx context.Context, f QuestionFilter) ([]uint, error) {
	var ids []uint
	err := r.query(ctx, f).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// FindByIDs loads the given questions in the order of ids. Unknown ids are skipped.
func (r *QuestionRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []model.Question
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Question, len(found))
	for _, q := range found {
		byID[q.ID] = q
	}
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *QuestionRepository) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.WithContext(ctx).First(&q, id).Error
	return &q, err
}
