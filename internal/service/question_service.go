package service

import (
	"context"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/repository"
	"exam_tracker_backend/internal/util"
	"exam_tracker_backend/pkg/cache"
	"fmt"
	"strconv"
	"strings"
)

// QuestionQuery is the filter of a question listing. Page is 1-based.
type QuestionQuery struct {
	Category   string `form:"category"`
	Subject    string `form:"subject"`
	Chapter    string `form:"chapter"`
	Topic      string `form:"topic"`
	Difficulty string `form:"difficulty"`
	Page       int    `form:"page"`
}

func (q QuestionQuery) filter() (repository.QuestionFilter, error) {
	d, ok := model.ParseDifficulty(q.Difficulty)
	if !ok {
		return repository.QuestionFilter{}, util.Validation(fmt.Sprintf("unknown difficulty %q", q.Difficulty))
	}
	return repository.QuestionFilter{
		Category:   strings.TrimSpace(q.Category),
		Subject:    strings.TrimSpace(q.Subject),
		Chapter:    strings.TrimSpace(q.Chapter),
		Topic:      strings.TrimSpace(q.Topic),
		Difficulty: d,
	}, nil
}

// QuestionService serves read-only question data through the TTL cache.
type QuestionService struct {
	Repo  *repository.QuestionRepository
	cache *cache.Loader
}

func NewQuestionService(repo *repository.QuestionRepository, loader *cache.Loader) *QuestionService {
	return &QuestionService{Repo: repo, cache: loader}
}

// ListQuestions returns one fixed-size page. HasMore is true when the page is full.
func (s *QuestionService) ListQuestions(ctx context.Context, q QuestionQuery) (*model.QuestionPage, error) {
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	if q.Page, err = util.CheckPage(q.Page); err != nil {
		return nil, err
	}

	key := cache.Key("questions", f.Category, f.Subject, f.Chapter, f.Topic, string(f.Difficulty), strconv.Itoa(q.Page))
	var page model.QuestionPage
	err = s.cache.Fetch(ctx, key, &page, func(ctx context.Context) (interface{}, error) {
		questions, err := s.Repo.List(ctx, f, (q.Page-1)*util.QuestionPageSize, util.QuestionPageSize)
		if err != nil {
			return nil, err
		}
		if questions == nil {
			questions = []model.Question{}
		}
		return model.QuestionPage{
			Questions: questions,
			Page:      q.Page,
			PageSize:  util.QuestionPageSize,
			HasMore:   len(questions) == util.QuestionPageSize,
		}, nil
	})
	if err != nil {
		return nil, util.Persistence("list questions", err)
	}
	return &page, nil
}

// Counts returns per-difficulty totals for a category and chapter. All three
// buckets are always present; a difficulty filter zeroes the others.
func (s *QuestionService) Counts(ctx context.Context, category, chapter, difficulty string) (model.DifficultyCounts, error) {
	f, err := QuestionQuery{Category: category, Chapter: chapter, Difficulty: difficulty}.filter()
	if err != nil {
		return model.DifficultyCounts{}, err
	}

	key := cache.Key("counts", f.Category, f.Chapter, string(f.Difficulty))
	var counts model.DifficultyCounts
	err = s.cache.Fetch(ctx, key, &counts, func(ctx context.Context) (interface{}, error) {
		return s.Repo.CountByDifficulty(ctx, f)
	})
	if err != nil {
		return model.DifficultyCounts{}, util.Persistence("count questions", err)
	}
	return counts, nil
}

// ChapterTotal is the number of questions known for a chapter of an area.
func (s *QuestionService) ChapterTotal(ctx context.Context, area, chapter string) (int64, error) {
	counts, err := s.Counts(ctx, area, chapter, "")
	if err != nil {
		return 0, err
	}
	return counts.Total(), nil
}

func (s *QuestionService) Subjects(ctx context.Context, category string) ([]string, error) {
	return s.listing(ctx, cache.Key("subjects", category), func(ctx context.Context) ([]string, error) {
		return s.Repo.Subjects(ctx, category)
	})
}

func (s *QuestionService) Chapters(ctx context.Context, category, subject string) ([]string, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, util.Validation("subject is required")
	}
	return s.listing(ctx, cache.Key("chapters", category, subject), func(ctx context.Context) ([]string, error) {
		return s.Repo.Chapters(ctx, category, subject)
	})
}

func (s *QuestionService) Topics(ctx context.Context, category, chapter string) ([]string, error) {
	if strings.TrimSpace(chapter) == "" {
		return nil, util.Validation("chapter is required")
	}
	return s.listing(ctx, cache.Key("topics", category, chapter), func(ctx context.Context) ([]string, error) {
		return s.Repo.Topics(ctx, category, chapter)
	})
}

func (s *QuestionService) listing(ctx context.Context, key string, load func(ctx context.Context) ([]string, error)) ([]string, error) {
	var values []string
	err := s.cache.Fetch(ctx, key, &values, func(ctx context.Context) (interface{}, error) {
		v, err := load(ctx)
		if v == nil {
			v = []string{}
		}
		return v, err
	})
	if err != nil {
		return nil, util.Persistence("list taxonomy", err)
	}
	return values, nil
}
