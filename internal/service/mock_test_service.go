package service

import (
	"context"
	"encoding/json"
	"errors"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/repository"
	"exam_tracker_backend/internal/util"
	"exam_tracker_backend/pkg/logger"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxMockTestQuestions = 500

// MockTestStore is the persistence used by the composer.
type MockTestStore interface {
	CreateHeader(ctx context.Context, test *model.MockTest) error
	CreateQuestions(ctx context.Context, rows []model.MockTestQuestion) error
	DeleteHeader(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*model.MockTest, error)
	Questions(ctx context.Context, testID string) ([]model.MockTestQuestion, error)
	List(ctx context.Context, category string, page, limit int) ([]model.MockTest, int64, error)
	UpdateHeader(ctx context.Context, test *model.MockTest) error
	ReplaceQuestions(ctx context.Context, testID string, rows []model.MockTestQuestion) error
	Delete(ctx context.Context, id string) error
}

// ManualQuestion references a question and optionally overrides its content in the
// snapshot.
type ManualQuestion struct {
	QuestionID    uint    `json:"questionId" binding:"required"`
	Question      *string `json:"question"`
	OptionA       *string `json:"optionA"`
	OptionB       *string `json:"optionB"`
	OptionC       *string `json:"optionC"`
	OptionD       *string `json:"optionD"`
	CorrectOption *string `json:"correctOption"`
	Solution      *string `json:"solution"`
}

func (m ManualQuestion) apply(row *model.MockTestQuestion) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&row.QuestionText, m.Question)
	set(&row.OptionA, m.OptionA)
	set(&row.OptionB, m.OptionB)
	set(&row.OptionC, m.OptionC)
	set(&row.OptionD, m.OptionD)
	set(&row.Solution, m.Solution)
	if m.CorrectOption != nil {
		row.CorrectOption = strings.ToUpper(strings.TrimSpace(*m.CorrectOption))
	}
}

type MockTestHeader struct {
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	Category        string `json:"category"`
	DurationMinutes int    `json:"durationMinutes"`
}

type ManualMockTestRequest struct {
	MockTestHeader
	Questions []ManualQuestion `json:"questions" binding:"required"`
}

type AutoMockTestRequest struct {
	MockTestHeader
	TotalQuestions int                   `json:"totalQuestions" binding:"required"`
	Difficulty     string                `json:"difficulty"`
	Weights        []model.SubjectWeight `json:"weights" binding:"required"`
}

type MockTestUpdate struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	Category        *string          `json:"category"`
	DurationMinutes *int             `json:"durationMinutes"`
	Questions       []ManualQuestion `json:"questions"`
}

type MockTestDetail struct {
	Test      *model.MockTest          `json:"test"`
	Questions []model.MockTestQuestion `json:"questions"`
	Warnings  []string                 `json:"warnings,omitempty"`
}

type MockTestListResult struct {
	Tests []model.MockTest `json:"tests"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

type MockTestService struct {
	Repo      MockTestStore
	Questions *repository.QuestionRepository

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewMockTestService(repo MockTestStore, questions *repository.QuestionRepository) *MockTestService {
	return &MockTestService{
		Repo:      repo,
		Questions: questions,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithRand replaces the shuffle source; used by tests.
func (s *MockTestService) WithRand(r *rand.Rand) *MockTestService {
	s.rng = r
	return s
}

func (s *MockTestService) shuffle(n int, swap func(i, j int)) {
	s.rngMu.Lock()
	s.rng.Shuffle(n, swap)
	s.rngMu.Unlock()
}

func (h MockTestHeader) validate() error {
	if strings.TrimSpace(h.Name) == "" {
		return util.Validation("name is required")
	}
	if h.DurationMinutes < 0 {
		return util.Validation("duration cannot be negative")
	}
	return nil
}

// CreateManual snapshots the given questions in the given order.
func (s *MockTestService) CreateManual(ctx context.Context, req ManualMockTestRequest, createdBy string) (*MockTestDetail, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	rows, err := s.manualRows(ctx, req.Questions)
	if err != nil {
		return nil, err
	}

	test := &model.MockTest{
		Name:            strings.TrimSpace(req.Name),
		Description:     strings.TrimSpace(req.Description),
		Category:        strings.TrimSpace(req.Category),
		DurationMinutes: req.DurationMinutes,
		Mode:            model.MockTestManual,
		TotalQuestions:  len(rows),
		CreatedBy:       createdBy,
	}
	if err := s.persist(ctx, test, rows); err != nil {
		return nil, err
	}
	return &MockTestDetail{Test: test, Questions: rows}, nil
}

func (s *MockTestService) manualRows(ctx context.Context, picks []ManualQuestion) ([]model.MockTestQuestion, error) {
	if len(picks) == 0 {
		return nil, util.Validation("at least one question is required")
	}
	if len(picks) > maxMockTestQuestions {
		return nil, util.Validation(fmt.Sprintf("a mock test holds at most %d questions", maxMockTestQuestions))
	}

	ids := make([]uint, 0, len(picks))
	seen := make(map[uint]bool, len(picks))
	for _, p := range picks {
		if seen[p.QuestionID] {
			return nil, util.Validation(fmt.Sprintf("question %d is listed twice", p.QuestionID))
		}
		seen[p.QuestionID] = true
		if p.CorrectOption != nil && !validOption(*p.CorrectOption) {
			return nil, util.Validation(fmt.Sprintf("correctOption for question %d must be A, B, C or D", p.QuestionID))
		}
		ids = append(ids, p.QuestionID)
	}

	questions, err := s.Questions.FindByIDs(ctx, ids)
	if err != nil {
		return nil, util.Persistence("load questions", err)
	}
	if len(questions) != len(ids) {
		found := make(map[uint]bool, len(questions))
		for _, q := range questions {
			found[q.ID] = true
		}
		var missing []string
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, fmt.Sprint(id))
			}
		}
		return nil, util.Validation("unknown question ids: " + strings.Join(missing, ", "))
	}

	rows := make([]model.MockTestQuestion, len(questions))
	for i := range questions {
		rows[i] = model.SnapshotQuestion("", i+1, &questions[i])
		picks[i].apply(&rows[i])
	}
	return rows, nil
}

// AllocateCounts normalizes weights to sum 100 and gives each subject
// round(weight * total / 100) questions.
func AllocateCounts(weights []model.SubjectWeight, total int) ([]model.SubjectWeight, error) {
	if total <= 0 {
		return nil, util.Validation("totalQuestions must be positive")
	}
	if total > maxMockTestQuestions {
		return nil, util.Validation(fmt.Sprintf("a mock test holds at most %d questions", maxMockTestQuestions))
	}
	if len(weights) == 0 {
		return nil, util.Validation("at least one subject weight is required")
	}

	sum := 0.0
	seen := make(map[string]bool, len(weights))
	for _, w := range weights {
		subject := strings.ToLower(strings.TrimSpace(w.Subject))
		if subject == "" {
			return nil, util.Validation("subject is required for every weight")
		}
		if seen[subject] {
			return nil, util.Validation(fmt.Sprintf("subject %q is listed twice", w.Subject))
		}
		seen[subject] = true
		if w.Weight < 0 || math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) {
			return nil, util.Validation(fmt.Sprintf("weight for %q must be a non-negative number", w.Subject))
		}
		sum += w.Weight
	}
	if sum <= 0 {
		return nil, util.Validation("weights must not all be zero")
	}

	out := make([]model.SubjectWeight, len(weights))
	for i, w := range weights {
		pct := w.Weight * 100 / sum
		out[i] = model.SubjectWeight{
			Subject: strings.TrimSpace(w.Subject),
			Weight:  math.Round(pct*100) / 100,
			Count:   int(math.Round(pct * float64(total) / 100)),
		}
	}
	return out, nil
}

// CreateAuto draws questions per subject by weight. Subjects without questions
// are skipped with a warning.
func (s *MockTestService) CreateAuto(ctx context.Context, req AutoMockTestRequest, createdBy string) (*MockTestDetail, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	difficulty, ok := model.ParseDifficulty(req.Difficulty)
	if !ok {
		return nil, util.Validation(fmt.Sprintf("unknown difficulty %q", req.Difficulty))
	}
	allocation, err := AllocateCounts(req.Weights, req.TotalQuestions)
	if err != nil {
		return nil, err
	}

	var warnings []string
	var picked []uint
	for i, a := range allocation {
		if a.Count == 0 {
			continue
		}
		ids, err := s.Questions.IDs(ctx, repository.QuestionFilter{
			Category:   req.Category,
			Subject:    a.Subject,
			Difficulty: difficulty,
		})
		if err != nil {
			return nil, util.Persistence("load subject questions", err)
		}
		if len(ids) == 0 {
			warnings = append(warnings, fmt.Sprintf("subject %q has no questions and was skipped", a.Subject))
			allocation[i].Count = 0
			continue
		}
		s.shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		if len(ids) < a.Count {
			warnings = append(warnings, fmt.Sprintf("subject %q has only %d of %d requested questions", a.Subject, len(ids), a.Count))
			allocation[i].Count = len(ids)
		}
		picked = append(picked, ids[:allocation[i].Count]...)
	}
	for _, w := range warnings {
		logger.Log.Warn("Mock test composition", zap.String("name", req.Name), zap.String("warning", w))
	}
	if len(picked) == 0 {
		return nil, util.ErrNoQuestionsMatched
	}

	s.shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	questions, err := s.Questions.FindByIDs(ctx, picked)
	if err != nil {
		return nil, util.Persistence("load questions", err)
	}
	rows := make([]model.MockTestQuestion, len(questions))
	for i := range questions {
		rows[i] = model.SnapshotQuestion("", i+1, &questions[i])
	}

	distribution, _ := json.Marshal(allocation)
	test := &model.MockTest{
		Name:            strings.TrimSpace(req.Name),
		Description:     strings.TrimSpace(req.Description),
		Category:        strings.TrimSpace(req.Category),
		DurationMinutes: req.DurationMinutes,
		Mode:            model.MockTestAuto,
		Distribution:    distribution,
		TotalQuestions:  len(rows),
		CreatedBy:       createdBy,
	}
	if err := s.persist(ctx, test, rows); err != nil {
		return nil, err
	}
	return &MockTestDetail{Test: test, Questions: rows, Warnings: warnings}, nil
}

// persist writes the header and then the rows. If the rows fail the header is
// deleted again so no empty test is left behind.
func (s *MockTestService) persist(ctx context.Context, test *model.MockTest, rows []model.MockTestQuestion) error {
	if err := s.Repo.CreateHeader(ctx, test); err != nil {
		return util.Persistence("create mock test", err)
	}
	for i := range rows {
		rows[i].MockTestID = test.ID
	}
	if err := s.Repo.CreateQuestions(ctx, rows); err != nil {
		if delErr := s.Repo.DeleteHeader(context.WithoutCancel(ctx), test.ID); delErr != nil {
			logger.Log.Error("Failed to roll back mock test header",
				zap.String("id", test.ID),
				zap.Error(delErr))
		}
		return util.Persistence("create mock test questions", err)
	}
	logger.Log.Info("Mock test created",
		zap.String("id", test.ID),
		zap.String("mode", string(test.Mode)),
		zap.Int("questions", len(rows)))
	return nil
}

func (s *MockTestService) Get(ctx context.Context, id string) (*MockTestDetail, error) {
	test, err := s.Repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrMockTestNotFound
	}
	if err != nil {
		return nil, util.Persistence("load mock test", err)
	}
	rows, err := s.Repo.Questions(ctx, id)
	if err != nil {
		return nil, util.Persistence("load mock test questions", err)
	}
	return &MockTestDetail{Test: test, Questions: rows}, nil
}

func (s *MockTestService) List(ctx context.Context, category string, page, limit int) (*MockTestListResult, error) {
	page, err := util.CheckPage(page)
	if err != nil {
		return nil, err
	}
	tests, total, err := s.Repo.List(ctx, strings.TrimSpace(category), page, limit)
	if err != nil {
		return nil, util.Persistence("list mock tests", err)
	}
	if tests == nil {
		tests = []model.MockTest{}
	}
	return &MockTestListResult{Tests: tests, Total: total, Page: page, Limit: limit}, nil
}

// Update edits header fields and, when Questions is set, replaces the question list.
func (s *MockTestService) Update(ctx context.Context, id string, req MockTestUpdate) (*MockTestDetail, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	test := detail.Test

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, util.Validation("name cannot be empty")
		}
		test.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		test.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		test.Category = strings.TrimSpace(*req.Category)
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes < 0 {
			return nil, util.Validation("duration cannot be negative")
		}
		test.DurationMinutes = *req.DurationMinutes
	}

	if req.Questions != nil {
		rows, err := s.manualRows(ctx, req.Questions)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			rows[i].MockTestID = id
		}
		if err := s.Repo.ReplaceQuestions(ctx, id, rows); err != nil {
			return nil, util.Persistence("replace mock test questions", err)
		}
		test.TotalQuestions = len(rows)
	}

	if err := s.Repo.UpdateHeader(ctx, test); err != nil {
		return nil, util.Persistence("update mock test", err)
	}
	return s.Get(ctx, id)
}

func (s *MockTestService) Delete(ctx context.Context, id string) error {
	err := s.Repo.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrMockTestNotFound
	}
	if err != nil {
		return util.Persistence("delete mock test", err)
	}
	return nil
}

func validOption(o string) bool {
	switch strings.ToUpper(strings.TrimSpace(o)) {
	case "A", "B", "C", "D":
		return true
	}
	return false
}
