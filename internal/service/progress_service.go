package service

import (
	"context"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/repository"
	"exam_tracker_backend/internal/util"
	"exam_tracker_backend/pkg/logger"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const summaryWarning = "progress could not be loaded right now"

// AnswerEvent is one answered question. Difficulty is only used when the question
// id is not in the question store.
type AnswerEvent struct {
	UserID     string `json:"-"`
	Area       string `json:"area" binding:"required"`
	Topic      string `json:"topic" binding:"required"`
	QuestionID string `json:"questionId" binding:"required"`
	Correct    bool   `json:"correct"`
	Difficulty string `json:"difficulty"`
	Flush      bool   `json:"flush"`
}

func (e AnswerEvent) Key() model.ProgressKey {
	return model.ProgressKey{
		UserID: e.UserID,
		Area:   strings.TrimSpace(e.Area),
		Topic:  strings.TrimSpace(e.Topic),
	}
}

func (e AnswerEvent) validate() error {
	switch {
	case e.UserID == "":
		return util.ErrUnauthorized
	case strings.TrimSpace(e.Area) == "":
		return util.Validation("area is required")
	case strings.TrimSpace(e.Topic) == "":
		return util.Validation("topic is required")
	case strings.TrimSpace(e.QuestionID) == "":
		return util.Validation("questionId is required")
	}
	if _, ok := model.ParseDifficulty(e.Difficulty); !ok {
		return util.Validation(fmt.Sprintf("unknown difficulty %q", e.Difficulty))
	}
	return nil
}

// SyncRequest uploads a client-side record to be merged with the stored one.
type SyncRequest struct {
	Area         string   `json:"area" binding:"required"`
	Topic        string   `json:"topic" binding:"required"`
	CompletedIDs []string `json:"completedIds"`
	CorrectIDs   []string `json:"correctIds"`
}

type ProgressService struct {
	Repo      *repository.ProgressRepository
	Questions *QuestionService
}

func NewProgressService(repo *repository.ProgressRepository, questions *QuestionService) *ProgressService {
	return &ProgressService{Repo: repo, Questions: questions}
}

// RecordAnswer applies a single event on top of the latest stored record.
func (s *ProgressService) RecordAnswer(ctx context.Context, ev AnswerEvent) (*model.ProgressRecord, error) {
	if err := ev.validate(); err != nil {
		return nil, err
	}
	rec, err := s.ApplyAnswers(ctx, ev.Key(), []AnswerEvent{ev})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ApplyAnswers applies events for one key, in order, inside one transaction.
func (s *ProgressService) ApplyAnswers(ctx context.Context, key model.ProgressKey, events []AnswerEvent) (*model.ProgressRecord, error) {
	weights := make([]int, len(events))
	for i, ev := range events {
		weights[i] = s.weight(ctx, ev)
	}

	rec, err := s.Repo.Apply(ctx, key, func(rec *model.ProgressRecord) error {
		for i, ev := range events {
			rec.MarkAnswered(strings.TrimSpace(ev.QuestionID), ev.Correct, weights[i])
		}
		return nil
	})
	if err != nil {
		return nil, util.Persistence("save progress", err)
	}
	return rec, nil
}

// weight prefers the stored difficulty of the question over the client's claim.
func (s *ProgressService) weight(ctx context.Context, ev AnswerEvent) int {
	if s.Questions != nil {
		if id, err := strconv.ParseUint(strings.TrimSpace(ev.QuestionID), 10, 32); err == nil {
			if q, err := s.Questions.Repo.FindByID(ctx, uint(id)); err == nil {
				if d, ok := model.ParseDifficulty(string(q.Difficulty)); ok && d != "" {
					return d.Points()
				}
			}
		}
	}
	d, _ := model.ParseDifficulty(ev.Difficulty)
	return d.Points()
}

// Sync merges an uploaded record into the stored one. The stored completed set
// only grows. Uploaded points are not trusted: questions that become correct
// through the merge earn the points of their stored difficulty, like answers do.
func (s *ProgressService) Sync(ctx context.Context, userID string, req SyncRequest) (*model.ProgressRecord, error) {
	key := model.ProgressKey{UserID: userID, Area: strings.TrimSpace(req.Area), Topic: strings.TrimSpace(req.Topic)}
	if key.UserID == "" {
		return nil, util.ErrUnauthorized
	}
	if key.Area == "" || key.Topic == "" {
		return nil, util.Validation("area and topic are required")
	}

	incoming := model.NewProgressRecord(key)
	incoming.CompletedIDs = model.UnionIDs(req.CompletedIDs, nil)
	incoming.CorrectIDs = model.UnionIDs(req.CorrectIDs, nil)
	incoming.Normalize()
	weights := s.storedWeights(ctx, incoming.CorrectIDs)

	rec, err := s.Repo.Apply(ctx, key, func(rec *model.ProgressRecord) error {
		before := rec.CorrectIDs
		rec.Merge(incoming)
		for _, id := range rec.CorrectIDs {
			if !containsString(before, id) {
				rec.Points += weights[id]
			}
		}
		return nil
	})
	if err != nil {
		return nil, util.Persistence("sync progress", err)
	}
	return rec, nil
}

// storedWeights maps the ids of known questions to their difficulty points.
// Ids that are not in the question store are worth nothing.
func (s *ProgressService) storedWeights(ctx context.Context, ids []string) map[string]int {
	weights := make(map[string]int, len(ids))
	if s.Questions == nil || len(ids) == 0 {
		return weights
	}
	var numeric []uint
	for _, id := range ids {
		if n, err := strconv.ParseUint(id, 10, 32); err == nil {
			numeric = append(numeric, uint(n))
		}
	}
	found, err := s.Questions.Repo.FindByIDs(ctx, numeric)
	if err != nil {
		logger.Log.Warn("Question difficulty lookup failed, synced answers earn no points", zap.Error(err))
		return weights
	}
	for _, q := range found {
		if d, ok := model.ParseDifficulty(string(q.Difficulty)); ok {
			weights[strconv.FormatUint(uint64(q.ID), 10)] = d.Points()
		}
	}
	return weights
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (s *ProgressService) Record(ctx context.Context, key model.ProgressKey) (*model.ProgressRecord, error) {
	rec, err := s.Repo.FindByKey(ctx, key)
	if err != nil {
		return nil, util.Persistence("load progress", err)
	}
	if rec == nil {
		rec = model.NewProgressRecord(key)
	}
	return rec, nil
}

// ChapterSummary unions the records of the chapter's topics. When topics is empty
// they are looked up from the question store. It never fails: on any error it
// returns a zero summary carrying a warning.
func (s *ProgressService) ChapterSummary(ctx context.Context, userID, area, chapter string, topics []string) model.ProgressSummary {
	summary, err := s.chapterSummary(ctx, userID, area, chapter, topics)
	if err != nil {
		logger.Log.Warn("Chapter progress unavailable",
			zap.String("area", area),
			zap.String("chapter", chapter),
			zap.Error(err))
		return model.ProgressSummary{Warning: summaryWarning}
	}
	return summary
}

func (s *ProgressService) chapterSummary(ctx context.Context, userID, area, chapter string, topics []string) (model.ProgressSummary, error) {
	var summary model.ProgressSummary
	if len(topics) == 0 && chapter != "" {
		var err error
		if topics, err = s.Questions.Topics(ctx, area, chapter); err != nil {
			return summary, err
		}
	}

	records, err := s.Repo.FindByTopics(ctx, userID, area, topics)
	if err != nil {
		return summary, err
	}

	var completed, correct []string
	for _, rec := range records {
		completed = model.UnionIDs(completed, rec.CompletedIDs)
		correct = model.UnionIDs(correct, rec.CorrectIDs)
		summary.Points += rec.Points
	}
	summary.CompletedCount = len(completed)
	summary.CorrectCount = len(correct)

	if chapter != "" {
		if summary.TotalQuestions, err = s.Questions.ChapterTotal(ctx, area, chapter); err != nil {
			return model.ProgressSummary{}, err
		}
	}
	summary.Finalize()
	return summary, nil
}

// SubjectSummary computes every chapter of a subject concurrently and sums them.
func (s *ProgressService) SubjectSummary(ctx context.Context, userID, area, subject string) *model.SubjectProgress {
	result := &model.SubjectProgress{Subject: subject, Chapters: []model.ChapterProgress{}}

	chapters, err := s.Questions.Chapters(ctx, area, subject)
	if err != nil {
		logger.Log.Warn("Subject chapters unavailable", zap.String("subject", subject), zap.Error(err))
		result.Summary.Warning = summaryWarning
		return result
	}

	results := make([]model.ChapterProgress, len(chapters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, chapter := range chapters {
		g.Go(func() error {
			results[i] = model.ChapterProgress{
				Chapter: chapter,
				Summary: s.ChapterSummary(gctx, userID, area, chapter, nil),
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, cp := range results {
		result.Summary.Add(cp.Summary)
		if cp.Summary.Warning != "" {
			result.Summary.Warning = cp.Summary.Warning
		}
	}
	result.Chapters = results
	result.Summary.Finalize()
	return result
}

// Dashboard groups all of the user's records by area.
func (s *ProgressService) Dashboard(ctx context.Context, userID string) ([]model.AreaProgress, error) {
	records, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, util.Persistence("load dashboard", err)
	}

	byArea := make(map[string]*model.AreaProgress)
	for _, rec := range records {
		a, ok := byArea[rec.Area]
		if !ok {
			a = &model.AreaProgress{Area: rec.Area}
			byArea[rec.Area] = a
		}
		a.Topics++
		a.CompletedCount += len(rec.CompletedIDs)
		a.CorrectCount += len(rec.CorrectIDs)
		a.Points += rec.Points
	}

	out := make([]model.AreaProgress, 0, len(byArea))
	for _, a := range byArea {
		if a.CompletedCount > 0 {
			a.Accuracy = float64(int64(float64(a.CorrectCount)*10000/float64(a.CompletedCount)+0.5)) / 100
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Area < out[j].Area })
	return out, nil
}

