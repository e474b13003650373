package service

import (
	"context"
	"encoding/json"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/util"
	"exam_tracker_backend/pkg/logger"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const factSearchSystem = `You are a research assistant for an exam preparation site. Search the web and
return concise, verified factual notes about the headline: dates, eligibility, syllabus changes,
official sources. Use plain text bullet points. If you cannot find reliable information, say so
briefly instead of guessing.`

const draftSystem = `You write articles for students preparing for competitive exams. Use only the
facts in the supplied notes and never invent dates, numbers or names. Write markdown with ## headings,
bullet lists where useful, and short paragraphs. Reply with a JSON object with exactly these string
fields: "title", "description" (one sentence), "article" (the markdown body).`

// ArticleDraft is a validated draft returned by the model.
type ArticleDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Article     string `json:"article"`
	WordCount   int    `json:"wordCount"`
	Expansions  int    `json:"expansions"`
}

// FactNotes is the output of the search stage.
type FactNotes struct {
	Headline string `json:"headline"`
	Notes    string `json:"notes"`
}

// PersistRequest is the last stage's input, usually a reviewed draft.
type PersistRequest struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Article       string              `json:"article"`
	Category      string              `json:"category"`
	Tags          []string            `json:"tags"`
	FeaturedImage string              `json:"featuredImage"`
	Status        model.ArticleStatus `json:"status"`
}

// GenerationLimits can be changed at runtime by the config watcher.
type GenerationLimits struct {
	MinNotesChars int
	MinWords      int
	MaxWords      int
	MaxExpansions int
	SearchTimeout time.Duration
	DraftTimeout  time.Duration
}

func LimitsFromConfig(gen config.GenerationConfig, ai config.AIConfig) GenerationLimits {
	return GenerationLimits{
		MinNotesChars: gen.MinNotesChars,
		MinWords:      gen.MinWords,
		MaxWords:      gen.MaxWords,
		MaxExpansions: gen.MaxExpansions,
		SearchTimeout: time.Duration(ai.SearchTimeoutSec) * time.Second,
		DraftTimeout:  time.Duration(ai.DraftTimeoutSec) * time.Second,
	}
}

type ArticleGenerationService struct {
	LLM         LLMClient
	Articles    *ArticleService
	searchModel string

	mu     sync.RWMutex
	limits GenerationLimits
}

func NewArticleGenerationService(llm LLMClient, articles *ArticleService, searchModel string, limits GenerationLimits) *ArticleGenerationService {
	return &ArticleGenerationService{
		LLM:         llm,
		Articles:    articles,
		searchModel: searchModel,
		limits:      limits,
	}
}

func (s *ArticleGenerationService) SetLimits(l GenerationLimits) {
	s.mu.Lock()
	s.limits = l
	s.mu.Unlock()
}

func (s *ArticleGenerationService) Limits() GenerationLimits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.limits
}

// SearchFacts asks the search-augmented model for notes about headline.
func (s *ArticleGenerationService) SearchFacts(ctx context.Context, headline string) (*FactNotes, error) {
	headline = strings.TrimSpace(headline)
	if headline == "" {
		return nil, util.Validation("headline is required")
	}
	limits := s.Limits()

	notes, err := s.LLM.Complete(ctx, CompletionRequest{
		Operation: "fact_search",
		Model:     s.searchModel,
		System:    factSearchSystem,
		User:      "Headline: " + headline,
		Timeout:   limits.SearchTimeout,
	})
	if err != nil {
		return nil, err
	}

	notes = strings.TrimSpace(notes)
	if len([]rune(notes)) < limits.MinNotesChars {
		logger.Log.Info("Fact search returned too little material",
			zap.String("headline", headline),
			zap.Int("chars", len([]rune(notes))))
		return nil, util.ErrInsufficientData
	}
	return &FactNotes{Headline: headline, Notes: notes}, nil
}

// Draft writes a draft from notes and re-prompts for expansion while it is shorter
// than MinWords, at most MaxExpansions times. A draft that is still too short
// fails with ErrDraftTooShort; drafts above MaxWords are accepted.
func (s *ArticleGenerationService) Draft(ctx context.Context, headline, notes string) (*ArticleDraft, error) {
	headline = strings.TrimSpace(headline)
	notes = strings.TrimSpace(notes)
	if headline == "" {
		return nil, util.Validation("headline is required")
	}
	if notes == "" {
		return nil, util.Validation("notes are required")
	}
	limits := s.Limits()

	draft, err := s.requestDraft(ctx, limits, fmt.Sprintf(
		"Headline: %s\n\nNotes:\n%s\n\nWrite between %d and %d words.",
		headline, notes, limits.MinWords, limits.MaxWords))
	if err != nil {
		return nil, err
	}

	for draft.WordCount < limits.MinWords && draft.Expansions < limits.MaxExpansions {
		draft.Expansions++
		logger.Log.Debug("Expanding draft",
			zap.Int("attempt", draft.Expansions),
			zap.Int("words", draft.WordCount))

		expanded, err := s.requestDraft(ctx, limits, fmt.Sprintf(
			"The article below has %d words; expand it to between %d and %d words. Add depth using only the notes.\n\nNotes:\n%s\n\nCurrent article JSON:\n%s",
			draft.WordCount, limits.MinWords, limits.MaxWords, notes, mustJSON(draft)))
		if err != nil {
			if util.KindOf(err) == util.KindUpstream {
				// malformed expansion output still consumes the attempt
				logger.Log.Warn("Discarding invalid expansion", zap.Error(err))
				continue
			}
			return nil, err
		}
		expanded.Expansions = draft.Expansions
		if expanded.WordCount > draft.WordCount {
			draft = expanded
		}
	}

	if draft.WordCount < limits.MinWords {
		return nil, util.NewError(util.KindInsufficientData,
			fmt.Sprintf("draft has %d words after %d expansions, minimum is %d", draft.WordCount, draft.Expansions, limits.MinWords),
			util.ErrDraftTooShort)
	}
	return draft, nil
}

// Persist saves a reviewed draft as an article. Generated articles are published
// unless the request says otherwise.
func (s *ArticleGenerationService) Persist(ctx context.Context, req PersistRequest, authorID string) (*model.Article, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, util.Validation("title is required")
	}
	if strings.TrimSpace(req.Category) == "" {
		return nil, util.Validation("category is required")
	}
	if strings.TrimSpace(req.Article) == "" {
		return nil, util.Validation("article is required")
	}
	status := req.Status
	if status == "" {
		status = model.ArticlePublished
	}
	return s.Articles.Create(ctx, ArticleInput{
		Title:         req.Title,
		Content:       req.Article,
		Excerpt:       req.Description,
		Category:      req.Category,
		Tags:          req.Tags,
		FeaturedImage: req.FeaturedImage,
		Status:        status,
	}, authorID)
}

// Generate runs search, draft and persist in order.
func (s *ArticleGenerationService) Generate(ctx context.Context, headline, category string, tags []string, authorID string) (*model.Article, error) {
	if strings.TrimSpace(category) == "" {
		return nil, util.Validation("category is required")
	}
	facts, err := s.SearchFacts(ctx, headline)
	if err != nil {
		return nil, err
	}
	draft, err := s.Draft(ctx, facts.Headline, facts.Notes)
	if err != nil {
		return nil, err
	}
	return s.Persist(ctx, PersistRequest{
		Title:       draft.Title,
		Description: draft.Description,
		Article:     draft.Article,
		Category:    category,
		Tags:        tags,
	}, authorID)
}

func (s *ArticleGenerationService) requestDraft(ctx context.Context, limits GenerationLimits, prompt string) (*ArticleDraft, error) {
	raw, err := s.LLM.Complete(ctx, CompletionRequest{
		Operation: "draft",
		System:    draftSystem,
		User:      prompt,
		JSON:      true,
		Timeout:   limits.DraftTimeout,
	})
	if err != nil {
		return nil, err
	}
	return ParseDraft(raw)
}

// ParseDraft decodes and validates the model's JSON. Code fences around the object
// are tolerated.
func ParseDraft(raw string) (*ArticleDraft, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	if i := strings.IndexByte(raw, '{'); i > 0 {
		raw = raw[i:]
	}

	var payload struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Article     *string `json:"article"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &payload); err != nil {
		return nil, util.NewError(util.KindUpstream, "draft is not valid JSON", err)
	}

	var missing []string
	for name, v := range map[string]*string{"title": payload.Title, "description": payload.Description, "article": payload.Article} {
		if v == nil || strings.TrimSpace(*v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, util.NewError(util.KindUpstream, "draft is missing fields: "+strings.Join(missing, ", "), nil)
	}

	draft := &ArticleDraft{
		Title:       strings.TrimSpace(*payload.Title),
		Description: strings.TrimSpace(*payload.Description),
		Article:     strings.TrimSpace(*payload.Article),
	}
	draft.WordCount = util.WordCount(draft.Article)
	return draft, nil
}

func mustJSON(d *ArticleDraft) string {
	b, _ := json.Marshal(struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Article     string `json:"article"`
	}{d.Title, d.Description, d.Article})
	return string(b)
}
