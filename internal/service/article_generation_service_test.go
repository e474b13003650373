package service

import (
	"context"
	"encoding/json"
	"errors"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/repository"
	"exam_tracker_backend/internal/util"
	"strings"
	"sync"
	"testing"
)

type scriptedLLM struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []CompletionRequest
}

func (l *scriptedLLM) Complete(_ context.Context, req CompletionRequest) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := len(l.requests)
	l.requests = append(l.requests, req)
	if i < len(l.errs) && l.errs[i] != nil {
		return "", l.errs[i]
	}
	if i >= len(l.responses) {
		return "", errors.New("no scripted response")
	}
	return l.responses[i], nil
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("revision ", n))
}

func draftJSON(title string, n int) string {
	b, _ := json.Marshal(map[string]string{
		"title":       title,
		"description": "What changed this year",
		"article":     words(n),
	})
	return string(b)
}

var testLimits = GenerationLimits{MinNotesChars: 50, MinWords: 100, MaxWords: 200, MaxExpansions: 2}

func newGenerationService(t *testing.T, llm LLMClient) *ArticleGenerationService {
	t.Helper()
	db := newTestDB(t)
	articles := NewArticleService(repository.NewArticleRepository(db), repository.NewArticleCategoryRepository(db), nil, nil)
	return NewArticleGenerationService(llm, articles, "search-model", testLimits)
}

func TestSearchFactsRejectsThinNotes(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"too short"}}
	svc := newGenerationService(t, llm)

	_, err := svc.SearchFacts(context.Background(), "JEE Main 2026 dates")
	if !errors.Is(err, util.ErrInsufficientData) {
		t.Fatalf("want ErrInsufficientData got=%v", err)
	}
	if llm.requests[0].Model != "search-model" {
		t.Fatalf("fact search should use the search model, got=%q", llm.requests[0].Model)
	}
}

func TestDraftExpandsUntilLongEnough(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		draftJSON("Exam dates", 40),
		draftJSON("Exam dates", 80),
		draftJSON("Exam dates", 150),
	}}
	svc := newGenerationService(t, llm)

	draft, err := svc.Draft(context.Background(), "Exam dates", "notes")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft.WordCount != 150 || draft.Expansions != 2 {
		t.Fatalf("draft: words=%d expansions=%d", draft.WordCount, draft.Expansions)
	}
	if len(llm.requests) != 3 || !llm.requests[0].JSON {
		t.Fatalf("expected three JSON draft requests, got=%d", len(llm.requests))
	}
}

func TestDraftAcceptsOverlongFirstDraft(t *testing.T) {
	llm := &scriptedLLM{responses: []string{draftJSON("Exam dates", 500)}}
	svc := newGenerationService(t, llm)

	draft, err := svc.Draft(context.Background(), "Exam dates", "notes")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if draft.Expansions != 0 || len(llm.requests) != 1 {
		t.Fatalf("long draft should not be expanded: expansions=%d requests=%d", draft.Expansions, len(llm.requests))
	}
}

func TestDraftFailsWhenStillShortAfterCap(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		draftJSON("Exam dates", 20),
		"not json at all",
		draftJSON("Exam dates", 10),
	}}
	svc := newGenerationService(t, llm)

	_, err := svc.Draft(context.Background(), "Exam dates", "notes")
	if !errors.Is(err, util.ErrDraftTooShort) || util.KindOf(err) != util.KindInsufficientData {
		t.Fatalf("want draft-too-short, got=%v", err)
	}
	if len(llm.requests) != 1+testLimits.MaxExpansions {
		t.Fatalf("expansion cap not honoured: requests=%d", len(llm.requests))
	}
}

func TestDraftPropagatesUpstreamFailures(t *testing.T) {
	llm := &scriptedLLM{errs: []error{util.NewError(util.KindUpstreamRateLimit, "slow down", nil)}}
	svc := newGenerationService(t, llm)

	_, err := svc.Draft(context.Background(), "Exam dates", "notes")
	if util.KindOf(err) != util.KindUpstreamRateLimit {
		t.Fatalf("want rate limit error, got=%v", err)
	}
}

func TestParseDraft(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{"plain", `{"title":"T","description":"D","article":"one two three"}`, ""},
		{"fenced", "```json\n{\"title\":\"T\",\"description\":\"D\",\"article\":\"one\"}\n```", ""},
		{"missing", `{"title":"T"}`, "article, description"},
		{"blank", `{"title":" ","description":"D","article":"x"}`, "title"},
		{"garbage", `nope`, "not valid JSON"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			draft, err := ParseDraft(tc.raw)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseDraft: %v", err)
				}
				if draft.Title != "T" || draft.WordCount == 0 {
					t.Fatalf("draft: %+v", draft)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) || util.KindOf(err) != util.KindUpstream {
				t.Fatalf("want upstream error containing %q, got=%v", tc.wantErr, err)
			}
		})
	}
}

func TestGeneratePersistsPublishedArticle(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		words(60),
		draftJSON("JEE Main 2026 Dates Announced", 120),
	}}
	svc := newGenerationService(t, llm)

	article, err := svc.Generate(context.Background(), "JEE Main 2026 dates", "exam-news", []string{"JEE", " jee ", "Dates"}, "admin-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if article.Status != model.ArticlePublished || article.PublishedAt == nil {
		t.Fatalf("generated article should be published: %+v", article)
	}
	if article.Slug != "jee-main-2026-dates-announced" {
		t.Fatalf("slug: got=%q", article.Slug)
	}
	if len(article.Tags) != 2 {
		t.Fatalf("tags should be normalized: %v", article.Tags)
	}

	// the same draft again is a duplicate
	_, err = svc.Persist(context.Background(), PersistRequest{
		Title:    "jee main 2026 dates announced",
		Article:  words(120),
		Category: "exam-news",
	}, "admin-1")
	if !errors.Is(err, util.ErrDuplicateTitle) {
		t.Fatalf("want duplicate title, got=%v", err)
	}
}

func TestPersistRejectsUnknownCategory(t *testing.T) {
	svc := newGenerationService(t, &scriptedLLM{})

	_, err := svc.Persist(context.Background(), PersistRequest{Title: "T", Article: "body", Category: "does-not-exist"}, "admin-1")
	if util.KindOf(err) != util.KindValidation || !errors.Is(err, util.ErrCategoryNotFound) {
		t.Fatalf("want validation error for missing category, got=%v", err)
	}
}
