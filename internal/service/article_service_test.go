package service

import (
	"context"
	"errors"
	"exam_tracker_backend/internal/config"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/repository"
	"exam_tracker_backend/internal/util"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"
)

type recordingNotifier struct {
	mu    sync.Mutex
	slugs []string
}

func (n *recordingNotifier) ArticleSaved(_ context.Context, a *model.Article) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.slugs = append(n.slugs, a.Slug)
}

func newArticleServices(t *testing.T) (*ArticleService, *ArticleCategoryService, *recordingNotifier, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	articles := repository.NewArticleRepository(db)
	categories := repository.NewArticleCategoryRepository(db)
	storage := NewStorageService(&config.Config{Storage: config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()}})
	notifier := &recordingNotifier{}
	return NewArticleService(articles, categories, storage, notifier), NewArticleCategoryService(categories, articles), notifier, db
}

func TestCreateArticleRendersAndNotifies(t *testing.T) {
	svc, _, notifier, _ := newArticleServices(t)

	article, err := svc.Create(context.Background(), ArticleInput{
		Title:    "How to Revise Organic Chemistry",
		Content:  "## Plan\n\nStart with **reaction types**.\n\n<script>alert(1)</script>",
		Category: "Preparation Strategy",
		Tags:     []string{"Chemistry", "chemistry", " Revision "},
	}, "admin-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if article.Status != model.ArticleDraft || article.PublishedAt != nil {
		t.Fatalf("default status should be draft: %+v", article)
	}
	if !strings.Contains(article.Content, "<h2") || !strings.Contains(article.Content, "<strong>reaction types</strong>") {
		t.Fatalf("markdown not rendered: %s", article.Content)
	}
	if strings.Contains(article.Content, "<script") {
		t.Fatalf("content not sanitized: %s", article.Content)
	}
	if article.Excerpt == "" || strings.Contains(article.Excerpt, "<") {
		t.Fatalf("excerpt should be plain text: %q", article.Excerpt)
	}
	if len(article.Tags) != 2 || article.Tags[0] != "chemistry" || article.Tags[1] != "revision" {
		t.Fatalf("tags: %v", article.Tags)
	}
	if len(notifier.slugs) != 1 || notifier.slugs[0] != "how-to-revise-organic-chemistry" {
		t.Fatalf("notifier: %v", notifier.slugs)
	}
}

func TestCreateArticleDuplicateTitleWritesNothing(t *testing.T) {
	svc, _, notifier, db := newArticleServices(t)
	ctx := context.Background()

	in := ArticleInput{Title: "Exam Day Checklist", Content: "Bring your admit card.", Category: "exam-news"}
	if _, err := svc.Create(ctx, in, "admin-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	in.Title = "  exam day CHECKLIST "
	_, err := svc.Create(ctx, in, "admin-1")
	if !errors.Is(err, util.ErrDuplicateTitle) || util.StatusFor(util.KindOf(err)) != 409 {
		t.Fatalf("want duplicate title conflict, got=%v", err)
	}

	var n int64
	db.Model(&model.Article{}).Count(&n)
	if n != 1 || len(notifier.slugs) != 1 {
		t.Fatalf("duplicate create left side effects: rows=%d notifications=%d", n, len(notifier.slugs))
	}
}

func TestCreateArticleAfterDeleteReusesTitle(t *testing.T) {
	svc, _, _, _ := newArticleServices(t)
	ctx := context.Background()

	in := ArticleInput{Title: "Cutoff Analysis", Content: "Numbers.", Category: "exam-news"}
	first, err := svc.Create(ctx, in, "admin-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := svc.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	second, err := svc.Create(ctx, in, "admin-1")
	if err != nil {
		t.Fatalf("re-create after delete: %v", err)
	}
	if second.Slug != "cutoff-analysis" {
		t.Fatalf("slug should be reused after purge: %q", second.Slug)
	}
	if err := svc.Delete(ctx, 9999); !errors.Is(err, util.ErrArticleNotFound) {
		t.Fatalf("delete unknown: %v", err)
	}
}

func TestCreateArticleValidation(t *testing.T) {
	svc, _, _, _ := newArticleServices(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   ArticleInput
	}{
		{"no-title", ArticleInput{Content: "x", Category: "exam-news"}},
		{"no-content", ArticleInput{Title: "T", Category: "exam-news"}},
		{"no-category", ArticleInput{Title: "T", Content: "x"}},
		{"bad-status", ArticleInput{Title: "T", Content: "x", Category: "exam-news", Status: "live"}},
		{"unknown-category", ArticleInput{Title: "T", Content: "x", Category: "gossip"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tc.in, "admin-1"); util.KindOf(err) != util.KindValidation {
				t.Fatalf("want validation error, got=%v", err)
			}
		})
	}
}

func TestPublishedVisibilityAndViews(t *testing.T) {
	svc, _, _, _ := newArticleServices(t)
	ctx := context.Background()

	draft, err := svc.Create(ctx, ArticleInput{Title: "Unreleased", Content: "Soon.", Category: "exam-news"}, "admin-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.GetPublished(ctx, draft.Slug); !errors.Is(err, util.ErrArticleNotFound) {
		t.Fatalf("draft should be hidden, got=%v", err)
	}

	published := model.ArticlePublished
	if _, err := svc.Update(ctx, draft.ID, ArticleUpdate{Status: &published}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	article, err := svc.GetPublished(ctx, draft.Slug)
	if err != nil {
		t.Fatalf("GetPublished: %v", err)
	}
	if article.ViewCount != 1 || article.PublishedAt == nil || article.Category == nil {
		t.Fatalf("published article: %+v", article)
	}

	list, err := svc.List(ctx, repository.ArticleFilter{Status: model.ArticlePublished, CategorySlug: "exam-news"}, 1, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list.Total != 1 || len(list.Articles) != 1 {
		t.Fatalf("list: total=%d len=%d", list.Total, len(list.Articles))
	}
	if _, err := svc.List(ctx, repository.ArticleFilter{}, math.MaxInt64, 10); util.KindOf(err) != util.KindValidation {
		t.Fatalf("huge page: want validation error, got=%v", err)
	}
}

func TestUpdateArticleTitleChangesSlug(t *testing.T) {
	svc, _, _, _ := newArticleServices(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, ArticleInput{Title: "Old Name", Content: "Body.", Category: "exam-news"}, "admin-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, ArticleInput{Title: "Taken Name", Content: "Body.", Category: "exam-news"}, "admin-1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	taken := "taken name"
	if _, err := svc.Update(ctx, a.ID, ArticleUpdate{Title: &taken}); !errors.Is(err, util.ErrDuplicateTitle) {
		t.Fatalf("rename onto existing title: %v", err)
	}

	fresh := "New Name"
	updated, err := svc.Update(ctx, a.ID, ArticleUpdate{Title: &fresh})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Slug != "new-name" || updated.Title != "New Name" {
		t.Fatalf("rename: %+v", updated)
	}
}

func TestUploadImage(t *testing.T) {
	svc, _, _, _ := newArticleServices(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, ArticleInput{Title: "With Image", Content: "Body.", Category: "exam-news"}, "admin-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := svc.UploadImage(ctx, a.ID, "cover.gif", strings.NewReader("GIF89a"), 6, "image/gif"); !errors.Is(err, util.ErrInvalidImageExt) {
		t.Fatalf("gif should be rejected, got=%v", err)
	}

	if _, err := svc.UploadImage(ctx, a.ID, "notes.png", strings.NewReader("just some text"), 14, "image/png"); !errors.Is(err, util.ErrInvalidImageType) {
		t.Fatalf("text disguised as png should be rejected, got=%v", err)
	}

	png := "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"
	url, err := svc.UploadImage(ctx, a.ID, "Cover.PNG", strings.NewReader(png), int64(len(png)), "")
	if err != nil {
		t.Fatalf("UploadImage: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/articles/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("url: %q", url)
	}

	local := svc.Storage.Provider.(*LocalStorageProvider)
	key := strings.TrimPrefix(url, "/uploads/")
	if _, err := os.Stat(filepath.Join(local.Config.LocalPath, filepath.FromSlash(key))); err != nil {
		t.Fatalf("file not written: %v", err)
	}

	stored, err := svc.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.FeaturedImage != url {
		t.Fatalf("featured image not saved: %q", stored.FeaturedImage)
	}
}

func TestCategoryLifecycle(t *testing.T) {
	articles, categories, _, _ := newArticleServices(t)
	ctx := context.Background()

	c, err := categories.Create(ctx, CategoryInput{Name: "Result Updates", Description: "Scores"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Slug != "result-updates" {
		t.Fatalf("slug: %q", c.Slug)
	}
	if _, err := categories.Create(ctx, CategoryInput{Name: "result updates"}); util.KindOf(err) != util.KindConflict {
		t.Fatalf("duplicate name: want conflict got=%v", err)
	}

	if _, err := articles.Create(ctx, ArticleInput{Title: "Scores Out", Content: "Body.", CategoryID: c.ID}, "admin-1"); err != nil {
		t.Fatalf("Create article: %v", err)
	}
	if err := categories.Delete(ctx, c.ID); !errors.Is(err, util.ErrCategoryInUse) {
		t.Fatalf("delete in-use category: %v", err)
	}

	empty, err := categories.Create(ctx, CategoryInput{Name: "Empty"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := categories.Delete(ctx, empty.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := categories.Delete(ctx, empty.ID); !errors.Is(err, util.ErrCategoryNotFound) {
		t.Fatalf("second delete: %v", err)
	}
}
