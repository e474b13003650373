package service

import (
	"context"
	"errors"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/repository"
	"exam_tracker_backend/internal/util"
	"exam_tracker_backend/pkg/logger"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const excerptRunes = 200

// ArticleInput creates an article. Content may be markdown or HTML; it is stored as
// sanitized HTML. Category accepts an id, slug or name.
type ArticleInput struct {
	Title         string              `json:"title"`
	Content       string              `json:"content"`
	Excerpt       string              `json:"excerpt"`
	Category      string              `json:"category"`
	CategoryID    uint                `json:"categoryId"`
	Tags          []string            `json:"tags"`
	FeaturedImage string              `json:"featuredImage"`
	Status        model.ArticleStatus `json:"status"`
}

// ArticleUpdate changes only the fields that are set.
type ArticleUpdate struct {
	Title         *string              `json:"title"`
	Content       *string              `json:"content"`
	Excerpt       *string              `json:"excerpt"`
	Category      *string              `json:"category"`
	CategoryID    *uint                `json:"categoryId"`
	Tags          []string             `json:"tags"`
	FeaturedImage *string              `json:"featuredImage"`
	Status        *model.ArticleStatus `json:"status"`
}

type ArticleListResult struct {
	Articles []model.Article `json:"articles"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	Limit    int             `json:"limit"`
}

type ArticleService struct {
	Repo       *repository.ArticleRepository
	Categories *repository.ArticleCategoryRepository
	Storage    *StorageService
	Notifier   Notifier
	now        func() time.Time
}

func NewArticleService(repo *repository.ArticleRepository, categories *repository.ArticleCategoryRepository, storage *StorageService, notifier Notifier) *ArticleService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ArticleService{
		Repo:       repo,
		Categories: categories,
		Storage:    storage,
		Notifier:   notifier,
		now:        time.Now,
	}
}

// Create validates, renders and inserts an article, then notifies the webhook.
// The webhook outcome never affects the result.
func (s *ArticleService) Create(ctx context.Context, in ArticleInput, authorID string) (*model.Article, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, util.Validation("title is required")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, util.Validation("article content is required")
	}
	if strings.TrimSpace(in.Category) == "" && in.CategoryID == 0 {
		return nil, util.Validation("category is required")
	}
	status := in.Status
	if status == "" {
		status = model.ArticleDraft
	}
	if !status.Valid() {
		return nil, util.Validation(fmt.Sprintf("unknown article status %q", status))
	}

	if err := s.ensureTitleFree(ctx, title, 0); err != nil {
		return nil, err
	}
	category, err := s.resolveCategory(ctx, in.Category, in.CategoryID)
	if err != nil {
		return nil, err
	}

	content, err := util.MarkdownToHTML(in.Content)
	if err != nil {
		return nil, util.Validation("article content could not be rendered")
	}
	excerpt := strings.TrimSpace(in.Excerpt)
	if excerpt == "" {
		excerpt = util.Excerpt(content, excerptRunes)
	} else {
		excerpt = util.PlainText(excerpt)
	}

	// a soft-deleted article still holds the title and slug in the unique indexes
	if err := s.Repo.PurgeDeletedTitle(ctx, title); err != nil {
		return nil, util.Persistence("release deleted title", err)
	}
	articleSlug, err := s.uniqueSlug(ctx, title, 0)
	if err != nil {
		return nil, err
	}

	article := &model.Article{
		Title:         title,
		Slug:          articleSlug,
		Content:       content,
		Excerpt:       excerpt,
		CategoryID:    category.ID,
		Tags:          model.NormalizeTags(in.Tags),
		FeaturedImage: strings.TrimSpace(in.FeaturedImage),
		Status:        status,
		AuthorID:      authorID,
	}
	if status == model.ArticlePublished {
		now := s.now()
		article.PublishedAt = &now
	}

	if err := s.Repo.Create(ctx, article); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrDuplicateTitle
		}
		return nil, util.Persistence("create article", err)
	}
	article.Category = category

	logger.Log.Info("Article created",
		zap.Uint("id", article.ID),
		zap.String("slug", article.Slug),
		zap.String("status", string(article.Status)))

	s.Notifier.ArticleSaved(ctx, article)
	return article, nil
}

func (s *ArticleService) Update(ctx context.Context, id uint, in ArticleUpdate) (*model.Article, error) {
	article, err := s.Repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrArticleNotFound
	}
	if err != nil {
		return nil, util.Persistence("load article", err)
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, util.Validation("title cannot be empty")
		}
		if !strings.EqualFold(title, article.Title) {
			if err := s.ensureTitleFree(ctx, title, id); err != nil {
				return nil, err
			}
			if err := s.Repo.PurgeDeletedTitle(ctx, title); err != nil {
				return nil, util.Persistence("release deleted title", err)
			}
			if article.Slug, err = s.uniqueSlug(ctx, title, id); err != nil {
				return nil, err
			}
		}
		article.Title = title
	}

	contentChanged := false
	if in.Content != nil {
		if strings.TrimSpace(*in.Content) == "" {
			return nil, util.Validation("article content cannot be empty")
		}
		content, err := util.MarkdownToHTML(*in.Content)
		if err != nil {
			return nil, util.Validation("article content could not be rendered")
		}
		article.Content = content
		contentChanged = true
	}

	if in.Excerpt != nil {
		article.Excerpt = util.PlainText(*in.Excerpt)
	}
	if article.Excerpt == "" || (contentChanged && in.Excerpt == nil) {
		article.Excerpt = util.Excerpt(article.Content, excerptRunes)
	}

	if in.Category != nil || in.CategoryID != nil {
		ref, refID := "", uint(0)
		if in.Category != nil {
			ref = *in.Category
		}
		if in.CategoryID != nil {
			refID = *in.CategoryID
		}
		category, err := s.resolveCategory(ctx, ref, refID)
		if err != nil {
			return nil, err
		}
		article.CategoryID = category.ID
		article.Category = category
	}

	if in.Tags != nil {
		article.Tags = model.NormalizeTags(in.Tags)
	}
	if in.FeaturedImage != nil {
		article.FeaturedImage = strings.TrimSpace(*in.FeaturedImage)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, util.Validation(fmt.Sprintf("unknown article status %q", *in.Status))
		}
		if *in.Status == model.ArticlePublished && article.PublishedAt == nil {
			now := s.now()
			article.PublishedAt = &now
		}
		article.Status = *in.Status
	}

	if err := s.Repo.Update(ctx, article); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.ErrDuplicateTitle
		}
		return nil, util.Persistence("update article", err)
	}
	return s.Repo.FindByID(ctx, id)
}

// Delete soft-deletes the article.
func (s *ArticleService) Delete(ctx context.Context, id uint) error {
	err := s.Repo.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.ErrArticleNotFound
	}
	if err != nil {
		return util.Persistence("delete article", err)
	}
	return nil
}

func (s *ArticleService) GetByID(ctx context.Context, id uint) (*model.Article, error) {
	article, err := s.Repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrArticleNotFound
	}
	if err != nil {
		return nil, util.Persistence("load article", err)
	}
	return article, nil
}

// GetPublished returns a published article by slug and counts the view.
func (s *ArticleService) GetPublished(ctx context.Context, articleSlug string) (*model.Article, error) {
	article, err := s.Repo.FindBySlug(ctx, articleSlug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrArticleNotFound
	}
	if err != nil {
		return nil, util.Persistence("load article", err)
	}
	if article.Status != model.ArticlePublished {
		return nil, util.ErrArticleNotFound
	}

	if err := s.Repo.IncrementViews(ctx, article.ID); err != nil {
		logger.Log.Warn("Failed to count article view", zap.Uint("id", article.ID), zap.Error(err))
	} else {
		article.ViewCount++
	}
	return article, nil
}

func (s *ArticleService) List(ctx context.Context, f repository.ArticleFilter, page, limit int) (*ArticleListResult, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, util.Validation(fmt.Sprintf("unknown article status %q", f.Status))
	}
	page, err := util.CheckPage(page)
	if err != nil {
		return nil, err
	}
	articles, total, err := s.Repo.List(ctx, f, page, limit)
	if err != nil {
		return nil, util.Persistence("list articles", err)
	}
	return &ArticleListResult{Articles: articles, Total: total, Page: page, Limit: limit}, nil
}

// UploadImage stores a featured image. When articleID is set the article is updated
// to point at it.
func (s *ArticleService) UploadImage(ctx context.Context, articleID uint, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if s.Storage == nil {
		return "", util.NewError(util.KindInternal, "storage is not configured", nil)
	}
	var article *model.Article
	if articleID != 0 {
		var err error
		if article, err = s.GetByID(ctx, articleID); err != nil {
			return "", err
		}
	}

	url, err := s.Storage.UploadArticleImage(ctx, filename, r, size, contentType)
	if err != nil {
		return "", err
	}
	if article != nil {
		article.FeaturedImage = url
		if err := s.Repo.Update(ctx, article); err != nil {
			return "", util.Persistence("update featured image", err)
		}
	}
	return url, nil
}

func (s *ArticleService) ensureTitleFree(ctx context.Context, title string, excludeID uint) error {
	taken, err := s.Repo.TitleExists(ctx, title, excludeID)
	if err != nil {
		return util.Persistence("check title", err)
	}
	if taken {
		return util.ErrDuplicateTitle
	}
	return nil
}

// resolveCategory maps a missing category to a validation error, not a 404, since
// the category is part of the request body.
func (s *ArticleService) resolveCategory(ctx context.Context, ref string, id uint) (*model.ArticleCategory, error) {
	var (
		category *model.ArticleCategory
		err      error
	)
	if id != 0 {
		category, err = s.Categories.FindByID(ctx, id)
	} else {
		category, err = s.Categories.FindByRef(ctx, ref)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewError(util.KindValidation, "category does not exist", util.ErrCategoryNotFound)
	}
	if err != nil {
		return nil, util.Persistence("load category", err)
	}
	return category, nil
}

func (s *ArticleService) uniqueSlug(ctx context.Context, title string, excludeID uint) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "article"
	}
	if len(base) > 250 {
		base = strings.Trim(base[:250], "-")
	}
	candidate := base
	for i := 2; ; i++ {
		taken, err := s.Repo.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", util.Persistence("check slug", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}
