package repository

import (
	"context"
	"errors"
	"exam_tracker_backend/internal/model"
	"strings"

	"gorm.io/gorm"
)

// ArticleFilter narrows article listings. Empty fields do not filter.
type ArticleFilter struct {
	Status       model.ArticleStatus
	CategoryID   uint
	CategorySlug string
	Tag          string
	Search       string
}

type ArticleRepository struct {
	DB *gorm.DB
}

func NewArticleRepository(db *gorm.DB) *ArticleRepository {
	return &ArticleRepository{DB: db}
}

func (r *ArticleRepository) Create(ctx context.Context, article *model.Article) error {
	return r.DB.WithContext(ctx).Create(article).Error
}

func (r *ArticleRepository) Update(ctx context.Context, article *model.Article) error {
	return r.DB.WithContext(ctx).Omit("Category").Save(article).Error
}

func (r *ArticleRepository) FindByID(ctx context.Context, id uint) (*model.Article, error) {
	var article model.Article
	err := r.DB.WithContext(ctx).Preload("Category").First(&article, id).Error
	return &article, err
}

func (r *ArticleRepository) FindBySlug(ctx context.Context, slug string) (*model.Article, error) {
	var article model.Article
	err := r.DB.WithContext(ctx).Preload("Category").Where("slug = ?", slug).First(&article).Error
	return &article, err
}

// TitleExists reports whether another live article already uses title, ignoring case.
// excludeID skips the article being edited.
func (r *ArticleRepository) TitleExists(ctx context.Context, title string, excludeID uint) (bool, error) {
	var n int64
	q := r.DB.WithContext(ctx).Model(&model.Article{}).
		Where("LOWER(title) = ?", strings.ToLower(strings.TrimSpace(title)))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

// SlugExists includes soft-deleted rows because the unique index does.
func (r *ArticleRepository) SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	var n int64
	q := r.DB.WithContext(ctx).Unscoped().Model(&model.Article{}).Where("slug = ?", slug)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

// PurgeDeletedTitle hard-deletes soft-deleted rows holding title so it can be reused.
func (r *ArticleRepository) PurgeDeletedTitle(ctx context.Context, title string) error {
	return r.DB.WithContext(ctx).Unscoped().
		Where("deleted_at IS NOT NULL AND LOWER(title) = ?", strings.ToLower(strings.TrimSpace(title))).
		Delete(&model.Article{}).Error
}

func (r *ArticleRepository) List(ctx context.Context, f ArticleFilter, page, limit int) ([]model.Article, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Article{})
	if f.Status != "" {
		q = q.Where("articles.status = ?", f.Status)
	}
	if f.CategoryID != 0 {
		q = q.Where("articles.category_id = ?", f.CategoryID)
	}
	if f.CategorySlug != "" {
		q = q.Joins("JOIN article_categories ON article_categories.id = articles.category_id").
			Where("article_categories.slug = ?", f.CategorySlug)
	}
	if f.Tag != "" {
		// tags is a JSON array of lower-cased strings
		q = q.Where("articles.tags LIKE ?", "%\""+strings.ToLower(f.Tag)+"\"%")
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(articles.title) LIKE ? OR LOWER(articles.excerpt) LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var articles []model.Article
	err := q.Preload("Category").
		Order("articles.published_at DESC, articles.created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&articles).Error
	return articles, total, err
}

func (r *ArticleRepository) Delete(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Delete(&model.Article{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ArticleRepository) IncrementViews(ctx context.Context, id uint) error {
	return r.DB.WithContext(ctx).Model(&model.Article{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// CountByCategory counts articles, soft-deleted ones included, that reference categoryID.
func (r *ArticleRepository) CountByCategory(ctx context.Context, categoryID uint) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Unscoped().Model(&model.Article{}).
		Where("category_id = ?", categoryID).
		Count(&n).Error
	return n, err
}

type ArticleCategoryRepository struct {
	DB *gorm.DB
}

func NewArticleCategoryRepository(db *gorm.DB) *ArticleCategoryRepository {
	return &ArticleCategoryRepository{DB: db}
}

func (r *ArticleCategoryRepository) List(ctx context.Context) ([]model.ArticleCategory, error) {
	var categories []model.ArticleCategory
	err := r.DB.WithContext(ctx).Order("name ASC").Find(&categories).Error
	return categories, err
}

func (r *ArticleCategoryRepository) FindByID(ctx context.Context, id uint) (*model.ArticleCategory, error) {
	var category model.ArticleCategory
	err := r.DB.WithContext(ctx).First(&category, id).Error
	return &category, err
}

// FindByRef resolves a category by numeric id, slug or name.
func (r *ArticleCategoryRepository) FindByRef(ctx context.Context, ref string) (*model.ArticleCategory, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var category model.ArticleCategory
	err := r.DB.WithContext(ctx).
		Where("slug = ? OR LOWER(name) = ?", strings.ToLower(ref), strings.ToLower(ref)).
		First(&category).Error
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if id := parseID(ref); id != 0 {
		return r.FindByID(ctx, id)
	}
	return nil, err
}

func (r *ArticleCategoryRepository) NameExists(ctx context.Context, name string, excludeID uint) (bool, error) {
	var n int64
	q := r.DB.WithContext(ctx).Unscoped().Model(&model.ArticleCategory{}).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name)))
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *ArticleCategoryRepository) Create(ctx context.Context, category *model.ArticleCategory) error {
	return r.DB.WithContext(ctx).Create(category).Error
}

func (r *ArticleCategoryRepository) Update(ctx context.Context, category *model.ArticleCategory) error {
	return r.DB.WithContext(ctx).Save(category).Error
}

// Delete removes the row for good; the slug and name become free again.
func (r *ArticleCategoryRepository) Delete(ctx context.Context, id uint) error {
	res := r.DB.WithContext(ctx).Unscoped().Delete(&model.ArticleCategory{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
