package service

import (
	"context"
	"errors"
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/repository"
	"exam_tracker_backend/internal/util"
	"strings"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

type CategoryInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type ArticleCategoryService struct {
	Repo     *repository.ArticleCategoryRepository
	Articles *repository.ArticleRepository
}

func NewArticleCategoryService(repo *repository.ArticleCategoryRepository, articles *repository.ArticleRepository) *ArticleCategoryService {
	return &ArticleCategoryService{Repo: repo, Articles: articles}
}

func (s *ArticleCategoryService) List(ctx context.Context) ([]model.ArticleCategory, error) {
	categories, err := s.Repo.List(ctx)
	if err != nil {
		return nil, util.Persistence("list categories", err)
	}
	return categories, nil
}

func (s *ArticleCategoryService) Create(ctx context.Context, in CategoryInput) (*model.ArticleCategory, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, util.Validation("category name is required")
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	category := &model.ArticleCategory{
		Name:        name,
		Slug:        slug.Make(name),
		Description: strings.TrimSpace(in.Description),
	}
	if err := s.Repo.Create(ctx, category); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.Conflict("a category with this name already exists")
		}
		return nil, util.Persistence("create category", err)
	}
	return category, nil
}

func (s *ArticleCategoryService) Update(ctx context.Context, id uint, in CategoryInput) (*model.ArticleCategory, error) {
	category, err := s.Repo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrCategoryNotFound
	}
	if err != nil {
		return nil, util.Persistence("load category", err)
	}

	if name := strings.TrimSpace(in.Name); name != "" && name != category.Name {
		if err := s.ensureNameFree(ctx, name, id); err != nil {
			return nil, err
		}
		category.Name = name
		category.Slug = slug.Make(name)
	}
	category.Description = strings.TrimSpace(in.Description)

	if err := s.Repo.Update(ctx, category); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, util.Conflict("a category with this name already exists")
		}
		return nil, util.Persistence("update category", err)
	}
	return category, nil
}

// Delete refuses to remove a category that articles still point at.
func (s *ArticleCategoryService) Delete(ctx context.Context, id uint) error {
	n, err := s.Articles.CountByCategory(ctx, id)
	if err != nil {
		return util.Persistence("count category articles", err)
	}
	if n > 0 {
		return util.ErrCategoryInUse
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrCategoryNotFound
		}
		return util.Persistence("delete category", err)
	}
	return nil
}

func (s *ArticleCategoryService) ensureNameFree(ctx context.Context, name string, excludeID uint) error {
	taken, err := s.Repo.NameExists(ctx, name, excludeID)
	if err != nil {
		return util.Persistence("check category name", err)
	}
	if taken {
		return util.Conflict("a category with this name already exists")
	}
	return nil
}
