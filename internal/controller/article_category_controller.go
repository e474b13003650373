package controller

import (
	"exam_tracker_backend/internal/service"
	"exam_tracker_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ArticleCategoryController struct {
	CategoryService *service.ArticleCategoryService
}

func NewArticleCategoryController(categoryService *service.ArticleCategoryService) *ArticleCategoryController {
	return &ArticleCategoryController{CategoryService: categoryService}
}

// List godoc
// @Summary List article categories
// @Tags articles
// @Produce json
// @Success 200 {object} util.Response{data=[]model.ArticleCategory}
// @Router /api/article-categories [get]
func (c *ArticleCategoryController) List(ctx *gin.Context) {
	categories, err := c.CategoryService.List(ctx.Request.Context())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, categories)
}

// Create godoc
// @Summary Create a category (Admin only)
// @Tags admin-articles
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.CategoryInput true "Category"
// @Success 201 {object} util.Response{data=model.ArticleCategory}
// @Failure 409 {object} util.Response
// @Router /api/admin/article-categories [post]
func (c *ArticleCategoryController) Create(ctx *gin.Context) {
	var in service.CategoryInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	category, err := c.CategoryService.Create(ctx.Request.Context(), in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, category)
}

// Update godoc
// @Summary Update a category (Admin only)
// @Tags admin-articles
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Category ID"
// @Param request body service.CategoryInput true "Category"
// @Success 200 {object} util.Response{data=model.ArticleCategory}
// @Router /api/admin/article-categories/{id} [put]
func (c *ArticleCategoryController) Update(ctx *gin.Context) {
	var in service.CategoryInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	category, err := c.CategoryService.Update(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")), in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, category)
}

// Delete godoc
// @Summary Delete a category (Admin only)
// @Description Refused with 409 while articles use the category
// @Tags admin-articles
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Category ID"
// @Success 200 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/admin/article-categories/{id} [delete]
func (c *ArticleCategoryController) Delete(ctx *gin.Context) {
	if err := c.CategoryService.Delete(ctx.Request.Context(), util.MustParseUint(ctx.Param("id"))); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
