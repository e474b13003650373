package controller

import (
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/repository"
	"exam_tracker_backend/internal/service"
	"exam_tracker_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const maxImageBytes = 5 << 20

type ArticleController struct {
	ArticleService *service.ArticleService
}

func NewArticleController(articleService *service.ArticleService) *ArticleController {
	return &ArticleController{ArticleService: articleService}
}

func articleFilter(ctx *gin.Context) repository.ArticleFilter {
	return repository.ArticleFilter{
		CategoryID:   util.MustParseUint(ctx.Query("categoryId")),
		CategorySlug: ctx.Query("category"),
		Tag:          ctx.Query("tag"),
		Search:       ctx.Query("q"),
	}
}

// ListPublished godoc
// @Summary List published articles
// @Tags articles
// @Produce json
// @Param category query string false "Category slug"
// @Param tag query string false "Tag"
// @Param q query string false "Search in title and excerpt"
// @Param page query int false "Page"
// @Param limit query int false "Page size (max 50)"
// @Success 200 {object} util.Response{data=service.ArticleListResult}
// @Router /api/articles [get]
func (c *ArticleController) ListPublished(ctx *gin.Context) {
	page, limit := util.PageParams(ctx.Query("page"), ctx.Query("limit"), 10, 50)
	f := articleFilter(ctx)
	f.Status = model.ArticlePublished

	result, err := c.ArticleService.List(ctx.Request.Context(), f, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetBySlug godoc
// @Summary Read a published article
// @Description Also counts the view
// @Tags articles
// @Produce json
// @Param slug path string true "Article slug"
// @Success 200 {object} util.Response{data=model.Article}
// @Failure 404 {object} util.Response
// @Router /api/articles/{slug} [get]
func (c *ArticleController) GetBySlug(ctx *gin.Context) {
	article, err := c.ArticleService.GetPublished(ctx.Request.Context(), ctx.Param("slug"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, article)
}

// AdminList godoc
// @Summary List articles in any status (Admin only)
// @Tags admin-articles
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "Status" Enums(draft, published, archived)
// @Param category query string false "Category slug"
// @Param page query int false "Page"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} util.Response{data=service.ArticleListResult}
// @Router /api/admin/articles [get]
func (c *ArticleController) AdminList(ctx *gin.Context) {
	page, limit := util.PageParams(ctx.Query("page"), ctx.Query("limit"), 20, 100)
	f := articleFilter(ctx)
	f.Status = model.ArticleStatus(ctx.Query("status"))

	result, err := c.ArticleService.List(ctx.Request.Context(), f, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// AdminGet godoc
// @Summary Get an article by id (Admin only)
// @Tags admin-articles
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Article ID"
// @Success 200 {object} util.Response{data=model.Article}
// @Failure 404 {object} util.Response
// @Router /api/admin/articles/{id} [get]
func (c *ArticleController) AdminGet(ctx *gin.Context) {
	article, err := c.ArticleService.GetByID(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, article)
}

// Create godoc
// @Summary Create an article (Admin only)
// @Description Content may be markdown or HTML and is stored sanitized. Titles are unique regardless of case.
// @Tags admin-articles
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.ArticleInput true "Article"
// @Success 201 {object} util.Response{data=model.Article}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/admin/articles [post]
func (c *ArticleController) Create(ctx *gin.Context) {
	var in service.ArticleInput
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user := util.GetUserFromContext(ctx)
	article, err := c.ArticleService.Create(ctx.Request.Context(), in, user.UserID())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, article)
}

// Update godoc
// @Summary Update an article (Admin only)
// @Description Only the fields present in the body change
// @Tags admin-articles
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Article ID"
// @Param request body service.ArticleUpdate true "Changes"
// @Success 200 {object} util.Response{data=model.Article}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/admin/articles/{id} [put]
func (c *ArticleController) Update(ctx *gin.Context) {
	var in service.ArticleUpdate
	if err := ctx.ShouldBindJSON(&in); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	article, err := c.ArticleService.Update(ctx.Request.Context(), util.MustParseUint(ctx.Param("id")), in)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, article)
}

// Delete godoc
// @Summary Delete an article (Admin only)
// @Description Soft delete
// @Tags admin-articles
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "Article ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/admin/articles/{id} [delete]
func (c *ArticleController) Delete(ctx *gin.Context) {
	if err := c.ArticleService.Delete(ctx.Request.Context(), util.MustParseUint(ctx.Param("id"))); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// UploadImage godoc
// @Summary Upload a featured image (Admin only)
// @Description Stores the image and, when articleId is given, sets it as that article's featured image
// @Tags admin-articles
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "Image (png, jpg, jpeg, webp; max 5MB)"
// @Param articleId formData int false "Article to update"
// @Success 201 {object} util.Response{data=object}
// @Failure 400 {object} util.Response
// @Router /api/admin/articles/images [post]
func (c *ArticleController) UploadImage(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "File is required")
		return
	}
	if file.Size > maxImageBytes {
		util.BadRequest(ctx, "Image must be 5MB or smaller")
		return
	}
	src, err := file.Open()
	if err != nil {
		util.BadRequest(ctx, "File could not be read")
		return
	}
	defer src.Close()

	url, err := c.ArticleService.UploadImage(ctx.Request.Context(),
		util.MustParseUint(ctx.PostForm("articleId")),
		file.Filename, src, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, gin.H{"url": url})
}
