package controller

import (
	"exam_tracker_backend/internal/service"
	"exam_tracker_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ArticleGenerationController struct {
	GenerationService *service.ArticleGenerationService
}

func NewArticleGenerationController(generationService *service.ArticleGenerationService) *ArticleGenerationController {
	return &ArticleGenerationController{GenerationService: generationService}
}

type HeadlineRequest struct {
	Headline string `json:"headline" binding:"required"`
}

type DraftRequest struct {
	Headline string `json:"headline" binding:"required"`
	Notes    string `json:"notes" binding:"required"`
}

type GenerateRequest struct {
	Headline string   `json:"headline" binding:"required"`
	Category string   `json:"category" binding:"required"`
	Tags     []string `json:"tags"`
}

// SearchFacts godoc
// @Summary Research a headline (Admin only)
// @Description Asks a search-augmented model for factual notes. Fails with 422 when too little material is found.
// @Tags admin-generation
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body HeadlineRequest true "Headline"
// @Success 200 {object} util.Response{data=service.FactNotes}
// @Failure 422 {object} util.Response
// @Failure 429 {object} util.Response
// @Failure 504 {object} util.Response
// @Router /api/admin/articles/generate/facts [post]
func (c *ArticleGenerationController) SearchFacts(ctx *gin.Context) {
	var req HeadlineRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	notes, err := c.GenerationService.SearchFacts(ctx.Request.Context(), req.Headline)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, notes)
}

// Draft godoc
// @Summary Draft an article from notes (Admin only)
// @Description Writes a draft and expands it until it reaches the minimum length or the expansion limit. A draft that stays too short fails with 422.
// @Tags admin-generation
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body DraftRequest true "Headline and notes"
// @Success 200 {object} util.Response{data=service.ArticleDraft}
// @Failure 422 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/admin/articles/generate/draft [post]
func (c *ArticleGenerationController) Draft(ctx *gin.Context) {
	var req DraftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	draft, err := c.GenerationService.Draft(ctx.Request.Context(), req.Headline, req.Notes)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, draft)
}

// Persist godoc
// @Summary Save a draft as an article (Admin only)
// @Tags admin-generation
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.PersistRequest true "Draft"
// @Success 201 {object} util.Response{data=model.Article}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/admin/articles/generate/persist [post]
func (c *ArticleGenerationController) Persist(ctx *gin.Context) {
	var req service.PersistRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user := util.GetUserFromContext(ctx)
	article, err := c.GenerationService.Persist(ctx.Request.Context(), req, user.UserID())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, article)
}

// Generate godoc
// @Summary Research, draft and save in one call (Admin only)
// @Tags admin-generation
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body GenerateRequest true "Headline and category"
// @Success 201 {object} util.Response{data=model.Article}
// @Failure 409 {object} util.Response
// @Failure 422 {object} util.Response
// @Failure 504 {object} util.Response
// @Router /api/admin/articles/generate [post]
func (c *ArticleGenerationController) Generate(ctx *gin.Context) {
	var req GenerateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user := util.GetUserFromContext(ctx)
	article, err := c.GenerationService.Generate(ctx.Request.Context(), req.Headline, req.Category, req.Tags, user.UserID())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, article)
}
