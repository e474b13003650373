package controller

import (
	"exam_tracker_backend/internal/service"
	"exam_tracker_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	QuestionService *service.QuestionService
}

func NewQuestionController(questionService *service.QuestionService) *QuestionController {
	return &QuestionController{QuestionService: questionService}
}

// ListQuestions godoc
// @Summary List practice questions
// @Description One page of questions filtered by category, subject, chapter, topic and difficulty. Pages hold 20 questions; hasMore is true when the page is full.
// @Tags questions
// @Produce json
// @Param category query string false "Exam category, e.g. GATE-CSE"
// @Param subject query string false "Subject"
// @Param chapter query string false "Chapter"
// @Param topic query string false "Topic"
// @Param difficulty query string false "Difficulty" Enums(easy, medium, hard)
// @Param page query int false "Page number, 1-based"
// @Success 200 {object} util.Response{data=model.QuestionPage}
// @Failure 400 {object} util.Response
// @Router /api/questions [get]
func (c *QuestionController) ListQuestions(ctx *gin.Context) {
	var q service.QuestionQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	page, err := c.QuestionService.ListQuestions(ctx.Request.Context(), q)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, page)
}

// Counts godoc
// @Summary Question counts by difficulty
// @Description Returns easy, medium and hard totals for a category and chapter
// @Tags questions
// @Produce json
// @Param category query string true "Exam category"
// @Param chapter query string true "Chapter"
// @Param difficulty query string false "Only count this difficulty" Enums(easy, medium, hard)
// @Success 200 {object} util.Response{data=model.DifficultyCounts}
// @Failure 400 {object} util.Response
// @Router /api/questions/counts [get]
func (c *QuestionController) Counts(ctx *gin.Context) {
	category := ctx.Query("category")
	chapter := ctx.Query("chapter")
	if category == "" || chapter == "" {
		util.BadRequest(ctx, "category and chapter are required")
		return
	}
	counts, err := c.QuestionService.Counts(ctx.Request.Context(), category, chapter, ctx.Query("difficulty"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, counts)
}

// Subjects godoc
// @Summary List subjects
// @Tags questions
// @Produce json
// @Param category query string true "Exam category"
// @Success 200 {object} util.Response{data=[]string}
// @Router /api/subjects [get]
func (c *QuestionController) Subjects(ctx *gin.Context) {
	category := ctx.Query("category")
	if category == "" {
		util.BadRequest(ctx, "category is required")
		return
	}
	subjects, err := c.QuestionService.Subjects(ctx.Request.Context(), category)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, subjects)
}

// Chapters godoc
// @Summary List chapters of a subject
// @Tags questions
// @Produce json
// @Param category query string false "Exam category"
// @Param subject query string true "Subject"
// @Success 200 {object} util.Response{data=[]string}
// @Router /api/chapters [get]
func (c *QuestionController) Chapters(ctx *gin.Context) {
	chapters, err := c.QuestionService.Chapters(ctx.Request.Context(), ctx.Query("category"), ctx.Query("subject"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, chapters)
}

// Topics godoc
// @Summary List topics of a chapter
// @Tags questions
// @Produce json
// @Param category query string false "Exam category"
// @Param chapter query string true "Chapter"
// @Success 200 {object} util.Response{data=[]string}
// @Router /api/topics [get]
func (c *QuestionController) Topics(ctx *gin.Context) {
	topics, err := c.QuestionService.Topics(ctx.Request.Context(), ctx.Query("category"), ctx.Query("chapter"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, topics)
}
