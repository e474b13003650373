package controller

import (
	"exam_tracker_backend/internal/model"
	"exam_tracker_backend/internal/service"
	"exam_tracker_backend/internal/util"
	"exam_tracker_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ProgressController struct {
	ProgressService *service.ProgressService
	Buffer          *service.ProgressBuffer
}

func NewProgressController(progressService *service.ProgressService, buffer *service.ProgressBuffer) *ProgressController {
	return &ProgressController{ProgressService: progressService, Buffer: buffer}
}

// flushUser writes the caller's buffered answers so reads see them.
func (c *ProgressController) flushUser(ctx *gin.Context, userID string) {
	if err := c.Buffer.FlushUser(ctx.Request.Context(), userID); err != nil {
		logger.Log.Warn("Flush before read failed", zap.String("user", userID), zap.Error(err))
	}
}

// RecordAnswer godoc
// @Summary Record an answered question
// @Description Buffers the answer and writes it after a short idle delay. With flush=true the caller's pending answers are written immediately and the stored record is returned.
// @Tags progress
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.AnswerEvent true "Answer"
// @Success 200 {object} util.Response{data=model.ProgressRecord} "Written"
// @Success 202 {object} util.Response "Queued"
// @Failure 400 {object} util.Response
// @Failure 401 {object} util.Response
// @Router /api/progress/answer [post]
func (c *ProgressController) RecordAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	var ev service.AnswerEvent
	if err := ctx.ShouldBindJSON(&ev); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	ev.UserID = user.UserID()

	if err := c.Buffer.Enqueue(ev); err != nil {
		util.HandleError(ctx, err)
		return
	}

	if !ev.Flush {
		ctx.JSON(http.StatusAccepted, util.Response{
			Code:    http.StatusAccepted,
			Message: "queued",
			Data:    gin.H{"pending": c.Buffer.Pending()},
		})
		return
	}

	if err := c.Buffer.FlushUser(ctx.Request.Context(), ev.UserID); err != nil {
		util.HandleError(ctx, err)
		return
	}
	rec, err := c.ProgressService.Record(ctx.Request.Context(), ev.Key())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, rec)
}

// Sync godoc
// @Summary Merge a client-side progress record
// @Description Unions the uploaded completed and correct sets into the stored record. Newly correct questions earn the points of their stored difficulty.
// @Tags progress
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.SyncRequest true "Local record"
// @Success 200 {object} util.Response{data=model.ProgressRecord}
// @Failure 400 {object} util.Response
// @Router /api/progress/sync [post]
func (c *ProgressController) Sync(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	var req service.SyncRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	c.flushUser(ctx, user.UserID())
	rec, err := c.ProgressService.Sync(ctx.Request.Context(), user.UserID(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, rec)
}

// Flush godoc
// @Summary Flush buffered answers
// @Description Called on page unload. The token may be passed as a query parameter.
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /api/progress/flush [post]
func (c *ProgressController) Flush(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if err := c.Buffer.FlushUser(ctx.Request.Context(), user.UserID()); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"flushed": true})
}

// Record godoc
// @Summary Get one topic record
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param area query string true "Area (exam category)"
// @Param topic query string true "Topic"
// @Success 200 {object} util.Response{data=model.ProgressRecord}
// @Router /api/progress/record [get]
func (c *ProgressController) Record(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	key := model.ProgressKey{UserID: user.UserID(), Area: ctx.Query("area"), Topic: ctx.Query("topic")}
	if key.Area == "" || key.Topic == "" {
		util.BadRequest(ctx, "area and topic are required")
		return
	}
	c.flushUser(ctx, key.UserID)
	rec, err := c.ProgressService.Record(ctx.Request.Context(), key)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, rec)
}

// ChapterSummary godoc
// @Summary Chapter progress
// @Description Unions the records of the chapter's topics. Failures produce a zero summary with a warning, never an error status.
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param area query string true "Area (exam category)"
// @Param chapter query string true "Chapter"
// @Param topics query string false "Comma separated topics; looked up when omitted"
// @Success 200 {object} util.Response{data=model.ProgressSummary}
// @Router /api/progress/chapter [get]
func (c *ProgressController) ChapterSummary(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	area, chapter := ctx.Query("area"), ctx.Query("chapter")
	if area == "" || chapter == "" {
		util.BadRequest(ctx, "area and chapter are required")
		return
	}
	c.flushUser(ctx, user.UserID())
	summary := c.ProgressService.ChapterSummary(ctx.Request.Context(), user.UserID(), area, chapter, util.SplitList(ctx.Query("topics")))
	util.Success(ctx, summary)
}

// SubjectSummary godoc
// @Summary Subject progress
// @Description Per-chapter summaries of a subject plus their total
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Param area query string true "Area (exam category)"
// @Param subject query string true "Subject"
// @Success 200 {object} util.Response{data=model.SubjectProgress}
// @Router /api/progress/subject [get]
func (c *ProgressController) SubjectSummary(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	area, subject := ctx.Query("area"), ctx.Query("subject")
	if area == "" || subject == "" {
		util.BadRequest(ctx, "area and subject are required")
		return
	}
	c.flushUser(ctx, user.UserID())
	util.Success(ctx, c.ProgressService.SubjectSummary(ctx.Request.Context(), user.UserID(), area, subject))
}

// Dashboard godoc
// @Summary Progress dashboard
// @Description Totals per area over all of the caller's records
// @Tags progress
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.AreaProgress}
// @Router /api/progress/dashboard [get]
func (c *ProgressController) Dashboard(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	c.flushUser(ctx, user.UserID())
	areas, err := c.ProgressService.Dashboard(ctx.Request.Context(), user.UserID())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, areas)
}
