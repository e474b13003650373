package controller

import (
	"exam_tracker_backend/internal/service"
	"exam_tracker_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MockTestController struct {
	MockTestService *service.MockTestService
}

func NewMockTestController(mockTestService *service.MockTestService) *MockTestController {
	return &MockTestController{MockTestService: mockTestService}
}

// List godoc
// @Summary List mock tests
// @Tags mock-tests
// @Produce json
// @Security ApiKeyAuth
// @Param category query string false "Exam category"
// @Param page query int false "Page"
// @Param limit query int false "Page size (max 50)"
// @Success 200 {object} util.Response{data=service.MockTestListResult}
// @Router /api/mock-tests [get]
func (c *MockTestController) List(ctx *gin.Context) {
	page, limit := util.PageParams(ctx.Query("page"), ctx.Query("limit"), 20, 50)
	result, err := c.MockTestService.List(ctx.Request.Context(), ctx.Query("category"), page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// Get godoc
// @Summary Get a mock test with its questions
// @Tags mock-tests
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Mock test ID"
// @Success 200 {object} util.Response{data=service.MockTestDetail}
// @Failure 404 {object} util.Response
// @Router /api/mock-tests/{id} [get]
func (c *MockTestController) Get(ctx *gin.Context) {
	detail, err := c.MockTestService.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// CreateManual godoc
// @Summary Create a mock test from picked questions (Admin only)
// @Tags admin-mock-tests
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.ManualMockTestRequest true "Test"
// @Success 201 {object} util.Response{data=service.MockTestDetail}
// @Failure 400 {object} util.Response
// @Router /api/admin/mock-tests/manual [post]
func (c *MockTestController) CreateManual(ctx *gin.Context) {
	var req service.ManualMockTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user := util.GetUserFromContext(ctx)
	detail, err := c.MockTestService.CreateManual(ctx.Request.Context(), req, user.UserID())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, detail)
}

// CreateAuto godoc
// @Summary Compose a mock test from subject weights (Admin only)
// @Description Weights are normalized to 100. Subjects without questions are skipped and reported in warnings.
// @Tags admin-mock-tests
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.AutoMockTestRequest true "Composition"
// @Success 201 {object} util.Response{data=service.MockTestDetail}
// @Failure 400 {object} util.Response
// @Router /api/admin/mock-tests/auto [post]
func (c *MockTestController) CreateAuto(ctx *gin.Context) {
	var req service.AutoMockTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	user := util.GetUserFromContext(ctx)
	detail, err := c.MockTestService.CreateAuto(ctx.Request.Context(), req, user.UserID())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, detail)
}

// Update godoc
// @Summary Edit a mock test (Admin only)
// @Description Header fields change when present; questions, when present, replace the whole list
// @Tags admin-mock-tests
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Mock test ID"
// @Param request body service.MockTestUpdate true "Changes"
// @Success 200 {object} util.Response{data=service.MockTestDetail}
// @Failure 404 {object} util.Response
// @Router /api/admin/mock-tests/{id} [put]
func (c *MockTestController) Update(ctx *gin.Context) {
	var req service.MockTestUpdate
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	detail, err := c.MockTestService.Update(ctx.Request.Context(), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// Delete godoc
// @Summary Delete a mock test (Admin only)
// @Tags admin-mock-tests
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Mock test ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/admin/mock-tests/{id} [delete]
func (c *MockTestController) Delete(ctx *gin.Context) {
	if err := c.MockTestService.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
