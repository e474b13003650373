package controller

import (
	"exam_tracker_backend/internal/service"
	"exam_tracker_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TestBankController struct {
	TestBankService *service.TestBankService
}

func NewTestBankController(testBankService *service.TestBankService) *TestBankController {
	return &TestBankController{TestBankService: testBankService}
}

// Questions godoc
// @Summary Proxy test bank questions
// @Description Forwards to the external test bank and returns only replies that validate
// @Tags proxy
// @Produce json
// @Security ApiKeyAuth
// @Param subject query string false "Subject"
// @Param topic query string false "Topic"
// @Param difficulty query string false "Difficulty"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} util.Response{data=[]service.TestBankQuestion}
// @Failure 502 {object} util.Response
// @Router /api/proxy/testbank/questions [get]
func (c *TestBankController) Questions(ctx *gin.Context) {
	var q service.TestBankQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	questions, err := c.TestBankService.Questions(ctx.Request.Context(), q)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, questions)
}

// Solution godoc
// @Summary Proxy a test bank solution
// @Tags proxy
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Question ID"
// @Success 200 {object} util.Response{data=service.TestBankSolution}
// @Failure 404 {object} util.Response
// @Failure 502 {object} util.Response
// @Router /api/proxy/testbank/solutions/{id} [get]
func (c *TestBankController) Solution(ctx *gin.Context) {
	solution, err := c.TestBankService.Solution(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, solution)
}
