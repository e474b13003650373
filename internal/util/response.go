package util

import (
	"exam_tracker_backend/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Kind    ErrorKind   `json:"kind,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    http.StatusCreated,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
	})
}

func Unauthorized(c *gin.Context) {
	Error(c, http.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, "Forbidden")
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, message)
}

func NotFound(c *gin.Context) {
	Error(c, http.StatusNotFound, "Resource not found")
}

func InternalServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "Internal server error")
}

// HandleError writes err using the status of its kind. Internal and persistence
// errors are logged and their details are not sent to the client.
func HandleError(c *gin.Context, err error) {
	kind := KindOf(err)
	status := StatusFor(kind)

	message := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusGatewayTimeout {
		logger.Log.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(kind)),
			zap.Error(err))
		message = "Internal server error"
	} else if status >= http.StatusBadGateway {
		logger.Log.Warn("upstream failure",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(kind)),
			zap.Error(err))
	}

	c.JSON(status, Response{
		Code:    status,
		Message: message,
		Kind:    kind,
	})
}
