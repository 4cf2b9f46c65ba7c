package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                   = 0
	CodeBadRequest           = 40000
	CodeInvalidDocument      = 40001
	CodeDocumentTooLarge     = 41300
	CodeUnauthorized         = 40100
	CodeConversationNotFound = 40401
	CodeRequestFailed        = 42200
	CodeInternalServer       = 50000
	CodeWorkerUnavailable    = 50300
	CodeTimeout              = 50400
)

type APIResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func OK(c *gin.Context, data any) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.AbortWithStatusJSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
