package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const CodeSuccess = 0

// Response 统一响应结构。失败时 code 与 HTTP 状态码一致，kind 是机器可读的错误类别
type Response struct {
	Code    int         `json:"code"`
	Kind    string      `json:"kind,omitempty"`
	Message string      `json:"message"`
	Field   string      `json:"field,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    status,
		Kind:    kind,
		Message: message,
	})
}

func FieldError(c *gin.Context, status int, kind, field, message string) {
	c.AbortWithStatusJSON(status, Response{
		Code:    status,
		Kind:    kind,
		Message: message,
		Field:   field,
	})
}

func ServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, "internal", "internal server error")
}
