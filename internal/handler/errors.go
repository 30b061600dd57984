package handler

import (
	"errors"
	"net/http"

	"agrimarket/internal/service"
	"agrimarket/internal/validation"
	"agrimarket/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var kindStatus = map[service.Kind]int{
	service.KindNotFound:            http.StatusNotFound,
	service.KindForbidden:           http.StatusForbidden,
	service.KindValidation:          http.StatusBadRequest,
	service.KindIllegalTransition:   http.StatusBadRequest,
	service.KindInvalidState:        http.StatusBadRequest,
	service.KindInsufficientStock:   http.StatusBadRequest,
	service.KindInsufficientBalance: http.StatusConflict,
	service.KindInsufficientEscrow:  http.StatusConflict,
	service.KindConflict:            http.StatusConflict,
}

// writeError 业务错误按类别映射状态码；其他错误只记日志，不把内部细节返回给调用方
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *validation.Error
	if errors.As(err, &verr) {
		response.FieldError(c, http.StatusBadRequest, string(service.KindValidation), verr.Field, verr.Message)
		return
	}

	var serr *service.Error
	if errors.As(err, &serr) {
		status, ok := kindStatus[serr.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		response.FieldError(c, status, string(serr.Kind), serr.Field, serr.Message)
		return
	}

	logger.Error("请求处理失败",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	response.ServerError(c)
}
