package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"panel/internal/errs"
)

// Response 通用API响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// Success 返回成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "ok",
		Data:    data,
	})
}

// Error 返回错误响应
func Error(c *gin.Context, code int, message string, detail interface{}) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Error:   detail,
	})
}

// StatusOf 错误对应的HTTP状态码
func StatusOf(err error) int {
	var verr *errs.ValidationError
	var serr *errs.ServerError
	var nerr *errs.NetworkError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrRequestPending), errors.Is(err, errs.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errs.ErrChannelDisabled), errors.Is(err, errs.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrInactiveAccount):
		return http.StatusForbidden
	case errors.As(err, &nerr):
		if nerr.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	case errors.As(err, &serr):
		if serr.Status >= 400 && serr.Status < 500 {
			return serr.Status
		}
		return http.StatusBadGateway
	case errors.Is(err, errs.ErrMalformedPayload):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Fail 按错误类型返回错误响应；校验错误附带字段详情
func Fail(c *gin.Context, err error) {
	status := StatusOf(err)

	var verr *errs.ValidationError
	if errors.As(err, &verr) {
		Error(c, status, "validation failed", verr.Fields)
		return
	}
	if status == http.StatusInternalServerError {
		Error(c, status, "internal error", nil)
		return
	}
	Error(c, status, errs.Message(err), nil)
}
