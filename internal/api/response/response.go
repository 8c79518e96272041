// Package response 统一 HTTP 响应格式：{success, message, data, errors}。
package response

import (
	"log/slog"
	"net/http"

	"tasktracker/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// Envelope 是所有接口的响应结构。
type Envelope struct {
	Success bool               `json:"success"`
	Message string             `json:"message,omitempty"`
	Data    any                `json:"data,omitempty"`
	Errors  []apperr.Violation `json:"errors,omitempty"`
}

// Messages 覆盖各错误类别的默认提示。
type Messages struct {
	NotFound string
	Conflict string
	Internal string
}

const (
	msgValidation      = "Validation failed"
	msgUnauthenticated = "Not authorized"
	msgNotFound        = "Resource not found"
	msgConflict        = "Resource already exists"
	msgInternal        = "Internal server error"
)

// OK 写入成功响应。
func OK(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// Fail 写入失败响应。
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Message: message})
}

// AbortFail 写入失败响应并中止后续处理。
func AbortFail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message})
}

// Error 按错误类别写入响应。内部错误只记录日志，不向调用方暴露细节。
func Error(c *gin.Context, logger *slog.Logger, err error, msgs Messages) {
	switch status := StatusOf(err); status {
	case http.StatusBadRequest:
		c.JSON(status, Envelope{
			Success: false,
			Message: msgValidation,
			Errors:  apperr.Violations(err),
		})
	case http.StatusUnauthorized:
		Fail(c, status, msgUnauthenticated)
	case http.StatusNotFound:
		Fail(c, status, orDefault(msgs.NotFound, msgNotFound))
	case http.StatusConflict:
		Fail(c, status, orDefault(msgs.Conflict, msgConflict))
	default:
		if logger != nil {
			logger.Error("request failed",
				slog.String("method", c.Request.Method),
				slog.String("path", c.FullPath()),
				slog.String("error", err.Error()),
			)
		}
		Fail(c, status, orDefault(msgs.Internal, msgInternal))
	}
}

// StatusOf 返回 err 对应的 HTTP 状态码。
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
