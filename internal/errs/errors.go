package errs

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated 身份服务报告未登录（401），供路由守卫驱动重定向
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInactiveAccount 登录返回403，账号未激活
	ErrInactiveAccount = errors.New("account is not activated")
	// ErrMalformedPayload 身份数据缺少必要字段或格式错误
	ErrMalformedPayload = errors.New("malformed identity payload")
	// ErrRequestPending 同一登录尝试中已有请求在处理
	ErrRequestPending = errors.New("a request is already pending for this session")
	// ErrInvalidTransition 当前阶段不允许该操作
	ErrInvalidTransition = errors.New("operation not allowed in current login phase")
	// ErrChannelDisabled 所选二次验证渠道未启用
	ErrChannelDisabled = errors.New("second factor channel is not enabled")
	// ErrUnknownProvider 不支持的第三方登录提供方
	ErrUnknownProvider = errors.New("unknown oauth provider")
)

// DefaultServerMessage 服务端未给出错误信息时使用
const DefaultServerMessage = "An error occurred"

// NetworkError 网络错误（传输失败、取消或超时）
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: request timed out", e.Op)
	}
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerError 非2xx响应，Message 原样展示给用户
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// Is 401 视为未登录，403 视为账号未激活
func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized
	case ErrInactiveAccount:
		return e.Status == http.StatusForbidden
	}
	return false
}

// ValidationError 本地表单校验错误，按字段报告
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError 创建单字段校验错误
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsNetwork 判断是否为网络错误
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsTimeout 判断是否为超时
func IsTimeout(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Timeout
}

// Message 返回可以直接展示给用户的错误信息
func Message(err error) string {
	var se *ServerError
	if errors.As(err, &se) {
		return se.Message
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		if ne.Timeout {
			return "The server took too long to respond"
		}
		return "Unable to reach the server"
	}
	return err.Error()
}
