package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error 客户端错误
type Error struct {
	Code    int
	Message string
	Err     error

	// HTTPStatus 非 200 响应的状态码
	HTTPStatus int
	// RPCCode / RPCData 节点返回的 JSON-RPC 错误
	RPCCode int
	RPCData json.RawMessage
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("client error [%d]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("client error [%d]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// 错误码定义
const (
	ErrCodeNetwork          = 1000 // 网络错误
	ErrCodeTimeout          = 1001 // 超时错误
	ErrCodeInvalidResponse  = 1002 // 无效响应
	ErrCodeRPCError         = 1003 // JSON-RPC错误
	ErrCodeNotSupported     = 1004 // 不支持的操作
	ErrCodeHTTPStatus       = 1005 // HTTP 状态码错误
	ErrCodeUnsupportedChain = 1006 // 未配置 RPC 的链
)

// NewNetworkError 创建网络错误
func NewNetworkError(err error) *Error {
	return &Error{
		Code:    ErrCodeNetwork,
		Message: "network error",
		Err:     err,
	}
}

// NewTimeoutError 创建超时错误
func NewTimeoutError() *Error {
	return &Error{
		Code:    ErrCodeTimeout,
		Message: "request timeout",
	}
}

// NewInvalidResponseError 创建无效响应错误
func NewInvalidResponseError(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidResponse,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewRPCError 创建JSON-RPC错误
func NewRPCError(method string, code int, message string, data json.RawMessage) *Error {
	return &Error{
		Code:    ErrCodeRPCError,
		Message: fmt.Sprintf("RPC error calling %s [%d]: %s", method, code, message),
		RPCCode: code,
		RPCData: data,
	}
}

// NewHTTPStatusError 创建 HTTP 状态码错误
func NewHTTPStatusError(status int, body string) *Error {
	return &Error{
		Code:       ErrCodeHTTPStatus,
		Message:    fmt.Sprintf("HTTP error: %d, body: %s", status, body),
		HTTPStatus: status,
	}
}

// NewUnsupportedChainError 创建链未配置错误
func NewUnsupportedChainError(chainID uint64) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedChain,
		Message: fmt.Sprintf("no RPC endpoint configured for chain %d", chainID),
	}
}

// NewNotSupportedError 创建不支持的操作错误
func NewNotSupportedError(operation string) *Error {
	return &Error{
		Code:    ErrCodeNotSupported,
		Message: fmt.Sprintf("operation not supported: %s", operation),
	}
}

// IsClientError 检查错误链中是否包含指定错误码的 *Error
func IsClientError(err error, code int) bool {
	var cliErr *Error
	return errors.As(err, &cliErr) && cliErr.Code == code
}
