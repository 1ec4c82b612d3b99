package types

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ProblemDetails Problem Details 结构（基于 RFC7807 + 扩展字段）
// 供外部 Web 层序列化错误响应使用
type ProblemDetails struct {
	// RFC7807 标准字段
	Type     string `json:"type,omitempty"`
	Title    string `json:"title,omitempty"`
	Status   *int   `json:"status,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// 扩展字段（必填）
	Code        string                 `json:"code"`
	Layer       string                 `json:"layer"`
	UserMessage string                 `json:"userMessage"`
	Details     map[string]interface{} `json:"details,omitempty"`
	TraceID     string                 `json:"traceId"`
	Timestamp   string                 `json:"timestamp"`
}

// ServiceError 核心错误类型
//
// 四类错误全部直接上抛给编排层调用方，核心内部不做重试：
//   - ENCODING_ERROR：ABI 参数非法，调用方需修正输入
//   - NOT_FOUND：实体不存在或不属于调用方项目
//   - CONTRACT_NOT_YET_DEPLOYED：合约标识可解析但尚无链上地址，稍后重试
//   - ATTACHMENT_ERROR：附加签名时目标行已消失，可重试整个流程
//
// 签名不匹配不是错误，而是 FAILED 状态。
type ServiceError struct {
	Code        string
	Layer       string
	UserMessage string
	Detail      string
	Status      *int
	Details     map[string]interface{}
	TraceID     string
	Timestamp   string
}

func (e *ServiceError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.UserMessage, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.UserMessage)
}

// Is 按错误码匹配，使 errors.Is(err, types.ErrNotFound) 可用
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ToProblemDetails 转换为 Problem Details
func (e *ServiceError) ToProblemDetails() *ProblemDetails {
	return &ProblemDetails{
		Code:        e.Code,
		Layer:       e.Layer,
		UserMessage: e.UserMessage,
		Detail:      e.Detail,
		Status:      e.Status,
		Details:     e.Details,
		TraceID:     e.TraceID,
		Timestamp:   e.Timestamp,
	}
}

// NewServiceErrorFromProblemDetails 从 Problem Details 还原 ServiceError
func NewServiceErrorFromProblemDetails(pd *ProblemDetails) *ServiceError {
	return &ServiceError{
		Code:        pd.Code,
		Layer:       pd.Layer,
		UserMessage: pd.UserMessage,
		Detail:      pd.Detail,
		Status:      pd.Status,
		Details:     pd.Details,
		TraceID:     pd.TraceID,
		Timestamp:   pd.Timestamp,
	}
}

// IsServiceError 检查错误链中是否包含 ServiceError
func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// Layer 常量
const (
	LayerRequestCore = "blockchain-request-core"
)

// ErrorCode 错误码常量
const (
	ErrorCodeEncoding        = "ENCODING_ERROR"
	ErrorCodeNotFound        = "NOT_FOUND"
	ErrorCodeNotYetDeployed  = "CONTRACT_NOT_YET_DEPLOYED"
	ErrorCodeAttachment      = "ATTACHMENT_ERROR"
	ErrorCodeInternal        = "COMMON_INTERNAL_ERROR"
	ErrorCodeValidationError = "COMMON_VALIDATION_ERROR"
)

// 哨兵错误，仅用于 errors.Is 比较
var (
	ErrEncoding       = &ServiceError{Code: ErrorCodeEncoding}
	ErrNotFound       = &ServiceError{Code: ErrorCodeNotFound}
	ErrNotYetDeployed = &ServiceError{Code: ErrorCodeNotYetDeployed}
	ErrAttachment     = &ServiceError{Code: ErrorCodeAttachment}
	ErrValidation     = &ServiceError{Code: ErrorCodeValidationError}
)

// NewServiceError 创建带 traceId 和时间戳的 ServiceError
func NewServiceError(
	code string,
	userMessage string,
	detail string,
	status int,
	details map[string]interface{},
) *ServiceError {
	if details == nil {
		details = make(map[string]interface{})
	}

	return &ServiceError{
		Code:        code,
		Layer:       LayerRequestCore,
		UserMessage: userMessage,
		Detail:      detail,
		Status:      &status,
		Details:     details,
		TraceID:     uuid.New().String(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

// NewEncodingError ABI 编码错误
func NewEncodingError(format string, args ...interface{}) *ServiceError {
	return NewServiceError(
		ErrorCodeEncoding,
		"invalid function arguments",
		fmt.Sprintf(format, args...),
		http.StatusBadRequest,
		nil,
	)
}

// NewNotFoundError 资源不存在错误
func NewNotFoundError(format string, args ...interface{}) *ServiceError {
	return NewServiceError(
		ErrorCodeNotFound,
		"resource not found",
		fmt.Sprintf(format, args...),
		http.StatusNotFound,
		nil,
	)
}

// NewNotYetDeployedError 合约尚未部署错误
func NewNotYetDeployedError(id uuid.UUID, alias string) *ServiceError {
	return NewServiceError(
		ErrorCodeNotYetDeployed,
		"contract is not yet deployed",
		fmt.Sprintf("contract with ID: %s and alias: %s is not yet deployed", id, alias),
		http.StatusBadRequest,
		map[string]interface{}{
			"id":    id.String(),
			"alias": alias,
		},
	)
}

// NewAttachmentError 签名附加冲突错误
func NewAttachmentError(format string, args ...interface{}) *ServiceError {
	return NewServiceError(
		ErrorCodeAttachment,
		"unable to attach signed message",
		fmt.Sprintf(format, args...),
		http.StatusBadRequest,
		nil,
	)
}

// NewValidationError 输入校验错误（签名格式等）
func NewValidationError(format string, args ...interface{}) *ServiceError {
	return NewServiceError(
		ErrorCodeValidationError,
		"invalid request",
		fmt.Sprintf(format, args...),
		http.StatusBadRequest,
		nil,
	)
}
