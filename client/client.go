package client

import (
	"context"
	"encoding/json"
	"fmt"
)

// Client JSON-RPC 客户端接口
type Client interface {
	// Call 调用 JSON-RPC 方法，返回原始 result；result 为 null 时返回 nil
	Call(ctx context.Context, method string, params ...any) (json.RawMessage, error)

	// Endpoint 返回节点地址
	Endpoint() string

	// Close 关闭连接
	Close() error
}

// NewClient 创建新的客户端
func NewClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Protocol {
	case ProtocolHTTP, "":
		return NewHTTPClient(config)
	case ProtocolWebSocket:
		return NewWebSocketClient(config)
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", config.Protocol)
	}
}

// jsonRPCRequest JSON-RPC请求结构
type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// jsonRPCResponse JSON-RPC响应结构
type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
	ID      uint64          `json:"id"`
}

// jsonRPCError JSON-RPC错误结构
type jsonRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func newRequest(id uint64, method string, params []any) *jsonRPCRequest {
	if params == nil {
		params = []any{}
	}
	return &jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      id,
	}
}

// resultOf 把 JSON-RPC 响应转换为 result 或 *Error
func resultOf(method string, resp *jsonRPCResponse) (json.RawMessage, error) {
	if resp.Error != nil {
		return nil, NewRPCError(method, resp.Error.Code, resp.Error.Message, resp.Error.Data)
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil, nil
	}
	return resp.Result, nil
}
