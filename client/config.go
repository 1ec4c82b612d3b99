package client

import (
	"time"

	"github.com/weisyn/blockchain-request-go/logger"
)

// Config 客户端配置
type Config struct {
	// Endpoint 节点端点地址
	Endpoint string

	// Protocol 协议类型
	Protocol Protocol

	// Timeout 单次请求超时时间（秒）
	Timeout int

	// Retry 重试配置，nil 时使用默认配置
	Retry *RetryConfig

	// TLS 配置
	TLS *TLSConfig

	// Headers 附加 HTTP 头（如节点服务商的 API key）
	Headers map[string]string

	// 调试模式：记录请求与响应正文
	Debug bool

	// 日志器（可选）
	Logger logger.Logger
}

// Protocol 协议类型
type Protocol string

const (
	ProtocolHTTP      Protocol = "http"
	ProtocolWebSocket Protocol = "websocket"
)

// TLSConfig TLS 配置
type TLSConfig struct {
	Insecure bool // 跳过 TLS 验证（仅用于开发）
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Endpoint: "http://localhost:8545",
		Protocol: ProtocolHTTP,
		Timeout:  30,
		Debug:    false,
	}
}

// WithEndpoint 复制配置并替换端点
func (c *Config) WithEndpoint(endpoint string) *Config {
	cp := *c
	cp.Endpoint = endpoint
	return &cp
}

func (c *Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Timeout) * time.Second
}

func (c *Config) log() logger.Logger {
	if c.Logger == nil {
		return logger.Nop()
	}
	return c.Logger
}
