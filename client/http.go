package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/weisyn/blockchain-request-go/logger"
)

// httpClient HTTP客户端实现
type httpClient struct {
	endpoint string
	client   *http.Client
	headers  map[string]string
	logger   logger.Logger
	debug    bool
	nextID   atomic.Uint64
	retry    *RetryConfig
}

// NewHTTPClient 创建HTTP客户端
func NewHTTPClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}

	lggr := config.log().Named("rpc-http")

	httpCli := &http.Client{
		Timeout: config.timeout(),
	}

	// 配置TLS（如果需要）
	if config.TLS != nil && config.TLS.Insecure {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // 仅用于开发环境
		httpCli.Transport = transport
	}

	retryConfig := config.Retry
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
		retryConfig.OnRetry = func(attempt int, err error) {
			lggr.Warnw("Retrying request", "endpoint", config.Endpoint, "attempt", attempt, "error", err)
		}
	}

	return &httpClient{
		endpoint: config.Endpoint,
		client:   httpCli,
		headers:  config.Headers,
		logger:   lggr,
		debug:    config.Debug,
		retry:    retryConfig,
	}, nil
}

// Call 调用JSON-RPC方法
func (c *httpClient) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	// 使用原子计数器生成唯一ID
	req := newRequest(c.nextID.Add(1), method, params)

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	if c.debug {
		c.logger.Debugw("JSON-RPC request", "method", method, "body", string(reqBody))
	}

	// 发送请求（带重试）；每次重试都创建新的请求（因为 Body 只能读取一次）
	var respBody []byte
	err = withRetry(ctx, func() error {
		body, sendErr := c.send(ctx, reqBody)
		if sendErr != nil {
			return sendErr
		}
		respBody = body
		return nil
	}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("send request failed: %w", err)
	}

	if c.debug {
		c.logger.Debugw("JSON-RPC response", "method", method, "body", string(respBody))
	}

	// 解析JSON-RPC响应
	var jsonResp jsonRPCResponse
	if err := json.Unmarshal(respBody, &jsonResp); err != nil {
		return nil, NewInvalidResponseError("unmarshal response failed: %v", err)
	}
	return resultOf(method, &jsonResp)
}

func (c *httpClient) send(ctx context.Context, reqBody []byte) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}

	// 设置请求头
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewNetworkError(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warnw("Failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("read response failed: %w", err))
	}

	// 检查HTTP状态码
	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPStatusError(resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *httpClient) Endpoint() string {
	return c.endpoint
}

// Close 关闭连接（HTTP客户端无需特殊处理）
func (c *httpClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
