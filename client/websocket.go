package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/weisyn/blockchain-request-go/logger"
)

// websocketClient WebSocket 客户端实现
type websocketClient struct {
	endpoint string
	conn     *websocket.Conn
	writeMu  sync.Mutex
	closed   atomic.Bool
	nextID   atomic.Uint64
	timeout  time.Duration
	logger   logger.Logger
	requests map[uint64]chan *jsonRPCResponse
	muReq    sync.Mutex
}

// NewWebSocketClient 创建 WebSocket 客户端
func NewWebSocketClient(config *Config) (Client, error) {
	if config == nil {
		config = DefaultConfig()
	}

	endpoint := websocketEndpoint(config.Endpoint)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(endpoint, nil)
	if err != nil {
		return nil, NewNetworkError(fmt.Errorf("dial websocket: %w", err))
	}

	client := &websocketClient{
		endpoint: endpoint,
		conn:     conn,
		timeout:  config.timeout(),
		logger:   config.log().Named("rpc-ws"),
		requests: make(map[uint64]chan *jsonRPCResponse),
	}

	// 启动消息读取循环
	go client.readLoop()

	return client, nil
}

// websocketEndpoint 将 http:// 或 https:// 转换为 ws:// 或 wss://
func websocketEndpoint(endpoint string) string {
	switch {
	case strings.HasPrefix(endpoint, "http://"):
		return "ws://" + strings.TrimPrefix(endpoint, "http://")
	case strings.HasPrefix(endpoint, "https://"):
		return "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "ws://"), strings.HasPrefix(endpoint, "wss://"):
		return endpoint
	default:
		return "ws://" + endpoint
	}
}

// readLoop 消息读取循环
func (c *websocketClient) readLoop() {
	for {
		var resp jsonRPCResponse
		if err := c.conn.ReadJSON(&resp); err != nil {
			if !c.closed.Load() {
				c.logger.Warnw("websocket read failed", "endpoint", c.endpoint, "error", err)
			}
			c.failPending(err)
			return
		}

		// 查找对应的请求通道
		c.muReq.Lock()
		ch, exists := c.requests[resp.ID]
		if exists {
			delete(c.requests, resp.ID)
		}
		c.muReq.Unlock()

		if exists {
			ch <- &resp
		}
	}
}

// failPending 连接断开时让所有等待中的调用失败
func (c *websocketClient) failPending(err error) {
	c.closed.Store(true)
	c.muReq.Lock()
	defer c.muReq.Unlock()
	for id, ch := range c.requests {
		ch <- &jsonRPCResponse{
			ID:    id,
			Error: &jsonRPCError{Code: -1, Message: fmt.Sprintf("websocket read error: %v", err)},
		}
		delete(c.requests, id)
	}
}

// Call 调用 JSON-RPC 方法
func (c *websocketClient) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	reqID := c.nextID.Add(1)
	req := newRequest(reqID, method, params)

	respCh, err := c.register(reqID)
	if err != nil {
		return nil, err
	}

	// gorilla/websocket 只允许一个并发写者
	c.writeMu.Lock()
	err = c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(reqID)
		return nil, NewNetworkError(fmt.Errorf("write request: %w", err))
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	// 等待响应
	select {
	case resp := <-respCh:
		return resultOf(method, resp)
	case <-ctx.Done():
		c.forget(reqID)
		return nil, ctx.Err()
	case <-timer.C:
		c.forget(reqID)
		return nil, NewTimeoutError()
	}
}

// register 登记响应通道（缓冲 1，读循环不会阻塞）
//
// closed 在 muReq 内检查：failPending 先置 closed 再持锁清理，
// 因此登记要么被 failPending 清理，要么在这里直接失败。
func (c *websocketClient) register(reqID uint64) (chan *jsonRPCResponse, error) {
	c.muReq.Lock()
	defer c.muReq.Unlock()

	if c.closed.Load() {
		return nil, NewNetworkError(fmt.Errorf("websocket client is closed"))
	}
	respCh := make(chan *jsonRPCResponse, 1)
	c.requests[reqID] = respCh
	return respCh, nil
}

func (c *websocketClient) forget(reqID uint64) {
	c.muReq.Lock()
	delete(c.requests, reqID)
	c.muReq.Unlock()
}

func (c *websocketClient) Endpoint() string {
	return c.endpoint
}

// Close 关闭连接
func (c *websocketClient) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		return c.conn.Close()
	}
	return nil
}
