// Package token ERC20 余额查询请求与 ERC20 转账请求。
package token

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/weisyn/blockchain-request-go/client"
	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/services/request"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
)

// Service Token 业务服务接口
type Service interface {
	// CreateBalanceRequest 创建余额查询请求
	CreateBalanceRequest(ctx context.Context, req *CreateBalanceRequest, project *types.Project) (*types.VerifiableRequest, error)

	// GetBalanceRequest 读取余额查询请求；已签名时查询链上余额
	// rpcURL 可选，非空时覆盖链的默认 RPC
	GetBalanceRequest(ctx context.Context, id uuid.UUID, rpcURL string) (*BalanceRequestResult, error)

	// ListBalanceRequests 项目下全部余额查询请求，余额并发查询
	ListBalanceRequests(ctx context.Context, projectID uuid.UUID, rpcURL string) ([]*BalanceRequestResult, error)

	// AttachBalanceSignature 为余额查询请求附加签名
	AttachBalanceSignature(ctx context.Context, id uuid.UUID, walletAddress common.Address, signed types.SignedMessage) error

	// CreateSendRequest 创建转账请求并生成 transfer 调用数据
	CreateSendRequest(ctx context.Context, req *CreateSendRequest, project *types.Project) (*SendRequestResult, error)

	// GetSendRequest 读取转账请求；已附加交易时查询链上交易派生状态
	GetSendRequest(ctx context.Context, id uuid.UUID, rpcURL string) (*SendRequestResult, error)

	// ListSendRequests 项目下全部转账请求，交易并发查询
	ListSendRequests(ctx context.Context, projectID uuid.UUID, rpcURL string) ([]*SendRequestResult, error)

	// AttachSendTxInfo 为转账请求附加钱包发送的交易
	AttachSendTxInfo(ctx context.Context, id uuid.UUID, txHash common.Hash, caller common.Address) error
}

// Option 服务选项
type Option func(*tokenService)

// WithBatchConfig 列表查询余额时的分批与并发配置
func WithBatchConfig(config *utils.BatchConfig) Option {
	return func(s *tokenService) {
		s.batch = config
	}
}

// WithRequestOptions 透传给底层请求服务的选项
func WithRequestOptions(opts ...request.Option) Option {
	return func(s *tokenService) {
		s.requestOpts = append(s.requestOpts, opts...)
	}
}

// WithEncoder 替换调用数据编码器
func WithEncoder(encoder utils.FunctionEncoder) Option {
	return func(s *tokenService) {
		s.encoder = encoder
	}
}

// tokenService Token 服务实现
type tokenService struct {
	balances    request.Service
	sends       request.Service
	resolver    *request.StatusResolver
	chain       client.ChainQuery
	encoder     utils.FunctionEncoder
	batch       *utils.BatchConfig
	requestOpts []request.Option
	logger      logger.Logger
}

// NewService 创建 Token 服务
func NewService(
	requests store.RequestStore,
	resolver *request.StatusResolver,
	chain client.ChainQuery,
	lggr logger.Logger,
	opts ...Option,
) Service {
	if lggr == nil {
		lggr = logger.Nop()
	}
	s := &tokenService{
		resolver: resolver,
		chain:    chain,
		encoder:  utils.NewFunctionEncoder(),
		batch:    utils.DefaultBatchConfig(),
		logger:   lggr.Named("token"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.balances = request.NewService(types.RequestKindErc20Balance, requests, resolver, lggr, s.requestOpts...)
	s.sends = request.NewService(types.RequestKindErc20Send, requests, resolver, lggr, s.requestOpts...)
	return s
}

// CreateBalanceRequest 创建余额查询请求（实现在 balance.go）
func (s *tokenService) CreateBalanceRequest(ctx context.Context, req *CreateBalanceRequest, project *types.Project) (*types.VerifiableRequest, error) {
	return s.createBalanceRequest(ctx, req, project)
}

// GetBalanceRequest 读取余额查询请求（实现在 balance.go）
func (s *tokenService) GetBalanceRequest(ctx context.Context, id uuid.UUID, rpcURL string) (*BalanceRequestResult, error) {
	return s.getBalanceRequest(ctx, id, rpcURL)
}

// ListBalanceRequests 列出余额查询请求（实现在 balance.go）
func (s *tokenService) ListBalanceRequests(ctx context.Context, projectID uuid.UUID, rpcURL string) ([]*BalanceRequestResult, error) {
	return s.listBalanceRequests(ctx, projectID, rpcURL)
}

func (s *tokenService) AttachBalanceSignature(ctx context.Context, id uuid.UUID, walletAddress common.Address, signed types.SignedMessage) error {
	return s.balances.AttachSignedMessage(ctx, id, walletAddress, signed)
}

// CreateSendRequest 创建转账请求（实现在 transfer.go）
func (s *tokenService) CreateSendRequest(ctx context.Context, req *CreateSendRequest, project *types.Project) (*SendRequestResult, error) {
	return s.createSendRequest(ctx, req, project)
}

// GetSendRequest 读取转账请求（实现在 transfer.go）
func (s *tokenService) GetSendRequest(ctx context.Context, id uuid.UUID, rpcURL string) (*SendRequestResult, error) {
	return s.getSendRequest(ctx, id, rpcURL)
}

// ListSendRequests 列出转账请求（实现在 transfer.go）
func (s *tokenService) ListSendRequests(ctx context.Context, projectID uuid.UUID, rpcURL string) ([]*SendRequestResult, error) {
	return s.listSendRequests(ctx, projectID, rpcURL)
}

func (s *tokenService) AttachSendTxInfo(ctx context.Context, id uuid.UUID, txHash common.Hash, caller common.Address) error {
	return s.sends.AttachTxInfo(ctx, id, txHash, caller)
}
