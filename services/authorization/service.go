// Package authorization 钱包授权请求：用户用钱包签名一条消息以证明地址归属。
package authorization

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/services/request"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
)

// Service 授权请求服务接口
type Service interface {
	// CreateAuthorizationRequest 创建授权请求
	CreateAuthorizationRequest(ctx context.Context, req *CreateRequest, project *types.Project) (*types.VerifiableRequest, error)

	// GetAuthorizationRequest 读取授权请求及状态；SUCCESS 的一次性请求读取后删除
	GetAuthorizationRequest(ctx context.Context, id uuid.UUID) (*types.WithStatus[*types.VerifiableRequest], error)

	// GetAuthorizationRequestsByProject 项目下全部授权请求
	GetAuthorizationRequestsByProject(ctx context.Context, projectID uuid.UUID) ([]types.WithStatus[*types.VerifiableRequest], error)

	// AttachWalletAddressAndSignedMessage 附加钱包地址与签名
	AttachWalletAddressAndSignedMessage(ctx context.Context, id uuid.UUID, walletAddress common.Address, signed types.SignedMessage) error
}

// CreateRequest 创建授权请求参数
type CreateRequest struct {
	RedirectURL       string          // 可选，支持 ${id} 占位符
	MessageToSign     *string         // 可选，覆盖默认消息
	StoreIndefinitely bool            // 是否长期保存
	WalletAddress     *common.Address // 可选，限定签名钱包
	ArbitraryData     json.RawMessage // 调用方自定义数据，原样保存
}

// authorizationService 授权请求服务实现
type authorizationService struct {
	requests request.Service
}

// NewService 创建授权请求服务
func NewService(requests store.RequestStore, resolver *request.StatusResolver, lggr logger.Logger, opts ...request.Option) Service {
	return &authorizationService{
		requests: request.NewService(types.RequestKindAuthorization, requests, resolver, lggr, opts...),
	}
}

func (s *authorizationService) CreateAuthorizationRequest(ctx context.Context, req *CreateRequest, project *types.Project) (*types.VerifiableRequest, error) {
	if req == nil {
		req = &CreateRequest{}
	}
	return s.requests.Create(ctx, &request.CreateParams{
		RedirectURL:            req.RedirectURL,
		MessageToSign:          req.MessageToSign,
		StoreIndefinitely:      req.StoreIndefinitely,
		RequestedWalletAddress: req.WalletAddress,
		ArbitraryData:          req.ArbitraryData,
	}, project)
}

func (s *authorizationService) GetAuthorizationRequest(ctx context.Context, id uuid.UUID) (*types.WithStatus[*types.VerifiableRequest], error) {
	return s.requests.Get(ctx, id)
}

func (s *authorizationService) GetAuthorizationRequestsByProject(ctx context.Context, projectID uuid.UUID) ([]types.WithStatus[*types.VerifiableRequest], error) {
	return s.requests.ListByProject(ctx, projectID)
}

func (s *authorizationService) AttachWalletAddressAndSignedMessage(ctx context.Context, id uuid.UUID, walletAddress common.Address, signed types.SignedMessage) error {
	return s.requests.AttachSignedMessage(ctx, id, walletAddress, signed)
}
