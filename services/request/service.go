// Package request 可验证请求的通用生命周期：创建、读取（含状态派生）、列表与签名/交易附加。
//
// 每个 Service 实例只负责一种 RequestKind，其他种类的请求对它不可见。
package request

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/wallet"
)

// Service 请求生命周期服务接口
type Service interface {
	// Kind 服务负责的请求种类
	Kind() types.RequestKind

	// Create 创建请求；生成 ID、重定向地址和创建时间后持久化
	Create(ctx context.Context, params *CreateParams, project *types.Project) (*types.VerifiableRequest, error)

	// Fetch 读取原始请求（不派生状态），不存在时返回 NotFound
	Fetch(ctx context.Context, id uuid.UUID) (*types.VerifiableRequest, error)

	// Get 读取请求并派生状态；SUCCESS 的一次性请求会在返回前被删除
	Get(ctx context.Context, id uuid.UUID) (*types.WithStatus[*types.VerifiableRequest], error)

	// ListByProject 项目下该种类的全部请求及其状态（不删除、不按状态过滤）
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]types.WithStatus[*types.VerifiableRequest], error)

	// AttachSignedMessage 附加签名者与签名
	AttachSignedMessage(ctx context.Context, id uuid.UUID, signer common.Address, signed types.SignedMessage) error

	// AttachTxInfo 附加钱包发送的交易哈希与发送者
	AttachTxInfo(ctx context.Context, id uuid.UUID, txHash common.Hash, caller common.Address) error
}

// CreateParams 创建参数
type CreateParams struct {
	RedirectURL            string          // 可选，支持 ${id} 占位符；为空时使用项目默认地址
	MessageToSign          *string         // 可选，覆盖默认待签名消息
	StoreIndefinitely      bool            // 为 false 时请求在首次读到 SUCCESS 后删除
	RequestedWalletAddress *common.Address // 可选，nil 表示接受任意签名者
	Erc20                  *types.Erc20Details
	FunctionCall           *types.FunctionCallDetails
	ArbitraryData          json.RawMessage
}

// Option 服务选项
type Option func(*requestService)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *requestService) {
		s.now = now
	}
}

// WithIDGenerator 替换 ID 生成方式
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *requestService) {
		s.newID = newID
	}
}

// requestService Service 实现
type requestService struct {
	kind     types.RequestKind
	requests store.RequestStore
	resolver *StatusResolver
	logger   logger.Logger
	now      func() time.Time
	newID    func() uuid.UUID
}

// NewService 创建指定种类的请求服务
func NewService(kind types.RequestKind, requests store.RequestStore, resolver *StatusResolver, lggr logger.Logger, opts ...Option) Service {
	if lggr == nil {
		lggr = logger.Nop()
	}
	s := &requestService{
		kind:     kind,
		requests: requests,
		resolver: resolver,
		logger:   lggr.Named("request").With("kind", kind),
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *requestService) Kind() types.RequestKind {
	return s.kind
}

// Create 创建请求
func (s *requestService) Create(ctx context.Context, params *CreateParams, project *types.Project) (*types.VerifiableRequest, error) {
	if params == nil {
		params = &CreateParams{}
	}
	if project == nil {
		return nil, types.NewValidationError("project is required")
	}

	id := s.newID()
	template := params.RedirectURL
	if template == "" {
		template = project.BaseRedirectURL + s.kind.RedirectPath()
	}

	req := &types.VerifiableRequest{
		ID:                     id,
		ProjectID:              project.ID,
		Kind:                   s.kind,
		ChainID:                project.ChainID,
		RedirectURL:            types.SubstituteRequestID(template, id),
		MessageToSignOverride:  params.MessageToSign,
		StoreIndefinitely:      params.StoreIndefinitely,
		RequestedWalletAddress: params.RequestedWalletAddress,
		Erc20:                  params.Erc20,
		FunctionCall:           params.FunctionCall,
		ArbitraryData:          params.ArbitraryData,
		CreatedAt:              s.now().UTC().Truncate(time.Microsecond),
	}
	req = req.Clone()

	if err := s.requests.Store(ctx, req); err != nil {
		return nil, err
	}

	s.logger.Infow("Created request", "id", id, "projectId", project.ID, "chainId", project.ChainID)
	return req, nil
}

// Fetch 读取原始请求
func (s *requestService) Fetch(ctx context.Context, id uuid.UUID) (*types.VerifiableRequest, error) {
	s.logger.Debugw("Fetching request", "id", id)

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil || req.Kind != s.kind {
		return nil, types.NewNotFoundError("%s request not found for ID: %s", s.kind, id)
	}
	return req, nil
}

// Get 读取请求并派生状态
func (s *requestService) Get(ctx context.Context, id uuid.UUID) (*types.WithStatus[*types.VerifiableRequest], error) {
	req, err := s.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	status, err := s.resolver.ResolveAndMaybePurge(ctx, req)
	if err != nil {
		return nil, err
	}
	return &types.WithStatus[*types.VerifiableRequest]{Value: req, Status: status}, nil
}

// ListByProject 项目下全部请求
func (s *requestService) ListByProject(ctx context.Context, projectID uuid.UUID) ([]types.WithStatus[*types.VerifiableRequest], error) {
	s.logger.Debugw("Fetching requests for project", "projectId", projectID)

	kind := s.kind
	reqs, err := s.requests.GetAllByProject(ctx, projectID, &kind)
	if err != nil {
		return nil, err
	}

	result := make([]types.WithStatus[*types.VerifiableRequest], 0, len(reqs))
	for _, req := range reqs {
		result = append(result, types.WithStatus[*types.VerifiableRequest]{Value: req, Status: s.resolver.Status(req)})
	}
	return result, nil
}

// AttachSignedMessage 附加签名；签名格式非法时立即拒绝，目标不存在或已签名时返回 AttachmentError
func (s *requestService) AttachSignedMessage(ctx context.Context, id uuid.UUID, signer common.Address, signed types.SignedMessage) error {
	s.logger.Infow("Attaching signed message", "id", id, "walletAddress", signer.Hex())

	if err := wallet.ValidateSignedMessage(signed); err != nil {
		return err
	}

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if req == nil || req.Kind != s.kind {
		return types.NewAttachmentError("unable to attach signed message to %s request with ID: %s", s.kind, id)
	}

	attached, err := s.requests.SetSignerAndSignature(ctx, id, signer, signed)
	if err != nil {
		return err
	}
	if !attached {
		return types.NewAttachmentError("unable to attach signed message to %s request with ID: %s", s.kind, id)
	}
	return nil
}

// AttachTxInfo 附加交易信息；目标不存在、种类不符或已附加交易时返回 AttachmentError
func (s *requestService) AttachTxInfo(ctx context.Context, id uuid.UUID, txHash common.Hash, caller common.Address) error {
	s.logger.Infow("Attaching transaction info", "id", id, "txHash", txHash.Hex(), "caller", caller.Hex())

	req, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if req == nil || req.Kind != s.kind {
		return types.NewAttachmentError("unable to attach transaction info to %s request with ID: %s", s.kind, id)
	}

	attached, err := s.requests.SetTxInfo(ctx, id, txHash, caller)
	if err != nil {
		return err
	}
	if !attached {
		return types.NewAttachmentError("unable to attach transaction info to %s request with ID: %s", s.kind, id)
	}
	return nil
}
