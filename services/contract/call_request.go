package contract

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/weisyn/blockchain-request-go/client"
	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/services/request"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
)

// CreateFunctionCallRequest 合约函数调用请求参数
type CreateFunctionCallRequest struct {
	FunctionCall
	EthValue          *big.Int        // 随调用发送的原生币，nil 视为 0
	CallerAddress     *common.Address // 可选，限定发送交易的钱包
	RedirectURL       string
	StoreIndefinitely bool
	ArbitraryData     json.RawMessage
}

// FunctionCallRequestResult 调用请求、状态与待发送的调用数据
type FunctionCallRequestResult struct {
	Request     *types.VerifiableRequest
	Status      types.Status
	CallData    utils.FunctionData
	Transaction *types.TransactionInfo // 尚未附加交易或尚未打包时为 nil
}

// CallRequestOption 调用请求服务选项
type CallRequestOption func(*FunctionCallRequestService)

// WithCallRequestBatchConfig 列表查询交易时的分批与并发配置
func WithCallRequestBatchConfig(config *utils.BatchConfig) CallRequestOption {
	return func(s *FunctionCallRequestService) {
		s.batch = config
	}
}

// WithCallRequestOptions 透传给底层请求服务的选项
func WithCallRequestOptions(opts ...request.Option) CallRequestOption {
	return func(s *FunctionCallRequestService) {
		s.requestOpts = append(s.requestOpts, opts...)
	}
}

// FunctionCallRequestService 合约函数调用请求
//
// 钱包按返回的调用数据发送交易后附加交易哈希；状态由链上交易派生：
// 交易成功，且发送者、目标合约、调用数据、金额一致并且没有部署新合约时为 SUCCESS。
type FunctionCallRequestService struct {
	calls       *CallService
	requests    request.Service
	resolver    *request.StatusResolver
	chain       client.ChainQuery
	batch       *utils.BatchConfig
	requestOpts []request.Option
	logger      logger.Logger
}

// NewFunctionCallRequestService 创建调用请求服务
func NewFunctionCallRequestService(
	calls *CallService,
	requests store.RequestStore,
	resolver *request.StatusResolver,
	chain client.ChainQuery,
	lggr logger.Logger,
	opts ...CallRequestOption,
) *FunctionCallRequestService {
	if lggr == nil {
		lggr = logger.Nop()
	}
	s := &FunctionCallRequestService{
		calls:    calls,
		resolver: resolver,
		chain:    chain,
		batch:    utils.DefaultBatchConfig(),
		logger:   lggr.Named("call-request"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.requests = request.NewService(types.RequestKindFunctionCall, requests, resolver, lggr, s.requestOpts...)
	return s
}

// CreateFunctionCallRequest 创建调用请求
//
// **流程**：
// 1. 校验金额
// 2. 解析合约并编码调用数据（合约尚未部署时返回 CONTRACT_NOT_YET_DEPLOYED）
// 3. 持久化
func (s *FunctionCallRequestService) CreateFunctionCallRequest(ctx context.Context, req *CreateFunctionCallRequest, project *types.Project) (*FunctionCallRequestResult, error) {
	// 1. 参数验证
	if req == nil {
		return nil, types.NewValidationError("function call request parameters are required")
	}
	if err := types.ValidateAmount("eth value", req.EthValue); err != nil {
		return nil, err
	}

	// 2. 编码
	encoded, err := s.calls.EncodeFunctionCall(ctx, &req.FunctionCall, project)
	if err != nil {
		return nil, err
	}

	// 3. 持久化
	stored, err := s.requests.Create(ctx, &request.CreateParams{
		RedirectURL:            req.RedirectURL,
		StoreIndefinitely:      req.StoreIndefinitely,
		RequestedWalletAddress: req.CallerAddress,
		FunctionCall: &types.FunctionCallDetails{
			DeploymentID:    encoded.Contract.DeploymentID,
			ContractAddress: encoded.Contract.Address,
			FunctionName:    req.FunctionName,
			CallData:        encoded.CallData.Bytes(),
			EthValue:        req.EthValue,
		},
		ArbitraryData: req.ArbitraryData,
	}, project)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Created function call request", "id", stored.ID, "contract", encoded.Contract.Address.Hex(), "function", req.FunctionName)
	return &FunctionCallRequestResult{Request: stored, Status: types.StatusPending, CallData: encoded.CallData}, nil
}

// GetFunctionCallRequest 读取调用请求；已附加交易时查询链上交易派生状态
//
// rpcURL 可选，非空时覆盖链的默认 RPC。SUCCESS 的一次性请求在返回前删除。
func (s *FunctionCallRequestService) GetFunctionCallRequest(ctx context.Context, id uuid.UUID, rpcURL string) (*FunctionCallRequestResult, error) {
	req, err := s.requests.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	info, err := request.FetchTransaction(ctx, s.chain, req, rpcURL)
	if err != nil {
		return nil, err
	}

	status, err := s.resolver.ResolveTransactionAndMaybePurge(ctx, req, expectedCall(req), info)
	if err != nil {
		return nil, err
	}
	return newCallRequestResult(req, status, info), nil
}

// ListFunctionCallRequests 项目下全部调用请求，交易并发查询；不删除
func (s *FunctionCallRequestService) ListFunctionCallRequests(ctx context.Context, projectID uuid.UUID, rpcURL string) ([]*FunctionCallRequestResult, error) {
	list, err := s.requests.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	reqs := make([]*types.VerifiableRequest, len(list))
	for i, item := range list {
		reqs[i] = item.Value
	}

	infos := utils.BatchQuery(ctx, reqs, func(ctx context.Context, req *types.VerifiableRequest, _ int) (*types.TransactionInfo, error) {
		return request.FetchTransaction(ctx, s.chain, req, rpcURL)
	}, s.batch)
	if err := infos.FirstError(); err != nil {
		return nil, err
	}

	results := make([]*FunctionCallRequestResult, len(reqs))
	for i, req := range reqs {
		info := infos.Items[i].Value
		results[i] = newCallRequestResult(req, s.resolver.StatusFromTransaction(expectedCall(req), info), info)
	}
	return results, nil
}

// AttachTxInfo 附加钱包发送的调用交易
func (s *FunctionCallRequestService) AttachTxInfo(ctx context.Context, id uuid.UUID, txHash common.Hash, caller common.Address) error {
	return s.requests.AttachTxInfo(ctx, id, txHash, caller)
}

// expectedCall 钱包应发送的调用交易
func expectedCall(req *types.VerifiableRequest) types.ExpectedTransaction {
	expected := types.ExpectedTransaction{From: req.ExpectedSender()}
	if req.Tx != nil {
		hash := req.Tx.TxHash
		expected.TxHash = &hash
	}
	if f := req.FunctionCall; f != nil {
		contract := f.ContractAddress
		expected.To = &contract
		expected.Data = f.CallData
		expected.Value = f.EthValue
	}
	return expected
}

func newCallRequestResult(req *types.VerifiableRequest, status types.Status, info *types.TransactionInfo) *FunctionCallRequestResult {
	result := &FunctionCallRequestResult{Request: req, Status: status, Transaction: info}
	if req.FunctionCall != nil {
		result.CallData = utils.NewFunctionData(req.FunctionCall.CallData)
	}
	return result
}
