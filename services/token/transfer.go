package token

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/weisyn/blockchain-request-go/services/request"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
)

// CreateSendRequest 转账请求参数
type CreateSendRequest struct {
	TokenAddress      common.Address  // 代币合约
	Amount            *big.Int        // 代币最小单位
	RecipientAddress  common.Address  // 收款地址
	SenderAddress     *common.Address // 可选，限定签名（付款）钱包
	RedirectURL       string
	MessageToSign     *string
	StoreIndefinitely bool
	ArbitraryData     json.RawMessage
}

// SendRequestResult 转账请求、状态与待发送的调用数据
type SendRequestResult struct {
	Request     *types.VerifiableRequest
	Status      types.Status
	CallData    utils.FunctionData     // transfer(address,uint256)，末尾追加请求 ID
	Transaction *types.TransactionInfo // 尚未附加交易或尚未打包时为 nil
}

// createSendRequest 创建转账请求实现
//
// **流程**：
// 1. 校验金额
// 2. 持久化请求
// 3. 生成 transfer 调用数据，请求 ID 作为追加值写在参数之后，便于链上交易与请求关联
func (s *tokenService) createSendRequest(ctx context.Context, req *CreateSendRequest, project *types.Project) (*SendRequestResult, error) {
	// 1. 参数验证
	if req == nil {
		return nil, types.NewValidationError("send request parameters are required")
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	// 2. 持久化
	token, recipient := req.TokenAddress, req.RecipientAddress
	stored, err := s.sends.Create(ctx, &request.CreateParams{
		RedirectURL:            req.RedirectURL,
		MessageToSign:          req.MessageToSign,
		StoreIndefinitely:      req.StoreIndefinitely,
		RequestedWalletAddress: req.SenderAddress,
		Erc20: &types.Erc20Details{
			TokenAddress:     &token,
			Amount:           req.Amount.String(),
			RecipientAddress: &recipient,
		},
		ArbitraryData: req.ArbitraryData,
	}, project)
	if err != nil {
		return nil, err
	}

	// 3. 调用数据
	callData, err := s.transferCallData(stored)
	if err != nil {
		return nil, err
	}

	return &SendRequestResult{Request: stored, Status: types.StatusPending, CallData: callData}, nil
}

// getSendRequest 读取转账请求实现
//
// 状态由钱包发送的交易决定：交易成功，且发送者、代币合约、调用数据和金额（0）都与请求一致时为 SUCCESS。
func (s *tokenService) getSendRequest(ctx context.Context, id uuid.UUID, rpcURL string) (*SendRequestResult, error) {
	// 1. 读取请求
	req, err := s.sends.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	callData, err := s.transferCallData(req)
	if err != nil {
		return nil, err
	}

	// 2. 已附加交易时查询链上交易
	info, err := request.FetchTransaction(ctx, s.chain, req, rpcURL)
	if err != nil {
		return nil, err
	}

	// 3. 派生状态
	status, err := s.resolver.ResolveTransactionAndMaybePurge(ctx, req, expectedTransfer(req, callData), info)
	if err != nil {
		return nil, err
	}
	return &SendRequestResult{Request: req, Status: status, CallData: callData, Transaction: info}, nil
}

// listSendRequests 列出转账请求实现，交易并发查询
func (s *tokenService) listSendRequests(ctx context.Context, projectID uuid.UUID, rpcURL string) ([]*SendRequestResult, error) {
	list, err := s.sends.ListByProject(ctx, projectID)
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

	results := make([]*SendRequestResult, len(reqs))
	for i, req := range reqs {
		callData, err := s.transferCallData(req)
		if err != nil {
			return nil, err
		}
		info := infos.Items[i].Value
		results[i] = &SendRequestResult{
			Request:     req,
			Status:      s.resolver.StatusFromTransaction(expectedTransfer(req, callData), info),
			CallData:    callData,
			Transaction: info,
		}
	}
	return results, nil
}

// expectedTransfer 钱包应发送的 transfer 交易：发往代币合约，不附带原生币
func expectedTransfer(req *types.VerifiableRequest, callData utils.FunctionData) types.ExpectedTransaction {
	expected := types.ExpectedTransaction{
		From: req.ExpectedSender(),
		Data: callData.Bytes(),
	}
	if req.Tx != nil {
		hash := req.Tx.TxHash
		expected.TxHash = &hash
	}
	if req.Erc20 != nil {
		expected.To = req.Erc20.TokenAddress
	}
	return expected
}

// transferCallData 由请求内容重建 transfer 调用数据
func (s *tokenService) transferCallData(req *types.VerifiableRequest) (utils.FunctionData, error) {
	if req.Erc20 == nil || req.Erc20.RecipientAddress == nil {
		return "", types.NewEncodingError("send request %s has no recipient", req.ID)
	}
	amount, ok := new(big.Int).SetString(req.Erc20.Amount, 10)
	if !ok {
		return "", types.NewEncodingError("send request %s has invalid amount %q", req.ID, req.Erc20.Amount)
	}

	return s.encoder.Encode("transfer",
		[]utils.FunctionArgument{
			{Type: utils.AbiAddress, Value: *req.Erc20.RecipientAddress},
			{Type: utils.AbiUint256, Value: amount},
		},
		utils.WithOutputTypes(utils.AbiBool),
		utils.WithTrailingValues(utils.FunctionArgument{Type: utils.AbiString, Value: req.ID.String()}),
	)
}

// validateAmount 金额必须在 uint256 范围内
func validateAmount(amount *big.Int) error {
	if amount == nil {
		return types.NewValidationError("amount is required")
	}
	return types.ValidateAmount("amount", amount)
}
