package token

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/weisyn/blockchain-request-go/services/request"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
)

// CreateBalanceRequest 余额查询请求参数
type CreateBalanceRequest struct {
	TokenAddress      *common.Address // 代币合约，nil 表示原生币
	BlockNumber       *uint64         // 查询区块，nil 表示 latest
	WalletAddress     *common.Address // 可选，限定签名钱包
	RedirectURL       string
	MessageToSign     *string
	StoreIndefinitely bool
	ArbitraryData     json.RawMessage
}

// BalanceRequestResult 余额查询请求及其状态
type BalanceRequestResult struct {
	Request *types.VerifiableRequest
	Status  types.Status
	Balance *types.Balance // 尚未签名时为 nil
}

// createBalanceRequest 创建余额查询请求实现
func (s *tokenService) createBalanceRequest(ctx context.Context, req *CreateBalanceRequest, project *types.Project) (*types.VerifiableRequest, error) {
	if req == nil {
		req = &CreateBalanceRequest{}
	}

	return s.balances.Create(ctx, &request.CreateParams{
		RedirectURL:            req.RedirectURL,
		MessageToSign:          req.MessageToSign,
		StoreIndefinitely:      req.StoreIndefinitely,
		RequestedWalletAddress: req.WalletAddress,
		Erc20: &types.Erc20Details{
			TokenAddress: req.TokenAddress,
			BlockNumber:  req.BlockNumber,
		},
		ArbitraryData: req.ArbitraryData,
	}, project)
}

// getBalanceRequest 读取余额查询请求实现
//
// 余额取到且签名校验通过时为 SUCCESS，一次性请求随即删除。
func (s *tokenService) getBalanceRequest(ctx context.Context, id uuid.UUID, rpcURL string) (*BalanceRequestResult, error) {
	// 1. 读取请求
	req, err := s.balances.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	// 2. 已附加签名者时查询余额
	balance, err := s.fetchBalance(ctx, req, rpcURL)
	if err != nil {
		return nil, err
	}

	// 3. 派生状态
	status := types.StatusPending
	if balance != nil {
		status, err = s.resolver.ResolveAndMaybePurge(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	return &BalanceRequestResult{Request: req, Status: status, Balance: balance}, nil
}

// listBalanceRequests 列出余额查询请求实现
func (s *tokenService) listBalanceRequests(ctx context.Context, projectID uuid.UUID, rpcURL string) ([]*BalanceRequestResult, error) {
	list, err := s.balances.ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	reqs := make([]*types.VerifiableRequest, len(list))
	for i, item := range list {
		reqs[i] = item.Value
	}

	balances := utils.BatchQuery(ctx, reqs, func(ctx context.Context, req *types.VerifiableRequest, _ int) (*types.Balance, error) {
		return s.fetchBalance(ctx, req, rpcURL)
	}, s.batch)
	if err := balances.FirstError(); err != nil {
		return nil, err
	}

	results := make([]*BalanceRequestResult, len(reqs))
	for i, req := range reqs {
		balance := balances.Items[i].Value
		results[i] = &BalanceRequestResult{
			Request: req,
			Status:  s.resolver.StatusWithBalance(req, balance),
			Balance: balance,
		}
	}
	return results, nil
}

// fetchBalance 查询签名钱包的余额；尚未附加签名者时返回 nil
func (s *tokenService) fetchBalance(ctx context.Context, req *types.VerifiableRequest, rpcURL string) (*types.Balance, error) {
	if req.ActualWalletAddress == nil {
		return nil, nil
	}

	var (
		token *common.Address
		block = types.BlockLatest
	)
	if req.Erc20 != nil {
		token = req.Erc20.TokenAddress
		if req.Erc20.BlockNumber != nil {
			block = types.BlockNumber(*req.Erc20.BlockNumber)
		}
	}

	chain := types.ChainSpec{ChainID: req.ChainID, CustomRPCURL: rpcURL}
	return s.chain.AccountTokenBalance(ctx, chain, token, *req.ActualWalletAddress, block)
}
