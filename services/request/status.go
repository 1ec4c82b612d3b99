package request

import (
	"context"
	"fmt"

	"github.com/weisyn/blockchain-request-go/client"
	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
	"github.com/weisyn/blockchain-request-go/wallet"
)

// StatusResolver 请求状态派生
//
// 状态在每次读取时重新计算：
//
//	未附加签名                         → PENDING
//	指定了签名者且与实际签名者不一致   → FAILED
//	签名无法还原出实际签名者           → FAILED
//	其余                               → SUCCESS
//
// 需要钱包发送交易的请求（转账、合约调用）改用 StatusFromTransaction：
//
//	未附加交易或交易尚未打包           → PENDING
//	交易成功且与期望交易一致           → SUCCESS
//	其余                               → FAILED
//
// 计算本身没有副作用；唯一的副作用是 SUCCESS 后删除一次性请求。
type StatusResolver struct {
	requests store.RequestStore
	verifier wallet.Verifier
	logger   logger.Logger
}

// NewStatusResolver 创建状态解析器；verifier 为 nil 时使用默认 EIP-191 校验
func NewStatusResolver(requests store.RequestStore, verifier wallet.Verifier, lggr logger.Logger) *StatusResolver {
	if verifier == nil {
		verifier = wallet.NewVerifier()
	}
	if lggr == nil {
		lggr = logger.Nop()
	}
	return &StatusResolver{
		requests: requests,
		verifier: verifier,
		logger:   lggr.Named("status"),
	}
}

// Status 纯状态计算，从不报错
func (r *StatusResolver) Status(req *types.VerifiableRequest) types.Status {
	switch {
	case req.SignedMessage == nil:
		return types.StatusPending
	case req.ActualWalletAddress == nil:
		// 附加操作总是同时写入两者，这里只是兜底
		return types.StatusPending
	case req.RequestedWalletAddress != nil && !utils.AddressesEqual(req.RequestedWalletAddress, req.ActualWalletAddress):
		return types.StatusFailed
	case !r.verifier.SignatureMatches(req.MessageToSign(), *req.SignedMessage, *req.ActualWalletAddress):
		return types.StatusFailed
	default:
		return types.StatusSuccess
	}
}

// StatusWithBalance 余额查询请求的状态：余额尚未取到时保持 PENDING
func (r *StatusResolver) StatusWithBalance(req *types.VerifiableRequest, balance *types.Balance) types.Status {
	if balance == nil {
		return types.StatusPending
	}
	return r.Status(req)
}

// StatusFromTransaction 交易型请求的状态，info 为 nil 表示交易尚未打包或尚未附加
func (r *StatusResolver) StatusFromTransaction(expected types.ExpectedTransaction, info *types.TransactionInfo) types.Status {
	switch {
	case expected.TxHash == nil || info == nil:
		return types.StatusPending
	case expected.Matches(info):
		return types.StatusSuccess
	default:
		return types.StatusFailed
	}
}

// ResolveAndMaybePurge 计算状态；SUCCESS 且不要求长期保存时删除该请求
//
// 删除幂等：请求已不存在不算错误。删除失败时返回已计算的状态和错误。
func (r *StatusResolver) ResolveAndMaybePurge(ctx context.Context, req *types.VerifiableRequest) (types.Status, error) {
	status := r.Status(req)
	return status, r.purgeIfSucceeded(ctx, req, status)
}

// ResolveTransactionAndMaybePurge 交易型请求的 ResolveAndMaybePurge
func (r *StatusResolver) ResolveTransactionAndMaybePurge(
	ctx context.Context,
	req *types.VerifiableRequest,
	expected types.ExpectedTransaction,
	info *types.TransactionInfo,
) (types.Status, error) {
	status := r.StatusFromTransaction(expected, info)
	return status, r.purgeIfSucceeded(ctx, req, status)
}

func (r *StatusResolver) purgeIfSucceeded(ctx context.Context, req *types.VerifiableRequest, status types.Status) error {
	if status != types.StatusSuccess || req.StoreIndefinitely {
		return nil
	}

	deleted, err := r.requests.Delete(ctx, req.ID)
	if err != nil {
		return fmt.Errorf("purge read-once request %s: %w", req.ID, err)
	}
	if deleted {
		r.logger.Infow("Deleted read-once request", "id", req.ID, "kind", req.Kind)
	}
	return nil
}

// FetchTransaction 查询请求附加的交易；未附加交易时返回 (nil, nil)
func FetchTransaction(ctx context.Context, chain client.ChainQuery, req *types.VerifiableRequest, rpcURL string) (*types.TransactionInfo, error) {
	if req.Tx == nil || chain == nil {
		return nil, nil
	}
	spec := types.ChainSpec{ChainID: req.ChainID, CustomRPCURL: rpcURL}
	info, err := chain.TransactionInfo(ctx, spec, req.Tx.TxHash)
	if err != nil {
		return nil, fmt.Errorf("fetch transaction %s of request %s: %w", req.Tx.TxHash.Hex(), req.ID, err)
	}
	return info, nil
}
