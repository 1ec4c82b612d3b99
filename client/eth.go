package client

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
)

// ChainQuery 链上只读查询
type ChainQuery interface {
	// AccountTokenBalance 查询钱包余额；tokenContract 为 nil 时查询原生币
	AccountTokenBalance(
		ctx context.Context,
		chain types.ChainSpec,
		tokenContract *common.Address,
		wallet common.Address,
		block types.BlockParameter,
	) (*types.Balance, error)

	// ReadonlyCall 执行 eth_call 并按 outputTypes 解码返回值
	ReadonlyCall(
		ctx context.Context,
		chain types.ChainSpec,
		contract common.Address,
		caller common.Address,
		callData utils.FunctionData,
		outputTypes []utils.AbiType,
		block types.BlockParameter,
	) ([]any, error)

	// TransactionInfo 查询已打包交易；交易不存在或尚未打包时返回 (nil, nil)
	TransactionInfo(ctx context.Context, chain types.ChainSpec, txHash common.Hash) (*types.TransactionInfo, error)
}

// Dialer 按配置创建客户端
type Dialer func(config *Config) (Client, error)

// EthChainQuery 基于以太坊 JSON-RPC 的 ChainQuery 实现
//
// 每条链的默认端点来自配置；ChainSpec.CustomRPCURL 非空时优先使用。
// 同一端点的客户端会被缓存复用。
type EthChainQuery struct {
	endpoints map[types.ChainID]string
	base      *Config
	dial      Dialer
	logger    logger.Logger

	mu      sync.Mutex
	clients map[string]Client
}

// EthChainQueryOption 选项
type EthChainQueryOption func(*EthChainQuery)

// WithDialer 替换客户端创建方式
func WithDialer(dial Dialer) EthChainQueryOption {
	return func(q *EthChainQuery) {
		q.dial = dial
	}
}

// NewEthChainQuery 创建 EthChainQuery；base 提供协议、超时、重试等公共配置
func NewEthChainQuery(endpoints map[types.ChainID]string, base *Config, opts ...EthChainQueryOption) *EthChainQuery {
	if base == nil {
		base = DefaultConfig()
	}
	eps := make(map[types.ChainID]string, len(endpoints))
	for id, ep := range endpoints {
		eps[id] = ep
	}
	q := &EthChainQuery{
		endpoints: eps,
		base:      base,
		dial:      NewClient,
		logger:    base.log().Named("chain"),
		clients:   make(map[string]Client),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// clientFor 返回链对应的客户端
func (q *EthChainQuery) clientFor(chain types.ChainSpec) (Client, error) {
	endpoint := chain.CustomRPCURL
	if endpoint == "" {
		endpoint = q.endpoints[chain.ChainID]
	}
	if endpoint == "" {
		return nil, NewUnsupportedChainError(uint64(chain.ChainID))
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if c, ok := q.clients[endpoint]; ok {
		return c, nil
	}
	c, err := q.dial(q.base.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("create client for chain %d: %w", chain.ChainID, err)
	}
	q.clients[endpoint] = c
	return c, nil
}

// Close 关闭所有缓存的客户端
func (q *EthChainQuery) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var firstErr error
	for endpoint, c := range q.clients {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(q.clients, endpoint)
	}
	return firstErr
}

// AccountTokenBalance 查询余额
func (q *EthChainQuery) AccountTokenBalance(
	ctx context.Context,
	chain types.ChainSpec,
	tokenContract *common.Address,
	wallet common.Address,
	block types.BlockParameter,
) (*types.Balance, error) {
	var amount *big.Int

	if tokenContract == nil {
		c, err := q.clientFor(chain)
		if err != nil {
			return nil, err
		}
		raw, err := c.Call(ctx, "eth_getBalance", wallet.Hex(), block.String())
		if err != nil {
			return nil, fmt.Errorf("eth_getBalance: %w", err)
		}
		var balance hexutil.Big
		if err := unmarshalResult(raw, &balance); err != nil {
			return nil, err
		}
		amount = balance.ToInt()
	} else {
		callData, err := utils.EncodeFunctionCall("balanceOf",
			[]utils.FunctionArgument{{Type: utils.AbiAddress, Value: wallet}},
			utils.WithOutputTypes(utils.AbiUint256))
		if err != nil {
			return nil, err
		}
		values, err := q.ReadonlyCall(ctx, chain, *tokenContract, wallet, callData, []utils.AbiType{utils.AbiUint256}, block)
		if err != nil {
			return nil, err
		}
		amount = values[0].(*big.Int)
	}

	q.logger.Debugw("Fetched balance", "chainId", chain.ChainID, "wallet", wallet.Hex(), "block", block.String())

	return &types.Balance{
		Wallet:        wallet,
		TokenContract: tokenContract,
		Block:         block,
		Amount:        amount,
	}, nil
}

// ReadonlyCall 执行只读调用
func (q *EthChainQuery) ReadonlyCall(
	ctx context.Context,
	chain types.ChainSpec,
	contract common.Address,
	caller common.Address,
	callData utils.FunctionData,
	outputTypes []utils.AbiType,
	block types.BlockParameter,
) ([]any, error) {
	c, err := q.clientFor(chain)
	if err != nil {
		return nil, err
	}

	call := map[string]string{
		"from": caller.Hex(),
		"to":   contract.Hex(),
		"data": callData.String(),
	}
	raw, err := c.Call(ctx, "eth_call", call, block.String())
	if err != nil {
		return nil, fmt.Errorf("eth_call: %w", err)
	}

	var result hexutil.Bytes
	if err := unmarshalResult(raw, &result); err != nil {
		return nil, err
	}

	values, err := utils.DecodeValues(outputTypes, result)
	if err != nil {
		return nil, fmt.Errorf("decode eth_call result from %s: %w", contract.Hex(), err)
	}
	return values, nil
}

// rpcTransaction eth_getTransactionByHash 返回结构（仅取需要的字段）
type rpcTransaction struct {
	Hash        common.Hash     `json:"hash"`
	From        common.Address  `json:"from"`
	To          *common.Address `json:"to"`
	Input       hexutil.Bytes   `json:"input"`
	Value       *hexutil.Big    `json:"value"`
	BlockNumber *hexutil.Uint64 `json:"blockNumber"`
}

// rpcReceipt eth_getTransactionReceipt 返回结构（仅取需要的字段）
type rpcReceipt struct {
	Status          hexutil.Uint64  `json:"status"`
	ContractAddress *common.Address `json:"contractAddress"`
	BlockNumber     hexutil.Uint64  `json:"blockNumber"`
}

// TransactionInfo 查询交易及其回执
func (q *EthChainQuery) TransactionInfo(ctx context.Context, chain types.ChainSpec, txHash common.Hash) (*types.TransactionInfo, error) {
	c, err := q.clientFor(chain)
	if err != nil {
		return nil, err
	}

	raw, err := c.Call(ctx, "eth_getTransactionByHash", txHash.Hex())
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionByHash: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var tx rpcTransaction
	if err := unmarshalResult(raw, &tx); err != nil {
		return nil, err
	}
	if tx.BlockNumber == nil {
		// 仍在交易池中
		return nil, nil
	}

	raw, err = c.Call(ctx, "eth_getTransactionReceipt", txHash.Hex())
	if err != nil {
		return nil, fmt.Errorf("eth_getTransactionReceipt: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var receipt rpcReceipt
	if err := unmarshalResult(raw, &receipt); err != nil {
		return nil, err
	}

	value := new(big.Int)
	if tx.Value != nil {
		value = tx.Value.ToInt()
	}

	return &types.TransactionInfo{
		Hash:                    tx.Hash,
		From:                    tx.From,
		To:                      tx.To,
		DeployedContractAddress: receipt.ContractAddress,
		Data:                    tx.Input,
		Value:                   value,
		BlockNumber:             uint64(receipt.BlockNumber),
		Success:                 receipt.Status == 1,
	}, nil
}

func unmarshalResult(raw json.RawMessage, v any) error {
	if raw == nil {
		return NewInvalidResponseError("unexpected null result")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return NewInvalidResponseError("decode result: %v", err)
	}
	return nil
}
