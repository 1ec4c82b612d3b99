// Package integration 端到端测试辅助：内存中的 JSON-RPC 节点与按配置装配的服务。
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/services"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/wallet"
)

const (
	// TestChainID 测试链 ID
	TestChainID types.ChainID = 1337
	// BaseRedirectURL 测试项目的前端地址
	BaseRedirectURL = "https://app.example.com"
)

// balanceOfSelector balanceOf(address)
const balanceOfSelector = "0x70a08231"

// DeployedTx 已打包的部署交易（只关心部署地址）
type DeployedTx struct {
	Contract common.Address
	Block    uint64
}

// MinedTx 已打包交易
type MinedTx struct {
	From     common.Address
	To       *common.Address // nil 表示合约创建
	Input    []byte
	Value    *big.Int
	Contract *common.Address // 回执中的部署地址
	Block    uint64
	Reverted bool
}

// FakeNode 以太坊 JSON-RPC 节点的最小实现
//
// 支持 eth_getBalance、eth_call（仅 balanceOf）、eth_getTransactionByHash、eth_getTransactionReceipt。
type FakeNode struct {
	mu            sync.Mutex
	nativeBalance map[common.Address]*big.Int
	tokenBalance  map[common.Address]map[common.Address]*big.Int
	txs           map[common.Hash]MinedTx
	calls         map[string]int

	server *httptest.Server
}

// StartFakeNode 启动节点，测试结束时关闭
func StartFakeNode(t *testing.T) *FakeNode {
	t.Helper()
	n := &FakeNode{
		nativeBalance: make(map[common.Address]*big.Int),
		tokenBalance:  make(map[common.Address]map[common.Address]*big.Int),
		txs:           make(map[common.Hash]MinedTx),
		calls:         make(map[string]int),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	t.Cleanup(n.server.Close)
	return n
}

// URL 节点地址
func (n *FakeNode) URL() string {
	return n.server.URL
}

// SetNativeBalance 设置原生币余额
func (n *FakeNode) SetNativeBalance(wallet common.Address, amount *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nativeBalance[wallet] = amount
}

// SetTokenBalance 设置代币余额
func (n *FakeNode) SetTokenBalance(token, wallet common.Address, amount *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tokenBalance[token] == nil {
		n.tokenBalance[token] = make(map[common.Address]*big.Int)
	}
	n.tokenBalance[token][wallet] = amount
}

// MineDeployment 让部署交易上链
func (n *FakeNode) MineDeployment(txHash common.Hash, tx DeployedTx) {
	contract := tx.Contract
	n.MineTransaction(txHash, MinedTx{Contract: &contract, Block: tx.Block})
}

// MineTransaction 让交易上链
func (n *FakeNode) MineTransaction(txHash common.Hash, tx MinedTx) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.txs[txHash] = tx
}

// CallCount 方法被调用次数
func (n *FakeNode) CallCount(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     uint64            `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (n *FakeNode) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, rpcErr := n.dispatch(req)
	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	if rpcErr != nil {
		resp["error"] = rpcErr
	} else {
		resp["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *FakeNode) dispatch(req rpcRequest) (any, *rpcError) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[req.Method]++

	switch req.Method {
	case "eth_getBalance":
		var address common.Address
		if err := unmarshalParam(req.Params, 0, &address); err != nil {
			return nil, err
		}
		return (*hexutil.Big)(amountOrZero(n.nativeBalance[address])), nil

	case "eth_call":
		var call struct {
			To   common.Address `json:"to"`
			Data string         `json:"data"`
		}
		if err := unmarshalParam(req.Params, 0, &call); err != nil {
			return nil, err
		}
		if !strings.HasPrefix(call.Data, balanceOfSelector) {
			return nil, &rpcError{Code: 3, Message: "execution reverted"}
		}
		wallet := common.BytesToAddress(common.FromHex(call.Data)[4:])
		amount := amountOrZero(n.tokenBalance[call.To][wallet])
		return hexutil.Bytes(common.LeftPadBytes(amount.Bytes(), 32)), nil

	case "eth_getTransactionByHash":
		var hash common.Hash
		if err := unmarshalParam(req.Params, 0, &hash); err != nil {
			return nil, err
		}
		tx, ok := n.txs[hash]
		if !ok {
			return nil, nil
		}
		return map[string]any{
			"hash":        hash,
			"from":        tx.From,
			"to":          tx.To,
			"input":       hexutil.Bytes(tx.Input),
			"value":       (*hexutil.Big)(amountOrZero(tx.Value)),
			"blockNumber": hexutil.Uint64(tx.Block),
		}, nil

	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := unmarshalParam(req.Params, 0, &hash); err != nil {
			return nil, err
		}
		tx, ok := n.txs[hash]
		if !ok {
			return nil, nil
		}
		status := hexutil.Uint64(1)
		if tx.Reverted {
			status = 0
		}
		return map[string]any{
			"status":          status,
			"contractAddress": tx.Contract,
			"blockNumber":     hexutil.Uint64(tx.Block),
		}, nil

	default:
		return nil, &rpcError{Code: -32601, Message: "method not found"}
	}
}

func unmarshalParam(params []json.RawMessage, i int, v any) *rpcError {
	if len(params) <= i {
		return &rpcError{Code: -32602, Message: fmt.Sprintf("missing param %d", i)}
	}
	if err := json.Unmarshal(params[i], v); err != nil {
		return &rpcError{Code: -32602, Message: err.Error()}
	}
	return nil
}

func amountOrZero(amount *big.Int) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	return amount
}

// Environment 端到端测试环境
type Environment struct {
	Node        *FakeNode
	Services    *services.Services
	Deployments *store.MemoryDeploymentStore
	Manifests   *store.MemoryManifestStore
	Project     *types.Project
}

// SetupEnvironment 启动节点并按配置装配服务；接口目录来自 catalogYAML（可为空）
func SetupEnvironment(t *testing.T, catalogYAML string) *Environment {
	t.Helper()
	node := StartFakeNode(t)

	catalog := store.NewMemoryInterfaceCatalogStore()
	if catalogYAML != "" {
		entries, err := store.ParseInterfaceCatalog([]byte(catalogYAML))
		require.NoError(t, err, "解析接口目录失败")
		catalog = store.NewMemoryInterfaceCatalogStore(entries...)
	}

	cfg, err := services.LoadConfig("")
	require.NoError(t, err)
	cfg.Chains = map[string]string{fmt.Sprint(uint64(TestChainID)): node.URL()}
	cfg.RPC.TimeoutSeconds = 5
	cfg.RPC.MaxRetries = 0

	env := &Environment{
		Node:        node,
		Deployments: store.NewMemoryDeploymentStore(),
		Manifests:   store.NewMemoryManifestStore(),
		Project: &types.Project{
			ID:              uuid.New(),
			ChainID:         TestChainID,
			BaseRedirectURL: BaseRedirectURL,
		},
	}

	env.Services, err = services.New(context.Background(), cfg,
		services.WithLogger(logger.Test(t)),
		services.WithDeploymentStore(env.Deployments),
		services.WithManifestStore(env.Manifests),
		services.WithInterfaceCatalog(catalog))
	require.NoError(t, err, "装配服务失败")
	t.Cleanup(func() { _ = env.Services.Close() })

	return env
}

// CreateTestWallet 创建随机测试钱包
func CreateTestWallet(t *testing.T) wallet.Wallet {
	t.Helper()
	w, err := wallet.NewWallet()
	require.NoError(t, err, "创建钱包失败")
	return w
}

// Sign 用钱包签署请求的待签消息
func Sign(t *testing.T, w wallet.Wallet, req *types.VerifiableRequest) types.SignedMessage {
	t.Helper()
	signed, err := w.SignMessage(req.MessageToSign())
	require.NoError(t, err, "签名失败")
	return signed
}
