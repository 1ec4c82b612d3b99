package request

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/weisyn/blockchain-request-go/client"
	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/wallet"
)

const hardhatKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// countingStore 记录 Delete 调用
type countingStore struct {
	*store.MemoryRequestStore

	mu        sync.Mutex
	deletes   []uuid.UUID
	deleteErr error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryRequestStore: store.NewMemoryRequestStore()}
}

func (s *countingStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	s.deletes = append(s.deletes, id)
	s.mu.Unlock()
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	return s.MemoryRequestStore.Delete(ctx, id)
}

func (s *countingStore) deleteCalls() []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uuid.UUID{}, s.deletes...)
}

func testWallet(t *testing.T) wallet.Wallet {
	t.Helper()
	w, err := wallet.NewWalletFromPrivateKey(hardhatKey)
	require.NoError(t, err)
	return w
}

// signedRequest 构造一个已由 w 签名的请求
func signedRequest(t *testing.T, w wallet.Wallet, requested *common.Address) *types.VerifiableRequest {
	t.Helper()
	req := &types.VerifiableRequest{
		ID:                     uuid.New(),
		ProjectID:              uuid.New(),
		Kind:                   types.RequestKindAuthorization,
		RequestedWalletAddress: requested,
		CreatedAt:              time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	signed, err := w.SignMessage(req.MessageToSign())
	require.NoError(t, err)
	actual := w.Address()
	req.ActualWalletAddress = &actual
	req.SignedMessage = &signed
	return req
}

func TestStatusResolver_Status(t *testing.T) {
	w := testWallet(t)
	self := w.Address()
	other := common.HexToAddress("0x8236139446A6464Fae43B27565825A2764CC91B0")
	resolver := NewStatusResolver(store.NewMemoryRequestStore(), nil, logger.Test(t))

	tests := []struct {
		name  string
		build func() *types.VerifiableRequest
		want  types.Status
	}{
		{
			name: "no signed message",
			build: func() *types.VerifiableRequest {
				return &types.VerifiableRequest{ID: uuid.New(), RequestedWalletAddress: &self, ActualWalletAddress: &self}
			},
			want: types.StatusPending,
		},
		{
			name: "signed message without actual wallet",
			build: func() *types.VerifiableRequest {
				req := signedRequest(t, w, nil)
				req.ActualWalletAddress = nil
				return req
			},
			want: types.StatusPending,
		},
		{
			name:  "any signer accepted",
			build: func() *types.VerifiableRequest { return signedRequest(t, w, nil) },
			want:  types.StatusSuccess,
		},
		{
			name:  "requested signer matches",
			build: func() *types.VerifiableRequest { return signedRequest(t, w, &self) },
			want:  types.StatusSuccess,
		},
		{
			name:  "requested signer differs",
			build: func() *types.VerifiableRequest { return signedRequest(t, w, &other) },
			want:  types.StatusFailed,
		},
		{
			name: "message override changes the signed text",
			build: func() *types.VerifiableRequest {
				req := signedRequest(t, w, nil)
				override := "something else"
				req.MessageToSignOverride = &override
				return req
			},
			want: types.StatusFailed,
		},
		{
			name: "actual wallet is not the signer",
			build: func() *types.VerifiableRequest {
				req := signedRequest(t, w, nil)
				req.ActualWalletAddress = &other
				return req
			},
			want: types.StatusFailed,
		},
		{
			name: "malformed signature",
			build: func() *types.VerifiableRequest {
				req := signedRequest(t, w, nil)
				bad := types.SignedMessage("0xnothex")
				req.SignedMessage = &bad
				return req
			},
			want: types.StatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolver.Status(tt.build()))
		})
	}
}

type stubVerifier struct {
	matches bool
	calls   int
}

func (v *stubVerifier) SignatureMatches(string, types.SignedMessage, common.Address) bool {
	v.calls++
	return v.matches
}

func TestStatusResolver_InjectedVerifier(t *testing.T) {
	addr := common.HexToAddress("0x865f603F42ca1231e5B5F90e15663b0FE19F0b21")
	other := common.HexToAddress("0x8236139446A6464Fae43B27565825A2764CC91B0")
	signed := types.SignedMessage("0x00")

	v := &stubVerifier{matches: true}
	resolver := NewStatusResolver(store.NewMemoryRequestStore(), v, nil)

	req := &types.VerifiableRequest{ActualWalletAddress: &addr, SignedMessage: &signed}
	assert.Equal(t, types.StatusSuccess, resolver.Status(req))
	assert.Equal(t, 1, v.calls)

	// 签名者不一致时不需要校验签名
	req.RequestedWalletAddress = &other
	assert.Equal(t, types.StatusFailed, resolver.Status(req))
	assert.Equal(t, 1, v.calls)
}

func TestStatusResolver_StatusWithBalance(t *testing.T) {
	w := testWallet(t)
	resolver := NewStatusResolver(store.NewMemoryRequestStore(), nil, nil)
	req := signedRequest(t, w, nil)

	assert.Equal(t, types.StatusPending, resolver.StatusWithBalance(req, nil))
	assert.Equal(t, types.StatusSuccess, resolver.StatusWithBalance(req, &types.Balance{Wallet: w.Address()}))

	req.RequestedWalletAddress = &common.Address{}
	assert.Equal(t, types.StatusFailed, resolver.StatusWithBalance(req, &types.Balance{Wallet: w.Address()}))
}

func TestStatusResolver_ResolveAndMaybePurge(t *testing.T) {
	w := testWallet(t)
	other := common.HexToAddress("0x8236139446A6464Fae43B27565825A2764CC91B0")

	tests := []struct {
		name              string
		requested         *common.Address
		unsigned          bool
		storeIndefinitely bool
		wantStatus        types.Status
		wantDeletes       int
	}{
		{name: "success and read-once", wantStatus: types.StatusSuccess, wantDeletes: 1},
		{name: "success and kept", storeIndefinitely: true, wantStatus: types.StatusSuccess},
		{name: "failed is kept", requested: &other, wantStatus: types.StatusFailed},
		{name: "pending is kept", unsigned: true, wantStatus: types.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			requests := newCountingStore()
			lggr, logs := logger.TestObserved(t, zapcore.InfoLevel)
			resolver := NewStatusResolver(requests, nil, lggr)

			req := signedRequest(t, w, tt.requested)
			req.StoreIndefinitely = tt.storeIndefinitely
			if tt.unsigned {
				req.SignedMessage = nil
				req.ActualWalletAddress = nil
			}
			require.NoError(t, requests.Store(ctx, req))

			status, err := resolver.ResolveAndMaybePurge(ctx, req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Len(t, requests.deleteCalls(), tt.wantDeletes)

			stored, err := requests.GetByID(ctx, req.ID)
			require.NoError(t, err)
			if tt.wantDeletes > 0 {
				assert.Equal(t, []uuid.UUID{req.ID}, requests.deleteCalls())
				assert.Nil(t, stored)
				assert.Equal(t, 1, logs.FilterMessage("Deleted read-once request").Len())
			} else {
				assert.NotNil(t, stored)
			}
		})
	}
}

func TestStatusResolver_ResolveAndMaybePurge_Idempotent(t *testing.T) {
	ctx := context.Background()
	w := testWallet(t)
	requests := newCountingStore()
	resolver := NewStatusResolver(requests, nil, nil)

	// 从未保存过的请求：删除是空操作
	req := signedRequest(t, w, nil)
	status, err := resolver.ResolveAndMaybePurge(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, status)

	status, err = resolver.ResolveAndMaybePurge(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, status)
	assert.Len(t, requests.deleteCalls(), 2)
}

func TestStatusResolver_ResolveAndMaybePurge_DeleteError(t *testing.T) {
	w := testWallet(t)
	requests := newCountingStore()
	requests.deleteErr = errors.New("database unavailable")
	resolver := NewStatusResolver(requests, nil, nil)

	status, err := resolver.ResolveAndMaybePurge(context.Background(), signedRequest(t, w, nil))
	assert.ErrorIs(t, err, requests.deleteErr)
	assert.Equal(t, types.StatusSuccess, status)
}

func TestStatusResolver_StatusFromTransaction(t *testing.T) {
	resolver := NewStatusResolver(store.NewMemoryRequestStore(), nil, nil)
	token := common.HexToAddress("0x495d96FaaaCEe16Dd3ca62cAB20a0F9548CdddB4")
	other := common.HexToAddress("0x8236139446A6464Fae43B27565825A2764CC91B0")
	hash := common.HexToHash("0x01")
	expected := types.ExpectedTransaction{TxHash: &hash, To: &token, Data: []byte{0xa9, 0x05, 0x9c, 0xbb}}

	mined := func(modify func(*types.TransactionInfo)) *types.TransactionInfo {
		info := &types.TransactionInfo{Hash: hash, To: &token, Data: []byte{0xa9, 0x05, 0x9c, 0xbb}, Success: true}
		modify(info)
		return info
	}

	tests := []struct {
		name     string
		expected types.ExpectedTransaction
		info     *types.TransactionInfo
		want     types.Status
	}{
		{name: "no transaction attached", expected: types.ExpectedTransaction{To: &token}, want: types.StatusPending},
		{name: "not mined yet", expected: expected, want: types.StatusPending},
		{name: "matches", expected: expected, info: mined(func(*types.TransactionInfo) {}), want: types.StatusSuccess},
		{name: "wrong data", expected: expected, info: mined(func(i *types.TransactionInfo) { i.Data = []byte{0x00} }), want: types.StatusFailed},
		{name: "wrong recipient", expected: expected, info: mined(func(i *types.TransactionInfo) { i.To = &other }), want: types.StatusFailed},
		{name: "reverted", expected: expected, info: mined(func(i *types.TransactionInfo) { i.Success = false }), want: types.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolver.StatusFromTransaction(tt.expected, tt.info))
		})
	}
}

func TestStatusResolver_ResolveTransactionAndMaybePurge(t *testing.T) {
	ctx := context.Background()
	requests := newCountingStore()
	resolver := NewStatusResolver(requests, nil, nil)

	hash := common.HexToHash("0x01")
	req := &types.VerifiableRequest{ID: uuid.New(), Kind: types.RequestKindErc20Send}
	require.NoError(t, requests.Store(ctx, req))
	expected := types.ExpectedTransaction{TxHash: &hash, Data: []byte{0x01}}

	status, err := resolver.ResolveTransactionAndMaybePurge(ctx, req, expected, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, status)
	assert.Empty(t, requests.deleteCalls())

	// 合约创建：期望 To 为 nil
	info := &types.TransactionInfo{Hash: hash, Data: []byte{0x01}, Success: true}
	status, err = resolver.ResolveTransactionAndMaybePurge(ctx, req, expected, info)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, status)
	assert.Equal(t, []uuid.UUID{req.ID}, requests.deleteCalls())
}

// stubTxChain 按哈希返回预置交易
type stubTxChain struct {
	client.ChainQuery

	specs []types.ChainSpec
	info  *types.TransactionInfo
	err   error
}

func (c *stubTxChain) TransactionInfo(_ context.Context, spec types.ChainSpec, _ common.Hash) (*types.TransactionInfo, error) {
	c.specs = append(c.specs, spec)
	return c.info, c.err
}

func TestFetchTransaction(t *testing.T) {
	ctx := context.Background()
	hash := common.HexToHash("0x01")
	req := &types.VerifiableRequest{ID: uuid.New(), ChainID: 1337}

	chain := &stubTxChain{info: &types.TransactionInfo{Hash: hash}}
	info, err := FetchTransaction(ctx, chain, req, "https://rpc.override")
	require.NoError(t, err)
	assert.Nil(t, info, "未附加交易时不查询")
	assert.Empty(t, chain.specs)

	req.Tx = &types.TxDetails{TxHash: hash}
	info, err = FetchTransaction(ctx, chain, req, "https://rpc.override")
	require.NoError(t, err)
	assert.Equal(t, hash, info.Hash)
	assert.Equal(t, []types.ChainSpec{{ChainID: 1337, CustomRPCURL: "https://rpc.override"}}, chain.specs)

	chain.err = errors.New("rpc unavailable")
	_, err = FetchTransaction(ctx, chain, req, "")
	assert.ErrorIs(t, err, chain.err)
}
