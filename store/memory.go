package store

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/weisyn/blockchain-request-go/types"
)

// MemoryRequestStore 内存版 RequestStore，读写都按值拷贝
type MemoryRequestStore struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*types.VerifiableRequest
}

var _ RequestStore = &MemoryRequestStore{}

// NewMemoryRequestStore 创建内存请求存储
func NewMemoryRequestStore() *MemoryRequestStore {
	return &MemoryRequestStore{requests: make(map[uuid.UUID]*types.VerifiableRequest)}
}

// GetByID 按 ID 查询
func (s *MemoryRequestStore) GetByID(_ context.Context, id uuid.UUID) (*types.VerifiableRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.requests[id].Clone(), nil
}

// Store 保存新请求，ID 重复时返回 ErrRequestExists
func (s *MemoryRequestStore) Store(_ context.Context, req *types.VerifiableRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; ok {
		return ErrRequestExists
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

// Delete 删除请求
func (s *MemoryRequestStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[id]; !ok {
		return false, nil
	}
	delete(s.requests, id)
	return true, nil
}

// SetSignerAndSignature 仅在尚未签名时写入签名者与签名
func (s *MemoryRequestStore) SetSignerAndSignature(_ context.Context, id uuid.UUID, signer common.Address, signed types.SignedMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok || req.SignedMessage != nil {
		return false, nil
	}
	req.ActualWalletAddress = &signer
	req.SignedMessage = &signed
	return true, nil
}

// SetTxInfo 仅在尚未附加交易时写入交易哈希与发送者
func (s *MemoryRequestStore) SetTxInfo(_ context.Context, id uuid.UUID, txHash common.Hash, caller common.Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok || req.Tx != nil {
		return false, nil
	}
	req.Tx = &types.TxDetails{TxHash: txHash, Caller: caller}
	return true, nil
}

// GetAllByProject 项目下全部请求
func (s *MemoryRequestStore) GetAllByProject(_ context.Context, projectID uuid.UUID, kind *types.RequestKind) ([]*types.VerifiableRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*types.VerifiableRequest{}
	for _, req := range s.requests {
		if req.ProjectID != projectID {
			continue
		}
		if kind != nil && req.Kind != *kind {
			continue
		}
		result = append(result, req.Clone())
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID.String() < result[j].ID.String()
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// Len 当前请求数
func (s *MemoryRequestStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.requests)
}

// MemoryDeploymentStore 内存版 DeploymentStore
type MemoryDeploymentStore struct {
	mu      sync.RWMutex
	records []types.ContractDeployment
}

var _ DeploymentStore = &MemoryDeploymentStore{}

// NewMemoryDeploymentStore 创建内存部署存储
func NewMemoryDeploymentStore() *MemoryDeploymentStore {
	return &MemoryDeploymentStore{records: []types.ContractDeployment{}}
}

// Add 插入部署记录，测试与导入合约时使用
func (s *MemoryDeploymentStore) Add(record types.ContractDeployment) error {
	return s.Store(context.Background(), &record)
}

// Store 插入部署记录；ID 或（项目, 别名）重复时返回 ErrDeploymentExists
func (s *MemoryDeploymentStore) Store(_ context.Context, record *types.ContractDeployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID == record.ID || (r.ProjectID == record.ProjectID && r.Alias == record.Alias) {
			return ErrDeploymentExists
		}
	}
	s.records = append(s.records, cloneDeployment(*record))
	return nil
}

// GetByID 按 ID 查询
func (s *MemoryDeploymentStore) GetByID(_ context.Context, id uuid.UUID) (*types.ContractDeployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ID == id {
			c := cloneDeployment(r)
			return &c, nil
		}
	}
	return nil, nil
}

// GetByAlias 按项目内别名查询
func (s *MemoryDeploymentStore) GetByAlias(_ context.Context, projectID uuid.UUID, alias string) (*types.ContractDeployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ProjectID == projectID && r.Alias == alias {
			c := cloneDeployment(r)
			return &c, nil
		}
	}
	return nil, nil
}

// SetContractAddress 写入链上地址
func (s *MemoryDeploymentStore) SetContractAddress(_ context.Context, id uuid.UUID, address common.Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].ContractAddress = &address
			return true, nil
		}
	}
	return false, nil
}

// GetAllByProject 项目下全部部署记录
func (s *MemoryDeploymentStore) GetAllByProject(_ context.Context, projectID uuid.UUID) ([]*types.ContractDeployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*types.ContractDeployment{}
	for _, r := range s.records {
		if r.ProjectID == projectID {
			c := cloneDeployment(r)
			result = append(result, &c)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// SetTxInfo 仅在尚未附加交易时写入
func (s *MemoryDeploymentStore) SetTxInfo(_ context.Context, id uuid.UUID, txHash common.Hash, deployer common.Address) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		r := &s.records[i]
		if r.ID != id {
			continue
		}
		if r.TxHash != nil {
			return false, nil
		}
		r.TxHash = &txHash
		if r.DeployerAddress == nil {
			r.DeployerAddress = &deployer
		}
		return true, nil
	}
	return false, nil
}

func cloneDeployment(d types.ContractDeployment) types.ContractDeployment {
	d.ContractData = append([]byte(nil), d.ContractData...)
	if d.InitialValue != nil {
		d.InitialValue = new(big.Int).Set(d.InitialValue)
	}
	if d.ContractAddress != nil {
		v := *d.ContractAddress
		d.ContractAddress = &v
	}
	if d.DeployerAddress != nil {
		v := *d.DeployerAddress
		d.DeployerAddress = &v
	}
	if d.TxHash != nil {
		v := *d.TxHash
		d.TxHash = &v
	}
	return d
}

type manifestKey struct {
	contractID string
	projectID  uuid.UUID
}

// MemoryManifestStore 内存版 DeploymentManifestStore
//
// 以 uuid.Nil 登记的清单为公共清单，对所有项目可见；项目私有清单优先。
type MemoryManifestStore struct {
	mu        sync.RWMutex
	manifests map[manifestKey]types.ContractManifest
}

var _ DeploymentManifestStore = &MemoryManifestStore{}

// NewMemoryManifestStore 创建内存清单存储
func NewMemoryManifestStore() *MemoryManifestStore {
	return &MemoryManifestStore{manifests: make(map[manifestKey]types.ContractManifest)}
}

// Put 登记或替换清单
func (s *MemoryManifestStore) Put(projectID uuid.UUID, manifest types.ContractManifest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manifests[manifestKey{manifest.ContractID, projectID}] = cloneManifest(manifest)
}

// ManifestFor 项目可见的清单
func (s *MemoryManifestStore) ManifestFor(_ context.Context, contractID string, projectID uuid.UUID) (*types.ContractManifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.lookup(contractID, projectID)
	if !ok {
		return nil, nil
	}
	m := cloneManifest(s.manifests[key])
	return &m, nil
}

// UpdateInterfaces 替换已实现接口列表
func (s *MemoryManifestStore) UpdateInterfaces(_ context.Context, contractID string, projectID uuid.UUID, interfaces []types.InterfaceID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.lookup(contractID, projectID)
	if !ok {
		return false, nil
	}
	m := s.manifests[key]
	m.Implements = append([]types.InterfaceID{}, interfaces...)
	s.manifests[key] = m
	return true, nil
}

func (s *MemoryManifestStore) lookup(contractID string, projectID uuid.UUID) (manifestKey, bool) {
	key := manifestKey{contractID, projectID}
	if _, ok := s.manifests[key]; ok {
		return key, true
	}
	key.projectID = uuid.Nil
	_, ok := s.manifests[key]
	return key, ok
}

func cloneManifest(m types.ContractManifest) types.ContractManifest {
	m.Bytecode = append([]byte(nil), m.Bytecode...)
	m.Implements = append([]types.InterfaceID{}, m.Implements...)
	m.EventDecorators = append([]types.Decorator{}, m.EventDecorators...)
	m.FunctionDecorators = append([]types.Decorator{}, m.FunctionDecorators...)
	return m
}

// MemoryInterfaceCatalogStore 内存版 InterfaceCatalogStore，保持目录顺序
type MemoryInterfaceCatalogStore struct {
	mu      sync.RWMutex
	entries []types.InterfaceCatalogEntry
}

var _ InterfaceCatalogStore = &MemoryInterfaceCatalogStore{}

// NewMemoryInterfaceCatalogStore 以给定条目创建目录
func NewMemoryInterfaceCatalogStore(entries ...types.InterfaceCatalogEntry) *MemoryInterfaceCatalogStore {
	s := &MemoryInterfaceCatalogStore{}
	for _, e := range entries {
		s.entries = append(s.entries, cloneEntry(e))
	}
	return s
}

// Entries 全部条目（按目录顺序）
func (s *MemoryInterfaceCatalogStore) Entries() []types.InterfaceCatalogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.InterfaceCatalogEntry, len(s.entries))
	for i, e := range s.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// AllEntriesMatching 与候选签名有交集的条目
func (s *MemoryInterfaceCatalogStore) AllEntriesMatching(_ context.Context, functionSigs, eventSigs map[string]struct{}) ([]types.InterfaceCatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []types.InterfaceCatalogEntry{}
	for _, e := range s.entries {
		if anyDeclared(e.FunctionDecorators, functionSigs) || anyDeclared(e.EventDecorators, eventSigs) {
			result = append(result, cloneEntry(e))
		}
	}
	return result, nil
}

// GetByID 按 ID 查询
func (s *MemoryInterfaceCatalogStore) GetByID(_ context.Context, id types.InterfaceID) (*types.InterfaceCatalogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ID == id {
			c := cloneEntry(e)
			return &c, nil
		}
	}
	return nil, nil
}

func anyDeclared(decorators []types.Decorator, candidates map[string]struct{}) bool {
	for _, d := range decorators {
		if _, ok := candidates[d.Signature]; ok {
			return true
		}
	}
	return false
}

func cloneEntry(e types.InterfaceCatalogEntry) types.InterfaceCatalogEntry {
	e.EventDecorators = append([]types.Decorator{}, e.EventDecorators...)
	e.FunctionDecorators = append([]types.Decorator{}, e.FunctionDecorators...)
	return e
}
