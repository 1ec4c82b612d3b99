// Package store 定义核心依赖的持久化接口，并提供内存、PostgreSQL 与 YAML 目录实现。
//
// 查询类方法在记录不存在时返回 (nil, nil)；写入类方法用 bool 报告是否有记录被改动。
package store

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/weisyn/blockchain-request-go/types"
)

// ErrRequestExists 相同 ID 的请求已存在
var ErrRequestExists = errors.New("request already exists")

// ErrDeploymentExists 相同 ID 或别名的部署已存在
var ErrDeploymentExists = errors.New("contract deployment already exists")

// RequestStore 可验证请求存储
type RequestStore interface {
	// GetByID 按 ID 查询
	GetByID(ctx context.Context, id uuid.UUID) (*types.VerifiableRequest, error)

	// Store 保存新请求
	Store(ctx context.Context, req *types.VerifiableRequest) error

	// Delete 删除请求；记录不存在时返回 false 且不报错
	Delete(ctx context.Context, id uuid.UUID) (bool, error)

	// SetSignerAndSignature 条件更新：仅当请求存在且尚未附加签名时写入，否则返回 false
	SetSignerAndSignature(ctx context.Context, id uuid.UUID, signer common.Address, signed types.SignedMessage) (bool, error)

	// SetTxInfo 条件更新：仅当请求存在且尚未附加交易时写入交易哈希与发送者，否则返回 false
	SetTxInfo(ctx context.Context, id uuid.UUID, txHash common.Hash, caller common.Address) (bool, error)

	// GetAllByProject 项目下全部请求（可选按种类过滤），按创建时间升序
	GetAllByProject(ctx context.Context, projectID uuid.UUID, kind *types.RequestKind) ([]*types.VerifiableRequest, error)
}

// DeploymentStore 合约部署记录存储
type DeploymentStore interface {
	// Store 保存新部署记录；ID 或项目内别名重复时返回 ErrDeploymentExists
	Store(ctx context.Context, record *types.ContractDeployment) error
	GetByID(ctx context.Context, id uuid.UUID) (*types.ContractDeployment, error)
	GetByAlias(ctx context.Context, projectID uuid.UUID, alias string) (*types.ContractDeployment, error)
	// GetAllByProject 项目下全部部署记录，按创建时间升序
	GetAllByProject(ctx context.Context, projectID uuid.UUID) ([]*types.ContractDeployment, error)
	// SetContractAddress 写入链上地址，记录不存在时返回 false
	SetContractAddress(ctx context.Context, id uuid.UUID, address common.Address) (bool, error)
	// SetTxInfo 条件更新：仅当尚未附加交易时写入交易哈希；部署者未指定时一并写入
	SetTxInfo(ctx context.Context, id uuid.UUID, txHash common.Hash, deployer common.Address) (bool, error)
}

// DeploymentManifestStore 合约清单存储
type DeploymentManifestStore interface {
	// ManifestFor 项目可见的合约清单
	ManifestFor(ctx context.Context, contractID string, projectID uuid.UUID) (*types.ContractManifest, error)
	// UpdateInterfaces 替换清单的已实现接口列表，清单不存在时返回 false
	UpdateInterfaces(ctx context.Context, contractID string, projectID uuid.UUID, interfaces []types.InterfaceID) (bool, error)
}

// InterfaceCatalogStore 接口目录
type InterfaceCatalogStore interface {
	// AllEntriesMatching 预过滤：返回至少一个声明签名出现在候选集合中的条目，按目录顺序。
	// 完整包含关系由调用方判定。
	AllEntriesMatching(ctx context.Context, functionSigs, eventSigs map[string]struct{}) ([]types.InterfaceCatalogEntry, error)
	// GetByID 按 ID 查询
	GetByID(ctx context.Context, id types.InterfaceID) (*types.InterfaceCatalogEntry, error)
}
