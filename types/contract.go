package types

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// InterfaceID 接口目录条目标识，例如 "openzeppelin.erc20"
type InterfaceID string

// Decorator 合约清单中声明的函数或事件签名
type Decorator struct {
	Signature   string `yaml:"signature" json:"signature"` // 规范签名，如 "transfer(address,uint256)"
	Name        string `yaml:"name,omitempty" json:"name,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// InterfaceCatalogEntry 接口目录条目
type InterfaceCatalogEntry struct {
	ID                 InterfaceID `yaml:"id" json:"id"`
	Name               string      `yaml:"name" json:"name"`
	Description        string      `yaml:"description,omitempty" json:"description,omitempty"`
	EventDecorators    []Decorator `yaml:"events,omitempty" json:"events,omitempty"`
	FunctionDecorators []Decorator `yaml:"functions,omitempty" json:"functions,omitempty"`
}

// ContractManifest 合约清单
type ContractManifest struct {
	ContractID         string
	Name               string
	Bytecode           []byte // 部署字节码；导入的合约为空
	Implements         []InterfaceID
	EventDecorators    []Decorator
	FunctionDecorators []Decorator
}

// ImplementsInterface 清单是否已声明实现该接口
func (m *ContractManifest) ImplementsInterface(id InterfaceID) bool {
	for _, impl := range m.Implements {
		if impl == id {
			return true
		}
	}
	return false
}

// ContractDeployment 合约部署（或导入）记录，同时也是合约部署请求
type ContractDeployment struct {
	ID              uuid.UUID
	ProjectID       uuid.UUID
	ChainID         ChainID
	Alias           string
	ContractID      string
	RedirectURL     string
	ContractData    []byte          // 字节码 + 构造参数
	InitialValue    *big.Int        // 部署时发送的原生币，nil 视为 0
	ContractAddress *common.Address // 尚未上链时为 nil
	DeployerAddress *common.Address // 创建时可选指定，否则取附加交易信息的钱包
	TxHash          *common.Hash
	Imported        bool
	CreatedAt       time.Time
}

// ExpectedTransaction 部署请求期望的合约创建交易
func (d *ContractDeployment) ExpectedTransaction() ExpectedTransaction {
	return ExpectedTransaction{
		TxHash:           d.TxHash,
		From:             d.DeployerAddress,
		DeployedContract: d.ContractAddress,
		Data:             d.ContractData,
		Value:            d.InitialValue,
	}
}

// DeployedContractIdentifier 已部署合约标识：ID、别名或显式地址三选一
type DeployedContractIdentifier struct {
	ID      *uuid.UUID
	Alias   string
	Address *common.Address
}

// DeployedContractByID 按内部 ID 标识
func DeployedContractByID(id uuid.UUID) DeployedContractIdentifier {
	return DeployedContractIdentifier{ID: &id}
}

// DeployedContractByAlias 按项目内别名标识
func DeployedContractByAlias(alias string) DeployedContractIdentifier {
	return DeployedContractIdentifier{Alias: alias}
}

// DeployedContractByAddress 按显式地址标识
func DeployedContractByAddress(address common.Address) DeployedContractIdentifier {
	return DeployedContractIdentifier{Address: &address}
}

// ResolvedContract 标识解析结果；显式地址时 DeploymentID 为 nil
type ResolvedContract struct {
	DeploymentID *uuid.UUID
	Address      common.Address
}
