package types

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ChainID EVM 链 ID
type ChainID uint64

// BlockParameter 区块参数：具体区块号或 latest/pending/earliest
type BlockParameter struct {
	Number *uint64
	Name   string
}

// 常用区块名
var (
	BlockLatest   = BlockParameter{Name: "latest"}
	BlockPending  = BlockParameter{Name: "pending"}
	BlockEarliest = BlockParameter{Name: "earliest"}
)

// BlockNumber 构造具体区块号参数
func BlockNumber(n uint64) BlockParameter {
	return BlockParameter{Number: &n}
}

// String 返回 JSON-RPC 使用的区块参数文本
func (b BlockParameter) String() string {
	if b.Number != nil {
		return hexutil.EncodeUint64(*b.Number)
	}
	if b.Name == "" {
		return BlockLatest.Name
	}
	return b.Name
}

// Balance 账户余额（wei 或代币最小单位）
type Balance struct {
	Wallet        common.Address
	TokenContract *common.Address // nil 表示原生币
	Block         BlockParameter
	Amount        *big.Int
}

// TransactionInfo 已上链交易信息
type TransactionInfo struct {
	Hash                    common.Hash
	From                    common.Address
	To                      *common.Address
	DeployedContractAddress *common.Address
	Data                    []byte
	Value                   *big.Int
	BlockNumber             uint64
	Success                 bool
}

// HashMatches 交易哈希是否一致
func (t *TransactionInfo) HashMatches(hash *common.Hash) bool {
	return hash != nil && t.Hash == *hash
}

// FromOptionallyMatches 期望发送者为 nil 时不校验
func (t *TransactionInfo) FromOptionallyMatches(from *common.Address) bool {
	return from == nil || t.From == *from
}

// ToMatches 交易目标是否一致；to 为 nil 表示合约创建交易（目标为空或零地址）
func (t *TransactionInfo) ToMatches(to *common.Address) bool {
	if to == nil {
		return t.To == nil || *t.To == (common.Address{})
	}
	return t.To != nil && *t.To == *to
}

// DeployedContractAddressMatches 部署地址是否一致，两者都为空也视为一致
func (t *TransactionInfo) DeployedContractAddressMatches(address *common.Address) bool {
	if address == nil || t.DeployedContractAddress == nil {
		return address == nil && t.DeployedContractAddress == nil
	}
	return *t.DeployedContractAddress == *address
}

// DataMatches 调用数据是否逐字节一致
func (t *TransactionInfo) DataMatches(data []byte) bool {
	return bytes.Equal(t.Data, data)
}

// ValueMatches 发送的原生币数量是否一致，nil 视为 0
func (t *TransactionInfo) ValueMatches(value *big.Int) bool {
	return amountOrZero(t.Value).Cmp(amountOrZero(value)) == 0
}

// ExpectedTransaction 请求期望钱包发送的交易
type ExpectedTransaction struct {
	TxHash *common.Hash
	From   *common.Address // nil 表示任意发送者
	To     *common.Address // nil 表示合约创建交易
	// DeployedContract 仅合约创建交易使用；调用交易要求回执中没有部署地址
	DeployedContract *common.Address
	Data             []byte
	Value            *big.Int
}

// Matches 已上链交易是否成功且与期望一致
func (e ExpectedTransaction) Matches(info *TransactionInfo) bool {
	if info == nil || !info.Success || !info.HashMatches(e.TxHash) {
		return false
	}
	return info.FromOptionallyMatches(e.From) &&
		info.ToMatches(e.To) &&
		info.DeployedContractAddressMatches(e.DeployedContract) &&
		info.DataMatches(e.Data) &&
		info.ValueMatches(e.Value)
}

// ValidateAmount 金额须非负且在 uint256 范围内，nil 视为 0
func ValidateAmount(field string, amount *big.Int) error {
	switch {
	case amount == nil:
		return nil
	case amount.Sign() < 0:
		return NewValidationError("%s must not be negative", field)
	case amount.BitLen() > 256:
		return NewValidationError("%s exceeds uint256", field)
	}
	return nil
}

func amountOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func (t *TransactionInfo) String() string {
	return fmt.Sprintf("tx %s (block %d, success=%t)", t.Hash.Hex(), t.BlockNumber, t.Success)
}

// ChainSpec 链选择：链 ID 加可选的自定义 RPC 地址（项目级覆盖）
type ChainSpec struct {
	ChainID      ChainID
	CustomRPCURL string
}

// ChainSpec 返回项目对应的链选择
func (p *Project) ChainSpec() ChainSpec {
	return ChainSpec{ChainID: p.ChainID, CustomRPCURL: p.CustomRPCURL}
}
