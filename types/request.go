package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// SignedMessage 65 字节可恢复签名（r || s || v）的 0x 十六进制文本
type SignedMessage string

// String 返回签名文本
func (s SignedMessage) String() string {
	return string(s)
}

// RequestKind 可验证请求的种类
type RequestKind string

const (
	RequestKindAuthorization RequestKind = "AUTHORIZATION"
	RequestKindErc20Balance  RequestKind = "ERC20_BALANCE"
	RequestKindErc20Send     RequestKind = "ERC20_SEND"
	RequestKindDeployment    RequestKind = "CONTRACT_DEPLOYMENT"
	RequestKindFunctionCall  RequestKind = "CONTRACT_FUNCTION_CALL"
)

// RedirectPath 默认重定向路径（拼接在项目 base redirect URL 之后）
func (k RequestKind) RedirectPath() string {
	switch k {
	case RequestKindAuthorization:
		return "/request-authorization/" + RequestIDPlaceholder + "/action"
	case RequestKindErc20Balance:
		return "/request-balance/" + RequestIDPlaceholder + "/action"
	case RequestKindErc20Send:
		return "/request-send/" + RequestIDPlaceholder + "/action"
	case RequestKindDeployment:
		return "/request-deploy/" + RequestIDPlaceholder + "/action"
	case RequestKindFunctionCall:
		return "/request-function-call/" + RequestIDPlaceholder + "/action"
	default:
		return "/request/" + RequestIDPlaceholder + "/action"
	}
}

// RequestIDPlaceholder 重定向 URL 模板中的请求 ID 占位符
const RequestIDPlaceholder = "${id}"

// SubstituteRequestID 将模板中的占位符替换为请求 ID
func SubstituteRequestID(template string, id uuid.UUID) string {
	return strings.ReplaceAll(template, RequestIDPlaceholder, id.String())
}

// Project 请求所属项目
type Project struct {
	ID              uuid.UUID
	ChainID         ChainID
	BaseRedirectURL string
	CustomRPCURL    string // 为空时使用链配置中的默认 RPC
}

// Erc20Details ERC20 相关字段（余额查询 / 转账请求）
type Erc20Details struct {
	TokenAddress     *common.Address // nil 表示原生币
	Amount           string          // 十进制金额，仅转账请求使用
	RecipientAddress *common.Address // 仅转账请求使用
	BlockNumber      *uint64         // 仅余额请求使用，nil 表示 latest
}

// FunctionCallDetails 合约函数调用请求字段
type FunctionCallDetails struct {
	DeploymentID    *uuid.UUID // 按显式地址调用时为 nil
	ContractAddress common.Address
	FunctionName    string
	CallData        []byte
	EthValue        *big.Int // 随交易发送的原生币，nil 视为 0
}

// TxDetails 钱包发送交易后附加的交易信息
type TxDetails struct {
	TxHash common.Hash
	Caller common.Address
}

// VerifiableRequest 需要钱包签名或链上交易验证的请求
//
// ActualWalletAddress 与 SignedMessage 必须同时为空或同时非空。
// 转账与函数调用请求改由附加的交易（Tx）判定结果。
type VerifiableRequest struct {
	ID                     uuid.UUID
	ProjectID              uuid.UUID
	Kind                   RequestKind
	ChainID                ChainID
	RedirectURL            string
	MessageToSignOverride  *string
	StoreIndefinitely      bool
	RequestedWalletAddress *common.Address // nil 表示接受任意签名者
	ActualWalletAddress    *common.Address
	SignedMessage          *SignedMessage
	Erc20                  *Erc20Details
	FunctionCall           *FunctionCallDetails
	Tx                     *TxDetails
	ArbitraryData          json.RawMessage
	CreatedAt              time.Time
}

// ExpectedSender 交易期望的发送者：指定了钱包时为该钱包，否则为附加交易信息的钱包
func (r *VerifiableRequest) ExpectedSender() *common.Address {
	if r.RequestedWalletAddress != nil {
		return r.RequestedWalletAddress
	}
	if r.Tx != nil {
		return &r.Tx.Caller
	}
	return nil
}

// MessageToSign 请求的待签名消息：优先使用覆盖值，否则按 ID 与创建时间确定性生成
func (r *VerifiableRequest) MessageToSign() string {
	if r.MessageToSignOverride != nil {
		return *r.MessageToSignOverride
	}
	return DefaultMessageToSign(r.ID, r.CreatedAt)
}

// DefaultMessageToSign 默认待签名消息
func DefaultMessageToSign(id uuid.UUID, createdAt time.Time) string {
	return fmt.Sprintf("Sign to authenticate with ID: %s at %s", id, createdAt.UTC().Format(time.RFC3339))
}

// Clone 深拷贝，存储实现用它隔离调用方
func (r *VerifiableRequest) Clone() *VerifiableRequest {
	if r == nil {
		return nil
	}
	c := *r
	if r.MessageToSignOverride != nil {
		v := *r.MessageToSignOverride
		c.MessageToSignOverride = &v
	}
	c.RequestedWalletAddress = cloneAddress(r.RequestedWalletAddress)
	c.ActualWalletAddress = cloneAddress(r.ActualWalletAddress)
	if r.SignedMessage != nil {
		v := *r.SignedMessage
		c.SignedMessage = &v
	}
	if r.Erc20 != nil {
		e := *r.Erc20
		e.TokenAddress = cloneAddress(r.Erc20.TokenAddress)
		e.RecipientAddress = cloneAddress(r.Erc20.RecipientAddress)
		if r.Erc20.BlockNumber != nil {
			n := *r.Erc20.BlockNumber
			e.BlockNumber = &n
		}
		c.Erc20 = &e
	}
	if r.FunctionCall != nil {
		f := *r.FunctionCall
		if r.FunctionCall.DeploymentID != nil {
			id := *r.FunctionCall.DeploymentID
			f.DeploymentID = &id
		}
		f.CallData = append([]byte(nil), r.FunctionCall.CallData...)
		if r.FunctionCall.EthValue != nil {
			f.EthValue = new(big.Int).Set(r.FunctionCall.EthValue)
		}
		c.FunctionCall = &f
	}
	if r.Tx != nil {
		tx := *r.Tx
		c.Tx = &tx
	}
	if r.ArbitraryData != nil {
		c.ArbitraryData = append(json.RawMessage(nil), r.ArbitraryData...)
	}
	return &c
}

func cloneAddress(a *common.Address) *common.Address {
	if a == nil {
		return nil
	}
	v := *a
	return &v
}
