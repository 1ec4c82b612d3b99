package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/weisyn/blockchain-request-go/types"
)

// Wallet 钱包接口
type Wallet interface {
	// Address 获取钱包地址
	Address() common.Address

	// SignMessage 以 personal_sign 方式签名消息，返回 v ∈ {27,28} 的 65 字节签名
	SignMessage(message string) (types.SignedMessage, error)

	// SignHash 签名给定 32 字节哈希，返回 v ∈ {0,1} 的 65 字节签名
	SignHash(hash []byte) ([]byte, error)

	// PrivateKey 获取私钥（谨慎使用）
	PrivateKey() *ecdsa.PrivateKey
}

// SimpleWallet 简单钱包实现（用于测试和开发）
type SimpleWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	createdAt  time.Time
}

// NewWallet 创建新钱包
func NewWallet() (Wallet, error) {
	privateKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate private key: %w", err)
	}
	return newSimpleWallet(privateKey), nil
}

// NewWalletFromPrivateKey 从十六进制私钥创建钱包（可带 0x 前缀）
func NewWalletFromPrivateKey(privateKeyHex string) (Wallet, error) {
	privateKeyBytes := common.FromHex(privateKeyHex)

	// 验证私钥长度（secp256k1 私钥应该是32字节）
	if len(privateKeyBytes) != 32 {
		return nil, fmt.Errorf("invalid private key length: expected 32 bytes, got %d", len(privateKeyBytes))
	}

	privateKey, err := ethcrypto.ToECDSA(privateKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("parse secp256k1 private key failed: %w", err)
	}
	return newSimpleWallet(privateKey), nil
}

func newSimpleWallet(privateKey *ecdsa.PrivateKey) *SimpleWallet {
	return &SimpleWallet{
		privateKey: privateKey,
		address:    ethcrypto.PubkeyToAddress(privateKey.PublicKey),
		createdAt:  time.Now(),
	}
}

// Address 获取钱包地址
func (w *SimpleWallet) Address() common.Address {
	return w.address
}

// SignHash 签名哈希值
func (w *SimpleWallet) SignHash(hash []byte) ([]byte, error) {
	sig, err := ethcrypto.Sign(hash, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign: %w", err)
	}
	return sig, nil
}

// SignMessage 签名消息
func (w *SimpleWallet) SignMessage(message string) (types.SignedMessage, error) {
	// 1. 计算 EIP-191 个人消息哈希
	hash := accounts.TextHash([]byte(message))

	// 2. 签名哈希
	sig, err := w.SignHash(hash)
	if err != nil {
		return "", err
	}

	// 3. 钱包约定 v 取 27/28
	sig[ethcrypto.RecoveryIDOffset] += 27
	return types.SignedMessage(hexutil.Encode(sig)), nil
}

// PrivateKey 获取私钥
func (w *SimpleWallet) PrivateKey() *ecdsa.PrivateKey {
	return w.privateKey
}
