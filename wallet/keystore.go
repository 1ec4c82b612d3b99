package wallet

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// KeystoreManager Keystore管理器
//
// 以 Web3 Secret Storage（V3）格式保存签名钱包，文件名为小写十六进制地址。
// 用于示例程序与集成测试中的演示签名者。
type KeystoreManager struct {
	keystoreDir string
	scryptN     int
	scryptP     int
}

// KeystoreOption Keystore 选项
type KeystoreOption func(*KeystoreManager)

// WithLightScrypt 使用轻量 scrypt 参数（测试用，加解密更快）
func WithLightScrypt() KeystoreOption {
	return func(km *KeystoreManager) {
		km.scryptN = keystore.LightScryptN
		km.scryptP = keystore.LightScryptP
	}
}

// NewKeystoreManager 创建Keystore管理器
func NewKeystoreManager(keystoreDir string, opts ...KeystoreOption) (*KeystoreManager, error) {
	if err := os.MkdirAll(keystoreDir, 0700); err != nil {
		return nil, fmt.Errorf("create keystore dir: %w", err)
	}

	km := &KeystoreManager{
		keystoreDir: keystoreDir,
		scryptN:     keystore.StandardScryptN,
		scryptP:     keystore.StandardScryptP,
	}
	for _, opt := range opts {
		opt(km)
	}
	return km, nil
}

// Save 加密保存钱包私钥，返回文件路径
func (km *KeystoreManager) Save(w Wallet, password string) (string, error) {
	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    w.Address(),
		PrivateKey: w.PrivateKey(),
	}

	keyJSON, err := keystore.EncryptKey(key, password, km.scryptN, km.scryptP)
	if err != nil {
		return "", fmt.Errorf("encrypt private key: %w", err)
	}

	keystorePath := km.pathFor(w.Address())
	if err := os.WriteFile(keystorePath, keyJSON, 0600); err != nil {
		return "", fmt.Errorf("write keystore file: %w", err)
	}
	return keystorePath, nil
}

// Load 解密加载指定地址的钱包
func (km *KeystoreManager) Load(address common.Address, password string) (Wallet, error) {
	return LoadKeystoreFile(km.pathFor(address), password)
}

// LoadKeystoreFile 从任意 V3 keystore 文件加载钱包
func LoadKeystoreFile(path string, password string) (Wallet, error) {
	keyJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}

	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}
	return newSimpleWallet(key.PrivateKey), nil
}

func (km *KeystoreManager) pathFor(address common.Address) string {
	return filepath.Join(km.keystoreDir, strings.ToLower(address.Hex())+".json")
}
