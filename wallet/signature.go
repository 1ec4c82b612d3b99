package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/weisyn/blockchain-request-go/types"
)

// SignatureLength r || s || v
const SignatureLength = ethcrypto.SignatureLength

// Verifier 签名校验接口
type Verifier interface {
	// SignatureMatches 签名是否由 claimed 对 message 做出
	SignatureMatches(message string, signed types.SignedMessage, claimed common.Address) bool
}

type verifier struct{}

// NewVerifier 创建基于 EIP-191 个人消息签名的校验器
func NewVerifier() Verifier {
	return verifier{}
}

func (verifier) SignatureMatches(message string, signed types.SignedMessage, claimed common.Address) bool {
	return SignatureMatches(message, signed, claimed)
}

// SignatureMatches 恢复签名者并与 claimed 比较
//
// 处于状态计算的读路径上：签名格式错误、恢复失败都只返回 false，从不 panic。
func SignatureMatches(message string, signed types.SignedMessage, claimed common.Address) (matches bool) {
	defer func() {
		if recover() != nil {
			matches = false
		}
	}()

	signer, err := RecoverSigner(message, signed)
	if err != nil {
		return false
	}
	return signer == claimed
}

// RecoverSigner 从 personal_sign 签名中恢复签名者地址
func RecoverSigner(message string, signed types.SignedMessage) (common.Address, error) {
	sig, err := decodeSignature(signed)
	if err != nil {
		return common.Address{}, err
	}

	hash := accounts.TextHash([]byte(message))
	pub, err := ethcrypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// ValidateSignedMessage 附加签名前的格式校验
func ValidateSignedMessage(signed types.SignedMessage) error {
	if _, err := decodeSignature(signed); err != nil {
		return types.NewValidationError("invalid signed message: %v", err)
	}
	return nil
}

// decodeSignature 解析 0x 十六进制签名，并把 v 归一化为 0/1
func decodeSignature(signed types.SignedMessage) ([]byte, error) {
	text := strings.TrimSpace(string(signed))
	if !strings.HasPrefix(text, "0x") && !strings.HasPrefix(text, "0X") {
		text = "0x" + text
	}
	sig, err := hexutil.Decode(text)
	if err != nil {
		return nil, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("invalid signature length: expected %d bytes, got %d", SignatureLength, len(sig))
	}

	v := sig[ethcrypto.RecoveryIDOffset]
	switch v {
	case 0, 1:
	case 27, 28:
		v -= 27
	default:
		return nil, fmt.Errorf("invalid recovery id %d", v)
	}
	sig[ethcrypto.RecoveryIDOffset] = v
	return sig, nil
}
