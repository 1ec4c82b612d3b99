package utils

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AddressLength EVM 地址字节数
const AddressLength = common.AddressLength

// ParseAddress 解析十六进制地址文本
//
// **格式**：
// - 可带或不带 0x 前缀，40 个十六进制字符
// - 全小写或全大写不做校验和检查；大小写混合时必须符合 EIP-55
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid hex address: %q", s)
	}
	addr := common.HexToAddress(s)

	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if addr.Hex()[2:] != body {
			return common.Address{}, fmt.Errorf("invalid EIP-55 checksum: %q", s)
		}
	}
	return addr, nil
}

// ToAddress 将常见表示转换为 common.Address
func ToAddress(value any) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		if v == nil {
			return common.Address{}, fmt.Errorf("address is nil")
		}
		return *v, nil
	case string:
		return ParseAddress(v)
	case []byte:
		if len(v) != AddressLength {
			return common.Address{}, fmt.Errorf("invalid address length: expected %d bytes, got %d", AddressLength, len(v))
		}
		return common.BytesToAddress(v), nil
	case [AddressLength]byte:
		return common.Address(v), nil
	}
	return common.Address{}, fmt.Errorf("expected address, got %T", value)
}

// AddressesEqual 比较两个地址（忽略大小写与校验和格式）
//
// 任一为 nil 时仅当两者都为 nil 才相等。
func AddressesEqual(a, b *common.Address) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// LowercaseHex 小写 0x 地址文本，用于存储与日志
func LowercaseHex(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}
