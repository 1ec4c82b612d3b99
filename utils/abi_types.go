package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// AbiType 规范 ABI 类型标签，例如 "address"、"uint256"、"bytes32[]"、"(address,uint256)[2]"
type AbiType string

// 常用基础类型
const (
	AbiAddress AbiType = "address"
	AbiBool    AbiType = "bool"
	AbiString  AbiType = "string"
	AbiBytes   AbiType = "bytes"
	AbiBytes32 AbiType = "bytes32"
	AbiUint8   AbiType = "uint8"
	AbiUint64  AbiType = "uint64"
	AbiUint256 AbiType = "uint256"
	AbiInt256  AbiType = "int256"
)

// UintOf 返回指定位宽的无符号整数类型
func UintOf(bits int) AbiType { return AbiType(fmt.Sprintf("uint%d", bits)) }

// IntOf 返回指定位宽的有符号整数类型
func IntOf(bits int) AbiType { return AbiType(fmt.Sprintf("int%d", bits)) }

// BytesOf 返回定长字节类型 bytesN
func BytesOf(n int) AbiType { return AbiType(fmt.Sprintf("bytes%d", n)) }

// ArrayOf 定长数组 T[N]
func ArrayOf(elem AbiType, n int) AbiType {
	return AbiType(fmt.Sprintf("%s[%d]", elem, n))
}

// DynamicArrayOf 变长数组 T[]
func DynamicArrayOf(elem AbiType) AbiType {
	return elem + "[]"
}

// TupleOf 元组 (T1,T2,...)
func TupleOf(elems ...AbiType) AbiType {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = string(e)
	}
	return AbiType("(" + strings.Join(parts, ",") + ")")
}

// String 返回类型标签文本
func (t AbiType) String() string { return string(t) }

// Canonical 返回规范化后的类型标签（别名展开、去空白）
func (t AbiType) Canonical() (string, error) {
	parsed, err := t.parse()
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// parse 将类型标签解析为 go-ethereum 的 abi.Type
func (t AbiType) parse() (abi.Type, error) {
	typ, components, err := toMarshaling(strings.ReplaceAll(string(t), " ", ""))
	if err != nil {
		return abi.Type{}, fmt.Errorf("invalid abi type %q: %w", string(t), err)
	}
	parsed, err := abi.NewType(typ, "", components)
	if err != nil {
		return abi.Type{}, fmt.Errorf("invalid abi type %q: %w", string(t), err)
	}
	return parsed, nil
}

// toMarshaling 把类型标签拆成 abi.NewType 需要的 (type, components)
// 元组以 "tuple" 加数组后缀表示，组件依次命名为 field0、field1...
func toMarshaling(s string) (string, []abi.ArgumentMarshaling, error) {
	if s == "" {
		return "", nil, fmt.Errorf("empty type")
	}

	if strings.HasPrefix(s, "(") {
		end, err := matchingParen(s)
		if err != nil {
			return "", nil, err
		}
		suffix := s[end+1:]
		if err := validateArraySuffix(suffix); err != nil {
			return "", nil, err
		}
		inner := s[1:end]
		if inner == "" {
			return "", nil, fmt.Errorf("empty tuple")
		}
		parts, err := splitTopLevel(inner)
		if err != nil {
			return "", nil, err
		}
		components := make([]abi.ArgumentMarshaling, 0, len(parts))
		for i, part := range parts {
			typ, nested, err := toMarshaling(part)
			if err != nil {
				return "", nil, err
			}
			components = append(components, abi.ArgumentMarshaling{
				Name:       fmt.Sprintf("field%d", i),
				Type:       typ,
				Components: nested,
			})
		}
		return "tuple" + suffix, components, nil
	}

	base, suffix := s, ""
	if idx := strings.IndexByte(s, '['); idx >= 0 {
		base, suffix = s[:idx], s[idx:]
	}
	if err := validateArraySuffix(suffix); err != nil {
		return "", nil, err
	}
	base, err := normalizeElementary(base)
	if err != nil {
		return "", nil, err
	}
	return base + suffix, nil, nil
}

// normalizeElementary 校验基础类型并展开别名
func normalizeElementary(base string) (string, error) {
	switch base {
	case "address", "bool", "string", "bytes":
		return base, nil
	case "uint":
		return "uint256", nil
	case "int":
		return "int256", nil
	case "byte":
		return "bytes1", nil
	}

	switch {
	case strings.HasPrefix(base, "uint"):
		if err := checkIntWidth(base[len("uint"):]); err != nil {
			return "", fmt.Errorf("%s: %w", base, err)
		}
		return base, nil
	case strings.HasPrefix(base, "int"):
		if err := checkIntWidth(base[len("int"):]); err != nil {
			return "", fmt.Errorf("%s: %w", base, err)
		}
		return base, nil
	case strings.HasPrefix(base, "bytes"):
		n, ok := parseDecimal(base[len("bytes"):])
		if !ok || n < 1 || n > 32 {
			return "", fmt.Errorf("%s: fixed bytes length must be between 1 and 32", base)
		}
		return base, nil
	}
	return "", fmt.Errorf("unsupported type %q", base)
}

func checkIntWidth(s string) error {
	bits, ok := parseDecimal(s)
	if !ok || bits < 8 || bits > 256 || bits%8 != 0 {
		return fmt.Errorf("integer width must be a multiple of 8 between 8 and 256")
	}
	return nil
}

// parseDecimal 解析不带符号、不带前导零的十进制数；"08" 之类的写法不会进入签名文本
func parseDecimal(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || strconv.Itoa(n) != s {
		return 0, false
	}
	return n, true
}

// validateArraySuffix 校验 "[2][]" 形式的数组后缀
func validateArraySuffix(suffix string) error {
	for suffix != "" {
		if suffix[0] != '[' {
			return fmt.Errorf("unexpected %q after type", suffix)
		}
		end := strings.IndexByte(suffix, ']')
		if end < 0 {
			return fmt.Errorf("unterminated array suffix")
		}
		if size := suffix[1:end]; size != "" {
			n, ok := parseDecimal(size)
			if !ok || n <= 0 {
				return fmt.Errorf("invalid array length %q", size)
			}
		}
		suffix = suffix[end+1:]
	}
	return nil
}

func matchingParen(s string) (int, error) {
	depth := 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unbalanced parentheses in %q", s)
}

// splitTopLevel 按最外层逗号拆分元组成员
func splitTopLevel(s string) ([]string, error) {
	var parts []string
	depth, start := 0, 0
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty tuple component in %q", s)
		}
	}
	return parts, nil
}

// CanonicalSignature 规范化函数或事件签名文本，例如 "transfer(address, uint)" → "transfer(address,uint256)"
func CanonicalSignature(sig string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(sig), " ", "")
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return "", fmt.Errorf("invalid signature %q", sig)
	}
	name := s[:open]
	inner := s[open+1 : len(s)-1]
	if inner == "" {
		return name + "()", nil
	}
	parts, err := splitTopLevel(inner)
	if err != nil {
		return "", fmt.Errorf("invalid signature %q: %w", sig, err)
	}
	canonical := make([]string, len(parts))
	for i, p := range parts {
		c, err := AbiType(p).Canonical()
		if err != nil {
			return "", fmt.Errorf("invalid signature %q: %w", sig, err)
		}
		canonical[i] = c
	}
	return name + "(" + strings.Join(canonical, ",") + ")", nil
}
