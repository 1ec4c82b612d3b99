package utils

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/weisyn/blockchain-request-go/types"
)

// SelectorLength 函数选择器字节数
const SelectorLength = 4

// FunctionArgument 带类型的函数参数
//
// Value 支持的 Go 表示：
//   - address：common.Address、*common.Address、十六进制地址字符串
//   - bool：bool
//   - intN/uintN：*big.Int、big.Int、任意 Go 整数、十进制（或 0x 前缀十六进制）字符串
//   - bytesN：长度恰为 N 的 []byte / [N]byte / common.Hash / 0x 十六进制字符串
//   - bytes：[]byte 或 0x 十六进制字符串
//   - string：string
//   - T[] / T[N]：任意 Go slice 或数组（定长数组长度必须一致）
//   - 元组：[]any，每个成员一个值
type FunctionArgument struct {
	Type  AbiType
	Value any
}

// FunctionData 编码后的调用数据，0x 前缀小写十六进制
type FunctionData string

// NewFunctionData 由原始字节构造
func NewFunctionData(b []byte) FunctionData {
	return FunctionData(hexutil.Encode(b))
}

// Bytes 返回原始字节
func (d FunctionData) Bytes() []byte {
	return common.FromHex(string(d))
}

// Selector 返回前 4 字节选择器，不足时返回 nil
func (d FunctionData) Selector() []byte {
	b := d.Bytes()
	if len(b) < SelectorLength {
		return nil
	}
	return b[:SelectorLength]
}

func (d FunctionData) String() string {
	return string(d)
}

// EncodeOption 编码选项
type EncodeOption func(*encodeOptions)

type encodeOptions struct {
	outputTypes    []AbiType
	trailingValues []FunctionArgument
}

// WithOutputTypes 声明函数输出类型
//
// 输出类型只做合法性校验，不参与规范签名和选择器计算。
func WithOutputTypes(outputTypes ...AbiType) EncodeOption {
	return func(o *encodeOptions) {
		o.outputTypes = append(o.outputTypes, outputTypes...)
	}
}

// WithTrailingValues 在声明参数之后追加额外的已类型化值
//
// 追加值单独按 head/tail 布局编码后拼接在参数编码之后，不进入函数签名。
func WithTrailingValues(values ...FunctionArgument) EncodeOption {
	return func(o *encodeOptions) {
		o.trailingValues = append(o.trailingValues, values...)
	}
}

// FunctionEncoder 函数调用数据编码器
type FunctionEncoder interface {
	// Encode 编码函数调用：选择器 + 参数（+ 追加值）
	Encode(functionName string, args []FunctionArgument, opts ...EncodeOption) (FunctionData, error)
	// EncodeConstructor 编码构造函数参数（无选择器）
	EncodeConstructor(args []FunctionArgument) (FunctionData, error)
}

type functionEncoder struct{}

// NewFunctionEncoder 创建编码器；编码器无状态，可并发使用
func NewFunctionEncoder() FunctionEncoder {
	return functionEncoder{}
}

func (functionEncoder) Encode(functionName string, args []FunctionArgument, opts ...EncodeOption) (FunctionData, error) {
	return EncodeFunctionCall(functionName, args, opts...)
}

func (functionEncoder) EncodeConstructor(args []FunctionArgument) (FunctionData, error) {
	return EncodeConstructor(args)
}

// EncodeFunctionCall 编码函数调用数据
//
// 相同输入总是得到相同输出；任何类型或取值不匹配都返回 ENCODING_ERROR。
func EncodeFunctionCall(functionName string, args []FunctionArgument, opts ...EncodeOption) (FunctionData, error) {
	options := &encodeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	name := strings.TrimSpace(functionName)
	if name == "" {
		return "", types.NewEncodingError("function name must not be empty")
	}

	for i, out := range options.outputTypes {
		if _, err := out.parse(); err != nil {
			return "", types.NewEncodingError("output %d: %v", i, err)
		}
	}

	arguments, err := parseArguments(args)
	if err != nil {
		return "", err
	}
	packed, err := packArguments(arguments, args)
	if err != nil {
		return "", err
	}

	var trailing []byte
	if len(options.trailingValues) > 0 {
		trailingArgs, err := parseArguments(options.trailingValues)
		if err != nil {
			return "", err
		}
		trailing, err = packArguments(trailingArgs, options.trailingValues)
		if err != nil {
			return "", err
		}
	}

	selector := crypto.Keccak256([]byte(signatureOf(name, arguments)))[:SelectorLength]

	data := make([]byte, 0, len(selector)+len(packed)+len(trailing))
	data = append(data, selector...)
	data = append(data, packed...)
	data = append(data, trailing...)
	return NewFunctionData(data), nil
}

// EncodeConstructor 编码构造函数参数；空参数得到 "0x"
func EncodeConstructor(args []FunctionArgument) (FunctionData, error) {
	arguments, err := parseArguments(args)
	if err != nil {
		return "", err
	}
	packed, err := packArguments(arguments, args)
	if err != nil {
		return "", err
	}
	return NewFunctionData(packed), nil
}

// FunctionSignature 规范函数签名，例如 "transfer(address,uint256)"
func FunctionSignature(functionName string, argTypes []AbiType) (string, error) {
	name := strings.TrimSpace(functionName)
	if name == "" {
		return "", types.NewEncodingError("function name must not be empty")
	}
	arguments := make(abi.Arguments, 0, len(argTypes))
	for i, t := range argTypes {
		parsed, err := t.parse()
		if err != nil {
			return "", types.NewEncodingError("argument %d: %v", i, err)
		}
		arguments = append(arguments, abi.Argument{Type: parsed})
	}
	return signatureOf(name, arguments), nil
}

// Selector 计算函数选择器（规范签名 Keccak-256 的前 4 字节）
func Selector(functionName string, argTypes []AbiType) ([]byte, error) {
	sig, err := FunctionSignature(functionName, argTypes)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256([]byte(sig))[:SelectorLength], nil
}

// DecodeValues 按输出类型解码 ABI 数据
//
// 整数统一返回 *big.Int，定长字节返回 []byte，数组与元组返回 []any。
func DecodeValues(outputTypes []AbiType, data []byte) ([]any, error) {
	if len(outputTypes) == 0 {
		return []any{}, nil
	}
	arguments := make(abi.Arguments, 0, len(outputTypes))
	for i, t := range outputTypes {
		parsed, err := t.parse()
		if err != nil {
			return nil, types.NewEncodingError("output %d: %v", i, err)
		}
		arguments = append(arguments, abi.Argument{Type: parsed})
	}

	values, err := arguments.UnpackValues(data)
	if err != nil {
		return nil, fmt.Errorf("decode abi values: %w", err)
	}

	decoded := make([]any, len(values))
	for i, v := range values {
		decoded[i] = normalizeDecoded(arguments[i].Type, reflect.ValueOf(v))
	}
	return decoded, nil
}

func signatureOf(name string, arguments abi.Arguments) string {
	typeNames := make([]string, len(arguments))
	for i, arg := range arguments {
		typeNames[i] = arg.Type.String()
	}
	return name + "(" + strings.Join(typeNames, ",") + ")"
}

func parseArguments(args []FunctionArgument) (abi.Arguments, error) {
	arguments := make(abi.Arguments, 0, len(args))
	for i, arg := range args {
		parsed, err := arg.Type.parse()
		if err != nil {
			return nil, types.NewEncodingError("argument %d: %v", i, err)
		}
		arguments = append(arguments, abi.Argument{Type: parsed})
	}
	return arguments, nil
}

func packArguments(arguments abi.Arguments, args []FunctionArgument) ([]byte, error) {
	values := make([]any, len(args))
	for i, arg := range args {
		v, err := convertValue(arguments[i].Type, arg.Value)
		if err != nil {
			return nil, types.NewEncodingError("argument %d (%s): %v", i, arguments[i].Type.String(), err)
		}
		values[i] = v.Interface()
	}
	packed, err := arguments.Pack(values...)
	if err != nil {
		return nil, types.NewEncodingError("pack arguments: %v", err)
	}
	return packed, nil
}

var bigIntType = reflect.TypeOf(&big.Int{})

// convertValue 将调用方的值转换为 abi 包要求的 Go 类型
func convertValue(t abi.Type, value any) (reflect.Value, error) {
	if value == nil {
		return reflect.Value{}, fmt.Errorf("value is nil")
	}

	switch t.T {
	case abi.AddressTy:
		addr, err := ToAddress(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(addr), nil

	case abi.BoolTy:
		b, ok := value.(bool)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected bool, got %T", value)
		}
		return reflect.ValueOf(b), nil

	case abi.StringTy:
		s, ok := value.(string)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected string, got %T", value)
		}
		return reflect.ValueOf(s), nil

	case abi.IntTy, abi.UintTy:
		n, err := toBigInt(value)
		if err != nil {
			return reflect.Value{}, err
		}
		if err := checkIntRange(n, t.Size, t.T == abi.UintTy); err != nil {
			return reflect.Value{}, err
		}
		goType := t.GetType()
		if goType == bigIntType {
			return reflect.ValueOf(new(big.Int).Set(n)), nil
		}
		out := reflect.New(goType).Elem()
		if t.T == abi.UintTy {
			out.SetUint(n.Uint64())
		} else {
			out.SetInt(n.Int64())
		}
		return out, nil

	case abi.FixedBytesTy:
		b, err := toBytes(value)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(b) != t.Size {
			return reflect.Value{}, fmt.Errorf("expected exactly %d bytes, got %d", t.Size, len(b))
		}
		out := reflect.New(t.GetType()).Elem()
		reflect.Copy(out, reflect.ValueOf(b))
		return out, nil

	case abi.BytesTy:
		b, err := toBytes(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case abi.SliceTy, abi.ArrayTy:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return reflect.Value{}, fmt.Errorf("expected list, got %T", value)
		}
		n := rv.Len()
		var out reflect.Value
		if t.T == abi.ArrayTy {
			if n != t.Size {
				return reflect.Value{}, fmt.Errorf("expected %d elements, got %d", t.Size, n)
			}
			out = reflect.New(t.GetType()).Elem()
		} else {
			out = reflect.MakeSlice(t.GetType(), n, n)
		}
		for i := 0; i < n; i++ {
			ev, err := convertValue(*t.Elem, rv.Index(i).Interface())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil

	case abi.TupleTy:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return reflect.Value{}, fmt.Errorf("expected tuple components as list, got %T", value)
		}
		if rv.Len() != len(t.TupleElems) {
			return reflect.Value{}, fmt.Errorf("expected %d tuple components, got %d", len(t.TupleElems), rv.Len())
		}
		out := reflect.New(t.TupleType).Elem()
		for i, elem := range t.TupleElems {
			ev, err := convertValue(*elem, rv.Index(i).Interface())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("component %d: %w", i, err)
			}
			out.Field(i).Set(ev)
		}
		return out, nil
	}

	return reflect.Value{}, fmt.Errorf("unsupported abi type %s", t.String())
}

func toBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("value is nil")
		}
		return v, nil
	case big.Int:
		return &v, nil
	case string:
		n, ok := new(big.Int).SetString(strings.TrimSpace(v), 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", v)
		}
		return n, nil
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("expected integer, got %T", value)
}

// checkIntRange 校验整数是否落在声明位宽的取值范围内
func checkIntRange(n *big.Int, bits int, unsigned bool) error {
	if unsigned {
		if n.Sign() < 0 {
			return fmt.Errorf("negative value %s for uint%d", n, bits)
		}
		if n.BitLen() > bits {
			return fmt.Errorf("value %s overflows uint%d", n, bits)
		}
		return nil
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(bits-1))
	minValue := new(big.Int).Neg(limit)
	maxValue := new(big.Int).Sub(limit, big.NewInt(1))
	if n.Cmp(minValue) < 0 || n.Cmp(maxValue) > 0 {
		return fmt.Errorf("value %s overflows int%d", n, bits)
	}
	return nil
}

func toBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case common.Hash:
		return v.Bytes(), nil
	case string:
		b, err := hexutil.Decode(v)
		if err != nil {
			return nil, fmt.Errorf("invalid hex bytes %q: %w", v, err)
		}
		return b, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		b := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(b), rv)
		return b, nil
	}
	return nil, fmt.Errorf("expected bytes, got %T", value)
}

// normalizeDecoded 将 abi 包解码结果转换为统一表示
func normalizeDecoded(t abi.Type, v reflect.Value) any {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		if v.Type() == bigIntType {
			return v.Interface()
		}
		if t.T == abi.UintTy {
			return new(big.Int).SetUint64(v.Uint())
		}
		return big.NewInt(v.Int())
	case abi.FixedBytesTy:
		b := make([]byte, v.Len())
		reflect.Copy(reflect.ValueOf(b), v)
		return b
	case abi.SliceTy, abi.ArrayTy:
		out := make([]any, v.Len())
		for i := range out {
			out[i] = normalizeDecoded(*t.Elem, v.Index(i))
		}
		return out
	case abi.TupleTy:
		out := make([]any, len(t.TupleElems))
		for i, elem := range t.TupleElems {
			out[i] = normalizeDecoded(*elem, v.Field(i))
		}
		return out
	}
	return v.Interface()
}
