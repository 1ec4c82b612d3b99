package utils

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weisyn/blockchain-request-go/types"
)

const (
	transferRecipient = "0x495d96FaaaCEe16Dd3ca62cAB20a0F9548CdddB4"
	transferArgsHex   = "000000000000000000000000495d96faaacee16dd3ca62cab20a0f9548cdddb4" +
		"00000000000000000000000000000000000000000000000000000000000003e8"
)

func transferArgs() []FunctionArgument {
	return []FunctionArgument{
		{Type: AbiAddress, Value: common.HexToAddress(transferRecipient)},
		{Type: AbiUint256, Value: big.NewInt(1000)},
	}
}

func TestEncodeFunctionCall_Transfer(t *testing.T) {
	encoder := NewFunctionEncoder()

	data, err := encoder.Encode("transfer", transferArgs(), WithOutputTypes(AbiBool))
	require.NoError(t, err)

	assert.Equal(t, FunctionData("0xa9059cbb"+transferArgsHex), data)
	assert.Equal(t, common.FromHex("0xa9059cbb"), data.Selector())
	assert.Len(t, data.Bytes(), 4+64)
}

func TestEncodeFunctionCall_Deterministic(t *testing.T) {
	first, err := EncodeFunctionCall("transfer", transferArgs())
	require.NoError(t, err)
	second, err := EncodeFunctionCall("transfer", transferArgs())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEncodeFunctionCall_OutputTypesDoNotChangeSelector(t *testing.T) {
	withoutOutputs, err := EncodeFunctionCall("transfer", transferArgs())
	require.NoError(t, err)
	withOutputs, err := EncodeFunctionCall("transfer", transferArgs(), WithOutputTypes(AbiBool, AbiUint256))
	require.NoError(t, err)

	assert.Equal(t, withoutOutputs, withOutputs)

	_, err = EncodeFunctionCall("transfer", transferArgs(), WithOutputTypes("uint7"))
	assert.True(t, errors.Is(err, types.ErrEncoding))
}

func TestEncodeFunctionCall_AcceptedValueForms(t *testing.T) {
	tests := []struct {
		name string
		args []FunctionArgument
	}{
		{
			name: "address string and decimal amount",
			args: []FunctionArgument{
				{Type: AbiAddress, Value: transferRecipient},
				{Type: AbiUint256, Value: "1000"},
			},
		},
		{
			name: "lowercase address and go int",
			args: []FunctionArgument{
				{Type: AbiAddress, Value: strings.ToLower(transferRecipient)},
				{Type: AbiUint256, Value: 1000},
			},
		},
		{
			name: "uint alias",
			args: []FunctionArgument{
				{Type: AbiAddress, Value: common.HexToAddress(transferRecipient)},
				{Type: "uint", Value: uint64(1000)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeFunctionCall("transfer", tt.args)
			require.NoError(t, err)
			assert.Equal(t, FunctionData("0xa9059cbb"+transferArgsHex), data)
		})
	}
}

func TestEncodeFunctionCall_DynamicString(t *testing.T) {
	data, err := EncodeFunctionCall("f", []FunctionArgument{{Type: AbiString, Value: "abc"}})
	require.NoError(t, err)

	want := "0x91e145ef" +
		"0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000003" +
		"6162630000000000000000000000000000000000000000000000000000000000"
	assert.Equal(t, FunctionData(want), data)
}

func TestEncodeFunctionCall_SignedAndFixedArray(t *testing.T) {
	data, err := EncodeFunctionCall("set", []FunctionArgument{
		{Type: IntOf(8), Value: -1},
		{Type: ArrayOf(AbiUint256, 2), Value: []int{1, 2}},
	})
	require.NoError(t, err)

	want := "0xca54fdab" +
		"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff" +
		"0000000000000000000000000000000000000000000000000000000000000001" +
		"0000000000000000000000000000000000000000000000000000000000000002"
	assert.Equal(t, FunctionData(want), data)
}

func TestEncodeFunctionCall_TrailingValues(t *testing.T) {
	id := "7d86b0ac-a9a6-40fc-ac6d-2a29ca687f73"

	data, err := EncodeFunctionCall("transfer", transferArgs(),
		WithTrailingValues(FunctionArgument{Type: AbiString, Value: id}))
	require.NoError(t, err)

	trailing := "0000000000000000000000000000000000000000000000000000000000000020" +
		"0000000000000000000000000000000000000000000000000000000000000024" +
		"37643836623061632d613961362d343066632d616336642d3261323963613638" +
		"3766373300000000000000000000000000000000000000000000000000000000"
	assert.Equal(t, FunctionData("0xa9059cbb"+transferArgsHex+trailing), data)
}

func TestEncodeConstructor(t *testing.T) {
	data, err := EncodeConstructor(transferArgs())
	require.NoError(t, err)
	assert.Equal(t, FunctionData("0x"+transferArgsHex), data)

	empty, err := NewFunctionEncoder().EncodeConstructor(nil)
	require.NoError(t, err)
	assert.Equal(t, FunctionData("0x"), empty)
	assert.Nil(t, empty.Selector())
}

func TestFunctionSignature(t *testing.T) {
	tests := []struct {
		name     string
		function string
		types    []AbiType
		want     string
		selector string
	}{
		{"no args", "name", nil, "name()", "06fdde03"},
		{"single", "balanceOf", []AbiType{AbiAddress}, "balanceOf(address)", "70a08231"},
		{
			"tuple array",
			"submit",
			[]AbiType{DynamicArrayOf(TupleOf(AbiAddress, "uint")), AbiBytes32, AbiBool},
			"submit((address,uint256)[],bytes32,bool)",
			"a1e6346f",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := FunctionSignature(tt.function, tt.types)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sig)

			sel, err := Selector(tt.function, tt.types)
			require.NoError(t, err)
			assert.Equal(t, common.FromHex(tt.selector), sel)
		})
	}
}

func TestEncodeFunctionCall_TupleValues(t *testing.T) {
	recipient := common.HexToAddress(transferRecipient)
	args := []FunctionArgument{
		{Type: DynamicArrayOf(TupleOf(AbiAddress, AbiUint256)), Value: [][]any{
			{recipient, big.NewInt(1)},
			{recipient, big.NewInt(2)},
		}},
		{Type: AbiBytes32, Value: common.Hash{0x01}},
		{Type: AbiBool, Value: true},
	}

	data, err := EncodeFunctionCall("submit", args)
	require.NoError(t, err)
	assert.Equal(t, common.FromHex("0xa1e6346f"), data.Selector())

	outputs := []AbiType{args[0].Type, args[1].Type, args[2].Type}
	decoded, err := DecodeValues(outputs, data.Bytes()[SelectorLength:])
	require.NoError(t, err)
	require.Len(t, decoded, 3)

	tuples, ok := decoded[0].([]any)
	require.True(t, ok)
	require.Len(t, tuples, 2)
	second, ok := tuples[1].([]any)
	require.True(t, ok)
	assert.Equal(t, recipient, second[0])
	assert.Equal(t, 0, big.NewInt(2).Cmp(second[1].(*big.Int)))
	assert.Equal(t, common.Hash{0x01}.Bytes(), decoded[1])
	assert.Equal(t, true, decoded[2])
}

func TestDecodeValues_StaticRoundTrip(t *testing.T) {
	recipient := common.HexToAddress(transferRecipient)
	args := []FunctionArgument{
		{Type: AbiAddress, Value: recipient},
		{Type: AbiUint256, Value: big.NewInt(1000)},
		{Type: AbiUint8, Value: uint8(7)},
		{Type: IntOf(64), Value: int64(-42)},
		{Type: BytesOf(4), Value: []byte{0xde, 0xad, 0xbe, 0xef}},
		{Type: AbiBool, Value: false},
	}

	data, err := EncodeConstructor(args)
	require.NoError(t, err)

	outputs := make([]AbiType, len(args))
	for i, a := range args {
		outputs[i] = a.Type
	}
	decoded, err := DecodeValues(outputs, data.Bytes())
	require.NoError(t, err)

	assert.Equal(t, recipient, decoded[0])
	assert.Equal(t, "1000", decoded[1].(*big.Int).String())
	assert.Equal(t, "7", decoded[2].(*big.Int).String())
	assert.Equal(t, "-42", decoded[3].(*big.Int).String())
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, decoded[4])
	assert.Equal(t, false, decoded[5])

	empty, err := DecodeValues(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEncodeFunctionCall_Errors(t *testing.T) {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	tests := []struct {
		name     string
		function string
		args     []FunctionArgument
	}{
		{"empty name", "  ", nil},
		{"unknown type", "f", []FunctionArgument{{Type: "uint7", Value: 1}}},
		{"bad fixed bytes size", "f", []FunctionArgument{{Type: "bytes33", Value: []byte{}}}},
		{"zero padded uint width", "f", []FunctionArgument{{Type: "uint08", Value: 1}}},
		{"zero padded bytes length", "f", []FunctionArgument{{Type: "bytes01", Value: []byte{1}}}},
		{"zero padded array length", "f", []FunctionArgument{{Type: "uint256[02]", Value: []int{1, 2}}}},
		{"signed width", "f", []FunctionArgument{{Type: "uint+8", Value: 1}}},
		{"unbalanced tuple", "f", []FunctionArgument{{Type: "(address,uint256", Value: []any{}}}},
		{"nil value", "f", []FunctionArgument{{Type: AbiUint256, Value: nil}}},
		{"uint8 overflow", "f", []FunctionArgument{{Type: AbiUint8, Value: 256}}},
		{"negative uint", "f", []FunctionArgument{{Type: AbiUint256, Value: -1}}},
		{"int8 underflow", "f", []FunctionArgument{{Type: IntOf(8), Value: -129}}},
		{"uint256 overflow", "f", []FunctionArgument{{Type: AbiUint256, Value: new(big.Int).Add(maxUint256, big.NewInt(1))}}},
		{"bytes32 too short", "f", []FunctionArgument{{Type: AbiBytes32, Value: make([]byte, 31)}}},
		{"bool from string", "f", []FunctionArgument{{Type: AbiBool, Value: "true"}}},
		{"address not hex", "f", []FunctionArgument{{Type: AbiAddress, Value: "0x1234"}}},
		{"integer from bool", "f", []FunctionArgument{{Type: AbiUint256, Value: true}}},
		{"fixed array length", "f", []FunctionArgument{{Type: ArrayOf(AbiUint256, 2), Value: []int{1}}}},
		{"tuple arity", "f", []FunctionArgument{{Type: TupleOf(AbiAddress, AbiUint256), Value: []any{transferRecipient}}}},
		{"array from scalar", "f", []FunctionArgument{{Type: DynamicArrayOf(AbiUint256), Value: 1}}},
		{"bad trailing", "f", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []EncodeOption
			if tt.name == "bad trailing" {
				opts = append(opts, WithTrailingValues(FunctionArgument{Type: AbiUint8, Value: 300}))
			}
			_, err := EncodeFunctionCall(tt.function, tt.args, opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrEncoding), "expected encoding error, got %v", err)
		})
	}
}

func TestEncodeFunctionCall_BoundaryValues(t *testing.T) {
	maxUint256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	minInt256 := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 255))

	tests := []struct {
		name string
		arg  FunctionArgument
	}{
		{"max uint256", FunctionArgument{Type: AbiUint256, Value: maxUint256}},
		{"min int256", FunctionArgument{Type: AbiInt256, Value: minInt256}},
		{"max uint8", FunctionArgument{Type: AbiUint8, Value: 255}},
		{"min int8", FunctionArgument{Type: IntOf(8), Value: -128}},
		{"uint24 big width", FunctionArgument{Type: UintOf(24), Value: 1<<24 - 1}},
		{"empty dynamic array", FunctionArgument{Type: DynamicArrayOf(AbiAddress), Value: []common.Address{}}},
		{"hex bytes", FunctionArgument{Type: AbiBytes, Value: "0x0102"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeFunctionCall("f", []FunctionArgument{tt.arg})
			assert.NoError(t, err)
		})
	}
}

func TestAbiType_Canonical(t *testing.T) {
	tests := []struct {
		in      AbiType
		want    string
		wantErr bool
	}{
		{in: "uint", want: "uint256"},
		{in: "int[]", want: "int256[]"},
		{in: "byte", want: "bytes1"},
		{in: "( address , uint )[2]", want: "(address,uint256)[2]"},
		{in: TupleOf(AbiBool, TupleOf(AbiString, AbiBytes)), want: "(bool,(string,bytes))"},
		{in: "uint08", wantErr: true},
		{in: "int064", wantErr: true},
		{in: "bytes01", wantErr: true},
		{in: "address[01]", wantErr: true},
		{in: "(uint08,bool)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.in), func(t *testing.T) {
			got, err := tt.in.Canonical()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalSignature(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "transfer(address,uint256)", want: "transfer(address,uint256)"},
		{in: " transfer(address, uint) ", want: "transfer(address,uint256)"},
		{in: "totalSupply()", want: "totalSupply()"},
		{in: "Swap((address,uint)[],bytes)", want: "Swap((address,uint256)[],bytes)"},
		{in: "transfer", wantErr: true},
		{in: "(address)", wantErr: true},
		{in: "f(uint7)", wantErr: true},
		{in: "f(uint08)", wantErr: true},
		{in: "f(bytes01,uint256)", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CanonicalSignature(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
