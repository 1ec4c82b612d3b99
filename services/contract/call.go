package contract

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/weisyn/blockchain-request-go/client"
	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
)

// FunctionCall 待编码的函数调用
type FunctionCall struct {
	Contract     types.DeployedContractIdentifier
	FunctionName string
	Arguments    []utils.FunctionArgument
	OutputTypes  []utils.AbiType
}

// EncodedCall 解析后的目标合约与调用数据
type EncodedCall struct {
	Contract types.ResolvedContract
	CallData utils.FunctionData
}

// ReadonlyCallRequest 只读调用参数
type ReadonlyCallRequest struct {
	FunctionCall
	CallerAddress common.Address
	Block         types.BlockParameter // 零值表示 latest
}

// ReadonlyCallResult 只读调用结果
type ReadonlyCallResult struct {
	EncodedCall
	Block  types.BlockParameter
	Values []any // 按 OutputTypes 解码
}

// CallService 合约函数调用编码与只读调用
type CallService struct {
	resolver *IdentifierResolver
	encoder  utils.FunctionEncoder
	chain    client.ChainQuery
	logger   logger.Logger
}

// NewCallService 创建调用服务；encoder 为 nil 时使用默认编码器
func NewCallService(resolver *IdentifierResolver, encoder utils.FunctionEncoder, chain client.ChainQuery, lggr logger.Logger) *CallService {
	if encoder == nil {
		encoder = utils.NewFunctionEncoder()
	}
	if lggr == nil {
		lggr = logger.Nop()
	}
	return &CallService{
		resolver: resolver,
		encoder:  encoder,
		chain:    chain,
		logger:   lggr.Named("call"),
	}
}

// EncodeFunctionCall 解析合约标识并编码调用数据
func (s *CallService) EncodeFunctionCall(ctx context.Context, call *FunctionCall, project *types.Project) (*EncodedCall, error) {
	// 1. 参数验证
	if call == nil || call.FunctionName == "" {
		return nil, types.NewValidationError("function name is required")
	}

	// 2. 解析合约
	resolved, err := s.resolver.Resolve(ctx, call.Contract, project)
	if err != nil {
		return nil, err
	}

	// 3. 编码
	data, err := s.encoder.Encode(call.FunctionName, call.Arguments, utils.WithOutputTypes(call.OutputTypes...))
	if err != nil {
		return nil, err
	}

	s.logger.Debugw("Encoded function call", "contract", resolved.Address.Hex(), "function", call.FunctionName)
	return &EncodedCall{Contract: *resolved, CallData: data}, nil
}

// CallReadonly 编码后执行 eth_call 并解码返回值
func (s *CallService) CallReadonly(ctx context.Context, req *ReadonlyCallRequest, project *types.Project) (*ReadonlyCallResult, error) {
	if req == nil {
		return nil, types.NewValidationError("readonly call parameters are required")
	}

	encoded, err := s.EncodeFunctionCall(ctx, &req.FunctionCall, project)
	if err != nil {
		return nil, err
	}

	block := req.Block
	if block.Number == nil && block.Name == "" {
		block = types.BlockLatest
	}

	values, err := s.chain.ReadonlyCall(ctx, project.ChainSpec(), encoded.Contract.Address, req.CallerAddress,
		encoded.CallData, req.OutputTypes, block)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Executed readonly call", "contract", encoded.Contract.Address.Hex(), "function", req.FunctionName, "block", block.String())
	return &ReadonlyCallResult{EncodedCall: *encoded, Block: block, Values: values}, nil
}
