// Package deployment 合约部署请求：生成部署数据、记录部署、附加部署交易并由链上交易派生状态。
//
// 部署记录同时是 IdentifierResolver 解析合约别名的数据来源，因此不会在读取后删除。
package deployment

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/weisyn/blockchain-request-go/client"
	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
)

// Service 部署请求服务接口
type Service interface {
	// CreateDeploymentRequest 按合约清单的字节码与构造参数创建部署请求
	CreateDeploymentRequest(ctx context.Context, req *CreateDeploymentRequest, project *types.Project) (*types.ContractDeployment, error)

	// GetDeploymentRequest 读取部署请求及状态；rpcURL 可选，非空时覆盖链的默认 RPC
	GetDeploymentRequest(ctx context.Context, id uuid.UUID, rpcURL string) (*Result, error)

	// GetDeploymentRequestByAlias 按项目内别名读取部署请求
	GetDeploymentRequestByAlias(ctx context.Context, projectID uuid.UUID, alias string, rpcURL string) (*Result, error)

	// ListDeploymentRequests 项目下全部部署请求；deployedOnly 为 true 时只返回 SUCCESS
	ListDeploymentRequests(ctx context.Context, projectID uuid.UUID, deployedOnly bool, rpcURL string) ([]*Result, error)

	// AttachTxInfo 附加部署交易哈希与部署者
	AttachTxInfo(ctx context.Context, id uuid.UUID, txHash common.Hash, deployer common.Address) error
}

// CreateDeploymentRequest 部署请求参数
type CreateDeploymentRequest struct {
	Alias           string // 项目内唯一
	ContractID      string // 合约清单 ID
	ConstructorArgs []utils.FunctionArgument
	InitialValue    *big.Int        // 部署时发送的原生币，nil 视为 0
	DeployerAddress *common.Address // 可选，限定部署钱包
	RedirectURL     string          // 可选，支持 ${id} 占位符
}

// Result 部署请求、状态与部署交易
type Result struct {
	Deployment  *types.ContractDeployment
	Status      types.Status
	Transaction *types.TransactionInfo // 尚未附加交易或尚未打包时为 nil
}

// Option 服务选项
type Option func(*deploymentService)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *deploymentService) {
		s.now = now
	}
}

// WithIDGenerator 替换 ID 生成方式
func WithIDGenerator(newID func() uuid.UUID) Option {
	return func(s *deploymentService) {
		s.newID = newID
	}
}

// WithEncoder 替换构造参数编码器
func WithEncoder(encoder utils.FunctionEncoder) Option {
	return func(s *deploymentService) {
		s.encoder = encoder
	}
}

// WithBatchConfig 列表查询交易时的分批与并发配置
func WithBatchConfig(config *utils.BatchConfig) Option {
	return func(s *deploymentService) {
		s.batch = config
	}
}

// deploymentService Service 实现
type deploymentService struct {
	deployments store.DeploymentStore
	manifests   store.DeploymentManifestStore
	chain       client.ChainQuery
	encoder     utils.FunctionEncoder
	batch       *utils.BatchConfig
	logger      logger.Logger
	now         func() time.Time
	newID       func() uuid.UUID
}

// NewService 创建部署请求服务
func NewService(
	deployments store.DeploymentStore,
	manifests store.DeploymentManifestStore,
	chain client.ChainQuery,
	lggr logger.Logger,
	opts ...Option,
) Service {
	if lggr == nil {
		lggr = logger.Nop()
	}
	s := &deploymentService{
		deployments: deployments,
		manifests:   manifests,
		chain:       chain,
		encoder:     utils.NewFunctionEncoder(),
		batch:       utils.DefaultBatchConfig(),
		logger:      lggr.Named("deployment"),
		now:         time.Now,
		newID:       uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDeploymentRequest 创建部署请求
//
// **流程**：
// 1. 参数验证
// 2. 读取合约清单，取部署字节码
// 3. 部署数据 = 字节码 + 构造参数编码
// 4. 持久化；别名重复返回校验错误
func (s *deploymentService) CreateDeploymentRequest(ctx context.Context, req *CreateDeploymentRequest, project *types.Project) (*types.ContractDeployment, error) {
	// 1. 参数验证
	if req == nil {
		return nil, types.NewValidationError("deployment request parameters are required")
	}
	if project == nil {
		return nil, types.NewValidationError("project is required")
	}
	if req.Alias == "" {
		return nil, types.NewValidationError("alias is required")
	}
	if err := types.ValidateAmount("initial value", req.InitialValue); err != nil {
		return nil, err
	}

	// 2. 合约清单
	manifest, err := s.manifests.ManifestFor(ctx, req.ContractID, project.ID)
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, types.NewNotFoundError("contract manifest not found for contract ID: %s", req.ContractID)
	}
	if len(manifest.Bytecode) == 0 {
		return nil, types.NewValidationError("contract %s has no deployable bytecode", req.ContractID)
	}

	// 3. 部署数据
	constructor, err := s.encoder.EncodeConstructor(req.ConstructorArgs)
	if err != nil {
		return nil, err
	}
	data := append(append([]byte{}, manifest.Bytecode...), constructor.Bytes()...)

	// 4. 持久化
	id := s.newID()
	template := req.RedirectURL
	if template == "" {
		template = project.BaseRedirectURL + types.RequestKindDeployment.RedirectPath()
	}
	record := &types.ContractDeployment{
		ID:              id,
		ProjectID:       project.ID,
		ChainID:         project.ChainID,
		Alias:           req.Alias,
		ContractID:      req.ContractID,
		RedirectURL:     types.SubstituteRequestID(template, id),
		ContractData:    data,
		InitialValue:    req.InitialValue,
		DeployerAddress: req.DeployerAddress,
		CreatedAt:       s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.deployments.Store(ctx, record); err != nil {
		if errors.Is(err, store.ErrDeploymentExists) {
			return nil, types.NewValidationError("contract deployment with alias %q already exists", req.Alias)
		}
		return nil, err
	}

	s.logger.Infow("Created contract deployment request", "id", id, "alias", req.Alias, "contractId", req.ContractID, "projectId", project.ID)
	return record, nil
}

// GetDeploymentRequest 按 ID 读取
func (s *deploymentService) GetDeploymentRequest(ctx context.Context, id uuid.UUID, rpcURL string) (*Result, error) {
	s.logger.Debugw("Fetching contract deployment request", "id", id)

	record, err := s.deployments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, types.NewNotFoundError("contract deployment request not found for ID: %s", id)
	}
	return s.withTransaction(ctx, record, rpcURL)
}

// GetDeploymentRequestByAlias 按别名读取
func (s *deploymentService) GetDeploymentRequestByAlias(ctx context.Context, projectID uuid.UUID, alias string, rpcURL string) (*Result, error) {
	s.logger.Debugw("Fetching contract deployment request by alias", "projectId", projectID, "alias", alias)

	record, err := s.deployments.GetByAlias(ctx, projectID, alias)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, types.NewNotFoundError("contract deployment request not found for projectId: %s and alias: %s", projectID, alias)
	}
	return s.withTransaction(ctx, record, rpcURL)
}

// ListDeploymentRequests 列出部署请求，交易并发查询
func (s *deploymentService) ListDeploymentRequests(ctx context.Context, projectID uuid.UUID, deployedOnly bool, rpcURL string) ([]*Result, error) {
	s.logger.Debugw("Fetching contract deployment requests", "projectId", projectID, "deployedOnly", deployedOnly)

	records, err := s.deployments.GetAllByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	batch := utils.BatchQuery(ctx, records, func(ctx context.Context, record *types.ContractDeployment, _ int) (*Result, error) {
		return s.withTransaction(ctx, record, rpcURL)
	}, s.batch)
	if err := batch.FirstError(); err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(records))
	for _, item := range batch.Items {
		if deployedOnly && item.Value.Status != types.StatusSuccess {
			continue
		}
		results = append(results, item.Value)
	}
	return results, nil
}

// AttachTxInfo 附加部署交易；记录不存在或已附加交易时返回 AttachmentError
func (s *deploymentService) AttachTxInfo(ctx context.Context, id uuid.UUID, txHash common.Hash, deployer common.Address) error {
	s.logger.Infow("Attaching transaction info", "id", id, "txHash", txHash.Hex(), "deployer", deployer.Hex())

	attached, err := s.deployments.SetTxInfo(ctx, id, txHash, deployer)
	if err != nil {
		return err
	}
	if !attached {
		return types.NewAttachmentError("unable to attach transaction info to contract deployment request with ID: %s", id)
	}
	return nil
}

// withTransaction 查询部署交易、必要时回填合约地址并派生状态
//
// **状态**：
//   - 导入的合约 → SUCCESS
//   - 未附加交易或交易尚未打包 → PENDING
//   - 交易成功且与部署数据、金额、部署者、部署地址一致 → SUCCESS
//   - 其余 → FAILED
func (s *deploymentService) withTransaction(ctx context.Context, record *types.ContractDeployment, rpcURL string) (*Result, error) {
	// 1. 部署交易
	var info *types.TransactionInfo
	if record.TxHash != nil && s.chain != nil {
		var err error
		chain := types.ChainSpec{ChainID: record.ChainID, CustomRPCURL: rpcURL}
		info, err = s.chain.TransactionInfo(ctx, chain, *record.TxHash)
		if err != nil {
			return nil, err
		}
	}

	// 2. 回填合约地址
	if err := s.setContractAddressIfNecessary(ctx, record, info); err != nil {
		return nil, err
	}

	// 3. 状态
	status := types.StatusFailed
	switch {
	case record.Imported:
		status = types.StatusSuccess
	case info == nil:
		status = types.StatusPending
	case record.ExpectedTransaction().Matches(info):
		status = types.StatusSuccess
	}
	return &Result{Deployment: record, Status: status, Transaction: info}, nil
}

func (s *deploymentService) setContractAddressIfNecessary(ctx context.Context, record *types.ContractDeployment, info *types.TransactionInfo) error {
	if record.ContractAddress != nil || info == nil || info.DeployedContractAddress == nil {
		return nil
	}

	address := *info.DeployedContractAddress
	if _, err := s.deployments.SetContractAddress(ctx, record.ID, address); err != nil {
		return err
	}
	s.logger.Infow("Stored deployed contract address", "id", record.ID, "address", address.Hex())
	record.ContractAddress = &address
	return nil
}
