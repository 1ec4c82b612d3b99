package contract

import (
	"context"
	"fmt"

	"github.com/weisyn/blockchain-request-go/client"
	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
)

// IdentifierResolver 把已部署合约标识解析为链上地址
type IdentifierResolver struct {
	deployments store.DeploymentStore
	chain       client.ChainQuery
	logger      logger.Logger
}

// NewIdentifierResolver 创建标识解析器
func NewIdentifierResolver(deployments store.DeploymentStore, chain client.ChainQuery, lggr logger.Logger) *IdentifierResolver {
	if lggr == nil {
		lggr = logger.Nop()
	}
	return &IdentifierResolver{
		deployments: deployments,
		chain:       chain,
		logger:      lggr.Named("resolver"),
	}
}

// Resolve 解析合约标识
//
// **规则**：
//   - 按 ID 或别名：记录不存在或属于其他项目返回 NOT_FOUND；
//     尚无地址但已知部署交易时向链查询部署地址并回写；仍无地址返回 CONTRACT_NOT_YET_DEPLOYED
//   - 显式地址：直接返回，不查询存储，DeploymentID 为 nil
func (r *IdentifierResolver) Resolve(ctx context.Context, identifier types.DeployedContractIdentifier, project *types.Project) (*types.ResolvedContract, error) {
	if project == nil {
		return nil, types.NewValidationError("project is required")
	}

	switch {
	case identifier.Address != nil:
		r.logger.Debugw("Using explicit contract address", "address", identifier.Address.Hex())
		return &types.ResolvedContract{Address: *identifier.Address}, nil

	case identifier.ID != nil:
		r.logger.Debugw("Fetching deployed contract by id", "id", identifier.ID)
		deployment, err := r.deployments.GetByID(ctx, *identifier.ID)
		if err != nil {
			return nil, fmt.Errorf("get deployment %s: %w", identifier.ID, err)
		}
		if deployment == nil || deployment.ProjectID != project.ID {
			return nil, types.NewNotFoundError("deployed contract not found for ID: %s", identifier.ID)
		}
		return r.resolveDeployment(ctx, deployment, project)

	case identifier.Alias != "":
		r.logger.Debugw("Fetching deployed contract by alias", "alias", identifier.Alias, "projectId", project.ID)
		deployment, err := r.deployments.GetByAlias(ctx, project.ID, identifier.Alias)
		if err != nil {
			return nil, fmt.Errorf("get deployment %q: %w", identifier.Alias, err)
		}
		if deployment == nil || deployment.ProjectID != project.ID {
			return nil, types.NewNotFoundError("deployed contract not found for alias: %s", identifier.Alias)
		}
		return r.resolveDeployment(ctx, deployment, project)

	default:
		return nil, types.NewValidationError("contract identifier requires an id, alias or address")
	}
}

// resolveDeployment 返回部署地址，必要时先从部署交易补全
func (r *IdentifierResolver) resolveDeployment(ctx context.Context, deployment *types.ContractDeployment, project *types.Project) (*types.ResolvedContract, error) {
	if deployment.ContractAddress == nil && deployment.TxHash != nil && r.chain != nil {
		chain := types.ChainSpec{ChainID: deployment.ChainID, CustomRPCURL: project.CustomRPCURL}
		info, err := r.chain.TransactionInfo(ctx, chain, *deployment.TxHash)
		if err != nil {
			return nil, fmt.Errorf("fetch deployment transaction %s: %w", deployment.TxHash.Hex(), err)
		}

		if info != nil && info.DeployedContractAddress != nil {
			address := *info.DeployedContractAddress
			if _, err := r.deployments.SetContractAddress(ctx, deployment.ID, address); err != nil {
				return nil, fmt.Errorf("set contract address of %s: %w", deployment.ID, err)
			}
			r.logger.Infow("Stored deployed contract address", "id", deployment.ID, "address", address.Hex())
			deployment.ContractAddress = &address
		}
	}

	if deployment.ContractAddress == nil {
		return nil, types.NewNotYetDeployedError(deployment.ID, deployment.Alias)
	}

	id := deployment.ID
	return &types.ResolvedContract{DeploymentID: &id, Address: *deployment.ContractAddress}, nil
}
