package contract

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/types"
)

// InterfaceService 导入合约的接口推荐与接口管理
type InterfaceService struct {
	deployments store.DeploymentStore
	manifests   store.DeploymentManifestStore
	catalog     store.InterfaceCatalogStore
	logger      logger.Logger
}

// NewInterfaceService 创建接口服务
func NewInterfaceService(
	deployments store.DeploymentStore,
	manifests store.DeploymentManifestStore,
	catalog store.InterfaceCatalogStore,
	lggr logger.Logger,
) *InterfaceService {
	if lggr == nil {
		lggr = logger.Nop()
	}
	return &InterfaceService{
		deployments: deployments,
		manifests:   manifests,
		catalog:     catalog,
		logger:      lggr.Named("interfaces"),
	}
}

// SuggestedInterfaces 导入合约可实现但尚未声明的接口
//
// 部署不存在、不是导入的合约或没有清单时返回 NOT_FOUND。
func (s *InterfaceService) SuggestedInterfaces(ctx context.Context, deploymentID uuid.UUID) ([]types.InterfaceID, error) {
	s.logger.Debugw("Fetching suggested interfaces", "deploymentId", deploymentID)

	// 1. 读取导入的部署记录
	deployment, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("get deployment %s: %w", deploymentID, err)
	}
	if deployment == nil || !deployment.Imported {
		return nil, types.NewNotFoundError("imported contract deployment not found for ID: %s", deploymentID)
	}

	// 2. 读取清单
	manifest, err := s.manifestFor(ctx, deployment)
	if err != nil {
		return nil, err
	}

	// 3. 匹配
	return s.suggest(ctx, *manifest)
}

// WithSuggestedInterfaces 返回把推荐接口追加到 Implements 之后的清单副本
//
// 用于导入合约时预先声明可匹配的接口，不写存储。
func (s *InterfaceService) WithSuggestedInterfaces(ctx context.Context, manifest types.ContractManifest) (types.ContractManifest, error) {
	suggested, err := s.suggest(ctx, manifest)
	if err != nil {
		return types.ContractManifest{}, err
	}

	implements := make([]types.InterfaceID, 0, len(manifest.Implements)+len(suggested))
	implements = append(implements, manifest.Implements...)
	implements = append(implements, suggested...)
	manifest.Implements = implements
	return manifest, nil
}

// AddInterfaces 为导入合约追加接口，已存在的忽略
func (s *InterfaceService) AddInterfaces(ctx context.Context, deploymentID, projectID uuid.UUID, ids []types.InterfaceID) ([]types.InterfaceID, error) {
	s.logger.Infow("Adding interfaces to imported contract", "deploymentId", deploymentID, "projectId", projectID, "interfaces", ids)
	return s.updateInterfaces(ctx, deploymentID, projectID, ids, func(current []types.InterfaceID) []types.InterfaceID {
		return union(current, ids)
	})
}

// RemoveInterfaces 从导入合约移除接口，不存在的忽略
func (s *InterfaceService) RemoveInterfaces(ctx context.Context, deploymentID, projectID uuid.UUID, ids []types.InterfaceID) ([]types.InterfaceID, error) {
	s.logger.Infow("Removing interfaces from imported contract", "deploymentId", deploymentID, "projectId", projectID, "interfaces", ids)
	return s.updateInterfaces(ctx, deploymentID, projectID, nil, func(current []types.InterfaceID) []types.InterfaceID {
		return difference(current, ids)
	})
}

// SetInterfaces 替换导入合约的接口列表
func (s *InterfaceService) SetInterfaces(ctx context.Context, deploymentID, projectID uuid.UUID, ids []types.InterfaceID) ([]types.InterfaceID, error) {
	s.logger.Infow("Setting imported contract interfaces", "deploymentId", deploymentID, "projectId", projectID, "interfaces", ids)
	return s.updateInterfaces(ctx, deploymentID, projectID, ids, func([]types.InterfaceID) []types.InterfaceID {
		return union(nil, ids)
	})
}

// updateInterfaces 读取项目内的导入合约清单，计算新接口列表并持久化
//
// mustExist 中的接口必须在目录中存在。
func (s *InterfaceService) updateInterfaces(
	ctx context.Context,
	deploymentID, projectID uuid.UUID,
	mustExist []types.InterfaceID,
	next func(current []types.InterfaceID) []types.InterfaceID,
) ([]types.InterfaceID, error) {
	// 1. 部署必须是本项目导入的合约
	deployment, err := s.deployments.GetByID(ctx, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("get deployment %s: %w", deploymentID, err)
	}
	if deployment == nil || !deployment.Imported || deployment.ProjectID != projectID {
		return nil, types.NewNotFoundError("imported contract deployment not found for ID: %s", deploymentID)
	}

	// 2. 新增的接口必须在目录中
	for _, id := range mustExist {
		entry, err := s.catalog.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get interface %s: %w", id, err)
		}
		if entry == nil {
			return nil, types.NewValidationError("unknown contract interface: %s", id)
		}
	}

	// 3. 计算并写入
	manifest, err := s.manifestFor(ctx, deployment)
	if err != nil {
		return nil, err
	}
	updated := next(manifest.Implements)

	ok, err := s.manifests.UpdateInterfaces(ctx, deployment.ContractID, deployment.ProjectID, updated)
	if err != nil {
		return nil, fmt.Errorf("update interfaces of %s: %w", deployment.ContractID, err)
	}
	if !ok {
		return nil, s.manifestNotFound(deployment)
	}
	return updated, nil
}

func (s *InterfaceService) manifestFor(ctx context.Context, deployment *types.ContractDeployment) (*types.ContractManifest, error) {
	manifest, err := s.manifests.ManifestFor(ctx, deployment.ContractID, deployment.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get manifest of %s: %w", deployment.ContractID, err)
	}
	if manifest == nil {
		return nil, s.manifestNotFound(deployment)
	}
	return manifest, nil
}

func (s *InterfaceService) manifestNotFound(deployment *types.ContractDeployment) error {
	return types.NewNotFoundError("imported contract manifest not found for contract ID: %s and project ID: %s",
		deployment.ContractID, deployment.ProjectID)
}

// suggest 目录预过滤后做完整匹配
func (s *InterfaceService) suggest(ctx context.Context, manifest types.ContractManifest) ([]types.InterfaceID, error) {
	candidates, err := s.catalog.AllEntriesMatching(ctx, signatureSet(manifest.FunctionDecorators), signatureSet(manifest.EventDecorators))
	if err != nil {
		return nil, fmt.Errorf("query interface catalog: %w", err)
	}
	return SuggestInterfaces(manifest, candidates), nil
}

// union 保持 current 顺序，追加 extra 中的新元素
func union(current, extra []types.InterfaceID) []types.InterfaceID {
	seen := make(map[types.InterfaceID]struct{}, len(current)+len(extra))
	result := make([]types.InterfaceID, 0, len(current)+len(extra))
	for _, list := range [][]types.InterfaceID{current, extra} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			result = append(result, id)
		}
	}
	return result
}

func difference(current, removed []types.InterfaceID) []types.InterfaceID {
	drop := make(map[types.InterfaceID]struct{}, len(removed))
	for _, id := range removed {
		drop[id] = struct{}{}
	}
	result := make([]types.InterfaceID, 0, len(current))
	for _, id := range current {
		if _, ok := drop[id]; !ok {
			result = append(result, id)
		}
	}
	return result
}
