// Package services 按配置装配全部协作方与业务服务。
package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/weisyn/blockchain-request-go/client"
	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/services/authorization"
	"github.com/weisyn/blockchain-request-go/services/contract"
	"github.com/weisyn/blockchain-request-go/services/deployment"
	"github.com/weisyn/blockchain-request-go/services/request"
	"github.com/weisyn/blockchain-request-go/services/token"
	"github.com/weisyn/blockchain-request-go/store"
	"github.com/weisyn/blockchain-request-go/utils"
	"github.com/weisyn/blockchain-request-go/wallet"
)

// Services 装配完成的服务集合
type Services struct {
	Logger logger.Logger

	// 协作方
	Requests    store.RequestStore
	Deployments store.DeploymentStore
	Manifests   store.DeploymentManifestStore
	Catalog     store.InterfaceCatalogStore
	Chain       client.ChainQuery

	// 核心
	Encoder  utils.FunctionEncoder
	Verifier wallet.Verifier
	Status   *request.StatusResolver

	// 业务服务
	Authorization authorization.Service
	Token         token.Service
	Interfaces    *contract.InterfaceService
	Contracts     *contract.IdentifierResolver
	Calls         *contract.CallService
	FunctionCalls *contract.FunctionCallRequestService
	Deployment    deployment.Service

	closers []io.Closer
}

// Option 替换默认协作方
type Option func(*Services)

// WithLogger 使用给定 Logger，不再按配置创建
func WithLogger(lggr logger.Logger) Option {
	return func(s *Services) { s.Logger = lggr }
}

// WithRequestStore 使用给定请求存储，忽略 postgres 配置
func WithRequestStore(requests store.RequestStore) Option {
	return func(s *Services) { s.Requests = requests }
}

// WithDeploymentStore 使用给定部署存储
func WithDeploymentStore(deployments store.DeploymentStore) Option {
	return func(s *Services) { s.Deployments = deployments }
}

// WithManifestStore 使用给定清单存储
func WithManifestStore(manifests store.DeploymentManifestStore) Option {
	return func(s *Services) { s.Manifests = manifests }
}

// WithInterfaceCatalog 使用给定接口目录，忽略 catalog 配置
func WithInterfaceCatalog(catalog store.InterfaceCatalogStore) Option {
	return func(s *Services) { s.Catalog = catalog }
}

// WithChainQuery 使用给定链查询实现
func WithChainQuery(chain client.ChainQuery) Option {
	return func(s *Services) { s.Chain = chain }
}

// New 按配置装配服务
//
// **流程**：
// 1. 日志
// 2. 存储：postgres.dsn 非空时使用 PostgreSQL 请求存储，否则内存
// 3. 接口目录：catalog.path 非空时从 YAML 加载
// 4. 链查询：按 chains 与 rpc 配置创建 EthChainQuery
// 5. 核心与业务服务
func New(ctx context.Context, cfg *Config, opts ...Option) (*Services, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Services{}
	for _, opt := range opts {
		opt(s)
	}

	// 1. 日志
	if s.Logger == nil {
		lggr, err := cfg.NewLogger()
		if err != nil {
			return nil, err
		}
		s.Logger = lggr
	}

	// 2. 存储
	if s.Requests == nil {
		requests, err := openRequestStore(ctx, cfg, s.Logger)
		if err != nil {
			return nil, err
		}
		s.Requests = requests
		if closer, ok := requests.(io.Closer); ok {
			s.closers = append(s.closers, closer)
		}
	}
	if s.Deployments == nil {
		s.Deployments = store.NewMemoryDeploymentStore()
	}
	if s.Manifests == nil {
		s.Manifests = store.NewMemoryManifestStore()
	}

	// 3. 接口目录
	if s.Catalog == nil {
		catalog, err := loadCatalog(cfg, s.Logger)
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.Catalog = catalog
	}

	// 4. 链查询
	if s.Chain == nil {
		endpoints, err := cfg.ChainEndpoints()
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		chain := client.NewEthChainQuery(endpoints, cfg.ClientConfig(s.Logger))
		s.Chain = chain
		s.closers = append(s.closers, chain)
	}

	// 5. 核心与业务服务
	s.Encoder = utils.NewFunctionEncoder()
	s.Verifier = wallet.NewVerifier()
	s.Status = request.NewStatusResolver(s.Requests, s.Verifier, s.Logger)
	s.Authorization = authorization.NewService(s.Requests, s.Status, s.Logger)
	s.Token = token.NewService(s.Requests, s.Status, s.Chain, s.Logger,
		token.WithBatchConfig(cfg.BatchQueryConfig()),
		token.WithEncoder(s.Encoder))
	s.Interfaces = contract.NewInterfaceService(s.Deployments, s.Manifests, s.Catalog, s.Logger)
	s.Contracts = contract.NewIdentifierResolver(s.Deployments, s.Chain, s.Logger)
	s.Calls = contract.NewCallService(s.Contracts, s.Encoder, s.Chain, s.Logger)
	s.FunctionCalls = contract.NewFunctionCallRequestService(s.Calls, s.Requests, s.Status, s.Chain, s.Logger,
		contract.WithCallRequestBatchConfig(cfg.BatchQueryConfig()))
	s.Deployment = deployment.NewService(s.Deployments, s.Manifests, s.Chain, s.Logger,
		deployment.WithEncoder(s.Encoder),
		deployment.WithBatchConfig(cfg.BatchQueryConfig()))

	s.Logger.Infow("Services initialized", "chains", len(cfg.Chains), "protocol", cfg.RPC.Protocol)
	return s, nil
}

// Close 释放数据库连接与 RPC 连接
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func openRequestStore(ctx context.Context, cfg *Config, lggr logger.Logger) (store.RequestStore, error) {
	if cfg.Postgres.DSN == "" {
		lggr.Debugw("Using in-memory request store")
		return store.NewMemoryRequestStore(), nil
	}

	requests, err := store.OpenPostgresRequestStore(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.EnsureSchema {
		if err := requests.EnsureSchema(ctx); err != nil {
			_ = requests.Close()
			return nil, err
		}
	}
	lggr.Infow("Using postgres request store")
	return requests, nil
}

func loadCatalog(cfg *Config, lggr logger.Logger) (store.InterfaceCatalogStore, error) {
	if cfg.Catalog.Path == "" {
		return store.NewMemoryInterfaceCatalogStore(), nil
	}

	catalog, err := store.LoadInterfaceCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load interface catalog: %w", err)
	}
	lggr.Infow("Loaded interface catalog", "path", cfg.Catalog.Path, "entries", len(catalog.Entries()))
	return catalog, nil
}
