package services

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/weisyn/blockchain-request-go/client"
	"github.com/weisyn/blockchain-request-go/logger"
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
)

// EnvPrefix 环境变量前缀，例如 BRG_RPC_TIMEOUT_SECONDS
const EnvPrefix = "BRG"

// Config 统一的服务配置，为链查询、存储、接口目录和日志提供运行时参数。
//
// **加载顺序**（后者覆盖前者）：
//  1. 内置默认值
//  2. YAML 配置文件（文件不存在时跳过）
//  3. BRG_ 前缀的环境变量，键中的 "." 替换为 "_"
//
// **说明**：
//   - Chains 以链 ID（十进制字符串）为键，值为默认 RPC 地址；项目可用 CustomRPCURL 覆盖
//   - Postgres.DSN 为空时请求存储使用内存实现
//   - Catalog.Path 为空时接口目录为空
type Config struct {
	// Chains 链 ID -> 默认 RPC 地址
	Chains map[string]string `mapstructure:"chains" yaml:"chains"`

	RPC      RPCConfig      `mapstructure:"rpc" yaml:"rpc"`
	Catalog  CatalogConfig  `mapstructure:"catalog" yaml:"catalog"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Project  ProjectConfig  `mapstructure:"project" yaml:"project"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// RPCConfig JSON-RPC 客户端公共配置
type RPCConfig struct {
	Protocol       string            `mapstructure:"protocol" yaml:"protocol"`               // http 或 websocket
	TimeoutSeconds int               `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // 单次请求超时
	MaxRetries     int               `mapstructure:"max_retries" yaml:"max_retries"`         // 传输错误重试次数
	Headers        map[string]string `mapstructure:"headers" yaml:"headers"`                 // 附加 HTTP 头
	Debug          bool              `mapstructure:"debug" yaml:"debug"`
}

// CatalogConfig 接口目录文件
type CatalogConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig 请求存储数据库
//
// WARNING: DSN 可能包含密码，不要写入日志。
type PostgresConfig struct {
	DSN          string `mapstructure:"dsn" yaml:"dsn"`
	EnsureSchema bool   `mapstructure:"ensure_schema" yaml:"ensure_schema"`
}

// ProjectConfig 默认项目（单项目部署或示例程序使用）
type ProjectConfig struct {
	ID              string `mapstructure:"id" yaml:"id"`
	ChainID         uint64 `mapstructure:"chain_id" yaml:"chain_id"`
	BaseRedirectURL string `mapstructure:"base_redirect_url" yaml:"base_redirect_url"`
	CustomRPCURL    string `mapstructure:"custom_rpc_url" yaml:"custom_rpc_url"`
}

// BatchConfig 列表查询链上余额时的分批配置
type BatchConfig struct {
	Size        int `mapstructure:"size" yaml:"size"`
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// defaults 默认值；同时登记了环境变量可覆盖的全部键
var defaults = map[string]any{
	"rpc.protocol":              string(client.ProtocolHTTP),
	"rpc.timeout_seconds":       30,
	"rpc.max_retries":           3,
	"rpc.debug":                 false,
	"catalog.path":              "",
	"postgres.dsn":              "",
	"postgres.ensure_schema":    false,
	"project.id":                "",
	"project.chain_id":          0,
	"project.base_redirect_url": "",
	"project.custom_rpc_url":    "",
	"batch.size":                50,
	"batch.concurrency":         5,
	"log.level":                 "info",
}

// LoadConfig 加载配置；path 为空或文件不存在时只使用默认值和环境变量
func LoadConfig(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Validate 校验配置
func (c *Config) Validate() error {
	if _, err := c.ChainEndpoints(); err != nil {
		return err
	}
	switch client.Protocol(c.RPC.Protocol) {
	case client.ProtocolHTTP, client.ProtocolWebSocket:
	default:
		return fmt.Errorf("unsupported rpc protocol: %q", c.RPC.Protocol)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Project.ID != "" {
		if _, err := uuid.Parse(c.Project.ID); err != nil {
			return fmt.Errorf("invalid project id %q: %w", c.Project.ID, err)
		}
	}
	return nil
}

// ChainEndpoints 解析 Chains 的键为链 ID
func (c *Config) ChainEndpoints() (map[types.ChainID]string, error) {
	endpoints := make(map[types.ChainID]string, len(c.Chains))
	for key, endpoint := range c.Chains {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q: %w", key, err)
		}
		endpoints[types.ChainID(id)] = endpoint
	}
	return endpoints, nil
}

// ClientConfig 构造 JSON-RPC 客户端公共配置（端点由链决定）
func (c *Config) ClientConfig(lggr logger.Logger) *client.Config {
	cfg := client.DefaultConfig()
	cfg.Endpoint = ""
	cfg.Protocol = client.Protocol(c.RPC.Protocol)
	cfg.Timeout = c.RPC.TimeoutSeconds
	cfg.Headers = c.RPC.Headers
	cfg.Debug = c.RPC.Debug
	cfg.Logger = lggr

	retry := client.DefaultRetryConfig()
	retry.MaxRetries = c.RPC.MaxRetries
	retry.OnRetry = func(attempt int, err error) {
		if lggr != nil {
			lggr.Warnw("Retrying RPC request", "attempt", attempt, "error", err)
		}
	}
	cfg.Retry = retry
	return cfg
}

// BatchQueryConfig 余额批量查询配置
func (c *Config) BatchQueryConfig() *utils.BatchConfig {
	cfg := utils.DefaultBatchConfig()
	if c.Batch.Size > 0 {
		cfg.BatchSize = c.Batch.Size
	}
	if c.Batch.Concurrency > 0 {
		cfg.Concurrency = c.Batch.Concurrency
	}
	return cfg
}

// DefaultProject 配置中的默认项目；未配置 project.id 时返回 nil
func (c *Config) DefaultProject() *types.Project {
	if c.Project.ID == "" {
		return nil
	}
	return &types.Project{
		ID:              uuid.MustParse(c.Project.ID),
		ChainID:         types.ChainID(c.Project.ChainID),
		BaseRedirectURL: c.Project.BaseRedirectURL,
		CustomRPCURL:    c.Project.CustomRPCURL,
	}
}

// NewLogger 按配置的级别创建 Logger
func (c *Config) NewLogger() (logger.Logger, error) {
	lvl, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	cfg := logger.Config{Level: lvl}
	return cfg.New()
}
