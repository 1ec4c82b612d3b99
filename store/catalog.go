package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
)

// catalogFile 接口目录文件格式
//
//	interfaces:
//	  - id: openzeppelin.erc20
//	    name: ERC20
//	    functions:
//	      - signature: transfer(address,uint256)
//	    events:
//	      - signature: Transfer(address,address,uint256)
type catalogFile struct {
	Interfaces []types.InterfaceCatalogEntry `yaml:"interfaces"`
}

// LoadInterfaceCatalog 从 YAML（或 JSON）文件加载接口目录
func LoadInterfaceCatalog(path string) (*MemoryInterfaceCatalogStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read interface catalog %s: %w", path, err)
	}
	entries, err := ParseInterfaceCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("parse interface catalog %s: %w", path, err)
	}
	return NewMemoryInterfaceCatalogStore(entries...), nil
}

// ParseInterfaceCatalog 解析目录内容；ID 必须唯一，签名统一规范化
func ParseInterfaceCatalog(data []byte) ([]types.InterfaceCatalogEntry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	seen := make(map[types.InterfaceID]struct{}, len(file.Interfaces))
	for i := range file.Interfaces {
		entry := &file.Interfaces[i]
		if entry.ID == "" {
			return nil, fmt.Errorf("interface #%d: missing id", i)
		}
		if _, dup := seen[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate interface id %q", entry.ID)
		}
		seen[entry.ID] = struct{}{}

		if err := canonicalizeDecorators(entry.FunctionDecorators); err != nil {
			return nil, fmt.Errorf("interface %q: %w", entry.ID, err)
		}
		if err := canonicalizeDecorators(entry.EventDecorators); err != nil {
			return nil, fmt.Errorf("interface %q: %w", entry.ID, err)
		}
	}
	return file.Interfaces, nil
}

func canonicalizeDecorators(decorators []types.Decorator) error {
	for i := range decorators {
		sig, err := utils.CanonicalSignature(decorators[i].Signature)
		if err != nil {
			return err
		}
		decorators[i].Signature = sig
	}
	return nil
}
