// Package contract 合约相关服务：接口匹配、已部署合约标识解析、调用数据编码与只读调用。
package contract

import (
	"github.com/weisyn/blockchain-request-go/types"
	"github.com/weisyn/blockchain-request-go/utils"
)

// SuggestInterfaces 根据清单声明的函数与事件签名推荐可实现的接口
//
// 条目被推荐当且仅当：
//  1. 至少声明了一个函数或事件签名
//  2. 全部函数签名都出现在清单中，全部事件签名也都出现在清单中
//  3. 清单尚未声明实现该接口
//
// 签名比较前两侧都做规范化（别名展开、去空白）。结果保持目录顺序。纯函数，不修改入参。
func SuggestInterfaces(manifest types.ContractManifest, catalog []types.InterfaceCatalogEntry) []types.InterfaceID {
	functions := signatureSet(manifest.FunctionDecorators)
	events := signatureSet(manifest.EventDecorators)

	suggested := make([]types.InterfaceID, 0)
	for _, entry := range catalog {
		if len(entry.FunctionDecorators) == 0 && len(entry.EventDecorators) == 0 {
			continue
		}
		if manifest.ImplementsInterface(entry.ID) {
			continue
		}
		if !allDeclared(entry.FunctionDecorators, functions) || !allDeclared(entry.EventDecorators, events) {
			continue
		}
		suggested = append(suggested, entry.ID)
	}
	return suggested
}

func allDeclared(required []types.Decorator, declared map[string]struct{}) bool {
	for _, d := range required {
		if _, ok := declared[canonicalSignature(d.Signature)]; !ok {
			return false
		}
	}
	return true
}

// signatureSet 规范化后的签名集合
func signatureSet(decorators []types.Decorator) map[string]struct{} {
	set := make(map[string]struct{}, len(decorators))
	for _, d := range decorators {
		set[canonicalSignature(d.Signature)] = struct{}{}
	}
	return set
}

// canonicalSignature 无法解析的签名按原文参与比较
func canonicalSignature(sig string) string {
	if c, err := utils.CanonicalSignature(sig); err == nil {
		return c
	}
	return sig
}
