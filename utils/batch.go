package utils

import (
	"context"
	"sync"
)

// BatchConfig 批量操作配置
type BatchConfig struct {
	// BatchSize 批量大小
	BatchSize int
	// Concurrency 并发数量
	Concurrency int
	// OnProgress 进度回调函数
	OnProgress func(progress BatchProgress)
}

// BatchProgress 批量操作进度
type BatchProgress struct {
	Completed int
	Total     int
	Success   int
	Failed    int
}

// DefaultBatchConfig 返回默认批量配置
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		BatchSize:   50,
		Concurrency: 5,
	}
}

// BatchItem 单个项目的查询结果
type BatchItem[R any] struct {
	Value R
	Err   error
}

// BatchQueryResult 批量查询结果，Items 与输入一一对应
type BatchQueryResult[R any] struct {
	Items   []BatchItem[R]
	Total   int
	Success int
	Failed  int
}

// FirstError 返回按输入顺序的第一个错误
func (r *BatchQueryResult[R]) FirstError() error {
	for _, item := range r.Items {
		if item.Err != nil {
			return item.Err
		}
	}
	return nil
}

// BatchQuery 批量查询
//
// 按 BatchSize 分批，批内以 Concurrency 限制并发调用 queryFn。
// 单项失败不影响其他项；ctx 取消后尚未开始的项直接记录 ctx.Err()。
//
// 示例：
//
//	result := BatchQuery(ctx, requests, func(ctx context.Context, req *types.VerifiableRequest, _ int) (*types.Balance, error) {
//	    return chain.AccountTokenBalance(ctx, types.ChainSpec{ChainID: req.ChainID}, req.Erc20.TokenAddress, *req.ActualWalletAddress, types.BlockLatest)
//	}, DefaultBatchConfig())
func BatchQuery[T any, R any](
	ctx context.Context,
	items []T,
	queryFn func(ctx context.Context, item T, index int) (R, error),
	config *BatchConfig,
) *BatchQueryResult[R] {
	if config == nil {
		config = DefaultBatchConfig()
	}
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	result := &BatchQueryResult[R]{
		Items: make([]BatchItem[R], len(items)),
		Total: len(items),
	}
	var mu sync.Mutex

	record := func(idx int, value R, err error) {
		mu.Lock()
		defer mu.Unlock()
		result.Items[idx] = BatchItem[R]{Value: value, Err: err}
		if err != nil {
			result.Failed++
		} else {
			result.Success++
		}
		if config.OnProgress != nil {
			config.OnProgress(BatchProgress{
				Completed: result.Success + result.Failed,
				Total:     result.Total,
				Success:   result.Success,
				Failed:    result.Failed,
			})
		}
	}

	for batchIdx, batch := range BatchArray(items, batchSize) {
		var wg sync.WaitGroup
		sem := make(chan struct{}, concurrency)

		for i, item := range batch {
			idx := batchIdx*batchSize + i

			// 获取信号量
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				var zero R
				record(idx, zero, ctx.Err())
				continue
			}

			wg.Add(1)
			go func(idx int, item T) {
				defer wg.Done()
				defer func() { <-sem }()

				value, err := queryFn(ctx, item, idx)
				record(idx, value, err)
			}(idx, item)
		}

		wg.Wait()
	}

	return result
}

// BatchArray 将数组分批次处理
func BatchArray[T any](array []T, batchSize int) [][]T {
	batches := make([][]T, 0)
	if batchSize <= 0 {
		return batches
	}
	for i := 0; i < len(array); i += batchSize {
		end := i + batchSize
		if end > len(array) {
			end = len(array)
		}
		batches = append(batches, array[i:end])
	}
	return batches
}
