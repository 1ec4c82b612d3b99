package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchQuery(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		items  []int
		config *BatchConfig
	}{
		{name: "empty items", items: []int{}, config: DefaultBatchConfig()},
		{name: "single item", items: []int{1}, config: nil},
		{name: "multiple batches", items: []int{1, 2, 3, 4, 5}, config: &BatchConfig{BatchSize: 2, Concurrency: 2}},
		{name: "invalid config falls back to defaults", items: []int{1, 2, 3}, config: &BatchConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := BatchQuery(ctx, tt.items, func(ctx context.Context, item int, index int) (int, error) {
				return item * 2, nil
			}, tt.config)

			require.Len(t, result.Items, len(tt.items))
			assert.Equal(t, len(tt.items), result.Total)
			assert.Equal(t, len(tt.items), result.Success)
			assert.Zero(t, result.Failed)
			for i, item := range tt.items {
				assert.Equal(t, item*2, result.Items[i].Value)
			}
			assert.NoError(t, result.FirstError())
		})
	}
}

func TestBatchQuery_PartialFailure(t *testing.T) {
	errOdd := errors.New("odd")
	var progressCalls atomic.Int32

	result := BatchQuery(context.Background(), []int{1, 2, 3, 4}, func(ctx context.Context, item int, index int) (int, error) {
		if item%2 == 1 {
			return 0, errOdd
		}
		return item, nil
	}, &BatchConfig{
		BatchSize:   3,
		Concurrency: 2,
		OnProgress: func(progress BatchProgress) {
			progressCalls.Add(1)
			assert.Equal(t, 4, progress.Total)
		},
	})

	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 2, result.Failed)
	assert.ErrorIs(t, result.Items[0].Err, errOdd)
	assert.NoError(t, result.Items[1].Err)
	assert.Equal(t, 4, result.Items[3].Value)
	assert.ErrorIs(t, result.FirstError(), errOdd)
	assert.Equal(t, int32(4), progressCalls.Load())
}

func TestBatchQuery_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := BatchQuery(ctx, []int{1, 2, 3}, func(ctx context.Context, item int, index int) (int, error) {
		return item, ctx.Err()
	}, &BatchConfig{BatchSize: 10, Concurrency: 1})

	assert.Equal(t, 3, result.Failed)
	for _, item := range result.Items {
		assert.ErrorIs(t, item.Err, context.Canceled)
	}
}

func TestBatchArray(t *testing.T) {
	tests := []struct {
		name      string
		array     []int
		batchSize int
		want      int
	}{
		{"exact", []int{1, 2, 3, 4}, 2, 2},
		{"remainder", []int{1, 2, 3, 4, 5}, 2, 3},
		{"empty", []int{}, 2, 0},
		{"zero size", []int{1}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, BatchArray(tt.array, tt.batchSize), tt.want)
		})
	}
}
