package types

// Status 请求的派生状态
//
// 从不持久化，每次读取时重新计算。
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// WithStatus 带派生状态的值
type WithStatus[T any] struct {
	Value  T
	Status Status
}
