// internal/service/order/domain/state.go
package domain

// State 定义了订单的生命周期状态
type State string

const (
	StateCreated   State = "CREATED"   // 订单头已落库，明细尚未完整
	StateCompleted State = "COMPLETED" // 全部明细写入且金额对账通过
	StateFailed    State = "FAILED"    // 流程失败，补偿已执行
)
