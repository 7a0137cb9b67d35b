package constants

import "time"

// 限流池名称，池与池之间的配额互不影响
const (
	PoolDemo = "demo"      // 匿名演示池
	PoolFree = "free_tier" // 带 API Key 的免费池
)

// Redis Key 格式常量
// 限流窗口使用统一格式: rate_limit:{pool}:{client_identity}
const (
	// KeyRateLimitWindow 滑动窗口限流键 (ZSET)
	// 格式: rate_limit:{pool}:{identity}
	KeyRateLimitWindow = "rate_limit:%s:%s"
)

// 限流默认值，配置缺省时使用
const (
	DefaultDemoMaxRequests = 10
	DefaultFreeMaxRequests = 25
	DefaultRateLimitWindow = 24 * time.Hour
)

// 分析流水线默认值
const (
	// DefaultMaxConcurrentAnalyses 批量分析时同时在途的 LLM 调用上限
	DefaultMaxConcurrentAnalyses = 5
	// DefaultAnalyzeTimeout 单次 LLM 分析调用的超时
	DefaultAnalyzeTimeout = 90 * time.Second
)

// Outbox 事件类型与路由
const (
	EventBatchCompleted = "analysis.batch.completed"

	DefaultAnalysisExchange    = "analysis.events"
	DefaultCompletedRoutingKey = "analysis.completed"
)
