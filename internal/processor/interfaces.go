package processor

import (
	"context"
	"log"
	"time"

	"cv-match-go/internal/storage"
	"cv-match-go/internal/types"
)

//
// 文档提取相关接口
//

// TextExtractor 文档文本提取接口
type TextExtractor interface {
	// Extract 从原始字节中提取纯文本，按文件扩展名分发解析器
	Extract(ctx context.Context, data []byte, filename string) (string, error)
}

//
// 匹配分析相关接口
//

// MatchAnalyzer 简历与岗位匹配分析接口
type MatchAnalyzer interface {
	// AnalyzeMatch 评估简历与岗位描述的匹配度
	AnalyzeMatch(ctx context.Context, jdText string, cvText string) (types.AnalysisResult, error)
}

// Components 聚合所有功能组件依赖，便于集中管理和测试替换
type Components struct {
	// 核心组件接口
	Extractor TextExtractor // 文档文本提取接口
	Analyzer  MatchAnalyzer // 匹配分析接口

	// 存储层依赖
	Storage *storage.Storage // 聚合的存储服务
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	MaxConcurrent  int           // 批量分析的最大并发数
	AnalyzeTimeout time.Duration // 单份简历分析的超时时间
	Debug          bool          // 是否开启调试模式
	Logger         *log.Logger   // 日志记录器
}
