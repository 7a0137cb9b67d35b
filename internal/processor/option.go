package processor

import (
	"io"
	"log"
	"time"

	"cv-match-go/internal/storage"
)

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// ----- 组件选项 -----

// WithcompExtractor 设置文档提取器组件
func WithcompExtractor(extractor TextExtractor) ComponentOpt {
	return func(c *Components) {
		c.Extractor = extractor
	}
}

// WithcompAnalyzer 设置匹配分析器组件
func WithcompAnalyzer(analyzer MatchAnalyzer) ComponentOpt {
	return func(c *Components) {
		c.Analyzer = analyzer
	}
}

// WithcompStorage 设置存储组件
func WithcompStorage(storage *storage.Storage) ComponentOpt {
	return func(c *Components) {
		c.Storage = storage
	}
}

// ----- 设置选项 -----

// WithsetMaxConcurrent 设置批量分析的最大并发数
func WithsetMaxConcurrent(n int) SettingOpt {
	return func(s *Settings) {
		if n > 0 {
			s.MaxConcurrent = n
		}
	}
}

// WithsetAnalyzeTimeout 设置单份简历分析的超时时间
func WithsetAnalyzeTimeout(d time.Duration) SettingOpt {
	return func(s *Settings) {
		if d > 0 {
			s.AnalyzeTimeout = d
		}
	}
}

// WithsetDebug 设置调试模式
func WithsetDebug(debug bool) SettingOpt {
	return func(s *Settings) {
		s.Debug = debug
	}
}

// WithsetLogger 设置日志记录器
func WithsetLogger(logger *log.Logger) SettingOpt {
	return func(s *Settings) {
		if logger != nil {
			s.Logger = logger
		} else {
			// 传入nil时使用丢弃logger，防止panic
			s.Logger = log.New(io.Discard, "", 0)
		}
	}
}
