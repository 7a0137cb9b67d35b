package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrExtractTextFailed = errors.New("提取简历文本失败")
	ErrAnalyzeFailed     = errors.New("简历匹配分析失败")
	ErrPersistFailed     = errors.New("分析结果落库失败")
)

// AnalysisError 包含详细错误信息的自定义错误
type AnalysisError struct {
	BatchID string
	Op      string
	BaseErr error
	Cause   error // 底层原因，保留原始错误链供 errors.Is 判定
	Detail  string
}

func (e *AnalysisError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 批次:%s): %s", e.BaseErr, e.Op, e.BatchID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 批次:%s)", e.BaseErr, e.Op, e.BatchID)
}

func (e *AnalysisError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.BaseErr, e.Cause}
	}
	return []error{e.BaseErr}
}

// 错误构造函数
func NewExtractError(batchID string, cause error) error {
	return &AnalysisError{
		BatchID: batchID,
		Op:      "extract",
		BaseErr: ErrExtractTextFailed,
		Cause:   cause,
		Detail:  cause.Error(),
	}
}

func NewAnalyzeError(batchID string, cause error) error {
	return &AnalysisError{
		BatchID: batchID,
		Op:      "analyze",
		BaseErr: ErrAnalyzeFailed,
		Cause:   cause,
		Detail:  cause.Error(),
	}
}

func NewPersistError(batchID, detail string) error {
	return &AnalysisError{
		BatchID: batchID,
		Op:      "persist",
		BaseErr: ErrPersistFailed,
		Detail:  detail,
	}
}
