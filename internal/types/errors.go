package types

import "errors"

// 跨包共享的哨兵错误，处理层用 errors.Is 映射到 HTTP 状态码
var (
	// ErrUnsupportedFormat 文件扩展名不在支持范围内（.pdf / .docx）
	ErrUnsupportedFormat = errors.New("不支持的文件格式，仅支持 PDF 和 DOCX")

	// ErrMissingRequiredInput 缺少必要输入（JD 或简历为空）
	ErrMissingRequiredInput = errors.New("缺少必要的输入内容")

	// ErrModelUnavailable LLM 调用失败（网络、超时、上游错误）
	ErrModelUnavailable = errors.New("模型服务暂时不可用")
)
