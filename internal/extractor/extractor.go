package extractor

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"cv-match-go/internal/types"
)

// FormatExtractor 单一格式的文本提取器
type FormatExtractor interface {
	// ExtractText 从内存中的文件字节提取纯文本
	ExtractText(ctx context.Context, data []byte, uri string) (string, error)
}

// TextExtractor 按文件扩展名分发到具体格式的提取器
// 文件内容只在内存中处理，不写临时文件
type TextExtractor struct {
	pdf    FormatExtractor
	docx   FormatExtractor
	logger *log.Logger
}

// Option 提取器的配置选项
type Option func(*TextExtractor)

// WithLogger 配置自定义日志记录器
func WithLogger(logger *log.Logger) Option {
	return func(e *TextExtractor) {
		e.logger = logger
	}
}

// WithPDFExtractor 替换PDF提取实现，测试时注入桩
func WithPDFExtractor(fe FormatExtractor) Option {
	return func(e *TextExtractor) {
		e.pdf = fe
	}
}

// WithDocxExtractor 替换DOCX提取实现
func WithDocxExtractor(fe FormatExtractor) Option {
	return func(e *TextExtractor) {
		e.docx = fe
	}
}

// NewTextExtractor 初始化文本提取器，默认支持 .pdf 和 .docx
func NewTextExtractor(ctx context.Context, options ...Option) (*TextExtractor, error) {
	pdfExtractor, err := NewPDFExtractor(ctx)
	if err != nil {
		return nil, fmt.Errorf("初始化PDF提取器失败: %w", err)
	}

	e := &TextExtractor{
		pdf:    pdfExtractor,
		docx:   NewDocxExtractor(),
		logger: log.New(os.Stderr, "[文本提取] ", log.LstdFlags),
	}

	for _, option := range options {
		option(e)
	}

	return e, nil
}

// Extract 根据文件名的扩展名选择提取器并返回纯文本
// 扩展名匹配不区分大小写，不支持的格式返回 types.ErrUnsupportedFormat
func (e *TextExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var fe FormatExtractor
	switch ext {
	case ".pdf":
		fe = e.pdf
	case ".docx":
		fe = e.docx
	default:
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, filename)
	}

	text, err := fe.ExtractText(ctx, data, filename)
	if err != nil {
		e.logger.Printf("提取失败: %s (%s)", filename, err)
		return "", err
	}

	e.logger.Printf("提取完成: %s (%d 个字符)", filename, len(text))
	return text, nil
}
