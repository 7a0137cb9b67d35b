package extractor

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// PDFExtractor 使用 Eino PDF Parser 提取文本
type PDFExtractor struct {
	parser *pdf.PDFParser
}

// NewPDFExtractor 初始化PDF提取器
// 默认不按页面分割，以获取整个文档的连续文本
func NewPDFExtractor(ctx context.Context) (*PDFExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false, // 整个PDF的文本作为单个字符串返回
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	return &PDFExtractor{parser: p}, nil
}

// ExtractText 从内存中的PDF字节提取完整文本
func (e *PDFExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	// 解析设置30秒超时上限
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := e.parser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI(uri),
	)
	if err != nil {
		return "", fmt.Errorf("eino PDF parser failed for URI %s: %w", uri, err)
	}

	if len(docs) == 0 {
		return "", fmt.Errorf("eino PDF parser returned no documents for URI %s", uri)
	}

	// 合并所有文档的内容（以防返回了多个）
	var fullContent string
	for i, doc := range docs {
		fullContent += doc.Content
		if i < len(docs)-1 {
			fullContent += "\n\n"
		}
	}

	return fullContent, nil
}
