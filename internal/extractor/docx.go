package extractor

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/fumiama/go-docx"
)

// DocxExtractor 使用 go-docx 从 DOCX 文件提取纯文本
type DocxExtractor struct{}

// NewDocxExtractor 初始化DOCX提取器
func NewDocxExtractor() *DocxExtractor {
	return &DocxExtractor{}
}

// ExtractText 从内存中的DOCX字节提取文本，段落之间以换行分隔
func (e *DocxExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx parser failed for URI %s: %w", uri, err)
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			sb.WriteString(it.String())
			sb.WriteByte('\n')
		case *docx.Table:
			sb.WriteString(it.String())
			sb.WriteByte('\n')
		}
	}

	return sb.String(), nil
}
