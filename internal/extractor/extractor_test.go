package extractor

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"cv-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFormatExtractor 记录调用并返回固定文本，用于验证分发逻辑
type stubFormatExtractor struct {
	text   string
	err    error
	called int
}

func (s *stubFormatExtractor) ExtractText(ctx context.Context, data []byte, uri string) (string, error) {
	s.called++
	return s.text, s.err
}

func newTestExtractor(pdfStub, docxStub *stubFormatExtractor) *TextExtractor {
	return &TextExtractor{
		pdf:    pdfStub,
		docx:   docxStub,
		logger: log.New(io.Discard, "", 0),
	}
}

// TestExtractDispatchByExtension 验证扩展名分发到正确的提取器
func TestExtractDispatchByExtension(t *testing.T) {
	pdfStub := &stubFormatExtractor{text: "pdf 文本"}
	docxStub := &stubFormatExtractor{text: "docx 文本"}
	e := newTestExtractor(pdfStub, docxStub)

	text, err := e.Extract(context.Background(), []byte("%PDF"), "resume.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf 文本", text)
	assert.Equal(t, 1, pdfStub.called, "PDF提取器应被调用一次")
	assert.Equal(t, 0, docxStub.called, "DOCX提取器不应被调用")

	text, err = e.Extract(context.Background(), []byte("PK"), "resume.docx")
	require.NoError(t, err)
	assert.Equal(t, "docx 文本", text)
	assert.Equal(t, 1, docxStub.called, "DOCX提取器应被调用一次")
}

// TestExtractCaseInsensitiveExtension 验证扩展名匹配不区分大小写
func TestExtractCaseInsensitiveExtension(t *testing.T) {
	pdfStub := &stubFormatExtractor{text: "ok"}
	docxStub := &stubFormatExtractor{text: "ok"}
	e := newTestExtractor(pdfStub, docxStub)

	for _, filename := range []string{"CV.PDF", "cv.Pdf", "简历.DOCX", "cv.Docx"} {
		_, err := e.Extract(context.Background(), []byte("data"), filename)
		assert.NoError(t, err, "大小写混合的扩展名不应报错: %s", filename)
	}

	assert.Equal(t, 2, pdfStub.called)
	assert.Equal(t, 2, docxStub.called)
}

// TestExtractUnsupportedFormat 验证不支持的格式返回哨兵错误
func TestExtractUnsupportedFormat(t *testing.T) {
	e := newTestExtractor(&stubFormatExtractor{}, &stubFormatExtractor{})

	for _, filename := range []string{"cv.txt", "cv.doc", "cv", "cv.pdf.exe"} {
		_, err := e.Extract(context.Background(), []byte("data"), filename)
		assert.ErrorIs(t, err, types.ErrUnsupportedFormat, "文件 %s 应返回格式不支持错误", filename)
	}
}

// TestExtractPropagatesParserError 验证底层解析错误原样上抛，不会误报为格式错误
func TestExtractPropagatesParserError(t *testing.T) {
	parseErr := errors.New("corrupted file")
	e := newTestExtractor(&stubFormatExtractor{err: parseErr}, &stubFormatExtractor{})

	_, err := e.Extract(context.Background(), []byte("garbage"), "bad.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, parseErr)
	assert.NotErrorIs(t, err, types.ErrUnsupportedFormat)
}

// TestDocxExtractorRejectsGarbage 验证非ZIP内容的DOCX解析失败但不崩溃
func TestDocxExtractorRejectsGarbage(t *testing.T) {
	e := NewDocxExtractor()

	_, err := e.ExtractText(context.Background(), []byte("这不是一个docx文件"), "fake.docx")
	assert.Error(t, err, "垃圾字节应返回解析错误")
}
