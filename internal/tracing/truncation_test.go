package tracing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSafeAttributeValueMasksSensitiveNames 验证敏感属性名触发掩码
func TestSafeAttributeValueMasksSensitiveNames(t *testing.T) {
	masked := SafeAttributeValue("user.email", "zhangsan@example.com", DefaultMaxLength)
	assert.Equal(t, "zh****************om", masked, "email属性应被掩码")

	masked = SafeAttributeValue("auth.token", "sk-1234567890", DefaultMaxLength)
	assert.NotContains(t, masked, "1234567890", "token属性不应明文出现")
}

// TestSafeAttributeValueTruncatesLongValues 验证非敏感属性按长度截断
func TestSafeAttributeValueTruncatesLongValues(t *testing.T) {
	long := strings.Repeat("a", 300)
	out := SafeAttributeValue("http.user_agent", long, MaxHeaderLength)

	assert.LessOrEqual(t, len([]rune(out)), MaxHeaderLength, "截断结果不应超过上限")
	assert.Contains(t, out, "...", "截断结果应带省略号")
}

// TestMaskPIIShapes 验证不同长度的掩码形态
func TestMaskPIIShapes(t *testing.T) {
	assert.Equal(t, "", MaskPII(""))
	assert.Equal(t, "*", MaskPII("a"))
	assert.Equal(t, "a*", MaskPII("ab"))
	assert.Equal(t, "a**d", MaskPII("abcd"))
	assert.Equal(t, "13*******78", MaskPII("13812345678"))
}

// TestSafeDocumentContent 验证文档内容截断保留首尾
func TestSafeDocumentContent(t *testing.T) {
	short := "招聘Go后端工程师"
	assert.Equal(t, short, SafeDocumentContent(short), "短内容应原样返回")

	long := strings.Repeat("简历内容", 100)
	out := SafeDocumentContent(long)
	assert.LessOrEqual(t, len([]rune(out)), MaxDocumentLength)
	assert.Contains(t, out, "...")
}
