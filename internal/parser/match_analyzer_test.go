package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cv-match-go/internal/types"
	"cv-match-go/pkg/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testJD = "Senior Go developer. 5+ years of Go, Kubernetes, gRPC."
	testCV = "Backend engineer, 6 years of Go and gRPC experience."
)

// TestAnalyzeMatchSuccess 验证正常响应被解析为结构化结果
func TestAnalyzeMatchSuccess(t *testing.T) {
	mockLLM := agent.NewMockChatClient(`{"JD-Match": 82, "Missing Skills": ["Kubernetes"], "Profile Summary": "Experienced Go engineer."}`, nil)
	analyzer := NewMatchAnalyzer(mockLLM, nil)

	result, err := analyzer.AnalyzeMatch(context.Background(), testJD, testCV)

	require.NoError(t, err)
	assert.Equal(t, 82, result.MatchScore)
	assert.Equal(t, []string{"Kubernetes"}, result.MissingSkills)
	assert.Equal(t, "Experienced Go engineer.", result.ProfileSummary)
}

// TestAnalyzeMatchSendsBothDocuments 验证JD和简历都进入了提示词
func TestAnalyzeMatchSendsBothDocuments(t *testing.T) {
	mockLLM := agent.NewMockChatClient(`{"JD-Match": 50, "Missing Skills": [], "Profile Summary": "s"}`, nil)
	analyzer := NewMatchAnalyzer(mockLLM, nil)

	_, err := analyzer.AnalyzeMatch(context.Background(), testJD, testCV)
	require.NoError(t, err)

	received := mockLLM.GetReceivedMessages()
	require.NotEmpty(t, received)

	var combined strings.Builder
	for _, msg := range received {
		combined.WriteString(msg.Content)
	}
	assert.Contains(t, combined.String(), testJD, "提示词中应包含JD全文")
	assert.Contains(t, combined.String(), testCV, "提示词中应包含简历全文")
}

// TestAnalyzeMatchModelUnavailable 验证LLM调用失败映射为模型不可用错误
func TestAnalyzeMatchModelUnavailable(t *testing.T) {
	mockLLM := agent.NewMockChatClient("", errors.New("connection refused"))
	analyzer := NewMatchAnalyzer(mockLLM, nil)

	_, err := analyzer.AnalyzeMatch(context.Background(), testJD, testCV)

	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrModelUnavailable)
}

// TestAnalyzeMatchMalformedOutputAbsorbed 验证模型输出损坏时不报错，返回降级结果
func TestAnalyzeMatchMalformedOutputAbsorbed(t *testing.T) {
	for _, content := range []string{
		"I refuse to answer in JSON.",
		"   ",
	} {
		mockLLM := agent.NewMockChatClient(content, nil)
		analyzer := NewMatchAnalyzer(mockLLM, nil)

		result, err := analyzer.AnalyzeMatch(context.Background(), testJD, testCV)

		require.NoError(t, err, "输出损坏不应产生错误: %q", content)
		assert.Equal(t, types.FallbackResult(), result)
	}
}

// TestAnalyzeMatchCustomPromptTemplate 验证自定义模板生效
func TestAnalyzeMatchCustomPromptTemplate(t *testing.T) {
	mockLLM := agent.NewMockChatClient(`{"JD-Match": 1, "Missing Skills": [], "Profile Summary": "s"}`, nil)
	analyzer := NewMatchAnalyzer(mockLLM, nil, WithPromptTemplate("CUSTOM-TEMPLATE JD=%s CV=%s"))

	_, err := analyzer.AnalyzeMatch(context.Background(), testJD, testCV)
	require.NoError(t, err)

	var combined strings.Builder
	for _, msg := range mockLLM.GetReceivedMessages() {
		combined.WriteString(msg.Content)
	}
	assert.Contains(t, combined.String(), "CUSTOM-TEMPLATE")
}
