package parser

import (
	"encoding/json"
	"testing"

	"cv-match-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNormalizeWellFormedResponse 验证规范JSON被完整解析
func TestNormalizeWellFormedResponse(t *testing.T) {
	raw := `{"JD-Match": 87, "Missing Skills": ["Kubernetes", "Terraform"], "Profile Summary": "Strong backend engineer."}`

	result := Normalize(raw)

	assert.Equal(t, 87, result.MatchScore)
	assert.Equal(t, []string{"Kubernetes", "Terraform"}, result.MissingSkills)
	assert.Equal(t, "Strong backend engineer.", result.ProfileSummary)
}

// TestNormalizeMarkdownFencedResponse 验证带markdown围栏和说明文字的输出也能解析
func TestNormalizeMarkdownFencedResponse(t *testing.T) {
	raw := "Here is the evaluation:\n```json\n{\"JD-Match\": 65, \"Missing Skills\": [], \"Profile Summary\": \"Decent fit.\"}\n```\nLet me know if you need more."

	result := Normalize(raw)

	assert.Equal(t, 65, result.MatchScore)
	assert.Empty(t, result.MissingSkills)
	assert.Equal(t, "Decent fit.", result.ProfileSummary)
}

// TestNormalizeStripsBOM 验证带BOM前缀的输出正常解析
func TestNormalizeStripsBOM(t *testing.T) {
	raw := "\uFEFF" + `{"JD-Match": 72, "Missing Skills": ["Go"], "Profile Summary": "Solid."}`

	result := Normalize(raw)

	assert.Equal(t, 72, result.MatchScore)
	assert.Equal(t, []string{"Go"}, result.MissingSkills)
	assert.Equal(t, "Solid.", result.ProfileSummary)
}

// TestNormalizeUnparseable 验证完全无法解析的输入返回统一的降级结果
func TestNormalizeUnparseable(t *testing.T) {
	for _, raw := range []string{
		"",
		"I cannot evaluate this resume.",
		"{\"JD-Match\": 50, ", // 残缺对象，花括号不配对
		"[1, 2, 3]",
	} {
		result := Normalize(raw)
		assert.Equal(t, types.FallbackResult(), result, "输入 %q 应得到降级结果", raw)
	}
}

// TestNormalizeScoreCoercion 验证各种形态的分数字段被规整
func TestNormalizeScoreCoercion(t *testing.T) {
	cases := []struct {
		name     string
		raw      string
		expected int
	}{
		{"数字字符串", `{"JD-Match": "73", "Missing Skills": [], "Profile Summary": "s"}`, 73},
		{"带百分号的字符串", `{"JD-Match": "73%", "Missing Skills": [], "Profile Summary": "s"}`, 73},
		{"浮点数", `{"JD-Match": 88.6, "Missing Skills": [], "Profile Summary": "s"}`, 88},
		{"超出上界", `{"JD-Match": 150, "Missing Skills": [], "Profile Summary": "s"}`, 100},
		{"负数", `{"JD-Match": -5, "Missing Skills": [], "Profile Summary": "s"}`, 0},
		{"非数字", `{"JD-Match": true, "Missing Skills": [], "Profile Summary": "s"}`, 0},
		{"字段缺失", `{"Missing Skills": [], "Profile Summary": "s"}`, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := Normalize(tc.raw)
			assert.Equal(t, tc.expected, result.MatchScore)
		})
	}
}

// TestNormalizeFieldDefaults 验证缺失或形状不对的字段取默认值
func TestNormalizeFieldDefaults(t *testing.T) {
	result := Normalize(`{"JD-Match": 40}`)

	assert.Equal(t, 40, result.MatchScore)
	assert.NotNil(t, result.MissingSkills, "缺失技能字段缺失时应为空列表而不是nil")
	assert.Empty(t, result.MissingSkills)
	assert.Equal(t, "", result.ProfileSummary)

	// 形状不对的字段同样回退
	result = Normalize(`{"JD-Match": 40, "Missing Skills": "not-a-list", "Profile Summary": 42}`)
	assert.Empty(t, result.MissingSkills)
	assert.Equal(t, "", result.ProfileSummary)
}

// TestNormalizeSkillOrderPreserved 验证缺失技能保持模型返回的顺序
func TestNormalizeSkillOrderPreserved(t *testing.T) {
	raw := `{"JD-Match": 10, "Missing Skills": ["Spark", "Airflow", "dbt"], "Profile Summary": "s"}`

	result := Normalize(raw)

	assert.Equal(t, []string{"Spark", "Airflow", "dbt"}, result.MissingSkills)
}

// TestNormalizeIdempotent 验证规整结果重新序列化后再输入，输出不变
func TestNormalizeIdempotent(t *testing.T) {
	raws := []string{
		`{"JD-Match": 87, "Missing Skills": ["Go"], "Profile Summary": "ok"}`,
		`{"JD-Match": "120%", "Missing Skills": [1, "Go"], "Profile Summary": "ok"}`,
		"no json here at all",
	}

	for _, raw := range raws {
		first := Normalize(raw)

		// 用 wire 键名重新序列化，模拟结果被二次处理
		reserialized, err := json.Marshal(map[string]any{
			"JD-Match":        first.MatchScore,
			"Missing Skills":  first.MissingSkills,
			"Profile Summary": first.ProfileSummary,
		})
		require.NoError(t, err)

		second := Normalize(string(reserialized))
		assert.Equal(t, first, second, "输入 %q 的规整结果应是幂等的", raw)
	}
}

// TestNormalizeRepairsUnescapedQuotes 验证字符串内部未转义的引号被自动修复
func TestNormalizeRepairsUnescapedQuotes(t *testing.T) {
	raw := `{"JD-Match": 55, "Missing Skills": [], "Profile Summary": "Worked on the "Phoenix" project"}`

	result := Normalize(raw)

	assert.Equal(t, 55, result.MatchScore)
	assert.Contains(t, result.ProfileSummary, "Phoenix")
}
