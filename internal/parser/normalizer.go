package parser

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode/utf8"

	"cv-match-go/internal/types"
)

// Normalize 把LLM的原始输出规整为结构完整的分析结果。
// 这是一个全函数：任何输入（空串、散文、残缺JSON）都会得到一个可用的结果，
// 完全无法解析时返回统一的降级结果，绝不返回错误。
// 对规范输入是幂等的：Normalize 的输出再序列化后重新输入，结果不变。
func Normalize(raw string) types.AnalysisResult {
	// 去掉BOM，部分模型输出会带
	content := strings.TrimPrefix(raw, "\uFEFF")

	jsonStr := extractJSONObject(content)
	if jsonStr == "" {
		return types.FallbackResult()
	}

	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var fields map[string]any
	// ① 正常解析
	if err := json.Unmarshal([]byte(jsonStr), &fields); err != nil {
		// ② 解析失败 -> 自动修复内部未转义的引号再试一次
		fixed := sanitizeJSON(jsonStr)
		if jsonErr := json.Unmarshal([]byte(fixed), &fields); jsonErr != nil {
			return types.FallbackResult()
		}
	}

	return types.AnalysisResult{
		MatchScore:     clampScore(coerceScore(fields["JD-Match"])),
		MissingSkills:  coerceStringSlice(fields["Missing Skills"]),
		ProfileSummary: coerceString(fields["Profile Summary"]),
	}
}

// coerceScore 把任意JSON值规整为整数分数
// 数字直接取整，数字字符串解析后取整，其余一律按0处理
func coerceScore(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		s := strings.TrimSuffix(strings.TrimSpace(n), "%")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
		return 0
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return int(f)
		}
		return 0
	default:
		return 0
	}
}

// clampScore 把分数收敛到 [0, 100]
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// coerceStringSlice 字段缺失或形状不对时返回空列表，保留模型给出的顺序
func coerceStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return []string{}
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// extractJSONObject 从文本中按花括号配对提取第一个完整的JSON对象
// 模型经常在JSON前后输出说明文字或markdown围栏，这里直接跳过
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	for i := start; i < len(text); i++ {
		if text[i] == '{' {
			level++
		} else if text[i] == '}' {
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 会遍历 src，将任何位于字符串字面量内部但并非"真正结束"的双引号转义，
// 以保证整个 JSON 在 Go 端能够正常反序列化。
// 它通过检查下一个非空白字符是否为 :, ], }, 或 , 来判断该 " 是否为字符串的结束。
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]

		if c == '"' && !escaped {
			if !inStr {
				// 遇到非转义的 "，并且当前不在字符串里 -> 开始一个新字符串
				inStr = true
				b.WriteByte(c)
			} else {
				// 当前在字符串里，检查这是不是字符串的真正结束
				j := i + 1
				for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
					j++
				}
				// 下一个非空白字符是 JSON 语法里的 :, ], }, 或 , 时，才是真正的 string-end
				if j < len(src) && (src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}') {
					inStr = false
					b.WriteByte(c)
				} else {
					// 否则认为这是字符串内部的 "，需要改成 \"
					b.WriteString("\\\"")
				}
			}
			escaped = false

		} else if c == '\\' && !escaped {
			escaped = true
			b.WriteByte(c)

		} else {
			b.WriteByte(c)
			escaped = false
		}
	}

	return b.String()
}
