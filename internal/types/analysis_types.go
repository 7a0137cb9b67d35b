package types

// Document 一份待处理的原始文件，内容只在内存中流转，不落盘
type Document struct {
	Filename string // 原始文件名，用于格式分发和结果回显
	Data     []byte // 文件原始字节
}

// AnalysisResult 单份简历与 JD 的匹配分析结果
// 内部统一使用强类型字段，原始的 "JD-Match" / "Missing Skills" / "Profile Summary"
// 键名只出现在序列化边界（见 CandidateResultPayload 等 wire 结构）
type AnalysisResult struct {
	// 匹配分数 (0-100)，规整器保证始终在区间内
	MatchScore int

	// 缺失技能列表，保持模型返回的顺序
	MissingSkills []string

	// 针对 JD 的候选人画像摘要
	ProfileSummary string
}

// FallbackResult 模型输出无法解析时的降级结果，字段值与历史行为保持一致，
// 下游可以据此识别解析失败的条目
func FallbackResult() AnalysisResult {
	return AnalysisResult{
		MatchScore:     0,
		MissingSkills:  []string{"Error parsing LLM response"},
		ProfileSummary: "Could not generate profile summary due to parsing error.",
	}
}

// BatchEntry 批量分析中单个候选人的条目
type BatchEntry struct {
	Filename string
	Result   AnalysisResult
	Position int   // 排名位置，从1开始，由排序阶段赋值
	Err      error // 非空表示该候选人处理失败，不影响同批其他条目
}

// BatchAnalysis 一次批量分析的完整产出
type BatchAnalysis struct {
	BatchID string       // UUIDv7，同时作为持久化与事件的聚合ID
	JDText  string       // 本批次使用的 JD 文本
	Entries []BatchEntry // 已按匹配度排序
}

// RateLimitInfo 返回给客户端的配额信息
type RateLimitInfo struct {
	RemainingRequests int     `json:"remaining_requests"`
	MaxRequests       int     `json:"max_requests"`
	ResetAfterHours   float64 `json:"reset_after_hours"`
}

// SingleResultPayload 单份分析接口的响应体
// 外部键名沿用既有契约，不做改名
type SingleResultPayload struct {
	JDMatch        int            `json:"JD-Match"`
	MissingSkills  []string       `json:"Missing Skills"`
	ProfileSummary string         `json:"Profile Summary"`
	RateLimit      *RateLimitInfo `json:"rate_limit,omitempty"`
}

// CandidateResultPayload 批量分析接口中单个候选人的响应体
type CandidateResultPayload struct {
	Filename       string   `json:"filename"`
	JDMatch        int      `json:"JD-Match"`
	MissingSkills  []string `json:"Missing Skills"`
	ProfileSummary string   `json:"Profile Summary"`
	Position       int      `json:"Position"`
	Error          string   `json:"error,omitempty"`
}

// BatchResultPayload 批量分析接口的响应体
type BatchResultPayload struct {
	BatchID           string                   `json:"batch_id"`
	CandidatesCount   int                      `json:"candidates_count"`
	CandidatesResults []CandidateResultPayload `json:"candidates_results"`
	RateLimit         *RateLimitInfo           `json:"rate_limit,omitempty"`
}

// NewSingleResultPayload 把内部结果转换为响应体
func NewSingleResultPayload(r AnalysisResult, rl *RateLimitInfo) SingleResultPayload {
	skills := r.MissingSkills
	if skills == nil {
		skills = []string{}
	}
	return SingleResultPayload{
		JDMatch:        r.MatchScore,
		MissingSkills:  skills,
		ProfileSummary: r.ProfileSummary,
		RateLimit:      rl,
	}
}

// NewCandidateResultPayload 把批量条目转换为响应体，失败条目带 error 字段
func NewCandidateResultPayload(e BatchEntry) CandidateResultPayload {
	p := CandidateResultPayload{
		Filename:       e.Filename,
		JDMatch:        e.Result.MatchScore,
		MissingSkills:  e.Result.MissingSkills,
		ProfileSummary: e.Result.ProfileSummary,
		Position:       e.Position,
	}
	if p.MissingSkills == nil {
		p.MissingSkills = []string{}
	}
	if e.Err != nil {
		p.Error = e.Err.Error()
	}
	return p
}
