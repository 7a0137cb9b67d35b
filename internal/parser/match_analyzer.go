package parser

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"cv-match-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
)

// MatchAnalyzer 封装LLM客户端和Prompt逻辑，执行简历与JD的匹配分析
type MatchAnalyzer struct {
	llmModel       model.ToolCallingChatModel
	promptTemplate string // JD-简历匹配的Prompt模板
	logger         *log.Logger
}

// MatchAnalyzerOption 分析器的配置选项
type MatchAnalyzerOption func(*MatchAnalyzer)

// WithPromptTemplate 设置自定义提示词模板，模板需要两个 %s 占位符（JD、简历）
func WithPromptTemplate(template string) MatchAnalyzerOption {
	return func(a *MatchAnalyzer) {
		if template != "" {
			a.promptTemplate = template
		}
	}
}

// NewMatchAnalyzer 创建一个新的匹配分析器实例
func NewMatchAnalyzer(llmModel model.ToolCallingChatModel, logger *log.Logger, options ...MatchAnalyzerOption) *MatchAnalyzer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0) // 默认使用丢弃型记录器
	}
	analyzer := &MatchAnalyzer{
		llmModel: llmModel,
		logger:   logger,
	}

	analyzer.generatePromptTemplate()

	for _, opt := range options {
		opt(analyzer)
	}

	return analyzer
}

func (a *MatchAnalyzer) generatePromptTemplate() {
	a.promptTemplate = `You are an experienced technical recruiter with deep expertise in software engineering,
data science, data analytics and big data hiring. Evaluate the candidate resume against
the job description below. The market for these roles is highly competitive, so be
accurate and critical.

Work through the following steps:
1. Identify the 5-8 most important requirements stated in the job description.
2. Check the resume against each of these requirements.
3. Derive an overall match percentage between 0 and 100.
4. List the key skills required by the job that are missing from the resume.
5. Write a profile summary of at most 30 words describing this candidate for this job.

Respond with ONLY a single valid JSON object, no markdown fences, no extra text,
with exactly these three keys:
{"JD-Match": <integer 0-100>, "Missing Skills": [<strings>], "Profile Summary": "<string>"}

Job Description:
"""
%s
"""

Candidate Resume:
"""
%s
"""`
}

// AnalyzeMatch 执行一次JD与简历的匹配分析。
// LLM调用失败时返回包装了 types.ErrModelUnavailable 的错误；
// 模型返回了内容但无法解析时不报错，由规整器给出降级结果。
func (a *MatchAnalyzer) AnalyzeMatch(ctx context.Context, jdText string, cvText string) (types.AnalysisResult, error) {
	if a.llmModel == nil {
		return types.AnalysisResult{}, fmt.Errorf("MatchAnalyzer: llmModel is not initialized")
	}

	userMsgContent := fmt.Sprintf(a.promptTemplate, jdText, cvText)

	systemMsg := einoschema.SystemMessage("You are a precise assistant for matching resumes against job descriptions. You always answer with a single JSON object.")
	userMsg := einoschema.UserMessage(userMsgContent)

	messages := []*einoschema.Message{systemMsg, userMsg}

	a.logger.Printf("[MatchAnalyzer] JD (first 300 chars): %.300s", jdText)
	a.logger.Printf("[MatchAnalyzer] Resume (first 300 chars): %.300s", cvText)

	response, err := a.llmModel.Generate(ctx, messages)
	if err != nil {
		a.logger.Printf("[MatchAnalyzer] LLM call error: %v", err)
		return types.AnalysisResult{}, fmt.Errorf("%w: %v", types.ErrModelUnavailable, err)
	}

	if response == nil || strings.TrimSpace(response.Content) == "" {
		// 内容为空按输出损坏处理，走降级结果
		a.logger.Printf("[MatchAnalyzer] LLM returned empty response, falling back")
		return types.FallbackResult(), nil
	}

	a.logger.Printf("[MatchAnalyzer] LLM Response: %s", response.Content)

	return Normalize(response.Content), nil
}
