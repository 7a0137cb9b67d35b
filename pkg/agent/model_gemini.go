package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// Gemini 的 OpenAI 兼容 chat completions 端点
	openAICompatibleGeminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"
	defaultGeminiModelName       = "gemini-2.0-flash"
)

// GenerationConfig 生成参数，构造后不再修改
// 运行期间所有请求共用同一份参数，避免请求之间互相影响
type GenerationConfig struct {
	Model           string
	Temperature     float64
	TopP            float64
	MaxOutputTokens int
	Timeout         time.Duration // 单次HTTP请求超时
}

// DefaultGenerationConfig 返回默认生成参数
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Model:           defaultGeminiModelName,
		Temperature:     1.0,
		TopP:            0.95,
		MaxOutputTokens: 8192,
		Timeout:         90 * time.Second,
	}
}

// --- OpenAI 兼容的请求/响应结构 ---

type OpenAIToolFunctionParams struct {
	Type       string         `json:"type"` // 通常为 "object"
	Properties map[string]any `json:"properties"`
	Required   []string       `json:"required,omitempty"`
}

type OpenAIFunction struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Parameters  OpenAIToolFunctionParams `json:"parameters"`
}

type OpenAITool struct {
	Type     string         `json:"type"` // 必须是 "function"
	Function OpenAIFunction `json:"function"`
}

type OpenAIChatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"` // eino 的 schema.Message 的 role/content 与 OpenAI 格式兼容
	Temperature float64           `json:"temperature"`
	TopP        float64           `json:"top_p"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Tools       []OpenAITool      `json:"tools,omitempty"`
}

type OpenAIMessage struct {
	Role      string               `json:"role"`
	Content   *string              `json:"content"` // 存在 tool_calls 时可以为 null
	ToolCalls []OpenAIToolCallData `json:"tool_calls,omitempty"`
}

type OpenAIToolCallData struct {
	Id       string `json:"id"`
	Type     string `json:"type"` // 应为 "function"
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"` // 参数的JSON字符串
	} `json:"function"`
}

type OpenAIChatChoice struct {
	Index        int           `json:"index"`
	Message      OpenAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type OpenAICompletionResponse struct {
	Id      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []OpenAIChatChoice `json:"choices"`
}

// GeminiChatModel 通过 OpenAI 兼容接口与 Gemini 交互，
// 实现了 model.ChatModel 和 model.ToolCallingChatModel 接口
type GeminiChatModel struct {
	apiKey     string
	apiURL     string
	genConfig  GenerationConfig
	httpClient *http.Client
	boundTools []OpenAITool
}

// NewGeminiChatModel 创建一个新的 GeminiChatModel 实例
func NewGeminiChatModel(apiKey string, apiURL string, genConfig GenerationConfig) (*GeminiChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = openAICompatibleGeminiAPIURL
	}

	if strings.TrimSpace(genConfig.Model) == "" {
		genConfig.Model = defaultGeminiModelName
	}
	if genConfig.Timeout <= 0 {
		genConfig.Timeout = DefaultGenerationConfig().Timeout
	}

	log.Printf("使用 Gemini LLM 客户端，API URL: %s, 模型: %s", url, genConfig.Model)

	return &GeminiChatModel{
		apiKey:     apiKey,
		apiURL:     url,
		genConfig:  genConfig,
		httpClient: &http.Client{Timeout: genConfig.Timeout},
		boundTools: make([]OpenAITool, 0),
	}, nil
}

// Config 返回当前生成参数的副本
func (g *GeminiChatModel) Config() GenerationConfig {
	return g.genConfig
}

// Generate 实现 model.ChatModel 接口
func (g *GeminiChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	reqPayload := OpenAIChatCompletionRequest{
		Model:       g.genConfig.Model,
		Messages:    messages,
		Temperature: g.genConfig.Temperature,
		TopP:        g.genConfig.TopP,
		MaxTokens:   g.genConfig.MaxOutputTokens,
	}

	if len(g.boundTools) > 0 {
		reqPayload.Tools = g.boundTools
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var openAIResp OpenAICompletionResponse
	if err := json.Unmarshal(bodyBytes, &openAIResp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w。响应体: %s", err, string(bodyBytes))
	}

	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", string(bodyBytes))
	}

	apiMessage := openAIResp.Choices[0].Message
	responseContent := ""
	if apiMessage.Content != nil {
		responseContent = *apiMessage.Content
	}

	resultMessage := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: responseContent,
	}

	if len(apiMessage.ToolCalls) > 0 {
		resultMessage.ToolCalls = make([]schema.ToolCall, len(apiMessage.ToolCalls))
		for i, tc := range apiMessage.ToolCalls {
			resultMessage.ToolCalls[i] = schema.ToolCall{
				ID: tc.Id,
				Function: schema.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			}
		}
	}

	if resultMessage.Role == "" {
		resultMessage.Role = schema.RoleType("assistant")
	}

	return resultMessage, nil
}

// Stream 实现 model.ChatModel 接口 (placeholder)
func (g *GeminiChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("GeminiChatModel (OpenAI 兼容) 的 Stream 方法未实现")
}

// BindTools 实现 model.ChatModel 接口
// 当前流水线不绑定任何工具，保留通用转换以兼容 eino 的调用方
func (g *GeminiChatModel) BindTools(tools []*schema.ToolInfo) error {
	g.boundTools = make([]OpenAITool, 0, len(tools))
	for _, toolInfo := range tools {
		if toolInfo == nil {
			continue
		}
		g.boundTools = append(g.boundTools, OpenAITool{
			Type: "function",
			Function: OpenAIFunction{
				Name:        toolInfo.Name,
				Description: toolInfo.Desc,
				Parameters:  OpenAIToolFunctionParams{Type: "object", Properties: map[string]any{}},
			},
		})
	}
	return nil
}

// WithTools 满足 model.ToolCallingChatModel 接口，工具通过 BindTools 内部处理
func (g *GeminiChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if err := g.BindTools(tools); err != nil {
		return nil, err
	}
	return g, nil
}

var _ model.ChatModel = (*GeminiChatModel)(nil)
var _ model.ToolCallingChatModel = (*GeminiChatModel)(nil)
