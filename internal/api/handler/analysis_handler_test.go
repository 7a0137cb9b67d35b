package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"cv-match-go/internal/api/handler"
	"cv-match-go/internal/api/router"
	"cv-match-go/internal/config"
	"cv-match-go/internal/constants"
	"cv-match-go/internal/processor"
	"cv-match-go/internal/ratelimit"
	"cv-match-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor 返回文件内容本身作为提取文本，便于断言prompt流转
type fakeExtractor struct {
	failOn map[string]bool
}

func (f *fakeExtractor) Extract(ctx context.Context, data []byte, filename string) (string, error) {
	if f.failOn[filename] {
		return "", fmt.Errorf("%w: %s", types.ErrUnsupportedFormat, filename)
	}
	return string(data), nil
}

// fakeAnalyzer 按简历文本返回预设结果
type fakeAnalyzer struct {
	results map[string]types.AnalysisResult
	err     error
}

func (f *fakeAnalyzer) AnalyzeMatch(ctx context.Context, jdText string, cvText string) (types.AnalysisResult, error) {
	if f.err != nil {
		return types.AnalysisResult{}, f.err
	}
	for key, result := range f.results {
		if strings.Contains(cvText, key) {
			return result, nil
		}
	}
	return types.FallbackResult(), nil
}

type formFile struct {
	field    string
	filename string
	content  string
}

func buildForm(t *testing.T, fields map[string]string, files []formFile) (string, *bytes.Buffer) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return writer.FormDataContentType(), body
}

// newTestEngine 用内存限流和假组件搭建完整路由
func newTestEngine(t *testing.T, extractor processor.TextExtractor, analyzer processor.MatchAnalyzer, demoQuota int) *server.Hertz {
	t.Helper()

	cfg := &config.Config{
		APIKeys: map[string]string{"valid-key": "employer-001"},
	}

	proc := processor.NewAnalysisProcessor(
		[]processor.ComponentOpt{
			processor.WithcompExtractor(extractor),
			processor.WithcompAnalyzer(analyzer),
		},
		nil,
	)

	store := ratelimit.NewMemoryStore()
	limiters := map[string]*ratelimit.Limiter{
		constants.PoolDemo: ratelimit.NewLimiter(store, constants.PoolDemo, demoQuota, 24*time.Hour),
		constants.PoolFree: ratelimit.NewLimiter(store, constants.PoolFree, 25, 24*time.Hour),
	}

	analysisHandler := handler.NewAnalysisHandler(cfg, nil, proc, limiters)
	historyHandler := handler.NewHistoryHandler(cfg, nil)

	engine := server.New(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(engine, cfg, nil, analysisHandler, historyHandler)
	return engine
}

func TestAnalyzeSingleSuccess(t *testing.T) {
	analyzer := &fakeAnalyzer{
		results: map[string]types.AnalysisResult{
			"golang工程师简历": {MatchScore: 82, MissingSkills: []string{"Kafka"}, ProfileSummary: "资深Go工程师"},
		},
	}
	engine := newTestEngine(t, &fakeExtractor{}, analyzer, 10)

	contentType, body := buildForm(t,
		map[string]string{"jd_text": "招聘Go后端工程师"},
		[]formFile{{field: "cv", filename: "candidate.pdf", content: "golang工程师简历"}},
	)

	resp := ut.PerformRequest(engine.Engine, "POST", "/api/v1/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	require.Equal(t, 200, resp.Code, "请求应成功")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))

	assert.EqualValues(t, 82, payload["JD-Match"], "响应应使用JD-Match键名")
	assert.Equal(t, []interface{}{"Kafka"}, payload["Missing Skills"])
	assert.Equal(t, "资深Go工程师", payload["Profile Summary"])
	assert.NotContains(t, payload, "Position", "单份分析不应包含名次")

	rateLimit, ok := payload["rate_limit"].(map[string]interface{})
	require.True(t, ok, "响应应包含配额信息")
	assert.EqualValues(t, 9, rateLimit["remaining_requests"])
	assert.EqualValues(t, 10, rateLimit["max_requests"])
}

func TestAnalyzeSingleUnsupportedFormat(t *testing.T) {
	extractor := &fakeExtractor{failOn: map[string]bool{"resume.exe": true}}
	engine := newTestEngine(t, extractor, &fakeAnalyzer{}, 10)

	contentType, body := buildForm(t,
		map[string]string{"jd_text": "招聘Go后端工程师"},
		[]formFile{{field: "cv", filename: "resume.exe", content: "binary"}},
	)

	resp := ut.PerformRequest(engine.Engine, "POST", "/api/v1/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, 400, resp.Code, "不支持的格式应返回400")
}

func TestAnalyzeSingleMissingJD(t *testing.T) {
	engine := newTestEngine(t, &fakeExtractor{}, &fakeAnalyzer{}, 10)

	contentType, body := buildForm(t, nil,
		[]formFile{{field: "cv", filename: "candidate.pdf", content: "简历内容"}},
	)

	resp := ut.PerformRequest(engine.Engine, "POST", "/api/v1/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, 400, resp.Code, "缺少岗位描述应返回400")
}

func TestAnalyzeSingleModelUnavailable(t *testing.T) {
	analyzer := &fakeAnalyzer{err: fmt.Errorf("%w: 连接超时", types.ErrModelUnavailable)}
	engine := newTestEngine(t, &fakeExtractor{}, analyzer, 10)

	contentType, body := buildForm(t,
		map[string]string{"jd_text": "招聘Go后端工程师"},
		[]formFile{{field: "cv", filename: "candidate.pdf", content: "简历内容"}},
	)

	resp := ut.PerformRequest(engine.Engine, "POST", "/api/v1/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, 503, resp.Code, "模型不可用应返回503")
}

func TestAnalyzeRateLimitExhaustion(t *testing.T) {
	engine := newTestEngine(t, &fakeExtractor{}, &fakeAnalyzer{}, 2)

	doRequest := func() *ut.ResponseRecorder {
		contentType, body := buildForm(t,
			map[string]string{"jd_text": "招聘Go后端工程师"},
			[]formFile{{field: "cv", filename: "candidate.pdf", content: "简历内容"}},
		)
		return ut.PerformRequest(engine.Engine, "POST", "/api/v1/analyze",
			&ut.Body{Body: body, Len: body.Len()},
			ut.Header{Key: "Content-Type", Value: contentType},
		)
	}

	assert.Equal(t, 200, doRequest().Code, "第一次请求应放行")
	assert.Equal(t, 200, doRequest().Code, "第二次请求应放行")

	resp := doRequest()
	assert.Equal(t, 429, resp.Code, "超出配额应返回429")
	assert.NotEmpty(t, resp.Header().Get("Retry-After"), "429响应应携带Retry-After头")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	assert.Contains(t, payload, "rate_limit", "429响应体应包含配额信息")
}

func TestAnalyzeBatchEndpoint(t *testing.T) {
	extractor := &fakeExtractor{failOn: map[string]bool{"broken.docx": true}}
	analyzer := &fakeAnalyzer{
		results: map[string]types.AnalysisResult{
			"简历甲": {MatchScore: 55, MissingSkills: []string{"Go", "Redis"}},
			"简历乙": {MatchScore: 91, MissingSkills: []string{}, ProfileSummary: "非常匹配"},
		},
	}
	engine := newTestEngine(t, extractor, analyzer, 10)

	contentType, body := buildForm(t,
		map[string]string{"jd_text": "招聘Go后端工程师"},
		[]formFile{
			{field: "cvs", filename: "a.pdf", content: "简历甲"},
			{field: "cvs", filename: "b.pdf", content: "简历乙"},
			{field: "cvs", filename: "broken.docx", content: "乱码"},
		},
	)

	resp := ut.PerformRequest(engine.Engine, "POST", "/api/v1/analyze/batch",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	require.Equal(t, 200, resp.Code, "批量请求应成功")

	var payload struct {
		BatchID           string                   `json:"batch_id"`
		CandidatesCount   int                      `json:"candidates_count"`
		CandidatesResults []map[string]interface{} `json:"candidates_results"`
		RateLimit         map[string]interface{}   `json:"rate_limit"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))

	assert.NotEmpty(t, payload.BatchID, "批次ID不应为空")
	assert.Equal(t, 3, payload.CandidatesCount, "失败的简历也应计入批次")
	require.Len(t, payload.CandidatesResults, 3)

	first := payload.CandidatesResults[0]
	assert.Equal(t, "b.pdf", first["filename"], "最高分应排第一")
	assert.EqualValues(t, 91, first["JD-Match"])
	assert.EqualValues(t, 1, first["Position"])

	last := payload.CandidatesResults[2]
	assert.Equal(t, "broken.docx", last["filename"], "失败条目应沉底")
	assert.NotEmpty(t, last["error"], "失败条目应携带错误信息")
	assert.EqualValues(t, 3, last["Position"], "失败条目同样占有名次")
}

func TestHistoryRequiresAPIKey(t *testing.T) {
	engine := newTestEngine(t, &fakeExtractor{}, &fakeAnalyzer{}, 10)

	resp := ut.PerformRequest(engine.Engine, "GET", "/api/v1/history", nil)
	assert.Equal(t, 401, resp.Code, "缺少API密钥应返回401")

	resp = ut.PerformRequest(engine.Engine, "GET", "/api/v1/history", nil,
		ut.Header{Key: "X-API-Key", Value: "wrong-key"})
	assert.Equal(t, 401, resp.Code, "无效API密钥应返回401")
}
