package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"strconv"
	"strings"

	"cv-match-go/internal/config"
	"cv-match-go/internal/constants"
	"cv-match-go/internal/logger"
	"cv-match-go/internal/processor"
	"cv-match-go/internal/ratelimit"
	"cv-match-go/internal/storage"
	"cv-match-go/internal/tracing"
	"cv-match-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AnalysisHandler 负责处理简历匹配分析请求
type AnalysisHandler struct {
	cfg      *config.Config
	storage  *storage.Storage
	proc     *processor.AnalysisProcessor
	limiters map[string]*ratelimit.Limiter // 按限流池名称索引
	logger   *log.Logger
}

// NewAnalysisHandler 创建一个新的 AnalysisHandler 实例
func NewAnalysisHandler(cfg *config.Config, storage *storage.Storage, proc *processor.AnalysisProcessor, limiters map[string]*ratelimit.Limiter) *AnalysisHandler {
	return &AnalysisHandler{
		cfg:      cfg,
		storage:  storage,
		proc:     proc,
		limiters: limiters,
		logger:   log.New(os.Stdout, "[AnalysisHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// resolveTenant 根据 X-API-Key 解析请求归属。
// 持有效密钥的请求进入 free_tier 池并关联雇主，匿名请求进入 demo 池
func (h *AnalysisHandler) resolveTenant(c *app.RequestContext) (pool string, employerID *string) {
	apiKey := string(c.GetHeader("X-API-Key"))
	if apiKey != "" {
		if employer := h.cfg.EmployerForKey(apiKey); employer != "" {
			return constants.PoolFree, &employer
		}
	}
	return constants.PoolDemo, nil
}

// admit 执行限流检查。返回的Decision用于响应中的配额信息。
// 配额耗尽时已写好429响应，调用方直接返回即可
func (h *AnalysisHandler) admit(ctx context.Context, c *app.RequestContext, pool string) (ratelimit.Decision, bool) {
	limiter, ok := h.limiters[pool]
	if !ok {
		h.logger.Printf("限流池 %s 未配置", pool)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "服务配置错误"})
		return ratelimit.Decision{}, false
	}

	identity := ratelimit.ClientIdentity(c.ClientIP(), string(c.UserAgent()))
	decision, err := limiter.Admit(ctx, identity)
	if err != nil {
		var quotaErr *ratelimit.QuotaExceededError
		if errors.As(err, &quotaErr) {
			tracing.RecordErrorWithInfo(trace.SpanFromContext(ctx), quotaErr, tracing.ErrorTypeRateLimit,
				attribute.String("rate_limit.pool", pool),
				attribute.String("http.user_agent",
					tracing.SafeAttributeValue("http.user_agent", string(c.UserAgent()), tracing.MaxHeaderLength)))
			retryAfterSec := int(quotaErr.RetryAfter.Seconds())
			if retryAfterSec < 1 {
				retryAfterSec = 1
			}
			c.Response.Header.Set("Retry-After", strconv.Itoa(retryAfterSec))
			c.JSON(consts.StatusTooManyRequests, map[string]interface{}{
				"error":      quotaErr.Error(),
				"rate_limit": rateLimitInfo(decision),
			})
			return decision, false
		}

		// 计数存储不可用时拒绝请求，避免配额被绕过
		tracing.RecordError(trace.SpanFromContext(ctx), err, tracing.ErrorTypeRedis)
		logger.Error().Err(err).Str("pool", pool).Msg("限流计数存储访问失败")
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "限流检查失败，请稍后重试"})
		return ratelimit.Decision{}, false
	}

	return decision, true
}

// rateLimitInfo 把限流决策转换为响应中的配额信息
func rateLimitInfo(d ratelimit.Decision) *types.RateLimitInfo {
	return &types.RateLimitInfo{
		RemainingRequests: d.Remaining,
		MaxRequests:       d.Limit,
		ResetAfterHours:   d.ResetAfter.Hours(),
	}
}

// readUpload 把multipart文件读入内存
func readUpload(fileHeader *multipart.FileHeader) (types.Document, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return types.Document{}, fmt.Errorf("打开上传文件 %s 失败: %w", fileHeader.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return types.Document{}, fmt.Errorf("读取上传文件 %s 失败: %w", fileHeader.Filename, err)
	}
	return types.Document{Filename: fileHeader.Filename, Data: data}, nil
}

// resolveJDText 从表单中解析岗位描述：优先使用 jd 文件，其次是 jd_text 字段
func (h *AnalysisHandler) resolveJDText(ctx context.Context, c *app.RequestContext) (string, error) {
	if fileHeader, err := c.FormFile("jd"); err == nil {
		doc, err := readUpload(fileHeader)
		if err != nil {
			return "", err
		}
		return h.proc.ExtractDocument(ctx, doc)
	}

	jdText := strings.TrimSpace(c.PostForm("jd_text"))
	if jdText == "" {
		return "", fmt.Errorf("%w: 缺少岗位描述 (jd 文件或 jd_text 字段)", types.ErrMissingRequiredInput)
	}
	return jdText, nil
}

// writeAnalysisError 把分析错误映射为HTTP状态码
func (h *AnalysisHandler) writeAnalysisError(ctx context.Context, c *app.RequestContext, err error) {
	span := trace.SpanFromContext(ctx)
	switch {
	case errors.Is(err, types.ErrUnsupportedFormat), errors.Is(err, types.ErrMissingRequiredInput):
		tracing.RecordHTTPError(span, err, consts.StatusBadRequest)
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, types.ErrModelUnavailable):
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		tracing.RecordHTTPError(span, err, consts.StatusInternalServerError)
		h.logger.Printf("分析请求处理失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "内部错误"})
	}
}

// HandleAnalyzeSingle 处理单份简历分析请求。
// POST /api/v1/analyze (multipart: cv文件 + jd文件或jd_text字段)
func (h *AnalysisHandler) HandleAnalyzeSingle(ctx context.Context, c *app.RequestContext) {
	pool, employerID := h.resolveTenant(c)

	decision, ok := h.admit(ctx, c, pool)
	if !ok {
		return
	}

	cvHeader, err := c.FormFile("cv")
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "缺少简历文件 (cv 字段)"})
		return
	}
	cvDoc, err := readUpload(cvHeader)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	jdText, err := h.resolveJDText(ctx, c)
	if err != nil {
		h.writeAnalysisError(ctx, c, err)
		return
	}

	cvText, err := h.proc.ExtractDocument(ctx, cvDoc)
	if err != nil {
		h.writeAnalysisError(ctx, c, err)
		return
	}

	result, err := h.proc.AnalyzeOne(ctx, jdText, cvText)
	if err != nil {
		h.writeAnalysisError(ctx, c, err)
		return
	}

	_ = employerID // 单次分析不落库，归属信息仅用于批量接口

	c.JSON(consts.StatusOK, types.NewSingleResultPayload(result, rateLimitInfo(decision)))
}

// HandleAnalyzeBatch 处理批量简历分析请求。
// POST /api/v1/analyze/batch (multipart: 多个cvs文件 + jd文件或jd_text字段)
func (h *AnalysisHandler) HandleAnalyzeBatch(ctx context.Context, c *app.RequestContext) {
	pool, employerID := h.resolveTenant(c)

	decision, ok := h.admit(ctx, c, pool)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "解析multipart表单失败"})
		return
	}

	fileHeaders := form.File["cvs"]
	if len(fileHeaders) == 0 {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "缺少简历文件 (cvs 字段)"})
		return
	}

	docs := make([]types.Document, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		doc, err := readUpload(fh)
		if err != nil {
			c.JSON(consts.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		docs = append(docs, doc)
	}

	// JD只提取一次，供批次内所有简历复用
	jdText, err := h.resolveJDText(ctx, c)
	if err != nil {
		h.writeAnalysisError(ctx, c, err)
		return
	}

	batch, err := h.proc.AnalyzeBatch(ctx, jdText, docs, processor.BatchMeta{
		EmployerID: employerID,
		Pool:       pool,
	})
	if err != nil {
		h.writeAnalysisError(ctx, c, err)
		return
	}

	payload := types.BatchResultPayload{
		BatchID:         batch.BatchID,
		CandidatesCount: len(batch.Entries),
		RateLimit:       rateLimitInfo(decision),
	}
	payload.CandidatesResults = make([]types.CandidateResultPayload, 0, len(batch.Entries))
	for _, entry := range batch.Entries {
		payload.CandidatesResults = append(payload.CandidatesResults, types.NewCandidateResultPayload(entry))
	}

	c.JSON(consts.StatusOK, payload)
}
