package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"cv-match-go/internal/constants"
	"cv-match-go/internal/storage/models"
	"cv-match-go/internal/tracing"
	"cv-match-go/internal/types"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const jdExcerptLimit = 500 // 落库时JD摘录的最大字符数

// BatchMeta 批次归属信息，用于落库和事件载荷
type BatchMeta struct {
	EmployerID *string // 认证请求对应的雇主，匿名请求为nil
	Pool       string  // 限流池名称
}

// AnalysisProcessor 简历匹配分析的流程编排器。
// 组件通过接口注入，便于测试替换
type AnalysisProcessor struct {
	Components
	Settings Settings

	tracer trace.Tracer
}

// NewAnalysisProcessor 创建分析处理器
func NewAnalysisProcessor(compOpts []ComponentOpt, setOpts []SettingOpt) *AnalysisProcessor {
	p := &AnalysisProcessor{
		Settings: Settings{
			MaxConcurrent:  constants.DefaultMaxConcurrentAnalyses,
			AnalyzeTimeout: constants.DefaultAnalyzeTimeout,
			Logger:         log.New(io.Discard, "", 0),
		},
		tracer: otel.Tracer("cv-match-go/processor"),
	}

	for _, opt := range compOpts {
		opt(&p.Components)
	}
	for _, opt := range setOpts {
		opt(&p.Settings)
	}

	return p
}

// ExtractDocument 从上传文档中提取纯文本
func (p *AnalysisProcessor) ExtractDocument(ctx context.Context, doc types.Document) (string, error) {
	if p.Extractor == nil {
		return "", fmt.Errorf("文档提取器未初始化")
	}

	text, err := p.Extractor.Extract(ctx, doc.Data, doc.Filename)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: 文档 %s 未提取到有效文本", types.ErrMissingRequiredInput, doc.Filename)
	}
	return text, nil
}

// AnalyzeOne 分析单份简历与岗位描述的匹配度。
// LLM输出格式问题不会报错，而是降级为兜底结果；只有模型不可用才返回错误
func (p *AnalysisProcessor) AnalyzeOne(ctx context.Context, jdText string, cvText string) (types.AnalysisResult, error) {
	if p.Analyzer == nil {
		return types.AnalysisResult{}, fmt.Errorf("匹配分析器未初始化")
	}
	if strings.TrimSpace(jdText) == "" {
		return types.AnalysisResult{}, fmt.Errorf("%w: 岗位描述为空", types.ErrMissingRequiredInput)
	}
	if strings.TrimSpace(cvText) == "" {
		return types.AnalysisResult{}, fmt.Errorf("%w: 简历文本为空", types.ErrMissingRequiredInput)
	}

	if p.Settings.AnalyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Settings.AnalyzeTimeout)
		defer cancel()
	}

	return p.Analyzer.AnalyzeMatch(ctx, jdText, cvText)
}

// AnalyzeBatch 并发分析一批简历，排序后返回带名次的批次结果。
// 单份简历失败只影响自身条目，不取消其余分析。
// 结果落库和事件发布是尽力而为，失败只记录日志，不影响返回
func (p *AnalysisProcessor) AnalyzeBatch(ctx context.Context, jdText string, docs []types.Document, meta BatchMeta) (*types.BatchAnalysis, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: 批次中没有简历文件", types.ErrMissingRequiredInput)
	}
	if strings.TrimSpace(jdText) == "" {
		return nil, fmt.Errorf("%w: 岗位描述为空", types.ErrMissingRequiredInput)
	}

	batchUUID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成批次ID失败: %w", err)
	}
	batchID := batchUUID.String()

	ctx, span := p.tracer.Start(ctx, "processor.AnalyzeBatch",
		trace.WithAttributes(
			attribute.String("batch.id", batchID),
			attribute.Int("batch.size", len(docs)),
			attribute.String("batch.pool", meta.Pool),
			attribute.String("batch.jd_excerpt", tracing.SafeDocumentContent(jdText)),
		),
	)
	defer span.End()

	entries := make([]types.BatchEntry, len(docs))

	// 信号量控制并发上限，每份简历独立分析
	semaphore := make(chan struct{}, p.Settings.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range docs {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			entries[idx] = p.analyzeCandidate(ctx, batchID, jdText, docs[idx])
		}(i)
	}
	wg.Wait()

	Rank(entries)

	failed := 0
	for _, e := range entries {
		if e.Err != nil {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("batch.failed_count", failed))
	if failed == len(entries) {
		span.SetStatus(codes.Error, "批次中所有简历分析失败")
	} else {
		span.SetStatus(codes.Ok, "")
	}

	batch := &types.BatchAnalysis{
		BatchID: batchID,
		JDText:  jdText,
		Entries: entries,
	}

	if err := p.persistBatch(ctx, batch, meta); err != nil {
		p.Settings.Logger.Printf("[WARN] 批次 %s 结果落库失败: %v", batchID, err)
		span.RecordError(err)
	}

	return batch, nil
}

// analyzeCandidate 处理批次中的一份简历，任何失败都收敛为条目上的错误
func (p *AnalysisProcessor) analyzeCandidate(ctx context.Context, batchID string, jdText string, doc types.Document) types.BatchEntry {
	entry := types.BatchEntry{Filename: doc.Filename}

	cvText, err := p.ExtractDocument(ctx, doc)
	if err != nil {
		p.logDebug("提取简历 %s 文本失败: %v", doc.Filename, err)
		entry.Err = NewExtractError(batchID, err)
		return entry
	}

	result, err := p.AnalyzeOne(ctx, jdText, cvText)
	if err != nil {
		p.logDebug("分析简历 %s 失败: %v", doc.Filename, err)
		entry.Err = NewAnalyzeError(batchID, err)
		return entry
	}

	entry.Result = result
	return entry
}

// persistBatch 在一个事务里写入批次、逐份记录和batch完成事件
func (p *AnalysisProcessor) persistBatch(ctx context.Context, batch *types.BatchAnalysis, meta BatchMeta) error {
	if p.Storage == nil || p.Storage.MySQL == nil {
		p.logDebug("MySQL未配置, 跳过批次 %s 落库", batch.BatchID)
		return nil
	}

	batchRow := &models.AnalysisBatch{
		BatchID:         batch.BatchID,
		EmployerID:      meta.EmployerID,
		Pool:            meta.Pool,
		CandidatesCount: len(batch.Entries),
		JDExcerpt:       truncateRunes(batch.JDText, jdExcerptLimit),
	}

	records := make([]models.AnalysisRecord, 0, len(batch.Entries))
	for _, e := range batch.Entries {
		recordUUID, err := uuid.NewV7()
		if err != nil {
			return NewPersistError(batch.BatchID, fmt.Sprintf("生成记录ID失败: %v", err))
		}

		record := models.AnalysisRecord{
			RecordID:   recordUUID.String(),
			BatchID:    batch.BatchID,
			EmployerID: meta.EmployerID,
			Filename:   e.Filename,
			Position:   e.Position,
		}
		if e.Err != nil {
			record.ErrorMessage = e.Err.Error()
			record.MissingSkillsJSON = models.StringsToJSON(nil)
		} else {
			record.MatchScore = e.Result.MatchScore
			record.MissingSkillsJSON = models.StringsToJSON(e.Result.MissingSkills)
			record.ProfileSummary = e.Result.ProfileSummary
		}
		records = append(records, record)
	}

	payload, err := json.Marshal(map[string]interface{}{
		"batch_id":         batch.BatchID,
		"employer_id":      meta.EmployerID,
		"candidates_count": len(batch.Entries),
	})
	if err != nil {
		return NewPersistError(batch.BatchID, fmt.Sprintf("序列化事件载荷失败: %v", err))
	}

	outbox := []models.OutboxMessage{{
		AggregateID:      batch.BatchID,
		EventType:        constants.EventBatchCompleted,
		Payload:          string(payload),
		TargetExchange:   constants.DefaultAnalysisExchange,
		TargetRoutingKey: constants.DefaultCompletedRoutingKey,
		Status:           models.OutboxStatusPending,
	}}

	if err := p.Storage.MySQL.SaveBatchAnalysis(ctx, batchRow, records, outbox); err != nil {
		return NewPersistError(batch.BatchID, err.Error())
	}

	p.logDebug("批次 %s 已落库, 共 %d 条记录", batch.BatchID, len(records))
	return nil
}

func (p *AnalysisProcessor) logDebug(format string, args ...interface{}) {
	if p.Settings.Debug && p.Settings.Logger != nil {
		p.Settings.Logger.Printf(format, args...)
	}
}

// truncateRunes 按字符数截断，避免在多字节字符中间截断
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
