package handler

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strconv"
	"time"

	"cv-match-go/internal/config"
	"cv-match-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

// HistoryHandler 负责认证雇主的历史分析记录查询
type HistoryHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	logger  *log.Logger
}

// NewHistoryHandler 创建一个新的 HistoryHandler 实例
func NewHistoryHandler(cfg *config.Config, storage *storage.Storage) *HistoryHandler {
	return &HistoryHandler{
		cfg:     cfg,
		storage: storage,
		logger:  log.New(os.Stdout, "[HistoryHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// HistoryRecordPayload 历史记录的响应条目，匹配结果字段与分析接口保持同一套键名
type HistoryRecordPayload struct {
	RecordID       string    `json:"record_id"`
	BatchID        string    `json:"batch_id"`
	Filename       string    `json:"filename"`
	MatchScore     int       `json:"JD-Match"`
	MissingSkills  []string  `json:"Missing Skills"`
	ProfileSummary string    `json:"Profile Summary"`
	Position       int       `json:"Position"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HandleListHistory 查询当前雇主的历史分析记录，按时间倒序。
// GET /api/v1/history?limit=50 (需要有效的 X-API-Key)
func (h *HistoryHandler) HandleListHistory(ctx context.Context, c *app.RequestContext) {
	employerValue, exists := c.Get("employer_id")
	if !exists {
		c.JSON(consts.StatusUnauthorized, map[string]string{"error": "缺少雇主身份"})
		return
	}
	employerID, ok := employerValue.(string)
	if !ok || employerID == "" {
		c.JSON(consts.StatusUnauthorized, map[string]string{"error": "雇主身份无效"})
		return
	}

	if h.storage == nil || h.storage.MySQL == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "历史存储不可用"})
		return
	}

	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil {
		limit = 0 // 交给存储层使用默认值
	}

	records, err := h.storage.MySQL.ListAnalysisRecords(ctx, employerID, limit)
	if err != nil {
		h.logger.Printf("查询雇主 %s 的历史记录失败: %v", employerID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "查询历史记录失败"})
		return
	}

	payload := make([]HistoryRecordPayload, 0, len(records))
	for _, r := range records {
		item := HistoryRecordPayload{
			RecordID:       r.RecordID,
			BatchID:        r.BatchID,
			Filename:       r.Filename,
			MatchScore:     r.MatchScore,
			MissingSkills:  []string{},
			ProfileSummary: r.ProfileSummary,
			Position:       r.Position,
			Error:          r.ErrorMessage,
			CreatedAt:      r.CreatedAt,
		}
		if len(r.MissingSkillsJSON) > 0 {
			var skills []string
			if err := json.Unmarshal(r.MissingSkillsJSON, &skills); err == nil && skills != nil {
				item.MissingSkills = skills
			}
		}
		payload = append(payload, item)
	}

	c.JSON(consts.StatusOK, map[string]interface{}{
		"employer_id": employerID,
		"count":       len(payload),
		"records":     payload,
	})
}

// HandleHealth 健康检查，回报各存储组件的连通状态
func HandleHealth(storage *storage.Storage) func(ctx context.Context, c *app.RequestContext) {
	return func(ctx context.Context, c *app.RequestContext) {
		status := map[string]string{"status": "ok"}
		if storage != nil && storage.Redis != nil {
			if err := storage.Redis.Ping(ctx); err != nil {
				status["redis"] = "unavailable"
			} else {
				status["redis"] = "ok"
			}
		}
		c.JSON(consts.StatusOK, status)
	}
}
