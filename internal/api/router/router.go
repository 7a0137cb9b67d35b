package router

import (
	"context"

	"cv-match-go/internal/api/handler"
	"cv-match-go/internal/config"
	"cv-match-go/internal/storage"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, cfg *config.Config, storageManager *storage.Storage, analysisHandler *handler.AnalysisHandler, historyHandler *handler.HistoryHandler) {
	api := h.Group("/api/v1")

	// 分析接口对匿名开放，限流在handler内按池执行
	api.POST("/analyze", analysisHandler.HandleAnalyzeSingle)
	api.POST("/analyze/batch", analysisHandler.HandleAnalyzeBatch)

	// 历史查询要求有效的API密钥，校验通过后把雇主身份放进请求上下文
	authed := api.Group("/", keyauth.New(
		keyauth.WithKeyLookUp("header:X-API-Key", ""),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			employer := cfg.EmployerForKey(key)
			if employer == "" {
				return false, nil
			}
			c.Set("employer_id", employer)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			c.JSON(consts.StatusUnauthorized, utils.H{"error": "无效或缺失的API密钥"})
			c.Abort()
		}),
	))
	authed.GET("/history", historyHandler.HandleListHistory)

	// 健康检查
	api.GET("/health", handler.HandleHealth(storageManager))
}
