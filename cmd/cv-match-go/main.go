package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cv-match-go/internal/api/handler"
	"cv-match-go/internal/api/router"
	"cv-match-go/internal/config"
	"cv-match-go/internal/constants"
	"cv-match-go/internal/extractor"
	"cv-match-go/internal/outbox"
	"cv-match-go/internal/parser"
	"cv-match-go/internal/processor"
	"cv-match-go/internal/ratelimit"
	"cv-match-go/internal/storage"
	"cv-match-go/internal/tracing"
	"cv-match-go/pkg/agent"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/cloudwego/eino/components/model"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/spf13/pflag"

	appCoreLogger "cv-match-go/internal/logger"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
)

var (
	version     = "1.0.0"       //nolint:gochecknoglobals
	serviceName = "cv-match-go" //nolint:gochecknoglobals
)

func main() {
	initLogger()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// OTLP端点配置了才上报追踪，本地开发可以不起collector
	var shutdownTracing func(context.Context) error
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		shutdownTracing, err = tracing.InitProvider(ctx, serviceName, endpoint)
		if err != nil {
			glog.Fatalf("初始化追踪失败: %v", err)
		}
		glog.Infof("OpenTelemetry追踪已启用, 端点: %s", endpoint)
	}

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 确保配置中声明的雇主已落库
	if storageManager.MySQL != nil {
		for _, employer := range cfg.APIKeys {
			if err := storageManager.MySQL.EnsureEmployer(ctx, employer, employer); err != nil {
				glog.Warnf("初始化雇主 %s 失败: %v", employer, err)
			}
		}
	}

	// outbox中继需要MySQL和RabbitMQ都就绪
	var messageRelay *outbox.MessageRelay
	if storageManager.MySQL != nil && storageManager.RabbitMQ != nil {
		relayLogger := log.New(appCoreLogger.Logger, "[MessageRelay] ", log.LstdFlags|log.Lshortfile)
		messageRelay = outbox.NewMessageRelay(
			storageManager.MySQL.DB(),
			storageManager.RabbitMQ,
			relayLogger,
			outbox.WithPollingInterval(config.GetDuration(cfg.RabbitMQ.RelayPollingInterval, 5*time.Second)),
			outbox.WithBatchSize(cfg.RabbitMQ.RelayBatchSize),
		)
		messageRelay.Start()
		glog.Info("消息中继服务已启动")
	} else {
		glog.Warn("MySQL或RabbitMQ未就绪，跳过消息中继启动")
	}

	var extractorLogger, analyzerLogger *log.Logger
	if cfg.Logger.Level == "debug" {
		extractorLogger = log.New(os.Stderr, "[ExtractorMain] ", log.LstdFlags|log.Lshortfile)
		analyzerLogger = log.New(os.Stderr, "[AnalyzerMain] ", log.LstdFlags|log.Lshortfile)
	} else {
		extractorLogger = log.New(io.Discard, "", 0)
		analyzerLogger = log.New(io.Discard, "", 0)
	}

	textExtractor, err := extractor.NewTextExtractor(ctx, extractor.WithLogger(extractorLogger))
	if err != nil {
		glog.Fatalf("创建文档提取器失败: %v", err)
	}
	glog.Info("文档提取器初始化成功")

	// 没有API密钥时回退到Mock模型，保证本地开发可用
	var llmChatModel model.ToolCallingChatModel
	if cfg.Gemini.APIKey != "" && cfg.Gemini.APIKey != "test_api_key" {
		genConfig := agent.GenerationConfig{
			Model:           cfg.Gemini.Model,
			Temperature:     cfg.Gemini.Temperature,
			TopP:            cfg.Gemini.TopP,
			MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
			Timeout:         time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second,
		}
		llmChatModel, err = agent.NewGeminiChatModel(cfg.Gemini.APIKey, cfg.Gemini.APIURL, genConfig)
		if err != nil {
			glog.Fatalf("初始化Gemini聊天模型失败: %v", err)
		}
		glog.Infof("Gemini聊天模型初始化成功, 模型: %s", cfg.Gemini.Model)
	} else {
		glog.Warn("未配置Gemini API密钥，回退到MockChatClient")
		llmChatModel = agent.NewMockChatClient(`{"JD-Match": 0, "Missing Skills": [], "Profile Summary": "mock response"}`, nil)
	}

	var analyzerOpts []parser.MatchAnalyzerOption
	if cfg.Analyzer.PromptTemplate != "" {
		analyzerOpts = append(analyzerOpts, parser.WithPromptTemplate(cfg.Analyzer.PromptTemplate))
	}
	matchAnalyzer := parser.NewMatchAnalyzer(llmChatModel, analyzerLogger, analyzerOpts...)
	glog.Info("匹配分析器初始化成功")

	processorLogger := log.New(appCoreLogger.Logger, "[ProcessorMain] ", log.LstdFlags|log.Lshortfile)
	analysisProcessor := processor.NewAnalysisProcessor(
		[]processor.ComponentOpt{
			processor.WithcompExtractor(textExtractor),
			processor.WithcompAnalyzer(matchAnalyzer),
			processor.WithcompStorage(storageManager),
		},
		[]processor.SettingOpt{
			processor.WithsetMaxConcurrent(cfg.Analyzer.MaxConcurrent),
			processor.WithsetAnalyzeTimeout(config.GetDuration(cfg.Analyzer.AnalyzeTimeout, constants.DefaultAnalyzeTimeout)),
			processor.WithsetDebug(cfg.Logger.Level == "debug"),
			processor.WithsetLogger(processorLogger),
		},
	)
	glog.Info("分析处理器初始化成功")

	// 限流窗口优先用Redis（多实例共享），不可用时退化到单机内存窗口
	var windowStore ratelimit.WindowStore
	if storageManager.Redis != nil {
		windowStore = storageManager.Redis
		glog.Info("限流使用Redis滑动窗口")
	} else {
		windowStore = ratelimit.NewMemoryStore()
		glog.Warn("Redis不可用，限流退化为单机内存窗口")
	}

	window := cfg.RateLimitWindow()
	limiters := map[string]*ratelimit.Limiter{
		constants.PoolDemo: ratelimit.NewLimiter(windowStore, constants.PoolDemo, cfg.RateLimit.DemoMaxRequests, window),
		constants.PoolFree: ratelimit.NewLimiter(windowStore, constants.PoolFree, cfg.RateLimit.FreeMaxRequests, window),
	}

	analysisHandler := handler.NewAnalysisHandler(cfg, storageManager, analysisProcessor, limiters)
	historyHandler := handler.NewHistoryHandler(cfg, storageManager)
	glog.Info("请求处理器初始化成功")

	var h *server.Hertz
	if shutdownTracing != nil {
		tracer, trcfg := hertztracing.NewServerTracer()
		h = server.New(
			server.WithHostPorts(cfg.Server.Address),
			server.WithHandleMethodNotAllowed(true),
			tracer,
		)
		h.Use(hertztracing.ServerMiddleware(trcfg))
	} else {
		h = server.New(
			server.WithHostPorts(cfg.Server.Address),
			server.WithHandleMethodNotAllowed(true),
		)
	}

	h.Use(func(c context.Context, ctx *app.RequestContext) {
		glog.CtxInfof(c, "Request: %s %s", string(ctx.Method()), string(ctx.Path()))
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d", ctx.Response.StatusCode())
	})

	router.RegisterRoutes(h, cfg, storageManager, analysisHandler, historyHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中 (版本 %s)，监听地址: %s", version, cfg.Server.Address)

	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	if messageRelay != nil {
		messageRelay.Stop()
		glog.Info("消息中继服务已停止")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			glog.Warnf("关闭追踪导出器失败: %v", err)
		}
	}
	glog.Info("优雅退出完成")
}

func initLogger() {
	logFilePath := "logs/app.log"
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Fatalf("无法创建日志目录: %v", err)
	}
	fileWriter, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("无法打开日志文件 %s: %v", logFilePath, err)
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}

	multiWriter := zerolog.MultiLevelWriter(consoleWriter, fileWriter)

	level := zerolog.InfoLevel
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = "15:04:05"

	logger := zerolog.New(multiWriter).With().Timestamp().Caller().Logger()

	// 同时作为应用logger和zerolog全局logger
	appCoreLogger.Logger = logger
	zlog.Logger = logger

	hertzCompatibleLogger := hertzadapter.From(appCoreLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
	glog.SetLevel(glog.LevelInfo)

	log.Println("Logger initialized with Zerolog, writing to console and file:", logFilePath)
}
