package storage

import (
	"context"
	"fmt"
	"time"

	"cv-match-go/internal/config"
	"cv-match-go/internal/ratelimit"
	"cv-match-go/internal/tracing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("cv-match-go/storage/redis")

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	// 使用扩展的配置选项
	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	// Ping to check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// admitWindowScript 滑动窗口限流的Lua脚本。
// 清理、计数、判定、记录在Redis服务端单次执行，竞争请求之间严格串行：
//
//	KEYS[1]  窗口键 (ZSET，score为请求时间戳毫秒)
//	ARGV[1]  当前时间戳(毫秒)
//	ARGV[2]  窗口长度(毫秒)
//	ARGV[3]  配额上限
//	ARGV[4]  本次请求的唯一成员标识
//
// 返回 {allowed, count, oldest_score_ms}
const admitWindowScript = `
	local cutoff = tonumber(ARGV[1]) - tonumber(ARGV[2])
	redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', cutoff)
	local count = redis.call('ZCARD', KEYS[1])
	if count >= tonumber(ARGV[3]) then
		local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
		return {0, count, oldest[2]}
	end
	redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
	return {1, count + 1, oldest[2]}
`

// Admit 实现 ratelimit.WindowStore，原子地判定并记录一次请求。
// 键的TTL设为窗口长度，闲置身份的窗口数据到期自动清除
func (r *Redis) Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (result ratelimit.AdmitResult, err error) {
	// 创建一个命名span
	ctx, span := redisTracer.Start(ctx, "Redis.AdmitWindow",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("db.redis.database", fmt.Sprintf("%d", r.config.DB)),
		attribute.String("net.peer.name", r.config.Address),
		attribute.String("db.operation", "EVAL"), // Lua脚本执行
		attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
		attribute.Int("rate_limit.limit", limit),
	)

	if r.Client == nil {
		err = fmt.Errorf("redis client is not initialized")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ratelimit.AdmitResult{}, err
	}

	nowMS := now.UnixMilli()
	windowMS := window.Milliseconds()
	// 同一毫秒的并发请求用唯一成员区分，避免ZADD互相覆盖
	member := fmt.Sprintf("%d-%s", nowMS, uuid.NewString())

	res, err := r.Client.Eval(ctx, admitWindowScript, []string{key}, nowMS, windowMS, limit, member).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ratelimit.AdmitResult{}, fmt.Errorf("执行限流判定脚本失败: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) < 2 {
		err = fmt.Errorf("意外的Redis返回类型: %T", res)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ratelimit.AdmitResult{}, err
	}

	allowed, _ := values[0].(int64)
	count, _ := values[1].(int64)

	result = ratelimit.AdmitResult{
		Allowed: allowed == 1,
		Count:   int(count),
	}

	// 第三个元素是窗口内最早请求的score（字符串形式的毫秒时间戳），窗口为空时缺省
	if len(values) >= 3 {
		if scoreStr, ok := values[2].(string); ok && scoreStr != "" {
			var oldestMS float64
			if _, scanErr := fmt.Sscanf(scoreStr, "%f", &oldestMS); scanErr == nil {
				result.OldestAt = time.UnixMilli(int64(oldestMS))
			}
		}
	}

	span.SetAttributes(
		attribute.Bool("rate_limit.allowed", result.Allowed),
		attribute.Int("rate_limit.count", result.Count),
	)
	span.SetStatus(codes.Ok, "")

	return result, nil
}

var _ ratelimit.WindowStore = (*Redis)(nil)
