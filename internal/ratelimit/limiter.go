// Package ratelimit 实现基于滑动窗口的请求限流。
// 窗口状态存放在 WindowStore 里：生产环境用Redis（跨实例共享），
// 测试和单机场景用内存实现。判定和记录在存储层原子完成，
// 并发请求不会因为读改写竞争而超发配额。
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cv-match-go/internal/constants"
)

// AdmitResult 存储层单次判定的原始结果
type AdmitResult struct {
	Allowed  bool
	Count    int       // 窗口内的请求数，放行时包含本次
	OldestAt time.Time // 窗口内最早一次请求的时间，零值表示窗口为空
}

// WindowStore 滑动窗口的判定与记录，要求原子执行：
// 清理过期条目、计数、判定、记录本次请求必须是一个不可分割的操作
type WindowStore interface {
	Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (AdmitResult, error)
}

// Decision 一次放行判定的配额信息，用于响应头和响应体回显
type Decision struct {
	Remaining  int           // 本窗口剩余配额
	Limit      int           // 窗口配额上限
	ResetAfter time.Duration // 最早一次请求滑出窗口还需要的时间，窗口为空时为0
}

// QuotaExceededError 配额耗尽，RetryAfter 是建议的重试等待时间
type QuotaExceededError struct {
	Pool       string
	Limit      int
	RetryAfter time.Duration
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("已超出 %s 池的请求配额 (上限 %d)，请在 %s 后重试", e.Pool, e.Limit, e.RetryAfter.Round(time.Second))
}

// Limiter 单个限流池的判定器，池与池之间互不影响
type Limiter struct {
	store  WindowStore
	pool   string
	limit  int
	window time.Duration
	now    func() time.Time
}

// LimiterOption 限流器的配置选项
type LimiterOption func(*Limiter)

// WithClock 注入时钟，测试时用假时钟推进窗口
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter 创建一个限流池判定器
func NewLimiter(store WindowStore, pool string, limit int, window time.Duration, opts ...LimiterOption) *Limiter {
	l := &Limiter{
		store:  store,
		pool:   pool,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Pool 返回池名称
func (l *Limiter) Pool() string {
	return l.pool
}

// Admit 判定一次请求。放行时返回配额信息；
// 配额耗尽时返回 *QuotaExceededError；存储层故障时原样返回错误
func (l *Limiter) Admit(ctx context.Context, identity string) (Decision, error) {
	key := fmt.Sprintf(constants.KeyRateLimitWindow, l.pool, identity)
	now := l.now()

	res, err := l.store.Admit(ctx, key, l.limit, l.window, now)
	if err != nil {
		return Decision{}, fmt.Errorf("限流存储判定失败: %w", err)
	}

	var resetAfter time.Duration
	if !res.OldestAt.IsZero() {
		resetAfter = res.OldestAt.Add(l.window).Sub(now)
		if resetAfter < 0 {
			resetAfter = 0
		}
	}

	if !res.Allowed {
		return Decision{Remaining: 0, Limit: l.limit, ResetAfter: resetAfter},
			&QuotaExceededError{Pool: l.pool, Limit: l.limit, RetryAfter: resetAfter}
	}

	remaining := l.limit - res.Count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Remaining: remaining, Limit: l.limit, ResetAfter: resetAfter}, nil
}

// ClientIdentity 从转发IP和User-Agent拼出客户端标识。
// 两者都可伪造，这里只做轻量的滥用防护，不做安全认证
func ClientIdentity(ip string, userAgent string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = "unknown"
	}
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		userAgent = "unknown"
	}
	return ip + ":" + userAgent
}
