package ratelimit

import (
	"context"
	"sync"
	"time"
)

// memoryWindow 单个身份的窗口状态，expiresAt 对应Redis键的TTL
type memoryWindow struct {
	entries   []time.Time
	expiresAt time.Time
}

// MemoryStore 进程内的滑动窗口存储，互斥锁保证判定与记录的原子性。
// 键带过期时间，到期的闲置窗口在后续任意一次判定时惰性清除，
// 与Redis实现的PEXPIRE语义对齐。
// 适用于单实例部署和测试，多实例共享配额请使用Redis存储
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
}

// NewMemoryStore 创建内存窗口存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*memoryWindow),
	}
}

// Admit 原子地清理过期条目、判定并记录本次请求
func (s *MemoryStore) Admit(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (AdmitResult, error) {
	if err := ctx.Err(); err != nil {
		return AdmitResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepExpired(now)

	w := s.windows[key]
	if w == nil {
		w = &memoryWindow{}
	}

	cutoff := now.Add(-window)

	// 原地裁剪窗口外的时间戳，条目按时间递增存放
	kept := w.entries[:0]
	for _, ts := range w.entries {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= limit {
		// 窗口已满则拒绝，不记录也不续期；裁剪到空的键直接释放
		if len(kept) == 0 {
			delete(s.windows, key)
			return AdmitResult{Allowed: false}, nil
		}
		w.entries = kept
		s.windows[key] = w
		return AdmitResult{Allowed: false, Count: len(kept), OldestAt: kept[0]}, nil
	}

	kept = append(kept, now)
	w.entries = kept
	w.expiresAt = now.Add(window)
	s.windows[key] = w
	return AdmitResult{Allowed: true, Count: len(kept), OldestAt: kept[0]}, nil
}

// sweepExpired 清除TTL已过的闲置窗口，调用方必须持有锁
func (s *MemoryStore) sweepExpired(now time.Time) {
	for key, w := range s.windows {
		if !w.expiresAt.After(now) {
			delete(s.windows, key)
		}
	}
}

// Len 返回某个键当前窗口内的条目数，仅用于测试观察
func (s *MemoryStore) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.windows[key]
	if w == nil {
		return 0
	}
	return len(w.entries)
}
