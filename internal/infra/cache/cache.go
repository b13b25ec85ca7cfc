package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// DefaultTTL 是响应体的保鲜期：30s 对 NOTAM 足够新鲜，也不会频繁打到 IAA 源站。
	DefaultTTL = 30 * time.Second
	// DefaultSize 远大于正常用量，回收应当由过期而不是容量触发。
	DefaultSize = 1000
)

type entry struct {
	body      string
	expiresAt time.Time
}

// Store 是进程内的响应体缓存（key -> 原始 body）。
//
// 约束：
// - 过期时间相对“写入时刻”，读取不会续期
// - 过期条目在下一次 Get 时惰性删除；不启动后台 goroutine
// - 容量有界，超出时淘汰最久未用的条目
// - 并发安全；不落盘，进程退出即失效
type Store struct {
	// mu 让“判过期 + 删除”与 Set 不交错，避免删掉刚写入的新值。
	mu  sync.Mutex
	lru *lru.Cache[string, entry]
	ttl time.Duration
	now func() time.Time
}

// New 构造缓存；ttl/size 非正数时回退到默认值。
func New(ttl time.Duration, size int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if size <= 0 {
		size = DefaultSize
	}
	// size > 0 时 lru.New 不会返回错误。
	c, _ := lru.New[string, entry](size)
	return &Store{lru: c, ttl: ttl, now: time.Now}
}

// Get 返回未过期的缓存值。
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lru.Get(key)
	if !ok {
		return "", false
	}
	if !s.now().Before(e.expiresAt) {
		s.lru.Remove(key)
		return "", false
	}
	return e.body, true
}

// Set 写入（或覆盖）key；过期时间从此刻重新计算。
func (s *Store) Set(key, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(key, entry{body: body, expiresAt: s.now().Add(s.ttl)})
}

// Purge 清空全部条目。
func (s *Store) Purge() { s.lru.Purge() }
