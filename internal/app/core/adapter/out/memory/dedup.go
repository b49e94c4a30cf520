package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
)

// Deduper 記錄已處理過的事件 key (單一實例使用)
type Deduper struct {
	mu sync.Mutex
	// 已處理過的事件
	processed map[string]time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewDeduper 建立 Deduper，key 在 ttl 之後可以再被 Claim
func NewDeduper(ttl time.Duration) *Deduper {
	return &Deduper{
		processed: make(map[string]time.Time),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Claim 第一次看到 key (或已過期) 回傳 true
func (d *Deduper) Claim(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if at, ok := d.processed[key]; ok && now.Sub(at) < d.ttl {
		return false, nil
	}
	d.processed[key] = now
	return true, nil
}

// Release 移除 key
func (d *Deduper) Release(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.processed, key)
	return nil
}

// Prune 清掉過期的 key，回傳清掉的數量
func (d *Deduper) Prune() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	n := 0
	for key, at := range d.processed {
		if now.Sub(at) >= d.ttl {
			delete(d.processed, key)
			n++
		}
	}
	return n
}

var _ usecase.Deduper = (*Deduper)(nil)
