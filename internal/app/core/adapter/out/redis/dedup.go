package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
)

// Config Redis 連線設定
type Config struct {
	Addr        string        `yaml:"addr"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	MaxRetries  int           `yaml:"max_retries"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	// KeyPrefix: 多個 bot 共用同一個 Redis 時區分 key
	KeyPrefix string `yaml:"key_prefix"`
	// TTL: 事件 key 保留多久，沒有設定時沿用 app.dedup_ttl
	TTL time.Duration `yaml:"ttl"`
}

// Enabled 有設定 Addr 才使用 Redis
func (c Config) Enabled() bool {
	return c.Addr != ""
}

// NewClient 建立 Redis client 並確認連線
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// Deduper 用 SET NX 讓多個 bot 實例共用已處理事件的紀錄
type Deduper struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewDeduper 建立 Deduper
func NewDeduper(client *goredis.Client, prefix string, ttl time.Duration) *Deduper {
	if prefix == "" {
		prefix = "earnbot:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Deduper{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// Claim 第一次看到 key 回傳 true
func (d *Deduper) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+key, time.Now().Unix(), d.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release 刪除 key
func (d *Deduper) Release(ctx context.Context, key string) error {
	return d.client.Del(ctx, d.prefix+key).Err()
}

var _ usecase.Deduper = (*Deduper)(nil)
