package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	grpc_adapter "github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/in/webhook"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/out/redis"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/out/telegram"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/pkg/database"
	"github.com/JoeShih716/go-earn-bot/pkg/logger"
)

// StoreType 使用哪種帳戶儲存
type StoreType string

const (
	// StoreMutex 記憶體 + WAL，一把 RWMutex
	StoreMutex StoreType = "mutex"
	// StoreLMAX 記憶體 + WAL，單一寫入 goroutine
	StoreLMAX StoreType = "lmax"
	// StoreSQL 關聯式資料庫 (mysql / postgres / sqlite)
	StoreSQL StoreType = "sql"
)

// App 應用程式設定
type App struct {
	Store StoreType `yaml:"store"`
	// WALPath: 記憶體儲存的 WAL 檔案
	WALPath string `yaml:"wal_path"`
	// SeedFile: 舊版 users.json，儲存為空時匯入
	SeedFile string `yaml:"seed_file"`
	// CompactInterval: WAL 壓縮週期，0 代表不壓縮
	CompactInterval time.Duration `yaml:"compact_interval"`
	// DedupTTL: 已處理事件保留多久
	DedupTTL time.Duration `yaml:"dedup_ttl"`
	// ShutdownTimeout: 關機時等待處理中請求的時間
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Config struct {
	App      App                 `yaml:"app"`
	Economy  domain.Policy       `yaml:"economy"`
	Telegram telegram.Config     `yaml:"telegram"`
	Webhook  webhook.Config      `yaml:"webhook"`
	GRPC     grpc_adapter.Config `yaml:"grpc"`
	Database database.Config     `yaml:"database"`
	Redis    redis.Config        `yaml:"redis"`
	Log      logger.Config       `yaml:"log"`
}

// Load 讀取設定檔
//
// 先載入 .env (不存在就略過)，設定檔中的 ${VAR} 會以環境變數展開，
// 沒有寫的欄位補上預設值
//
// 參數:
//
//	path: 設定檔路徑
//	envFiles: .env 檔案，沒有傳入時使用 ".env"
func Load(path string, envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML (先展開環境變數) 並補上預設值
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	if c.App.Store == "" {
		c.App.Store = StoreMutex
	}
	if c.App.WALPath == "" {
		c.App.WALPath = "data/wal.log"
	}
	if c.App.DedupTTL == 0 {
		c.App.DedupTTL = 24 * time.Hour
	}
	if c.App.ShutdownTimeout == 0 {
		c.App.ShutdownTimeout = 10 * time.Second
	}
	c.Economy = c.Economy.WithDefaults()
	if c.Redis.TTL == 0 {
		c.Redis.TTL = c.App.DedupTTL
	}

	if c.Telegram.BotUsername == "" {
		c.Telegram.BotUsername = "YourBotUsername"
	}
	if c.Webhook.Addr == "" {
		c.Webhook.Addr = ":8080"
	}
	if c.Webhook.Path == "" {
		c.Webhook.Path = "/webhook"
	}
	if c.GRPC.Addr == "" {
		c.GRPC.Addr = ":50051"
	}
	if c.App.Store == StoreSQL {
		c.Database = c.Database.WithDefaults()
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
		c.Log.Console = true
	}
	return c
}

func (c Config) validate() error {
	switch c.App.Store {
	case StoreMutex, StoreLMAX, StoreSQL:
	default:
		return fmt.Errorf("unknown store %q", c.App.Store)
	}
	if c.App.Store == StoreSQL {
		switch c.Database.Driver {
		case database.DriverMySQL, database.DriverPostgres, database.DriverSQLite:
		default:
			return fmt.Errorf("unknown database driver %q", c.Database.Driver)
		}
	}
	return nil
}
