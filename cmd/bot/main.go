package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/in/scheduler"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/in/webhook"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/out/legacy"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/out/memory"
	redis_adapter "github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/out/redis"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/out/sqlstore"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/out/telegram"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
	"github.com/JoeShih716/go-earn-bot/internal/config"
	"github.com/JoeShih716/go-earn-bot/pkg/database"
	"github.com/JoeShih716/go-earn-bot/pkg/logger"
	"github.com/JoeShih716/go-earn-bot/pkg/wal"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("bot stopped", zap.Error(err))
	}
	log.Info("bot exited")
}

// storeHandle 帳戶儲存與它的維護操作
type storeHandle struct {
	store    usecase.AccountStore
	count    func(ctx context.Context) (int, error)
	importer func(ctx context.Context, accounts []domain.Account) (int, error)
	// compact: nil 代表沒有 WAL
	compact func(ctx context.Context) error
	close   func()
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化帳戶儲存
	sh, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sh.close()

	// 3. 儲存為空時匯入舊版 users.json
	if err := seed(ctx, cfg.App.SeedFile, sh, log); err != nil {
		return err
	}

	// 4. 重送過濾
	var deduper usecase.Deduper
	var memDeduper *memory.Deduper
	if cfg.Redis.Enabled() {
		client, err := redis_adapter.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()
		deduper = redis_adapter.NewDeduper(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL)
		log.Info("using redis deduper", zap.String("addr", cfg.Redis.Addr))
	} else {
		memDeduper = memory.NewDeduper(cfg.App.DedupTTL)
		deduper = memDeduper
	}

	// 5. 回覆管道
	var notifier usecase.Notifier
	if cfg.Telegram.Token != "" {
		bot, err := telegram.NewBot(cfg.Telegram)
		if err != nil {
			return err
		}
		notifier = telegram.NewNotifier(bot)
	} else {
		log.Warn("telegram token is not set, responses are only logged")
		notifier = telegram.NewLogNotifier(log)
	}

	// 6. 初始化 UseCase
	core := usecase.NewCoreUseCase(sh.store, notifier, log,
		usecase.WithPolicy(cfg.Economy),
		usecase.WithBotUsername(cfg.Telegram.BotUsername),
		usecase.WithDeduper(deduper),
	)

	// 7. Driving adapters
	limiter := webhook.NewLimiter(cfg.Webhook.RatePerSecond, cfg.Webhook.RateBurst)
	httpServer := &http.Server{
		Addr:              cfg.Webhook.Addr,
		Handler:           webhook.NewHandler(core, limiter, cfg.Webhook, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer()
	grpc_adapter.RegisterBotAdminServer(grpcServer, grpc_adapter.NewGrpcServer(core))
	reflection.Register(grpcServer) // 方便用 grpcurl 測試

	jobs := []scheduler.Job{
		{Name: "limiter-cleanup", Interval: 10 * time.Minute, Run: func(ctx context.Context) error {
			if n := limiter.Cleanup(10 * time.Minute); n > 0 {
				log.Debug("limiters removed", zap.Int("count", n))
			}
			return nil
		}},
	}
	if sh.compact != nil {
		jobs = append(jobs, scheduler.Job{Name: "wal-compact", Interval: cfg.App.CompactInterval, Run: sh.compact})
	}
	if memDeduper != nil {
		jobs = append(jobs, scheduler.Job{Name: "dedup-prune", Interval: time.Hour, Run: func(ctx context.Context) error {
			if n := memDeduper.Prune(); n > 0 {
				log.Debug("dedup keys pruned", zap.Int("count", n))
			}
			return nil
		}})
	}
	sched, err := scheduler.New(ctx, log, jobs...)
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Shutdown()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting webhook server", zap.String("addr", cfg.Webhook.Addr), zap.String("path", cfg.Webhook.Path))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		log.Info("starting grpc server", zap.String("addr", cfg.GRPC.Addr))
		return grpcServer.Serve(lis)
	})
	// Graceful Shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		grpcServer.GracefulStop()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openStore 依設定建立帳戶儲存
func openStore(ctx context.Context, cfg config.Config, log *zap.Logger) (*storeHandle, error) {
	switch cfg.App.Store {
	case config.StoreSQL:
		client, err := database.NewClient(cfg.Database, log)
		if err != nil {
			return nil, err
		}
		log.Info("connected to database", zap.String("driver", client.Driver()))
		store := sqlstore.NewStore(client, log)
		if err := store.Migrate(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &storeHandle{
			store: store,
			count: func(ctx context.Context) (int, error) {
				accounts, err := store.Snapshot(ctx)
				return len(accounts), err
			},
			importer: store.Import,
			close:    func() { client.Close() },
		}, nil

	case config.StoreLMAX:
		w, err := wal.NewWAL(cfg.App.WALPath)
		if err != nil {
			return nil, fmt.Errorf("init wal: %w", err)
		}
		store := memory.NewLMAXStore(w, log)
		// run loop 不跟著 signal 停止，關機時由 close 結束
		loopCtx, stopLoop := context.WithCancel(context.Background())
		store.Start(loopCtx)
		return &storeHandle{
			store: store,
			count: func(ctx context.Context) (int, error) {
				accounts, err := store.Snapshot(ctx)
				return len(accounts), err
			},
			importer: store.Import,
			compact:  store.Compact,
			close: func() {
				// 等 run loop 處理完佇列再關閉 WAL
				stopLoop()
				<-store.Done()
				w.Close()
			},
		}, nil

	default:
		w, err := wal.NewWAL(cfg.App.WALPath)
		if err != nil {
			return nil, fmt.Errorf("init wal: %w", err)
		}
		store := memory.NewMutexStore(w, log)
		return &storeHandle{
			store:    store,
			count:    func(ctx context.Context) (int, error) { return store.Len(), nil },
			importer: store.Import,
			compact:  store.Compact,
			close:    func() { w.Close() },
		}, nil
	}
}

// seed 儲存為空時匯入舊版資料，檔案損毀只記錄錯誤
func seed(ctx context.Context, path string, sh *storeHandle, log *zap.Logger) error {
	if path == "" {
		return nil
	}
	n, err := sh.count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("accounts loaded", zap.Int("count", n))
		return nil
	}
	accounts, err := legacy.LoadUsersFile(path)
	if err != nil {
		log.Error("legacy users file is unreadable, starting empty", zap.String("path", path), zap.Error(err))
		return nil
	}
	if len(accounts) == 0 {
		return nil
	}
	imported, err := sh.importer(ctx, accounts)
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	log.Info("legacy accounts imported", zap.String("path", path), zap.Int("count", imported))
	return nil
}
