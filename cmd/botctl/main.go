package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/protobuf/types/known/structpb"

	grpc_adapter "github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/in/grpc"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/pkg/grpc"
	"github.com/JoeShih716/go-earn-bot/pkg/logger"
)

const usage = `usage: botctl [flags] <command> [args]

commands:
  account <id>                     帳戶資料
  leaderboard [n]                  排行榜
  event <id> <text|callback> <v>   注入一個事件 (例如: event 42 callback earn)
  bench <total> <concurrency>      壓測: 大量使用者同時 earn
`

func main() {
	addr := flag.String("addr", "localhost:50051", "bot admin gRPC address")
	timeout := flag.Duration("timeout", 10*time.Second, "per call timeout")
	verbose := flag.Bool("v", false, "log every call")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Console: true})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	pool := grpc.NewPool(
		grpc.WithInterceptor(grpc.TimeoutInterceptor(*timeout)),
		grpc.WithInterceptor(grpc.LoggingInterceptor(log)),
	)
	defer pool.Close()
	conn, err := pool.GetConnection(*addr)
	if err != nil {
		log.Fatal("connect", zap.Error(err))
	}
	client := grpc_adapter.NewBotAdminClient(conn)

	ctx := context.Background()
	args := flag.Args()
	switch args[0] {
	case "account":
		err = account(ctx, client, args[1:])
	case "leaderboard":
		err = leaderboard(ctx, client, args[1:])
	case "event":
		err = event(ctx, client, args[1:])
	case "bench":
		err = bench(ctx, client, args[1:])
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func account(ctx context.Context, c *grpc_adapter.BotAdminClient, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("account needs an id")
	}
	req, _ := structpb.NewStruct(map[string]any{"id": args[0]})
	resp, err := c.GetAccount(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(grpc_adapter.AccountFromStruct(resp))
}

func leaderboard(ctx context.Context, c *grpc_adapter.BotAdminClient, args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid limit %q", args[0])
		}
		limit = n
	}
	req, _ := structpb.NewStruct(map[string]any{"limit": limit})
	resp, err := c.Leaderboard(ctx, req)
	if err != nil {
		return err
	}
	for _, s := range grpc_adapter.StandingsFromStruct(resp) {
		fmt.Printf("%d. %s %d\n", s.Rank, s.ID, s.Balance)
	}
	return nil
}

func event(ctx context.Context, c *grpc_adapter.BotAdminClient, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("event needs <id> <text|callback> <value>")
	}
	ev := domain.NormalizedEvent{Identity: args[0]}
	switch args[1] {
	case "text":
		ev.Kind = domain.EventKindMessage
		ev.Text = args[2]
	case "callback":
		ev.Kind = domain.EventKindCallback
		ev.CallbackData = args[2]
	default:
		return fmt.Errorf("unknown event kind %q", args[1])
	}
	req, err := grpc_adapter.EventToStruct(ev)
	if err != nil {
		return err
	}
	resp, err := c.Dispatch(ctx, req)
	if err != nil {
		return err
	}
	return printJSON(resp.AsMap())
}

// bench 每個請求都是一個新使用者的 earn，測試建立帳戶 + 提交的吞吐量
func bench(ctx context.Context, c *grpc_adapter.BotAdminClient, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("bench needs <total> <concurrency>")
	}
	total, err := strconv.Atoi(args[0])
	if err != nil || total <= 0 {
		return fmt.Errorf("invalid total %q", args[0])
	}
	concurrency, err := strconv.Atoi(args[1])
	if err != nil || concurrency <= 0 {
		return fmt.Errorf("invalid concurrency %q", args[1])
	}

	var wg sync.WaitGroup
	var failed atomic.Int64
	sem := make(chan struct{}, concurrency)
	prefix := "bench-" + uuid.NewString()[:8] + "-"
	startTime := time.Now()

	for i := 0; i < total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			req, _ := grpc_adapter.EventToStruct(domain.NormalizedEvent{
				Identity:     prefix + strconv.Itoa(idx),
				Kind:         domain.EventKindCallback,
				CallbackData: string(domain.ActionEarn),
			})
			resp, err := c.Dispatch(ctx, req)
			if err != nil || !resp.GetFields()["ok"].GetBoolValue() {
				failed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	elapsed := time.Since(startTime)
	fmt.Printf("Completed %d requests in %v (%d failed)\n", total, elapsed, failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(total)/elapsed.Seconds())
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
