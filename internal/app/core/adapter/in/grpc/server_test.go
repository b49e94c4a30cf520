package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
	pool "github.com/JoeShih716/go-earn-bot/pkg/grpc"
)

type nopNotifier struct{}

func (nopNotifier) Send(ctx context.Context, resp domain.Response) error { return nil }

// newTestClient 透過 bufconn 啟動 BotAdmin 服務
func newTestClient(t *testing.T) (*BotAdminClient, *usecase.CoreUseCase) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	store := memory.NewMutexStore(nil, zap.NewNop())
	core := usecase.NewCoreUseCase(store, nopNotifier{}, zap.NewNop(),
		usecase.WithClock(func() time.Time { return time.Unix(500, 0) }),
	)

	s := grpc.NewServer()
	RegisterBotAdminServer(s, NewGrpcServer(core))
	go s.Serve(lis)
	t.Cleanup(s.Stop)

	p := pool.NewPool(
		pool.WithInterceptor(pool.TimeoutInterceptor(5*time.Second)),
		pool.WithInterceptor(pool.LoggingInterceptor(zap.NewNop())),
		pool.WithDialOptions(grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		})),
	)
	t.Cleanup(func() { p.Close() })
	conn, err := p.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)

	again, err := p.GetConnection("passthrough:///bufnet")
	require.NoError(t, err)
	assert.Same(t, conn, again)

	return NewBotAdminClient(conn), core
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestDispatchAndGetAccount(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	req, err := EventToStruct(domain.NormalizedEvent{Identity: "42", Kind: domain.EventKindCallback, CallbackData: "earn"})
	require.NoError(t, err)
	resp, err := client.Dispatch(ctx, req)
	require.NoError(t, err)

	f := resp.GetFields()
	assert.True(t, f["ok"].GetBoolValue())
	assert.Equal(t, "action", f["command"].GetStringValue())
	assert.Equal(t, "earn", f["action"].GetStringValue())
	reply := f["reply"].GetStructValue().GetFields()
	assert.Equal(t, "42", reply["identity"].GetStringValue())
	assert.Contains(t, reply["text"].GetStringValue(), "You earned 10 points")
	assert.Len(t, reply["menu"].GetListValue().GetValues(), 3)

	acct, err := client.GetAccount(ctx, mustStruct(t, map[string]any{"id": "42"}))
	require.NoError(t, err)
	a := AccountFromStruct(acct)
	assert.Equal(t, "42", a.ID)
	assert.Equal(t, int64(10), a.Balance)
	assert.Equal(t, int64(500), a.LastEarn)
	assert.Equal(t, int64(1), a.Earns)
	assert.Equal(t, uint64(1), a.Seq)
	assert.Len(t, a.RefCode, domain.RefCodeLength)
}

func TestGetAccountErrors(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.GetAccount(ctx, mustStruct(t, map[string]any{"id": "ghost"}))
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.GetAccount(ctx, mustStruct(t, map[string]any{}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestDispatchInvalidEvent(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Dispatch(ctx, mustStruct(t, map[string]any{"identity": "1", "kind": "sticker"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Dispatch(ctx, mustStruct(t, map[string]any{"kind": "message", "text": "/start"}))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLeaderboard(t *testing.T) {
	client, core := newTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		_, err := core.Dispatch(ctx, domain.NormalizedEvent{Identity: id, Kind: domain.EventKindMessage, Text: "/start"})
		require.NoError(t, err)
	}
	_, err := core.Dispatch(ctx, domain.NormalizedEvent{Identity: "3", Kind: domain.EventKindCallback, CallbackData: "earn"})
	require.NoError(t, err)

	resp, err := client.Leaderboard(ctx, mustStruct(t, map[string]any{"limit": 2}))
	require.NoError(t, err)
	assert.Equal(t, []domain.Standing{
		{Rank: 1, ID: "3", Balance: 10},
		{Rank: 2, ID: "1", Balance: 0},
	}, StandingsFromStruct(resp))
}
