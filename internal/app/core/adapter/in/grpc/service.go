package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// BotAdminServiceName gRPC 服務名稱
//
// 請求與回應都是 google.protobuf.Struct，欄位見 convert.go
const BotAdminServiceName = "earnbot.v1.BotAdmin"

const (
	methodGetAccount  = "/" + BotAdminServiceName + "/GetAccount"
	methodLeaderboard = "/" + BotAdminServiceName + "/Leaderboard"
	methodDispatch    = "/" + BotAdminServiceName + "/Dispatch"
)

// BotAdminServer 管理服務
type BotAdminServer interface {
	// GetAccount {"id"} -> 帳戶
	GetAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Leaderboard {"limit"} -> {"standings": [...]}
	Leaderboard(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Dispatch NormalizedEvent -> {"ok", "command", "reply", "notices", ...}
	Dispatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// BotAdminServiceDesc 服務描述
var BotAdminServiceDesc = grpc.ServiceDesc{
	ServiceName: BotAdminServiceName,
	HandlerType: (*BotAdminServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetAccount", Handler: getAccountHandler},
		{MethodName: "Leaderboard", Handler: leaderboardHandler},
		{MethodName: "Dispatch", Handler: dispatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "earnbot/v1/admin",
}

// RegisterBotAdminServer 註冊服務
func RegisterBotAdminServer(s grpc.ServiceRegistrar, srv BotAdminServer) {
	s.RegisterService(&BotAdminServiceDesc, srv)
}

func unaryHandler(method string, call func(BotAdminServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BotAdminServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BotAdminServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	getAccountHandler  = unaryHandler(methodGetAccount, BotAdminServer.GetAccount)
	leaderboardHandler = unaryHandler(methodLeaderboard, BotAdminServer.Leaderboard)
	dispatchHandler    = unaryHandler(methodDispatch, BotAdminServer.Dispatch)
)

// BotAdminClient 管理服務的 client
type BotAdminClient struct {
	cc grpc.ClientConnInterface
}

// NewBotAdminClient 建立 client
func NewBotAdminClient(cc grpc.ClientConnInterface) *BotAdminClient {
	return &BotAdminClient{cc: cc}
}

// GetAccount 取得帳戶
func (c *BotAdminClient) GetAccount(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetAccount, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Leaderboard 取得排行榜
func (c *BotAdminClient) Leaderboard(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodLeaderboard, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Dispatch 注入一個事件 (測試或補單用)
func (c *BotAdminClient) Dispatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodDispatch, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
