package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-earn-bot/internal/app/core/domain"
	"github.com/JoeShih716/go-earn-bot/internal/app/core/usecase"
)

// Config gRPC 管理服務設定
type Config struct {
	Addr string `yaml:"addr"`
}

// Core 管理服務需要的業務邏輯，*usecase.CoreUseCase 實作了它
type Core interface {
	GetAccount(ctx context.Context, id string) (domain.Account, error)
	Leaderboard(ctx context.Context, n int) ([]domain.Standing, error)
	Dispatch(ctx context.Context, ev domain.NormalizedEvent) (usecase.Result, error)
}

type GrpcServer struct {
	core Core
}

func NewGrpcServer(core Core) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) GetAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := req.GetFields()["id"].GetStringValue()
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}
	account, err := s.core.GetAccount(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(accountToMap(account))
}

func (s *GrpcServer) Leaderboard(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit := int(req.GetFields()["limit"].GetNumberValue())
	standings, err := s.core.Leaderboard(ctx, limit)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(standingsToMap(standings))
}

func (s *GrpcServer) Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ev := eventFromStruct(req)
	if ev.Kind != domain.EventKindMessage && ev.Kind != domain.EventKindCallback {
		return nil, status.Errorf(codes.InvalidArgument, "invalid kind %q", ev.Kind)
	}

	res, err := s.core.Dispatch(ctx, ev)
	if errors.Is(err, domain.ErrInvalidEvent) {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	// 其他錯誤 (提交失敗) 以 ok=false 回傳 (Soft Failure)，回覆內容仍然有用
	return newStruct(resultToMap(res, err))
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrStorageRead):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

var _ BotAdminServer = (*GrpcServer)(nil)
