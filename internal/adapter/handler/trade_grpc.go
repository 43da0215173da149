package handler

import (
	"context"

	"google.golang.org/grpc"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/core/service"
)

const tradeServiceName = "trade.v1.TradeService"

const (
	TradeService_SettleTrade_FullMethodName          = "/" + tradeServiceName + "/SettleTrade"
	TradeService_GetTrade_FullMethodName             = "/" + tradeServiceName + "/GetTrade"
	TradeService_ListTradesBySurvivor_FullMethodName = "/" + tradeServiceName + "/ListTradesBySurvivor"
	TradeService_DeleteTrade_FullMethodName          = "/" + tradeServiceName + "/DeleteTrade"
)

type SettleTradeRequest struct {
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	service.TradeInput
}

type TradeRequest struct {
	ID string `json:"id"`
}

type TradeResponse struct {
	Trade *domain.Trade `json:"trade"`
}

type ListTradesBySurvivorRequest struct {
	SurvivorID string `json:"survivorId"`
}

type ListTradesBySurvivorResponse struct {
	Trades []domain.TradeView `json:"trades"`
}

type TradeServiceServer interface {
	SettleTrade(context.Context, *SettleTradeRequest) (*TradeResponse, error)
	GetTrade(context.Context, *TradeRequest) (*TradeResponse, error)
	ListTradesBySurvivor(context.Context, *ListTradesBySurvivorRequest) (*ListTradesBySurvivorResponse, error)
	DeleteTrade(context.Context, *TradeRequest) (*TradeResponse, error)
}

func RegisterTradeServiceServer(s grpc.ServiceRegistrar, srv TradeServiceServer) {
	s.RegisterService(&TradeService_ServiceDesc, srv)
}

var TradeService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: tradeServiceName,
	HandlerType: (*TradeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SettleTrade", Handler: _TradeService_SettleTrade_Handler},
		{MethodName: "GetTrade", Handler: _TradeService_GetTrade_Handler},
		{MethodName: "ListTradesBySurvivor", Handler: _TradeService_ListTradesBySurvivor_Handler},
		{MethodName: "DeleteTrade", Handler: _TradeService_DeleteTrade_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trade/v1/trade.proto",
}

func _TradeService_SettleTrade_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SettleTradeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TradeServiceServer).SettleTrade(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TradeService_SettleTrade_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TradeServiceServer).SettleTrade(ctx, req.(*SettleTradeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TradeService_GetTrade_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TradeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TradeServiceServer).GetTrade(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TradeService_GetTrade_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TradeServiceServer).GetTrade(ctx, req.(*TradeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TradeService_ListTradesBySurvivor_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListTradesBySurvivorRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TradeServiceServer).ListTradesBySurvivor(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TradeService_ListTradesBySurvivor_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TradeServiceServer).ListTradesBySurvivor(ctx, req.(*ListTradesBySurvivorRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _TradeService_DeleteTrade_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(TradeRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TradeServiceServer).DeleteTrade(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: TradeService_DeleteTrade_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TradeServiceServer).DeleteTrade(ctx, req.(*TradeRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// TradeServiceClient calls the trade service over a connection, always using
// the JSON codec.
type TradeServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTradeServiceClient(cc grpc.ClientConnInterface) *TradeServiceClient {
	return &TradeServiceClient{cc: cc}
}

func (c *TradeServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *TradeServiceClient) SettleTrade(ctx context.Context, in *SettleTradeRequest, opts ...grpc.CallOption) (*TradeResponse, error) {
	out := new(TradeResponse)
	if err := c.invoke(ctx, TradeService_SettleTrade_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TradeServiceClient) GetTrade(ctx context.Context, in *TradeRequest, opts ...grpc.CallOption) (*TradeResponse, error) {
	out := new(TradeResponse)
	if err := c.invoke(ctx, TradeService_GetTrade_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TradeServiceClient) ListTradesBySurvivor(ctx context.Context, in *ListTradesBySurvivorRequest, opts ...grpc.CallOption) (*ListTradesBySurvivorResponse, error) {
	out := new(ListTradesBySurvivorResponse)
	if err := c.invoke(ctx, TradeService_ListTradesBySurvivor_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TradeServiceClient) DeleteTrade(ctx context.Context, in *TradeRequest, opts ...grpc.CallOption) (*TradeResponse, error) {
	out := new(TradeResponse)
	if err := c.invoke(ctx, TradeService_DeleteTrade_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
