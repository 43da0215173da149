package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/survivor-trade/internal/core/domain"
	"github.com/rl1809/survivor-trade/internal/core/service"
)

type GRPCHandler struct {
	trades *service.TradeService
	logger *zap.Logger
}

var _ TradeServiceServer = (*GRPCHandler)(nil)

func NewGRPCHandler(trades *service.TradeService, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{trades: trades, logger: logger}
}

func (h *GRPCHandler) SettleTrade(ctx context.Context, req *SettleTradeRequest) (*TradeResponse, error) {
	trade, err := h.trades.Settle(ctx, req.IdempotencyKey, req.TradeInput)
	if err != nil {
		return nil, h.statusError(err)
	}
	return &TradeResponse{Trade: trade}, nil
}

func (h *GRPCHandler) GetTrade(ctx context.Context, req *TradeRequest) (*TradeResponse, error) {
	trade, err := h.trades.GetTrade(ctx, req.ID)
	if err != nil {
		return nil, h.statusError(err)
	}
	return &TradeResponse{Trade: trade}, nil
}

func (h *GRPCHandler) ListTradesBySurvivor(ctx context.Context, req *ListTradesBySurvivorRequest) (*ListTradesBySurvivorResponse, error) {
	views, err := h.trades.ListTradesBySurvivor(ctx, req.SurvivorID)
	if err != nil {
		return nil, h.statusError(err)
	}
	return &ListTradesBySurvivorResponse{Trades: views}, nil
}

func (h *GRPCHandler) DeleteTrade(ctx context.Context, req *TradeRequest) (*TradeResponse, error) {
	trade, err := h.trades.DeleteTrade(ctx, req.ID)
	if err != nil {
		return nil, h.statusError(err)
	}
	return &TradeResponse{Trade: trade}, nil
}

func (h *GRPCHandler) statusError(err error) error {
	code := errorCode(err)
	if code == codes.Internal {
		h.logger.Error("grpc request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, domain.Message(err, err.Error()))
}

func errorCode(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrInsufficientQuantity):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrDuplicateRequest):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrConflict):
		return codes.Aborted
	default:
		return codes.Internal
	}
}
