package grpc

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/olyamironova/deferswap/internal/api/dto"
	"github.com/olyamironova/deferswap/internal/core"
	"github.com/olyamironova/deferswap/internal/domain"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "deferswap.v1.Ledger"
	AccountKey  = "x-account"
)

// LedgerServer carries JSON-shaped messages as google.protobuf.Struct so
// clients need no generated stubs. Field names match the HTTP API.
type LedgerServer interface {
	CreateOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Deal(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Merge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTradesForOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSettings(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("CreateOrder", LedgerServer.CreateOrder),
		unary("CancelOrder", LedgerServer.CancelOrder),
		unary("Deal", LedgerServer.Deal),
		unary("Merge", LedgerServer.Merge),
		unary("GetOrder", LedgerServer.GetOrder),
		unary("GetTradesForOrder", LedgerServer.GetTradesForOrder),
		unary("GetSettings", LedgerServer.GetSettings),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "deferswap/v1/ledger",
}

func unary(name string, call func(LedgerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

type GRPCServer struct {
	Eng *core.Engine
	log *zap.SugaredLogger
}

var _ LedgerServer = (*GRPCServer)(nil)

func NewGRPCServer(eng *core.Engine, log *zap.SugaredLogger) *GRPCServer {
	return &GRPCServer{Eng: eng, log: log}
}

func (s *GRPCServer) Register(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// Run serves on addr until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	g := grpc.NewServer(grpc.UnaryInterceptor(s.logCalls))
	s.Register(g)
	go func() {
		<-ctx.Done()
		g.GracefulStop()
	}()
	return g.Serve(lis)
}

func (s *GRPCServer) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.log.Infow("grpc_request", "method", info.FullMethod, "code", status.Code(err), "latency", time.Since(start))
	return resp, err
}

func (s *GRPCServer) CreateOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var req dto.CreateOrderRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.Side != dto.Buy && req.Side != dto.Sell {
		return nil, status.Errorf(codes.InvalidArgument, "invalid side: %s", req.Side)
	}
	res, err := s.Eng.Create(ctx, core.CreateOrder{
		Owner:       caller,
		BaseSymbol:  req.BaseSymbol,
		QuoteSymbol: req.QuoteSymbol,
		BaseAmount:  req.BaseAmount,
		QuoteAmount: req.QuoteAmount,
		IsSell:      req.IsSell(),
		Candidates:  req.Candidates,
		Payment:     domain.Payment{Value: req.Value},
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encode(dto.ConvertResult(res))
}

func (s *GRPCServer) CancelOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var req dto.CancelOrderRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.Eng.Cancel(ctx, caller, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encode(dto.ConvertResult(res))
}

func (s *GRPCServer) Deal(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var req dto.DealRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.Eng.Deal(ctx, core.Deal{
		Caller:  caller,
		OrderID: req.OrderID,
		Amount:  req.Amount,
		Payment: domain.Payment{Value: req.Value},
	})
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encode(dto.ConvertResult(res))
}

func (s *GRPCServer) Merge(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	caller, err := callerFrom(ctx)
	if err != nil {
		return nil, err
	}
	var req dto.MergeRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	res, err := s.Eng.Merge(ctx, caller, req.OrderID, req.Candidates)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encode(dto.ConvertResult(res))
}

func (s *GRPCServer) GetOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dto.GetOrderRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	o, err := s.Eng.GetOrder(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encode(dto.GetOrderResponse{Order: dto.ConvertOrder(o)})
}

func (s *GRPCServer) GetTradesForOrder(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req dto.GetOrderRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	trades, err := s.Eng.GetTradesForOrder(ctx, req.OrderID)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return encode(dto.GetTradesResponse{Trades: dto.ConvertTrades(trades)})
}

func (s *GRPCServer) GetSettings(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return encode(dto.ConvertSettings(s.Eng.Settings()))
}

func callerFrom(ctx context.Context) (common.Address, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	vals := md.Get(AccountKey)
	if len(vals) == 0 || !common.IsHexAddress(vals[0]) {
		return common.Address{}, status.Errorf(codes.Unauthenticated, "%s metadata must be a hex address", AccountKey)
	}
	return common.HexToAddress(vals[0]), nil
}

func decode(in *structpb.Struct, v any) error {
	raw, err := in.MarshalJSON()
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func (s *GRPCServer) toStatus(err error) error {
	kind, ok := domain.KindOf(err)
	if !ok {
		s.log.Errorw("grpc_call_failed", "err", err)
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(CodeOf(kind), err.Error())
}

// CodeOf maps a ledger error kind to a gRPC status code.
func CodeOf(kind domain.ErrorKind) codes.Code {
	switch kind {
	case domain.InvalidParameters, domain.UnregisteredAsset:
		return codes.InvalidArgument
	case domain.Unauthorized:
		return codes.PermissionDenied
	case domain.OrderNotFound:
		return codes.NotFound
	case domain.InsufficientFunds, domain.InsufficientAllowance:
		return codes.ResourceExhausted
	case domain.OrderNotActive, domain.PairMismatch, domain.SideMismatch, domain.PriceCrossViolation:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
