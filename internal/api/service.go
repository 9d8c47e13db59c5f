// Package api exposes the simulation over gRPC. Messages are
// google.protobuf.Struct values carrying the same JSON shapes as the REST API,
// so the service needs no generated code.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"shalyse/internal/backtest"
	"shalyse/internal/dashboard"
	"shalyse/internal/domain"
	"shalyse/internal/store"
)

const (
	serviceName         = "shalyse.Simulation"
	simulateMethod      = "/" + serviceName + "/Simulate"
	getInstrumentMethod = "/" + serviceName + "/GetInstrument"
)

// SimulationService is the server API of the shalyse.Simulation service.
type SimulationService interface {
	Simulate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetInstrument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// SimulateRequest is the decoded Simulate request.
type SimulateRequest struct {
	Ticker   string          `json:"ticker"`
	Scenario domain.Scenario `json:"scenario"`
}

// SimulateReply is the decoded Simulate response.
type SimulateReply struct {
	Ticker       string                     `json:"ticker"`
	Currency     string                     `json:"currency"`
	TotalContrib float64                    `json:"total_contrib"`
	Result       domain.SimulationResult    `json:"result"`
	Summary      domain.DistributionSummary `json:"summary"`
}

// InstrumentReply is the decoded GetInstrument response.
type InstrumentReply struct {
	domain.InstrumentInfo
	MaxHorizon int `json:"maxHorizon"`
}

// Server implements SimulationService on top of a Backtester.
type Server struct {
	bt  *backtest.Backtester
	log *slog.Logger
}

var _ SimulationService = (*Server)(nil)

// NewServer creates a gRPC simulation server.
func NewServer(bt *backtest.Backtester, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{bt: bt, log: log.With("component", "grpc")}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	gs.RegisterService(&serviceDesc, s)
}

// Simulate runs a scenario against a ticker's history.
func (s *Server) Simulate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in SimulateRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decoding request: %v", err)
	}
	if in.Ticker == "" {
		return nil, status.Error(codes.InvalidArgument, "ticker required")
	}

	res, err := s.bt.Run(ctx, in.Ticker, in.Scenario)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(SimulateReply{
		Ticker:       res.Ticker,
		Currency:     res.Instrument.Currency,
		TotalContrib: res.Report.TotalContribution,
		Result:       res.Report.Result,
		Summary:      res.Report.Summary,
	})
}

// GetInstrument returns the metadata of {"ticker": ...}.
func (s *Server) GetInstrument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ticker := req.GetFields()["ticker"].GetStringValue()
	if ticker == "" {
		return nil, status.Error(codes.InvalidArgument, "ticker required")
	}
	info, points, err := s.bt.Instrument(ctx, ticker)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return toStruct(InstrumentReply{InstrumentInfo: *info, MaxHorizon: dashboard.MaxHorizon(info, points)})
}

// CodeFor maps an error to its gRPC status code.
func CodeFor(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrInvalidScenario):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrInsufficientData):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrDataIntegrity):
		return codes.DataLoss
	case errors.Is(err, store.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

func (s *Server) toStatus(err error) error {
	code := CodeFor(err)
	if code == codes.Internal {
		s.log.Error("request failed", "err", err)
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}

// LoggingInterceptor logs every unary call with its outcome.
func LoggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		log.Info("rpc",
			"method", info.FullMethod,
			"code", status.Code(err).String(),
			"elapsed", time.Since(start).Round(time.Microsecond),
		)
		return resp, err
	}
}

// ---------------------------------------------------------------------------
// Struct conversion
// ---------------------------------------------------------------------------

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding reply: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encoding reply: %v", err)
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding reply: %v", err)
	}
	return st, nil
}

func fromStruct(st *structpb.Struct, v any) error {
	data, err := st.MarshalJSON()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ---------------------------------------------------------------------------
// Service descriptor
// ---------------------------------------------------------------------------

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SimulationService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Simulate", Handler: simulateHandler},
		{MethodName: "GetInstrument", Handler: getInstrumentHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shalyse/simulation",
}

func simulateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulationService).Simulate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: simulateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SimulationService).Simulate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getInstrumentHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SimulationService).GetInstrument(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getInstrumentMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SimulationService).GetInstrument(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
