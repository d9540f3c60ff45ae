// Package rpc exposes the engine over gRPC as healthos.v1.ProtocolEngine.
// Messages are google.protobuf.Struct values, so no generated code is needed.
package rpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/campusfuel/healthos-engine/internal/engine"
	"github.com/campusfuel/healthos-engine/internal/gate"
	"github.com/campusfuel/healthos-engine/internal/rank"
	"github.com/campusfuel/healthos-engine/internal/state"
	"github.com/campusfuel/healthos-engine/internal/update"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "healthos.v1.ProtocolEngine"

// #region service
// ProtocolEngineServer is the server API for the ProtocolEngine service.
type ProtocolEngineServer interface {
	Extract(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitFeedback(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Rank(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LoadWeights(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Recommend(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type call func(ProtocolEngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, fn call) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return fn(srv.(ProtocolEngineServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return fn(srv.(ProtocolEngineServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the ProtocolEngine service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProtocolEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Extract", ProtocolEngineServer.Extract),
		unary("SubmitFeedback", ProtocolEngineServer.SubmitFeedback),
		unary("Rank", ProtocolEngineServer.Rank),
		unary("LoadWeights", ProtocolEngineServer.LoadWeights),
		unary("Recommend", ProtocolEngineServer.Recommend),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "healthos/v1/engine.proto",
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv ProtocolEngineServer) {
	s.RegisterService(&ServiceDesc, srv)
}
// #endregion service

// #region server
// Server implements ProtocolEngineServer over an engine.
type Server struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewServer wraps e. A nil logger discards output.
func NewServer(e *engine.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{engine: e, logger: logger}
}

// NewGRPCServer builds a grpc.Server with logging and the service registered.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(srv.logUnary))
	s := grpc.NewServer(opts...)
	Register(s, srv)
	return s
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	fields := []zap.Field{
		zap.String("method", info.FullMethod[strings.LastIndex(info.FullMethod, "/")+1:]),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("code", status.Code(err).String()),
	}
	if err != nil {
		s.logger.Warn("rpc failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Debug("rpc", fields...)
	}
	return resp, err
}
// #endregion server

// #region handlers
func (s *Server) Extract(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ExtractRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	return reply(ExtractReply{Signals: s.engine.Extract(req.Text).All()})
}

func (s *Server) SubmitFeedback(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req FeedbackRequest
	if err := decodeUser(in, &req, func() string { return req.UserID }); err != nil {
		return nil, err
	}
	var (
		out engine.Outcome
		err error
	)
	if req.LearningRate != 0 {
		out, err = s.engine.SubmitFeedbackWithRate(ctx, req.UserID, req.Text, req.LearningRate)
	} else {
		out, err = s.engine.SubmitFeedback(ctx, req.UserID, req.Text)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(feedbackReply(out))
}

func (s *Server) Rank(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RankRequest
	if err := decodeUser(in, &req, func() string { return req.UserID }); err != nil {
		return nil, err
	}
	ranked, err := s.engine.Rank(ctx, req.UserID, req.Active, rank.UserState{Goals: req.Goals})
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(RankReply{Ranked: ranked})
}

func (s *Server) LoadWeights(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req WeightsRequest
	if err := decodeUser(in, &req, func() string { return req.UserID }); err != nil {
		return nil, err
	}
	w, err := s.engine.Weights(ctx, req.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(WeightsReply{UserID: req.UserID, Weights: w})
}

func (s *Server) Recommend(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RecommendRequest
	if err := decodeUser(in, &req, func() string { return req.UserID }); err != nil {
		return nil, err
	}
	rec, err := s.engine.Recommend(ctx, req.UserID, req.Profile)
	if err != nil {
		return nil, toStatus(err)
	}
	return reply(rec)
}
// #endregion handlers

// #region helpers
func decodeUser(in *structpb.Struct, v any, user func() string) error {
	if err := fromStruct(in, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	if strings.TrimSpace(user()) == "" {
		return status.Error(codes.InvalidArgument, "user_id is required")
	}
	return nil
}

func reply(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps engine errors onto gRPC codes.
func toStatus(err error) error {
	var saveErr *update.SaveError
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, update.ErrLearningRate):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, gate.ErrInvariant):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, state.ErrCorrupt):
		return status.Error(codes.DataLoss, err.Error())
	case errors.As(err, &saveErr), errors.Is(err, state.ErrStorage):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
// #endregion helpers
