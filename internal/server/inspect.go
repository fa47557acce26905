package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/cookduel/duel-server-go/internal/config"
	"github.com/cookduel/duel-server-go/internal/match"
)

// InspectServiceName is the fully qualified gRPC service name.
const InspectServiceName = "duel.inspect.v1.InspectService"

// InspectServer answers operator queries about running matches: which are
// running, their full unredacted state, and whether their boards are
// consistent.
type InspectServer struct {
	logger  *zap.Logger
	matches Matches
	now     func() time.Time
}

// NewInspectServer creates the service.
func NewInspectServer(logger *zap.Logger, matches Matches) *InspectServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InspectServer{logger: logger, matches: matches, now: time.Now}
}

// ListMatches returns {"matches": [ids...]}.
func (s *InspectServer) ListMatches(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	ids := s.matches.List()
	list := make([]any, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	out, err := structpb.NewStruct(map[string]any{"matches": list})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode match list: %v", err)
	}
	return out, nil
}

func (s *InspectServer) runner(req *wrapperspb.StringValue) (*match.Runner, error) {
	id := strings.TrimSpace(req.GetValue())
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "match id is required")
	}
	r, err := s.matches.Get(id)
	if err != nil {
		return nil, status.Errorf(codes.NotFound, "match %s not found", id)
	}
	return r, nil
}

func runnerStatus(err error) error {
	switch {
	case errors.Is(err, match.ErrClosed):
		return status.Error(codes.FailedPrecondition, "match has ended")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}

// GetSnapshot returns the full state of one match as a JSON object.
func (s *InspectServer) GetSnapshot(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	r, err := s.runner(req)
	if err != nil {
		return nil, err
	}
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, runnerStatus(err)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode snapshot: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "convert snapshot: %v", err)
	}
	return out, nil
}

// CheckConsistency verifies the zone bookkeeping of one match. An
// inconsistent board is reported in the result, not as an RPC error.
func (s *InspectServer) CheckConsistency(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	r, err := s.runner(req)
	if err != nil {
		return nil, err
	}
	result := map[string]any{
		"match_id":   r.ID(),
		"consistent": true,
		"checked_at": s.now().UTC().Format(time.RFC3339Nano),
	}
	if err := r.CheckConsistency(ctx); err != nil {
		if errors.Is(err, match.ErrClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, runnerStatus(err)
		}
		s.logger.Error("board inconsistency", zap.String("match_id", r.ID()), zap.Error(err))
		result["consistent"] = false
		result["error"] = err.Error()
	}
	out, err := structpb.NewStruct(result)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode result: %v", err)
	}
	return out, nil
}

// InspectService is implemented by InspectServer.
type InspectService interface {
	ListMatches(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetSnapshot(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	CheckConsistency(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

func unaryHandler[Req any](method string, call func(InspectService, context.Context, *Req) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(InspectService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + InspectServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(InspectService), ctx, req.(*Req))
			})
		},
	}
}

// InspectServiceDesc describes the service for grpc.Server.RegisterService.
var InspectServiceDesc = grpc.ServiceDesc{
	ServiceName: InspectServiceName,
	HandlerType: (*InspectService)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("ListMatches", InspectService.ListMatches),
		unaryHandler("GetSnapshot", InspectService.GetSnapshot),
		unaryHandler("CheckConsistency", InspectService.CheckConsistency),
	},
	Metadata: "duel/inspect/v1/inspect.proto",
}

// InspectClient calls the inspection service.
type InspectClient struct {
	cc grpc.ClientConnInterface
}

func NewInspectClient(cc grpc.ClientConnInterface) *InspectClient {
	return &InspectClient{cc: cc}
}

func (c *InspectClient) invoke(ctx context.Context, method string, in any) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+InspectServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *InspectClient) ListMatches(ctx context.Context) (*structpb.Struct, error) {
	return c.invoke(ctx, "ListMatches", &emptypb.Empty{})
}

func (c *InspectClient) GetSnapshot(ctx context.Context, matchID string) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetSnapshot", wrapperspb.String(matchID))
}

func (c *InspectClient) CheckConsistency(ctx context.Context, matchID string) (*structpb.Struct, error) {
	return c.invoke(ctx, "CheckConsistency", wrapperspb.String(matchID))
}

// NewGRPCServer builds the gRPC server with the inspection and health
// services registered.
func NewGRPCServer(logger *zap.Logger, cfg config.GRPCConfig, matches Matches) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(cfg.MaxConcurrentStreams),
	)
	srv.RegisterService(&InspectServiceDesc, NewInspectServer(logger, matches))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(InspectServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv, healthServer
}
