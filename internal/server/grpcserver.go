package server

import (
	"context"
	"net"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/S0me0neR0man/idmestash/internal/config"
	"github.com/S0me0neR0man/idmestash/internal/console"
	"github.com/S0me0neR0man/idmestash/internal/grpcproto"
	"github.com/S0me0neR0man/idmestash/internal/token"
)

var (
	errMissingMetadata = status.Errorf(codes.InvalidArgument, "missing metadata")
	errInvalidToken    = status.Errorf(codes.Unauthenticated, "invalid token")
	errLocked          = status.Errorf(codes.PermissionDenied, "%s", console.ErrLocked)
)

// Snapshotter source of the raw image for Dump
type Snapshotter interface {
	Snapshot() ([]byte, error)
}

type GRPCServer struct {
	grpcproto.UnimplementedConsoleServer

	console *console.Console
	store   Snapshotter
	conf    config.Server
	sugar   *zap.SugaredLogger
	gserv   *grpc.Server

	wg sync.WaitGroup
}

func NewConsoleServer(c *console.Console, store Snapshotter, conf config.Server, logger *zap.Logger) *GRPCServer {
	return &GRPCServer{
		console: c,
		store:   store,
		conf:    conf,
		sugar:   logger.Sugar(),
	}
}

// Start listens on the configured address and serves until ctx is done
func (ss *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", ss.conf.Addr)
	if err != nil {
		return err
	}
	return ss.Serve(ctx, lis)
}

func (ss *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(ss.ensureValidToken),
	}

	ss.gserv = grpc.NewServer(opts...)
	grpcproto.RegisterConsoleServer(ss.gserv, ss)
	ss.sugar.Infow("grpcserver start", "addr", lis.Addr().String(), "locked", ss.conf.Locked)

	ss.wg.Add(1)
	go ss.gracefulStop(ctx)

	return ss.gserv.Serve(lis)
}

func (ss *GRPCServer) gracefulStop(ctx context.Context) {
	defer ss.wg.Done()

	<-ctx.Done()
	ss.gserv.GracefulStop()
	ss.sugar.Infow("grpcserver stopped")
}

func (ss *GRPCServer) Wait() {
	ss.wg.Wait()
}

// ensureValidToken unlocks the console for calls carrying the unlock code.
// Calls without a token run locked, a wrong token is rejected.
func (ss *GRPCServer) ensureValidToken(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, errMissingMetadata
	}

	// The keys within metadata.MD are normalized to lowercase.
	// See: https://godoc.org/google.golang.org/grpc/metadata#New
	auth := md["authorization"]
	switch {
	case len(auth) == 0:
	case token.Valid(auth, ss.conf.UnlockCode):
		ctx = console.WithUnlocked(ctx)
	default:
		ss.sugar.Warnw("ensureValidToken: rejected", "method", info.FullMethod)
		return nil, errInvalidToken
	}
	return handler(ctx, req)
}

func (ss *GRPCServer) Exec(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	lines := &console.Lines{}
	code := ss.console.Exec(ctx, in.GetValue(), lines)

	out := lines.Lines()
	list := make([]interface{}, 0, len(out))
	for _, l := range out {
		list = append(list, l)
	}
	resp, err := structpb.NewStruct(map[string]interface{}{
		grpcproto.FieldCode:  code,
		grpcproto.FieldLines: list,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return resp, nil
}

func (ss *GRPCServer) Dump(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.BytesValue, error) {
	if ss.conf.Locked && !console.IsUnlocked(ctx) {
		return nil, errLocked
	}
	img, err := ss.store.Snapshot()
	if err != nil {
		ss.sugar.Errorw("dump", "error", err)
		return nil, status.Errorf(codes.FailedPrecondition, "%v", err)
	}
	return wrapperspb.Bytes(img), nil
}
