package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/S0me0neR0man/idmestash/internal/grpcproto"
	"github.com/S0me0neR0man/idmestash/internal/token"
)

type GRPCClient struct {
	conn   *grpc.ClientConn
	client grpcproto.ConsoleClient
}

// NewGRPClient dials addr. A non-empty unlockCode is sent with every call.
func NewGRPClient(addr, unlockCode string, extra ...grpc.DialOption) (*GRPCClient, error) {
	c := GRPCClient{}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if unlockCode != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(token.New(unlockCode)))
	}
	opts = append(opts, extra...)

	var err error
	c.conn, err = grpc.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	c.client = grpcproto.NewConsoleClient(c.conn)

	return &c, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}

// Exec runs one console line remotely and returns its code and info lines
func (c *GRPCClient) Exec(ctx context.Context, line string) (int, []string, error) {
	resp, err := c.client.Exec(ctx, wrapperspb.String(line))
	if err != nil {
		return 0, nil, err
	}

	fields := resp.GetFields()
	code, ok := fields[grpcproto.FieldCode]
	if !ok {
		return 0, nil, fmt.Errorf("exec resp: no %s field", grpcproto.FieldCode)
	}
	var lines []string
	for _, v := range fields[grpcproto.FieldLines].GetListValue().GetValues() {
		lines = append(lines, v.GetStringValue())
	}
	return int(code.GetNumberValue()), lines, nil
}

func (c *GRPCClient) Dump(ctx context.Context) ([]byte, error) {
	resp, err := c.client.Dump(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	return resp.GetValue(), nil
}
