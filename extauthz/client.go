package extauthz

import (
	"context"
	"time"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client issues the ExtAuthz check RPC. It is an interface so the
// orchestrator can be tested against a fake without a real gRPC server.
type Client interface {
	Check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, error)
}

// grpcClient is the production Client: a thin wrapper over Envoy's
// generated Authorization gRPC stub.
type grpcClient struct {
	stub authv3.AuthorizationClient
	conn *grpc.ClientConn
}

// Dial opens a gRPC connection to target (host:port) and returns a Client
// backed by it. Callers should Close the returned io.Closer-compatible
// value when the Store's owning process shuts down.
func Dial(target string) (*grpcClient, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &grpcClient{stub: authv3.NewAuthorizationClient(conn), conn: conn}, nil
}

func (c *grpcClient) Check(ctx context.Context, req *authv3.CheckRequest) (*authv3.CheckResponse, error) {
	return c.stub.Check(ctx, req)
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}

// WithTimeout is a convenience for bounding a single Check call, used by
// the orchestrator when it issues the ExtAuthz RPC as one of its
// suspension points (§5).
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
