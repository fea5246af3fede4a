package interceptors

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestUnaryServerInterceptorPropagatesMetadata(t *testing.T) {
	md := metadata.Pairs("x-request-id", "req-1", "x-idempotency-key", "idem-9")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	var gotReq, gotIdem string
	_, err := UnaryServerInterceptor()(ctx, nil, info, func(ctx context.Context, _ interface{}) (interface{}, error) {
		gotReq = RequestID(ctx)
		gotIdem = IdempotencyKey(ctx)
		return nil, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "req-1", gotReq)
	assert.Equal(t, "idem-9", gotIdem)
}

func TestUnaryServerInterceptorGeneratesRequestID(t *testing.T) {
	var got string
	_, err := UnaryServerInterceptor()(context.Background(), nil, info, func(ctx context.Context, _ interface{}) (interface{}, error) {
		got = RequestID(ctx)
		return nil, nil
	})

	require.NoError(t, err)
	assert.Len(t, got, 36)
}
