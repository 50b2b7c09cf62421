package grpc

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"EnviroHelpBackend/pkg/logger"
)

var testInfo = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func newTestLogger(t *testing.T) (logger.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log, err := logger.New(logger.Options{Environment: "prod", Level: "debug", ServiceName: "test-service", Output: &buf})
	require.NoError(t, err)
	return log, &buf
}

// TestLoggingInterceptor проверяет логирование успешных и неуспешных вызовов
func TestLoggingInterceptor(t *testing.T) {
	tests := []struct {
		name        string
		handlerErr  error
		expectedMsg string
		expectedLvl string
	}{
		{name: "success", expectedMsg: "gRPC call completed", expectedLvl: `"level":"debug"`},
		{name: "failure", handlerErr: status.Error(codes.NotFound, "unknown service"), expectedMsg: "gRPC call failed", expectedLvl: `"level":"warn"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newTestLogger(t)

			resp, err := LoggingInterceptor(log)(context.Background(), "req", testInfo, func(ctx context.Context, req interface{}) (interface{}, error) {
				return "resp", tt.handlerErr
			})

			assert.Equal(t, "resp", resp)
			assert.Equal(t, tt.handlerErr, err)
			assert.Contains(t, buf.String(), tt.expectedMsg)
			assert.Contains(t, buf.String(), tt.expectedLvl)
			assert.Contains(t, buf.String(), testInfo.FullMethod)
		})
	}
}

// TestRecoveryInterceptor проверяет перевод паники в статус Internal
func TestRecoveryInterceptor(t *testing.T) {
	log, buf := newTestLogger(t)

	resp, err := RecoveryInterceptor(log)(context.Background(), "req", testInfo, func(ctx context.Context, req interface{}) (interface{}, error) {
		panic(errors.New("boom"))
	})

	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, buf.String(), "Panic recovered in gRPC handler")

	resp, err = RecoveryInterceptor(log)(context.Background(), "req", testInfo, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
