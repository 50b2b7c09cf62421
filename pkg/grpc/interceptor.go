package grpc

import (
	"context"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"EnviroHelpBackend/pkg/logger"
)

// LoggingInterceptor логирует unary вызовы на сервере.
// Успешные вызовы пишутся на уровне debug, чтобы частые health пробы не засоряли лог.
func LoggingInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		fields := []logger.Field{
			logger.String("grpc_method", info.FullMethod),
			logger.String("grpc_code", status.Code(err).String()),
			logger.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
		}

		if err != nil {
			log.Warn("gRPC call failed", append(fields, logger.Error(err))...)
			return resp, err
		}

		log.Debug("gRPC call completed", fields...)
		return resp, nil
	}
}

// RecoveryInterceptor переводит панику в обработчике в статус Internal
func RecoveryInterceptor(log logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Panic recovered in gRPC handler",
					logger.Any("panic", rec),
					logger.String("grpc_method", info.FullMethod),
					logger.String("stack_trace", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
		}()

		return handler(ctx, req)
	}
}
