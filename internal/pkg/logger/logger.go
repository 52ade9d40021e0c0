package logger

import (
	"context"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Init 配置全局 zerolog，并附上 service 字段。
func Init(serviceName string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zlog.Logger = zlog.With().Str("service", serviceName).Logger()
}

// Ctx 返回 context 作用域的 logger。如果 ctx 里带有合法的 trace，
// 自动附上 trace_id 字段，方便在 Jaeger 和日志之间互查。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := zlog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &zlog.Logger
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		traced := l.With().Str("trace_id", sc.TraceID().String()).Logger()
		return &traced
	}
	return l
}
