package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var base zerolog.Logger

func init() {
	base = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Init 根据运行环境初始化全局日志器。
// dev 模式使用 ConsoleWriter，其余环境输出 JSON 便于采集。
func Init(serviceName string, dev bool) {
	var w = zerolog.New(os.Stderr)
	if dev {
		w = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	base = w.With().Timestamp().Str("service", serviceName).Logger()
	zerolog.DefaultContextLogger = &base
}

// Logger 返回全局日志器。
func Logger() *zerolog.Logger {
	return &base
}

// Ctx 返回与上下文关联的日志器，并在存在活跃 Span 时附加 trace_id，
// 方便日志与 Jaeger 链路互查。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := base
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With().Str("trace_id", sc.TraceID().String()).Logger()
	}
	return &l
}
