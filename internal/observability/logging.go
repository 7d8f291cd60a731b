package observability

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger used across the gateway.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)
	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger
	Sync() error
}

// Field is a structured log field.
type Field = zap.Field

var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Float64  = zap.Float64
	Bool     = zap.Bool
	Error    = zap.Error
	Any      = zap.Any
	Duration = zap.Duration
	Time     = zap.Time
	Strings  = zap.Strings
)

// LogConfig selects level, encoding and destination. Output is "stdout",
// "stderr" or a file path opened in append mode.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// DefaultLogConfig returns JSON at info level on stdout.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "json", Output: "stdout"}
}

type zapLogger struct {
	logger *zap.Logger
}

// NewLogger builds a zap-backed Logger from cfg.
func NewLogger(cfg LogConfig) (Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	sink, err := openSink(cfg.Output)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, level)
	return &zapLogger{logger: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))}, nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.MessageKey = "message"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func openSink(output string) (zapcore.WriteSyncer, error) {
	if output == "" {
		output = "stdout"
	}
	// zap.Open understands stdout and stderr as well as plain paths.
	ws, _, err := zap.Open(output)
	if err != nil {
		return nil, fmt.Errorf("open log output %q: %w", output, err)
	}
	return ws, nil
}

// NewLoggerFromZap wraps an existing zap logger. A nil logger yields a no-op.
func NewLoggerFromZap(logger *zap.Logger) Logger {
	if logger == nil {
		return NopLogger()
	}
	return &zapLogger{logger: logger}
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return &zapLogger{logger: zap.NewNop()}
}

func parseLevel(level string) (zapcore.Level, error) {
	return zapcore.ParseLevel(level)
}

func (l *zapLogger) Debug(msg string, fields ...Field) { l.logger.Debug(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...Field) { l.logger.Info(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...Field) { l.logger.Warn(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...Field) { l.logger.Error(msg, fields...) }
func (l *zapLogger) Fatal(msg string, fields ...Field) { l.logger.Fatal(msg, fields...) }
func (l *zapLogger) Sync() error { return l.logger.Sync() }

func (l *zapLogger) With(fields ...Field) Logger {
	return &zapLogger{logger: l.logger.With(fields...)}
}

// WithContext attaches the request ID and the active span's trace and span
// IDs found in ctx. The receiver is returned as is when there are none.
func (l *zapLogger) WithContext(ctx context.Context) Logger {
	var fields []Field
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			String("trace_id", sc.TraceID().String()),
			String("span_id", sc.SpanID().String()),
		)
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

type requestIDKey struct{}

// ContextWithRequestID stores the request ID picked by the RequestID middleware.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the stored request ID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Logr adapts a Logger to logr for libraries that log through logr,
// such as the OpenTelemetry SDK. Loggers not backed by zap are discarded.
func Logr(l Logger) logr.Logger {
	zl, ok := l.(*zapLogger)
	if !ok {
		return logr.Discard()
	}
	return zapr.NewLogger(zl.logger.WithOptions(zap.AddCallerSkip(-1)))
}

// NewStdLogger adapts a Logger to the standard library logger, for
// http.Server.ErrorLog. Lines are logged at warn level.
func NewStdLogger(l Logger) *log.Logger {
	zl, ok := l.(*zapLogger)
	if !ok {
		return log.New(io.Discard, "", 0)
	}
	std, err := zap.NewStdLogAt(zl.logger, zapcore.WarnLevel)
	if err != nil {
		return zap.NewStdLog(zl.logger)
	}
	return std
}

// InstallGlobals makes l the zap global logger and routes the standard
// library's default logger through it. The returned func restores both.
func InstallGlobals(l Logger) (restore func()) {
	zl, ok := l.(*zapLogger)
	if !ok {
		return func() {}
	}
	base := zl.logger.WithOptions(zap.AddCallerSkip(-1))
	undoGlobals := zap.ReplaceGlobals(base)
	undoStd := zap.RedirectStdLog(base)
	return func() {
		undoStd()
		undoGlobals()
	}
}
