package logger

import (
	"context"
	"time"

	ctxutil "github.com/Payphone-Digital/portfolio-service/pkg/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextLogBuilder accumulates fields for a single log entry and pulls
// request metadata out of the context when the level is chosen.
type ContextLogBuilder struct {
	logger    *zap.Logger
	ctx       context.Context
	level     zapcore.Level
	fields    []zap.Field
	message   string
	shouldLog bool
}

func newBuilder(ctx context.Context, level zapcore.Level, message string) *ContextLogBuilder {
	l := GetLogger()
	b := &ContextLogBuilder{
		logger:    l,
		ctx:       ctx,
		level:     level,
		message:   message,
		shouldLog: l.Core().Enabled(level),
	}
	if b.shouldLog {
		b.fields = make([]zap.Field, 0, 10)
		b.extractContextFields()
	}
	return b
}

func (b *ContextLogBuilder) extractContextFields() {
	if b.ctx == nil {
		return
	}

	if requestID := ctxutil.GetRequestID(b.ctx); requestID != "" {
		b.fields = append(b.fields, zap.String("request_id", requestID))
	}
	if clientIP := ctxutil.GetClientIP(b.ctx); clientIP != "" {
		b.fields = append(b.fields, zap.String("client_ip", clientIP))
	}
	if identity := ctxutil.GetIdentity(b.ctx); identity != "" {
		b.fields = append(b.fields, zap.String("caller", identity))
	}
	if module := ctxutil.GetModule(b.ctx); module != "" {
		b.fields = append(b.fields, zap.String("module", module))
	}
	if function := ctxutil.GetFunction(b.ctx); function != "" {
		b.fields = append(b.fields, zap.String("function", function))
	}
}

func (b *ContextLogBuilder) String(key, value string) *ContextLogBuilder {
	if b.shouldLog {
		b.fields = append(b.fields, zap.String(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Strings(key string, value []string) *ContextLogBuilder {
	if b.shouldLog {
		b.fields = append(b.fields, zap.Strings(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Int(key string, value int) *ContextLogBuilder {
	if b.shouldLog {
		b.fields = append(b.fields, zap.Int(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Int64(key string, value int64) *ContextLogBuilder {
	if b.shouldLog {
		b.fields = append(b.fields, zap.Int64(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Bool(key string, value bool) *ContextLogBuilder {
	if b.shouldLog {
		b.fields = append(b.fields, zap.Bool(key, value))
	}
	return b
}

func (b *ContextLogBuilder) Duration(value time.Duration) *ContextLogBuilder {
	if b.shouldLog {
		b.fields = append(b.fields, zap.Duration("duration", value))
	}
	return b
}

func (b *ContextLogBuilder) Err(err error) *ContextLogBuilder {
	if b.shouldLog && err != nil {
		b.fields = append(b.fields, zap.Error(err))
	}
	return b
}

func (b *ContextLogBuilder) Any(key string, value interface{}) *ContextLogBuilder {
	if b.shouldLog {
		b.fields = append(b.fields, zap.Any(key, value))
	}
	return b
}

// Log writes the entry. Entries are still written when ctx is cancelled:
// half-applied relationship writes are reported after the caller has gone.
func (b *ContextLogBuilder) Log() {
	if !b.shouldLog {
		return
	}

	if ce := b.logger.Check(b.level, b.message); ce != nil {
		ce.Write(b.fields...)
	}
}

func InfoWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.InfoLevel, message)
}

func WarnWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.WarnLevel, message)
}

func ErrorWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.ErrorLevel, message)
}

func DebugWithContext(ctx context.Context, message string) *ContextLogBuilder {
	return newBuilder(ctx, zapcore.DebugLevel, message)
}
