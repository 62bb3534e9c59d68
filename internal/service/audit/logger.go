package audit

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Recorder is what the portal services depend on.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// AuditLogger records entries and logs failures instead of returning them:
// the action being audited has already happened on the backend.
type AuditLogger struct {
	service *Service
	log     zerolog.Logger
}

func NewAuditLogger(service *Service, log zerolog.Logger) *AuditLogger {
	return &AuditLogger{
		service: service,
		log:     log,
	}
}

func (l *AuditLogger) Record(ctx context.Context, e Entry) {
	if err := l.service.Log(ctx, e); err != nil {
		l.log.Error().Err(err).
			Str("action", e.Action).
			Str("entity_type", e.EntityType).
			Str("entity_id", e.EntityID).
			Msg("failed to write audit entry")
	}
}

// NewStream builds the JSON audit stream. w defaults to stdout.
func NewStream(w io.Writer) *zap.Logger {
	if w == nil {
		w = os.Stdout
	}
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "time"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), zapcore.AddSync(w), zap.InfoLevel)
	return zap.New(core).With(zap.String("stream", "audit"))
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
