package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu   sync.RWMutex
	base = newLogger(os.Stdout, zapcore.InfoLevel)
)

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.MessageKey = "action"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.CallerKey = zapcore.OmitKey
	cfg.StacktraceKey = zapcore.OmitKey
	return cfg
}

func newLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core)
}

// Init replaces the process logger. Output goes to stdout and, when logFile is
// set, is appended to that file as well.
func Init(level, logFile string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, err
		}
	}
	var w io.Writer = os.Stdout
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		w = io.MultiWriter(os.Stdout, f)
	}
	l := newLogger(w, lvl)
	mu.Lock()
	base = l
	mu.Unlock()
	return l, nil
}

// SetOutput redirects all logging to w at debug level and returns a func that
// restores the previous logger. Used by tests to capture entries.
func SetOutput(w io.Writer) (restore func()) {
	mu.Lock()
	prev := base
	base = newLogger(w, zapcore.DebugLevel)
	mu.Unlock()
	return func() {
		mu.Lock()
		base = prev
		mu.Unlock()
	}
}

// Logger returns the current process logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func requestFields(c *fiber.Ctx, kind string, err error, fields map[string]any) []zap.Field {
	out := make([]zap.Field, 0, 8)
	if kind != "" {
		out = append(out, zap.String("kind", kind))
	}
	if c != nil {
		out = append(out,
			zap.String("ip", c.IP()),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
		)
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			out = append(out, zap.String("req_id", rid))
		}
		if sub, ok := c.Locals("admin").(string); ok && sub != "" {
			out = append(out, zap.String("admin", sub))
		}
	}
	if err != nil {
		out = append(out, zap.String("err", err.Error()))
	}
	if len(fields) > 0 {
		out = append(out, zap.Any("fields", fields))
	}
	return out
}

func Info(c *fiber.Ctx, action string, fields map[string]any) {
	Logger().Info(action, requestFields(c, "", nil, fields)...)
}

func Audit(c *fiber.Ctx, action string, fields map[string]any) {
	Logger().Info(action, requestFields(c, "audit", nil, fields)...)
}

func Security(c *fiber.Ctx, action string, fields map[string]any) {
	Logger().Warn(action, requestFields(c, "security", nil, fields)...)
}

func Error(c *fiber.Ctx, action string, err error, fields map[string]any) {
	Logger().Error(action, requestFields(c, "", err, fields)...)
}
