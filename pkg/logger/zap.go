package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Debug(ctx context.Context, arg ...any)
	Debugf(ctx context.Context, templete string, arg ...any)
	Info(ctx context.Context, arg ...any)
	Infof(ctx context.Context, templete string, arg ...any)
	Warn(ctx context.Context, arg ...any)
	Warnf(ctx context.Context, templete string, arg ...any)
	Error(ctx context.Context, arg ...any)
	Errorf(ctx context.Context, templete string, arg ...any)
	Fatal(ctx context.Context, arg ...any)
	Fatalf(ctx context.Context, templete string, arg ...any)

	// The w variants take a message followed by key/value pairs.
	Debugw(ctx context.Context, msg string, keysAndValues ...any)
	Infow(ctx context.Context, msg string, keysAndValues ...any)
	Warnw(ctx context.Context, msg string, keysAndValues ...any)
	Errorw(ctx context.Context, msg string, keysAndValues ...any)

	// WithFields returns a context whose log lines carry the given key/value pairs.
	WithFields(ctx context.Context, keysAndValues ...any) context.Context
}

type ZapConfig struct {
	Level    string
	Mode     string
	Encoding string
	// Service, when set, is attached to every line as "service".
	Service string
}

type zapLogger struct {
	sugarLogger *zap.SugaredLogger
	cfg         *ZapConfig
}

func InitializeTestZapLogger() Logger {
	return InitializeZapLogger(ZapConfig{
		Level:    "debug",
		Mode:     "testing",
		Encoding: "console",
	})
}

func InitializeZapLogger(cfg ZapConfig) Logger {
	return newZapLogger(cfg, newCore(cfg, zapcore.AddSync(os.Stderr)))
}

func newZapLogger(cfg ZapConfig, core zapcore.Core) *zapLogger {
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	if cfg.Service != "" {
		logger = logger.With(zap.String("service", cfg.Service))
	}

	return &zapLogger{
		sugarLogger: logger.Sugar(),
		cfg:         &cfg,
	}
}

// For mapping config logger to app logger levels
var logLevelMap = map[string]zapcore.Level{
	"debug":  zapcore.DebugLevel,
	"info":   zapcore.InfoLevel,
	"warn":   zapcore.WarnLevel,
	"error":  zapcore.ErrorLevel,
	"fatal":  zapcore.FatalLevel,
	"panic":  zapcore.PanicLevel,
	"dpanic": zapcore.DPanicLevel,
}

func levelOf(name string) zapcore.Level {
	level, exist := logLevelMap[name]
	if !exist {
		return zapcore.DebugLevel
	}
	return level
}

func newCore(cfg ZapConfig, ws zapcore.WriteSyncer) zapcore.Core {
	var encoderCfg zapcore.EncoderConfig
	if cfg.Mode == "production" {
		encoderCfg = zap.NewProductionEncoderConfig()
	} else {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}

	encoderCfg.LevelKey = "LEVEL"
	encoderCfg.CallerKey = "CALLER"
	encoderCfg.TimeKey = "TIME"
	encoderCfg.NameKey = "NAME"
	encoderCfg.MessageKey = "MESSAGE"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	return zapcore.NewCore(encoder, ws, zap.NewAtomicLevelAt(levelOf(cfg.Level)))
}

// loggerKey holds the context key used for loggers.
type loggerKey struct{}

func (l *zapLogger) ctx(ctx context.Context) *zap.SugaredLogger {
	if ctx == nil {
		panic("nil context passed to Logger")
	}
	if logger, _ := ctx.Value(loggerKey{}).(*zap.SugaredLogger); logger != nil {
		return logger
	}

	return l.sugarLogger
}

func (l *zapLogger) Debug(ctx context.Context, args ...any) {
	l.ctx(ctx).Debug(args...)
}

func (l *zapLogger) Debugf(ctx context.Context, template string, args ...any) {
	l.ctx(ctx).Debugf(template, args...)
}

func (l *zapLogger) Info(ctx context.Context, args ...any) {
	l.ctx(ctx).Info(args...)
}

func (l *zapLogger) Infof(ctx context.Context, template string, args ...any) {
	l.ctx(ctx).Infof(template, args...)
}

func (l *zapLogger) Warn(ctx context.Context, args ...any) {
	l.ctx(ctx).Warn(args...)
}

func (l *zapLogger) Warnf(ctx context.Context, template string, args ...any) {
	l.ctx(ctx).Warnf(template, args...)
}

func (l *zapLogger) Error(ctx context.Context, args ...any) {
	l.ctx(ctx).Error(args...)
}

func (l *zapLogger) Errorf(ctx context.Context, template string, args ...any) {
	l.ctx(ctx).Errorf(template, args...)
}

func (l *zapLogger) Fatal(ctx context.Context, args ...any) {
	l.ctx(ctx).Fatal(args...)
}

func (l *zapLogger) Fatalf(ctx context.Context, template string, args ...any) {
	l.ctx(ctx).Fatalf(template, args...)
}

func (l *zapLogger) Debugw(ctx context.Context, msg string, keysAndValues ...any) {
	l.ctx(ctx).Debugw(msg, keysAndValues...)
}

func (l *zapLogger) Infow(ctx context.Context, msg string, keysAndValues ...any) {
	l.ctx(ctx).Infow(msg, keysAndValues...)
}

func (l *zapLogger) Warnw(ctx context.Context, msg string, keysAndValues ...any) {
	l.ctx(ctx).Warnw(msg, keysAndValues...)
}

func (l *zapLogger) Errorw(ctx context.Context, msg string, keysAndValues ...any) {
	l.ctx(ctx).Errorw(msg, keysAndValues...)
}

func (l *zapLogger) WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	return context.WithValue(ctx, loggerKey{}, l.ctx(ctx).With(keysAndValues...))
}
