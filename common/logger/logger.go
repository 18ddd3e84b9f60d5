package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// 未调用 InitLogger 时（例如单元测试）使用 Nop，避免空指针
var (
	log         = zap.NewNop()
	atomicLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// InitLogger 初始化全局日志器，支持通过环境变量控制：
// - LOG_LEVEL=debug|info|warn|error（默认：info）
// - LOG_TO_FILE=true|false（默认：false）或提供 LOG_FILE/LOG_DIR 之一则启用文件输出
// - LOG_FILE=./logs/mpg.log（优先级高于 LOG_DIR）
// - LOG_MAX_SIZE_MB=100、LOG_MAX_BACKUPS=7、LOG_MAX_DAYS=14、LOG_COMPRESS=true
func InitLogger() {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.MessageKey = "msg"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder

	lvl, ok := parseLevel(os.Getenv("LOG_LEVEL"))
	if !ok {
		lvl = zapcore.InfoLevel
	}
	atomicLevel.SetLevel(lvl)

	enc := zapcore.NewJSONEncoder(encoderConfig)
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), atomicLevel),
	}
	if w := fileWriter(); w != nil {
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(w), atomicLevel))
	}

	log = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
}

// fileWriter 按环境变量构造滚动文件输出；未开启或目录不可用时返回 nil
func fileWriter() *lumberjack.Logger {
	logToFile := strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_TO_FILE")), "true")
	logFile := strings.TrimSpace(os.Getenv("LOG_FILE"))
	if logFile == "" {
		if dir := strings.TrimSpace(os.Getenv("LOG_DIR")); dir != "" {
			logFile = filepath.Join(dir, "mpg.log")
		}
	}
	if !logToFile && logFile == "" {
		return nil
	}
	if logFile == "" {
		logFile = filepath.Join(".", "logs", "mpg.log")
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
		// 无法创建目录时仅输出到 stdout，不中断程序
		_, _ = fmt.Fprintf(os.Stderr, "warning: failed to create log directory for %s: %v\n", logFile, err)
		return nil
	}
	return &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    getenvInt("LOG_MAX_SIZE_MB", 100),
		MaxBackups: getenvInt("LOG_MAX_BACKUPS", 7),
		MaxAge:     getenvInt("LOG_MAX_DAYS", 14),
		Compress:   getenvBool("LOG_COMPRESS", true),
	}
}

func parseLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info", "":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	}
	return zapcore.InfoLevel, false
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return def
}

func getenvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func Info(msg string, fields ...zap.Field)   { log.Info(msg, fields...) }
func Error(msg string, fields ...zap.Field)  { log.Error(msg, fields...) }
func Warn(msg string, fields ...zap.Field)   { log.Warn(msg, fields...) }
func Debug(msg string, fields ...zap.Field)  { log.Debug(msg, fields...) }
func Fatalf(msg string, fields ...zap.Field) { log.Fatal(msg, fields...) }
func Sync()                                  { _ = log.Sync() }

// SetLevel 动态调整日志级别（debug/info/warn/error），无效级别忽略
func SetLevel(level string) {
	if lvl, ok := parseLevel(level); ok && strings.TrimSpace(level) != "" {
		atomicLevel.SetLevel(lvl)
	}
}

// Level 返回当前生效的日志级别
func Level() string { return atomicLevel.Level().String() }

// 统一附加 traceId 字段
func fieldsWithTrace(ctx context.Context, fields ...zap.Field) []zap.Field {
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, zap.String("traceId", traceID))
	}
	return fields
}

func InfoCtx(ctx context.Context, msg string, fields ...zap.Field) {
	log.Info(msg, fieldsWithTrace(ctx, fields...)...)
}
func ErrorCtx(ctx context.Context, msg string, fields ...zap.Field) {
	log.Error(msg, fieldsWithTrace(ctx, fields...)...)
}
func WarnCtx(ctx context.Context, msg string, fields ...zap.Field) {
	log.Warn(msg, fieldsWithTrace(ctx, fields...)...)
}
func DebugCtx(ctx context.Context, msg string, fields ...zap.Field) {
	log.Debug(msg, fieldsWithTrace(ctx, fields...)...)
}
