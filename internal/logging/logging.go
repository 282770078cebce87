// Package logging 全局结构化日志。每条日志带 trace_id（进程级）和 op_id（每次 mixer 调用递增）。
package logging

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	// Level debug / info / warn / error，默认 info
	Level string
	// Format console（彩色，开发用）或 json
	Format string
	// Output 日志文件路径，空为 stderr
	Output string
}

type logger struct {
	base  *zap.Logger
	sugar *zap.SugaredLogger
}

var (
	current atomic.Pointer[logger]
	traceID atomic.Pointer[string]
	opID    atomic.Uint64
)

func init() {
	Use(nil)
}

func InitFromEnv() error {
	return Init(Config{
		Level:  os.Getenv("LOG_LEVEL"),
		Format: os.Getenv("LOG_FORMAT"),
		Output: os.Getenv("LOG_OUTPUT"),
	})
}

// Init 根据配置构建全局 logger，未调用前所有日志都会被丢弃
func Init(cfg Config) error {
	levelText := strings.TrimSpace(cfg.Level)
	if levelText == "" {
		levelText = "info"
	}
	level, err := zapcore.ParseLevel(levelText)
	if err != nil {
		return fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var encoder zapcore.Encoder
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "console":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encCfg)
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	output := strings.TrimSpace(cfg.Output)
	if output == "" {
		output = "stderr"
	}
	sink, _, err := zap.Open(output)
	if err != nil {
		return fmt.Errorf("open log output %s: %w", output, err)
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	Use(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)))
	return nil
}

// Use 替换全局 logger，nil 表示丢弃所有日志（测试中用于挂载 observer）
func Use(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	current.Store(&logger{base: l, sugar: l.Sugar()})
}

func Sync() {
	_ = current.Load().base.Sync()
}

func SetTraceID(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	traceID.Store(&id)
}

func NewTraceID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "trace-unknown"
	}
	return hex.EncodeToString(buf)
}

// StartOp 为一次 mixer 调用分配新的 op_id，之后的日志都会带上它
func StartOp() uint64 {
	return opID.Add(1)
}

func Debugf(format string, args ...interface{}) {
	withFields().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	withFields().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	withFields().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	withFields().Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	withFields().Fatalf(format, args...)
}

func withFields() *zap.SugaredLogger {
	tid := "trace-unknown"
	if p := traceID.Load(); p != nil {
		tid = *p
	}
	return current.Load().sugar.With("trace_id", tid, "op_id", opID.Load())
}
