package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coursebot/backend/internal/infrastructure/log/handler"
)

// 全局 logger 实例
var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
	debugMode     bool
	logFile       *os.File
)

// Init 初始化日志系统
func Init(cfg *Config) {
	if cfg == nil {
		cfg = NewConfigFromEnv()
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	out, err := openOutput(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log output %q, falling back to stdout: %v\n", cfg.Output, err)
		out = os.Stdout
	}

	// 根据格式选择处理器
	var logHandler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		logHandler = handler.NewJSONHandler(out, opts)
	case "text":
		logHandler = slog.NewTextHandler(out, opts)
	default:
		logHandler = handler.NewConsoleHandler(out, opts)
	}

	logger := slog.New(logHandler.WithAttrs([]slog.Attr{
		slog.String("service", "coursebot-backend"),
	}))

	mu.Lock()
	defaultLogger = logger
	debugMode = strings.ToLower(cfg.Level) == "debug"
	mu.Unlock()

	slog.SetDefault(logger)
}

// openOutput 打开日志输出目标
func openOutput(cfg *Config) (io.Writer, error) {
	if path := cfg.outputPath(); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		if logFile != nil {
			_ = logFile.Close()
		}
		logFile = f
		mu.Unlock()
		return f, nil
	}
	if strings.ToLower(cfg.Output) == "stderr" {
		return os.Stderr, nil
	}
	return os.Stdout, nil
}

// GetLogger 获取默认 logger
func GetLogger() *slog.Logger {
	mu.RLock()
	logger := defaultLogger
	mu.RUnlock()
	if logger == nil {
		// 未初始化，使用默认配置
		Init(nil)
		mu.RLock()
		logger = defaultLogger
		mu.RUnlock()
	}
	return logger
}

// With 创建带有额外字段的 logger
func With(args ...any) *slog.Logger {
	return GetLogger().With(args...)
}

// NewModuleLogger 为特定模块创建 logger
func NewModuleLogger(module, component string) *slog.Logger {
	return GetLogger().With(
		slog.String("module", module),
		slog.String("component", component),
	)
}

// IsDebugMode 检查是否为调试模式
func IsDebugMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return debugMode
}

// MaskSecret 日志中隐藏密钥，仅保留首尾
func MaskSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "***" + secret[len(secret)-4:]
}

// parseLevel 解析日志级别
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
