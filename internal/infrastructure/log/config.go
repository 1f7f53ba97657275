package log

import (
	"os"
	"strconv"
	"strings"
)

// Config 日志配置
type Config struct {
	// Level debug, info, warn, error
	Level string
	// Format console, json, text
	Format string
	// Output stdout, stderr 或 file:/path/to/log
	Output string
	// AddSource 记录调用位置
	AddSource bool
}

// ServerDefaults 服务端默认值
func ServerDefaults() Config {
	return Config{Level: "info", Format: "console", Output: "stdout"}
}

// CLIDefaults 命令行默认值，stdout 留给命令输出
func CLIDefaults() Config {
	return Config{Level: "warn", Format: "console", Output: "stderr"}
}

// NewConfigFromEnv 以服务端默认值读取环境变量
func NewConfigFromEnv() *Config {
	return FromEnv(ServerDefaults())
}

// FromEnv 用 LOG_LEVEL / LOG_FORMAT / LOG_OUTPUT / LOG_ADD_SOURCE 覆盖 defaults
// COURSEBOT_ENV（或 ENV）为 development 时强制 debug 级别的控制台日志
func FromEnv(defaults Config) *Config {
	cfg := defaults
	cfg.Level = envOr("LOG_LEVEL", cfg.Level)
	cfg.Format = envOr("LOG_FORMAT", cfg.Format)
	cfg.Output = envOr("LOG_OUTPUT", cfg.Output)
	cfg.AddSource = getEnvBool("LOG_ADD_SOURCE", cfg.AddSource)

	if isDevelopment() {
		cfg.Level = "debug"
		cfg.Format = "console"
		cfg.AddSource = true
	}
	return &cfg
}

func isDevelopment() bool {
	env := envOr("COURSEBOT_ENV", os.Getenv("ENV"))
	return strings.EqualFold(env, "development")
}

// outputPath 文件输出的路径，其它输出返回空串
func (c *Config) outputPath() string {
	if path, ok := strings.CutPrefix(c.Output, "file:"); ok {
		return path
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}
