package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// 环境变量
const (
	EnvConfigFile          = "COURSEBOT_CONFIG"
	EnvHTTPPort            = "COURSEBOT_HTTP_PORT"
	EnvInstructorToken     = "COURSEBOT_INSTRUCTOR_TOKEN"
	EnvTimezone            = "COURSEBOT_TIMEZONE"
	EnvIndexBackend        = "COURSEBOT_INDEX_BACKEND"
	EnvInboxDir            = "COURSEBOT_INBOX_DIR"
	EnvAdvertise           = "COURSEBOT_ADVERTISE"
	EnvOpenAIKey           = "OPENAI_API_KEY"
	EnvOpenAIBaseURL       = "OPENAI_BASE_URL"
	EnvOpenAIModel         = "OPENAI_MODEL"
	EnvModerationModel     = "OPENAI_MODERATIONS_MODEL"
	EnvEmbeddingModel      = "OPENAI_EMBEDDING_MODEL"
	EnvMaxCompletionTokens = "OPENAI_MAX_COMPLETION_TOKENS"
	EnvChatLimit           = "CHAT_LIMIT"
	EnvBasePrompt          = "BASE_PROMPT"
	EnvClassPrompt         = "CLASS_PROMPT"
	EnvQdrantHost          = "QDRANT_HOST"
	EnvQdrantPort          = "QDRANT_PORT"
	EnvQdrantAPIKey        = "QDRANT_API_KEY"
)

// personaPromptEnv 人设提示词对应的环境变量后缀
const personaPromptEnv = "_PROMPT"

// DefaultConfigPath 返回默认配置文件路径
func DefaultConfigPath() string {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p
	}
	return DataPath("config.yaml")
}

// Load 加载配置：默认值 → YAML 文件 → 环境变量
// 文件不存在时使用默认值
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDefault 从默认路径加载配置
func LoadDefault() (*Config, error) {
	return Load(DefaultConfigPath())
}

// Save 写入配置文件
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyEnv 环境变量覆盖
func applyEnv(cfg *Config) error {
	setString(&cfg.Server.HTTPPort, EnvHTTPPort)
	setString(&cfg.Server.InstructorToken, EnvInstructorToken)
	setString(&cfg.Chat.Timezone, EnvTimezone)
	setString(&cfg.Index.Backend, EnvIndexBackend)
	setString(&cfg.Inbox.Dir, EnvInboxDir)
	setString(&cfg.OpenAI.APIKey, EnvOpenAIKey)
	setString(&cfg.OpenAI.BaseURL, EnvOpenAIBaseURL)
	setString(&cfg.OpenAI.DefaultPersona, EnvOpenAIModel)
	setString(&cfg.OpenAI.ModerationModel, EnvModerationModel)
	setString(&cfg.Embedding.Model, EnvEmbeddingModel)
	setString(&cfg.Chat.BasePrompt, EnvBasePrompt)
	setString(&cfg.Chat.ClassPrompt, EnvClassPrompt)
	setString(&cfg.Index.Qdrant.Host, EnvQdrantHost)
	setString(&cfg.Index.Qdrant.APIKey, EnvQdrantAPIKey)

	if err := setBool(&cfg.Server.Advertise, EnvAdvertise); err != nil {
		return err
	}
	if err := setInt(&cfg.OpenAI.MaxCompletionTokens, EnvMaxCompletionTokens); err != nil {
		return err
	}
	if err := setInt(&cfg.Chat.DailyLimit, EnvChatLimit); err != nil {
		return err
	}
	if err := setInt(&cfg.Index.Qdrant.Port, EnvQdrantPort); err != nil {
		return err
	}

	if cfg.Server.HTTPPort != "" && !strings.HasPrefix(cfg.Server.HTTPPort, ":") && !strings.Contains(cfg.Server.HTTPPort, ":") {
		cfg.Server.HTTPPort = ":" + cfg.Server.HTTPPort
	}
	cfg.Index.Backend = strings.ToLower(cfg.Index.Backend)

	// VICTOR_PROMPT、JOHN_PROMPT 等
	if cfg.Chat.PersonaPrompts == nil {
		cfg.Chat.PersonaPrompts = map[string]string{}
	}
	for tag := range cfg.Chat.PersonaPrompts {
		if v := os.Getenv(strings.ToUpper(tag) + personaPromptEnv); v != "" {
			cfg.Chat.PersonaPrompts[tag] = v
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	*dst = b
	return nil
}
