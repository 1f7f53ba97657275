package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Chat      ChatConfig      `yaml:"chat"`
	Usage     UsageConfig     `yaml:"usage"`
	Inbox     InboxConfig     `yaml:"inbox"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort string `yaml:"http_port"` // 固定端口，用于单例锁
	// InstructorToken 教师令牌，为空时禁用所有修改索引的接口
	InstructorToken string `yaml:"instructor_token"`
	// MaxUploadBytes 单个上传文件大小上限
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// Advertise 是否在局域网内通过 mDNS 广播服务
	Advertise bool `yaml:"advertise"`
	// InstanceName mDNS 实例名，为空时使用主机名
	InstanceName string `yaml:"instance_name"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// OpenAIConfig OpenAI 兼容接口配置
type OpenAIConfig struct {
	BaseURL             string        `yaml:"base_url"`
	APIKey              string        `yaml:"api_key"`
	DefaultPersona      string        `yaml:"default_persona"`
	ModerationModel     string        `yaml:"moderation_model"`
	MaxCompletionTokens int           `yaml:"max_completion_tokens"`
	Temperature         float64       `yaml:"temperature"`
	ChatTimeout         time.Duration `yaml:"chat_timeout"`
	ModerationTimeout   time.Duration `yaml:"moderation_timeout"`
}

// EmbeddingConfig 向量化配置
type EmbeddingConfig struct {
	BaseURL           string        `yaml:"base_url"` // 为空时复用 openai.base_url
	APIKey            string        `yaml:"api_key"`  // 为空时复用 openai.api_key
	Model             string        `yaml:"model"`
	BatchSize         int           `yaml:"batch_size"`
	Concurrency       int           `yaml:"concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	MaxRetries        int           `yaml:"max_retries"`
	Timeout           time.Duration `yaml:"timeout"`
}

// ChunkingConfig 分块配置
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
	// UpdateUnit 文本更新时的长度单位：characters 或 tokens
	UpdateUnit string `yaml:"update_unit"`
}

// IndexConfig 向量索引配置
type IndexConfig struct {
	// Backend 存储后端：sqlite 或 qdrant
	Backend    string       `yaml:"backend"`
	Collection string       `yaml:"collection"`
	VectorSize int          `yaml:"vector_size"`
	Qdrant     QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig Qdrant 连接配置
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"` // gRPC 端口
	APIKey string `yaml:"api_key"`
	UseTLS bool   `yaml:"use_tls"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// ChatConfig 对话配置
type ChatConfig struct {
	// DailyLimit 每人每日对话次数上限
	DailyLimit int `yaml:"daily_limit"`
	// Timezone 判定"今天"的参考时区
	Timezone           string            `yaml:"timezone"`
	HistoryTokenBudget int               `yaml:"history_token_budget"`
	BasePrompt         string            `yaml:"base_prompt"`
	PersonaPrompts     map[string]string `yaml:"persona_prompts"`
	ClassPrompt        string            `yaml:"class_prompt"`
	RefusalText        string            `yaml:"refusal_text"`
}

// UsageConfig 用量 Cookie 配置
type UsageConfig struct {
	CookieName   string `yaml:"cookie_name"`
	CookieMaxAge int    `yaml:"cookie_max_age"`
	KeyFile      string `yaml:"key_file"`
}

// InboxConfig 自动入库目录配置
type InboxConfig struct {
	Dir      string        `yaml:"dir"`
	Debounce time.Duration `yaml:"debounce"`
}

// 索引后端
const (
	BackendSQLite = "sqlite"
	BackendQdrant = "qdrant"
)

// 默认人设提示词
const (
	defaultBasePrompt  = "You are a helpful teaching assistant for a university course. Answer questions using the course materials provided to you. If the materials do not cover a question, say so instead of guessing. "
	defaultClassPrompt = "You are a TA for CS 232, introduction to C and Unix. Only use pseudocode to answer coding questions."
)

// NewConfig 创建配置（默认值）
func NewConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:       ":19970",
			MaxUploadBytes: 32 << 20,
		},
		Database: DatabaseConfig{
			Path: DataPath("coursebot.db"),
		},
		OpenAI: OpenAIConfig{
			BaseURL:             "https://api.openai.com/v1",
			DefaultPersona:      "JOHN",
			ModerationModel:     "omni-moderation-latest",
			MaxCompletionTokens: 500,
			Temperature:         0.7,
			ChatTimeout:         60 * time.Second,
			ModerationTimeout:   15 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Model:             "text-embedding-ada-002",
			BatchSize:         16,
			Concurrency:       4,
			RequestsPerSecond: 5,
			Burst:             5,
			MaxRetries:        3,
			Timeout:           30 * time.Second,
		},
		Chunking: ChunkingConfig{
			Size:       1000,
			Overlap:    200,
			UpdateUnit: "characters",
		},
		Index: IndexConfig{
			Backend:    BackendSQLite,
			Collection: "file_collection",
			VectorSize: 1536,
			Qdrant: QdrantConfig{
				Host: "localhost",
				Port: 6334,
			},
		},
		Retrieval: RetrievalConfig{
			TopK: 3,
		},
		Chat: ChatConfig{
			DailyLimit:         20,
			Timezone:           "UTC",
			HistoryTokenBudget: 3000,
			BasePrompt:         defaultBasePrompt,
			PersonaPrompts: map[string]string{
				"VICTOR":    "Your name is Victor. You are concise and direct.",
				"JOHN":      "Your name is John. You are patient and explain step by step.",
				"HEDY":      "Your name is Hedy. You are encouraging and ask guiding questions.",
				"HENRIETTA": "Your name is Henrietta. You give thorough, well-structured explanations.",
			},
			ClassPrompt: defaultClassPrompt,
			RefusalText: "I can't answer that",
		},
		Usage: UsageConfig{
			CookieName:   "chat_usage",
			CookieMaxAge: 86400,
			KeyFile:      DataPath(".usage_key"),
		},
		Inbox: InboxConfig{
			Debounce: 2 * time.Second,
		},
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d with size %d", c.Chunking.Overlap, c.Chunking.Size)
	}
	switch c.Chunking.UpdateUnit {
	case "characters", "tokens":
	default:
		return fmt.Errorf("chunking.update_unit must be characters or tokens, got %q", c.Chunking.UpdateUnit)
	}
	if c.Chat.DailyLimit <= 0 {
		return fmt.Errorf("chat.daily_limit must be positive, got %d", c.Chat.DailyLimit)
	}
	if c.OpenAI.MaxCompletionTokens <= 0 {
		return fmt.Errorf("openai.max_completion_tokens must be positive, got %d", c.OpenAI.MaxCompletionTokens)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.Concurrency <= 0 {
		return fmt.Errorf("embedding.batch_size and embedding.concurrency must be positive")
	}
	if _, err := time.LoadLocation(c.Chat.Timezone); err != nil {
		return fmt.Errorf("chat.timezone %q: %w", c.Chat.Timezone, err)
	}
	switch strings.ToLower(c.Index.Backend) {
	case BackendSQLite, BackendQdrant:
	default:
		return fmt.Errorf("index.backend must be sqlite or qdrant, got %q", c.Index.Backend)
	}
	if c.Index.Collection == "" {
		return fmt.Errorf("index.collection must not be empty")
	}
	return nil
}

// EffectiveEmbedding 返回补全了连接信息的向量化配置
func (c *Config) EffectiveEmbedding() EmbeddingConfig {
	e := c.Embedding
	if e.BaseURL == "" {
		e.BaseURL = c.OpenAI.BaseURL
	}
	if e.APIKey == "" {
		e.APIKey = c.OpenAI.APIKey
	}
	return e
}

// NewDatabaseConfig 创建数据库配置
func NewDatabaseConfig(cfg *Config) *DatabaseConfig {
	return &cfg.Database
}

// NewServerConfig 创建服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// NewOpenAIConfig 创建 OpenAI 配置
func NewOpenAIConfig(cfg *Config) *OpenAIConfig {
	return &cfg.OpenAI
}

// NewEmbeddingConfig 创建向量化配置
func NewEmbeddingConfig(cfg *Config) *EmbeddingConfig {
	e := cfg.EffectiveEmbedding()
	return &e
}

// NewChunkingConfig 创建分块配置
func NewChunkingConfig(cfg *Config) *ChunkingConfig {
	return &cfg.Chunking
}

// NewIndexConfig 创建索引配置
func NewIndexConfig(cfg *Config) *IndexConfig {
	return &cfg.Index
}

// NewRetrievalConfig 创建检索配置
func NewRetrievalConfig(cfg *Config) *RetrievalConfig {
	return &cfg.Retrieval
}

// NewChatConfig 创建对话配置
func NewChatConfig(cfg *Config) *ChatConfig {
	return &cfg.Chat
}

// NewUsageConfig 创建用量配置
func NewUsageConfig(cfg *Config) *UsageConfig {
	return &cfg.Usage
}

// NewInboxConfig 创建入库目录配置
func NewInboxConfig(cfg *Config) *InboxConfig {
	return &cfg.Inbox
}
