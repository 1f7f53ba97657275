// Package chat 课程问答对话
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coursebot/backend/internal/application/retrieval"
	appUsage "github.com/coursebot/backend/internal/application/usage"
	"github.com/coursebot/backend/internal/domain/conversation"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/llm"
	"github.com/coursebot/backend/internal/infrastructure/log"
)

// Completer 对话补全
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// Moderator 内容审核
type Moderator interface {
	Moderate(ctx context.Context, model, input string) (bool, error)
}

// Retriever 资料检索
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) []retrieval.Result
}

// UsageLimiter 每日用量限制
type UsageLimiter interface {
	CheckAndIncrement(identity, token, today string) (string, bool, error)
}

// AskRequest 一轮提问
type AskRequest struct {
	Identity       string
	ConversationID string
	// Persona 人设标识或模型名，仅在新建对话时生效
	Persona    string
	Text       string
	UsageToken string
}

// AskResult 提问结果
// 用量检查执行过之后，即使返回错误也会携带新的用量令牌
type AskResult struct {
	ConversationID string              `json:"conversation_id"`
	Transcript     []conversation.Turn `json:"transcript"`
	UsageToken     string              `json:"-"`
	Refused        bool                `json:"refused"`
}

// Service 对话服务
type Service struct {
	store     *ConversationStore
	assembler *Assembler
	personas  *conversation.PersonaTable
	completer Completer
	moderator Moderator
	retriever Retriever
	limiter   UsageLimiter
	calendar  *appUsage.Calendar

	openai *config.OpenAIConfig
	chat   *config.ChatConfig
	topK   int

	logger *slog.Logger
}

// NewService 创建对话服务
func NewService(
	store *ConversationStore,
	assembler *Assembler,
	personas *conversation.PersonaTable,
	completer Completer,
	moderator Moderator,
	retriever Retriever,
	limiter UsageLimiter,
	calendar *appUsage.Calendar,
	openaiCfg *config.OpenAIConfig,
	chatCfg *config.ChatConfig,
	retrievalCfg *config.RetrievalConfig,
) *Service {
	return &Service{
		store:     store,
		assembler: assembler,
		personas:  personas,
		completer: completer,
		moderator: moderator,
		retriever: retriever,
		limiter:   limiter,
		calendar:  calendar,
		openai:    openaiCfg,
		chat:      chatCfg,
		topK:      retrievalCfg.TopK,
		logger:    log.NewModuleLogger("chat", "service"),
	}
}

// NewPersonaTable 按配置创建人设表
func NewPersonaTable(chatCfg *config.ChatConfig, openaiCfg *config.OpenAIConfig) (*conversation.PersonaTable, error) {
	return conversation.NewPersonaTable(chatCfg.PersonaPrompts, openaiCfg.DefaultPersona)
}

// Personas 全部人设
func (s *Service) Personas() []conversation.Persona {
	return s.personas.List()
}

// DefaultPersona 未指定人设时使用的人设
func (s *Service) DefaultPersona() conversation.Persona {
	return s.personas.Default()
}

// Ask 处理一轮提问
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResult, error) {
	if strings.TrimSpace(req.Identity) == "" {
		return nil, errors.New("identity is required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, conversation.ErrEmptyInput
	}
	ctx = log.WithIdentity(ctx, req.Identity)

	// 已有对话沿用其人设，新对话在消耗额度前先校验人设
	existing, found := s.store.Find(req.Identity, req.ConversationID)
	var persona conversation.Persona
	if !found {
		p, err := s.personas.Resolve(req.Persona)
		if err != nil {
			return nil, err
		}
		persona = p
	}

	newToken, allowed, err := s.limiter.CheckAndIncrement(req.Identity, req.UsageToken, s.calendar.Today())
	result := &AskResult{UsageToken: newToken}
	if err != nil {
		return result, err
	}
	if !allowed {
		return result, conversation.ErrQuotaExceeded
	}

	conv := existing
	if !found {
		conv, _ = s.store.Ensure(req.Identity, req.ConversationID, func() *conversation.Conversation {
			prompt := conversation.ComposeSystemPrompt(s.chat.BasePrompt, persona, s.chat.ClassPrompt, s.openai.MaxCompletionTokens)
			return conversation.New(req.Identity, persona, prompt, s.calendar.Now())
		})
	}
	result.ConversationID = conv.ID
	ctx = log.WithConversationID(ctx, conv.ID)
	logger := log.FromContext(ctx, s.logger)

	flagged, err := s.moderate(ctx, req.Text)
	if err != nil {
		logger.Error("Moderation gate failed, blocking turn", "error", err)
		result.Transcript = conv.Visible()
		return result, fmt.Errorf("%w: %v", conversation.ErrModerationUnavailable, err)
	}
	if flagged {
		snap, err := s.store.Update(req.Identity, conv.ID, func(c *conversation.Conversation) error {
			return s.assembler.AppendReply(c, s.chat.RefusalText, s.calendar.Now())
		})
		if err != nil {
			return result, err
		}
		logger.Info("User input flagged by moderation")
		result.Transcript = snap.Visible()
		result.Refused = true
		return result, nil
	}

	var prior []conversation.Turn
	snap, err := s.store.Update(req.Identity, conv.ID, func(c *conversation.Conversation) error {
		prior = append([]conversation.Turn(nil), c.Turns...)
		return c.Append(conversation.Turn{Role: conversation.RoleUser, Content: req.Text}, s.calendar.Now())
	})
	if err != nil {
		return result, err
	}
	result.Transcript = snap.Visible()

	chunks := s.retriever.Retrieve(ctx, req.Text, s.topK)
	turns := s.assembler.Compose(prior, req.Text, retrieval.Texts(chunks))

	reply, err := s.complete(ctx, snap.Model, req.Identity, turns)
	if err != nil {
		logger.Error("Chat completion failed", "model", snap.Model, "error", err)
		return result, err
	}

	snap, err = s.store.Update(req.Identity, conv.ID, func(c *conversation.Conversation) error {
		return s.assembler.AppendReply(c, reply, s.calendar.Now())
	})
	if err != nil {
		return result, err
	}
	result.Transcript = snap.Visible()

	logger.Info("Chat turn completed",
		"model", snap.Model,
		"context_chunks", len(chunks),
		"turns", len(turns),
	)
	return result, nil
}

func (s *Service) moderate(ctx context.Context, text string) (bool, error) {
	if s.openai.ModerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.openai.ModerationTimeout)
		defer cancel()
	}
	return s.moderator.Moderate(ctx, s.openai.ModerationModel, text)
}

func (s *Service) complete(ctx context.Context, model, identity string, turns []conversation.Turn) (string, error) {
	if s.openai.ChatTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.openai.ChatTimeout)
		defer cancel()
	}

	reply, err := s.completer.Complete(ctx, llm.CompletionRequest{
		Model:               model,
		Turns:               turns,
		MaxCompletionTokens: s.openai.MaxCompletionTokens,
		Temperature:         s.openai.Temperature,
		User:                identity,
	})
	if err != nil {
		var upErr *conversation.UpstreamError
		if !errors.As(err, &upErr) && errors.Is(err, context.DeadlineExceeded) {
			return "", &conversation.UpstreamError{Kind: conversation.UpstreamConnection, Err: err}
		}
		return "", err
	}
	return reply, nil
}

// Transcript 对话的可见轮次
func (s *Service) Transcript(identity, conversationID string) ([]conversation.Turn, error) {
	c, err := s.store.Get(identity, conversationID)
	if err != nil {
		return nil, err
	}
	return c.Visible(), nil
}

// Conversations 身份的全部对话
func (s *Service) Conversations(identity string) []*conversation.Conversation {
	return s.store.List(identity)
}

// Today 当前参考时区下的日期
func (s *Service) Today() string {
	return s.calendar.Today()
}
