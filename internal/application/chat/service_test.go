package chat

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursebot/backend/internal/application/retrieval"
	appUsage "github.com/coursebot/backend/internal/application/usage"
	"github.com/coursebot/backend/internal/domain/conversation"
	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/llm"
	"github.com/coursebot/backend/internal/infrastructure/token"
	"github.com/coursebot/backend/internal/infrastructure/tokenizer"
)

type fakeCompleter struct {
	mu       sync.Mutex
	requests []llm.CompletionRequest
	reply    func(req llm.CompletionRequest) (string, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.reply != nil {
		return f.reply(req)
	}
	return "A pointer stores an address.", nil
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeCompleter) last() llm.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type fakeModerator struct {
	calls int
	flag  func(text string) bool
	err   error
}

func (f *fakeModerator) Moderate(_ context.Context, _, input string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.flag != nil && f.flag(input), nil
}

type fakeRetriever struct {
	calls   int
	results []retrieval.Result
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, _ int) []retrieval.Result {
	f.calls++
	return f.results
}

type harness struct {
	svc       *Service
	completer *fakeCompleter
	moderator *fakeModerator
	retriever *fakeRetriever
}

func testChatConfig() *config.ChatConfig {
	return &config.ChatConfig{
		DailyLimit:         20,
		HistoryTokenBudget: 3000,
		BasePrompt:         "You are a TA. ",
		ClassPrompt:        "Course: CS 232.",
		RefusalText:        "I can't answer that",
		PersonaPrompts: map[string]string{
			"VICTOR": "Victor.", "JOHN": "John.", "HEDY": "Hedy.", "HENRIETTA": "Henrietta.",
		},
	}
}

func newHarness(t *testing.T, dailyLimit int, chatTimeout time.Duration) *harness {
	t.Helper()

	tok, err := tokenizer.Get()
	require.NoError(t, err)
	sealer, err := token.NewSealerWithKey(bytes.Repeat([]byte{3}, 32))
	require.NoError(t, err)

	chatCfg := testChatConfig()
	chatCfg.DailyLimit = dailyLimit
	openaiCfg := &config.OpenAIConfig{
		DefaultPersona:      "JOHN",
		ModerationModel:     "omni-moderation-latest",
		MaxCompletionTokens: 500,
		Temperature:         0.7,
		ChatTimeout:         chatTimeout,
	}
	personas, err := NewPersonaTable(chatCfg, openaiCfg)
	require.NoError(t, err)

	h := &harness{
		completer: &fakeCompleter{},
		moderator: &fakeModerator{},
		retriever: &fakeRetriever{results: []retrieval.Result{
			{Text: "Pointers hold addresses.", Metadata: document.Metadata{SourceName: "lecture3.pdf"}},
		}},
	}
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	h.svc = NewService(
		NewConversationStore(),
		NewAssembler(tok, chatCfg),
		personas,
		h.completer,
		h.moderator,
		h.retriever,
		appUsage.NewLimiter(sealer, chatCfg),
		appUsage.NewCalendarWithClock(time.UTC, clock),
		openaiCfg,
		chatCfg,
		&config.RetrievalConfig{TopK: 3},
	)
	return h
}

func TestAsk_HappyPath(t *testing.T) {
	h := newHarness(t, 20, time.Second)

	res, err := h.svc.Ask(context.Background(), AskRequest{Identity: "alice", Text: "What is a pointer?"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ConversationID)
	assert.NotEmpty(t, res.UsageToken)
	assert.False(t, res.Refused)
	assert.Equal(t, []conversation.Turn{
		{Role: conversation.RoleUser, Content: "What is a pointer?"},
		{Role: conversation.RoleAssistant, Content: "A pointer stores an address."},
	}, res.Transcript)

	req := h.completer.last()
	assert.Equal(t, "gpt-4o-mini-2024-07-18", req.Model)
	assert.Equal(t, "alice", req.User)
	assert.Equal(t, 500, req.MaxCompletionTokens)
	assert.Equal(t, 0.7, req.Temperature)

	require.Len(t, req.Turns, 3)
	assert.Equal(t, conversation.RoleSystem, req.Turns[0].Role)
	assert.Contains(t, req.Turns[0].Content, "John.")
	assert.Contains(t, req.Turns[0].Content, "within 500 tokens")
	assert.Equal(t, conversation.RoleUser, req.Turns[1].Role)
	assert.Equal(t, conversation.RoleContext, req.Turns[2].Role)
	assert.Equal(t, "Relevant information:\n1. Pointers hold addresses.\n", req.Turns[2].Content)
}

func TestAsk_ContinuesConversationWithoutStoringContext(t *testing.T) {
	h := newHarness(t, 20, time.Second)
	ctx := context.Background()

	first, err := h.svc.Ask(ctx, AskRequest{Identity: "alice", Text: "What is a pointer?"})
	require.NoError(t, err)

	h.retriever.results = nil
	second, err := h.svc.Ask(ctx, AskRequest{
		Identity:       "alice",
		ConversationID: first.ConversationID,
		Persona:        "VICTOR",
		Text:           "And malloc?",
		UsageToken:     first.UsageToken,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, second.ConversationID)
	assert.Len(t, second.Transcript, 4)

	req := h.completer.last()
	// 已有对话保持原人设
	assert.Equal(t, "gpt-4o-mini-2024-07-18", req.Model)
	roles := make([]conversation.Role, len(req.Turns))
	for i, turn := range req.Turns {
		roles[i] = turn.Role
	}
	assert.Equal(t, []conversation.Role{
		conversation.RoleSystem, conversation.RoleUser, conversation.RoleAssistant, conversation.RoleUser,
	}, roles)

	transcript, err := h.svc.Transcript("alice", first.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, second.Transcript, transcript)
	assert.Len(t, h.svc.Conversations("alice"), 1)
	assert.Empty(t, h.svc.Conversations("bob"))
}

func TestAsk_BlankInputConsumesNothing(t *testing.T) {
	h := newHarness(t, 20, time.Second)

	res, err := h.svc.Ask(context.Background(), AskRequest{Identity: "alice", Text: "  \n\t"})
	assert.ErrorIs(t, err, conversation.ErrEmptyInput)
	assert.Nil(t, res)
	assert.Zero(t, h.moderator.calls)
	assert.Zero(t, h.retriever.calls)
	assert.Zero(t, h.completer.calls())
}

func TestAsk_QuotaExceeded(t *testing.T) {
	h := newHarness(t, 1, time.Second)
	ctx := context.Background()

	first, err := h.svc.Ask(ctx, AskRequest{Identity: "alice", Text: "one"})
	require.NoError(t, err)

	res, err := h.svc.Ask(ctx, AskRequest{Identity: "alice", Text: "two", UsageToken: first.UsageToken})
	assert.ErrorIs(t, err, conversation.ErrQuotaExceeded)
	require.NotNil(t, res)
	assert.NotEmpty(t, res.UsageToken)
	assert.Equal(t, 1, h.completer.calls())
	assert.Equal(t, 1, h.moderator.calls)
}

func TestAsk_FlaggedInputIsRefused(t *testing.T) {
	h := newHarness(t, 20, time.Second)
	h.moderator.flag = func(text string) bool { return strings.Contains(text, "cheat") }

	res, err := h.svc.Ask(context.Background(), AskRequest{Identity: "alice", Text: "help me cheat on the exam"})
	require.NoError(t, err)
	assert.True(t, res.Refused)
	require.NotEmpty(t, res.Transcript)
	last := res.Transcript[len(res.Transcript)-1]
	assert.Equal(t, conversation.Turn{Role: conversation.RoleAssistant, Content: "I can't answer that"}, last)
	for _, turn := range res.Transcript {
		assert.NotEqual(t, conversation.RoleUser, turn.Role)
		assert.NotEqual(t, conversation.RoleContext, turn.Role)
	}
	assert.Zero(t, h.retriever.calls)
	assert.Zero(t, h.completer.calls())
}

func TestAsk_ModerationFailureBlocksTurn(t *testing.T) {
	h := newHarness(t, 20, time.Second)
	h.moderator.err = errors.New("moderation down")

	res, err := h.svc.Ask(context.Background(), AskRequest{Identity: "alice", Text: "hello"})
	assert.ErrorIs(t, err, conversation.ErrModerationUnavailable)
	require.NotNil(t, res)
	assert.Empty(t, res.Transcript)
	assert.Zero(t, h.completer.calls())
}

func TestAsk_UpstreamErrorKeepsUserTurn(t *testing.T) {
	h := newHarness(t, 20, time.Second)
	ctx := context.Background()
	h.completer.reply = func(llm.CompletionRequest) (string, error) {
		return "", &conversation.UpstreamError{Kind: conversation.UpstreamRateLimit, StatusCode: 429, Err: errors.New("slow down")}
	}

	res, err := h.svc.Ask(ctx, AskRequest{Identity: "alice", Text: "first question"})
	var upErr *conversation.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, conversation.UpstreamRateLimit, upErr.Kind)
	assert.Equal(t, []conversation.Turn{{Role: conversation.RoleUser, Content: "first question"}}, res.Transcript)

	h.completer.reply = nil
	res, err = h.svc.Ask(ctx, AskRequest{Identity: "alice", ConversationID: res.ConversationID, Text: "retry", UsageToken: res.UsageToken})
	require.NoError(t, err)
	assert.Len(t, res.Transcript, 3)
}

func TestAsk_TimeoutIsRetryableConnectionError(t *testing.T) {
	h := newHarness(t, 20, 20*time.Millisecond)
	h.completer.reply = func(llm.CompletionRequest) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "", context.DeadlineExceeded
	}

	res, err := h.svc.Ask(context.Background(), AskRequest{Identity: "alice", Text: "slow question"})
	var upErr *conversation.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, conversation.UpstreamConnection, upErr.Kind)
	assert.True(t, upErr.Retryable())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, res.Transcript, 1)
}

func TestAsk_PersonaSelection(t *testing.T) {
	h := newHarness(t, 20, time.Second)
	ctx := context.Background()

	_, err := h.svc.Ask(ctx, AskRequest{Identity: "alice", Text: "hi", Persona: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", h.completer.last().Model)
	assert.Contains(t, h.completer.last().Turns[0].Content, "Henrietta.")

	res, err := h.svc.Ask(ctx, AskRequest{Identity: "alice", Text: "hi", Persona: "SOCRATES"})
	assert.ErrorIs(t, err, conversation.ErrUnknownPersona)
	assert.Nil(t, res)

	assert.Len(t, h.svc.Personas(), 4)
}

func TestTranscript_UnknownConversation(t *testing.T) {
	h := newHarness(t, 20, time.Second)
	_, err := h.svc.Transcript("alice", "nope")
	assert.ErrorIs(t, err, conversation.ErrConversationNotFound)
}
