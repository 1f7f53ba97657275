package chat

import (
	"time"

	"github.com/coursebot/backend/internal/domain/conversation"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/tokenizer"
)

// perTurnOverhead 每条消息在对话格式中的额外 token
const perTurnOverhead = 4

// Assembler 组装发送给模型的消息序列
type Assembler struct {
	tok    *tokenizer.Tokenizer
	budget int
}

// NewAssembler 创建组装器
func NewAssembler(tok *tokenizer.Tokenizer, cfg *config.ChatConfig) *Assembler {
	return &Assembler{tok: tok, budget: cfg.HistoryTokenBudget}
}

// Compose 系统指令 + 预算内的历史轮次 + 新的用户输入 + 可选的检索资料
// history 为对话的全部已存轮次（首条为系统指令）
func (a *Assembler) Compose(history []conversation.Turn, newUserText string, chunks []string) []conversation.Turn {
	var system *conversation.Turn
	prior := history
	if len(prior) > 0 && prior[0].Role == conversation.RoleSystem {
		system = &prior[0]
		prior = prior[1:]
	}
	prior = a.truncate(prior)

	out := make([]conversation.Turn, 0, len(prior)+3)
	if system != nil {
		out = append(out, *system)
	}
	out = append(out, prior...)
	out = append(out, conversation.Turn{Role: conversation.RoleUser, Content: newUserText})
	if ctxTurn, ok := conversation.ContextTurn(chunks); ok {
		out = append(out, ctxTurn)
	}
	return out
}

// truncate 从最早的轮次开始丢弃直到满足预算，开头落单的助手回复一并丢弃
func (a *Assembler) truncate(prior []conversation.Turn) []conversation.Turn {
	if a.budget > 0 {
		total := 0
		costs := make([]int, len(prior))
		for i, t := range prior {
			costs[i] = a.tok.Count(t.Content) + perTurnOverhead
			total += costs[i]
		}
		start := 0
		for start < len(prior) && total > a.budget {
			total -= costs[start]
			start++
		}
		prior = prior[start:]
	}

	for len(prior) > 0 && prior[0].Role == conversation.RoleAssistant {
		prior = prior[1:]
	}
	return prior
}

// AppendReply 把模型回复追加为助手轮次
func (a *Assembler) AppendReply(c *conversation.Conversation, reply string, now time.Time) error {
	return c.Append(conversation.Turn{Role: conversation.RoleAssistant, Content: reply}, now)
}
