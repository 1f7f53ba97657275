// Package chunker 把提取出的文本切分为带重叠的块
package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/tokenizer"
)

// Policy 分块策略
type Policy string

const (
	// PolicyTokenWindow 固定 token 窗口滑动，用于文件入库
	PolicyTokenWindow Policy = "token_window"
	// PolicyRecursive 按段落、行、句、词、字符递归切分，用于纯文本更新
	PolicyRecursive Policy = "recursive"
)

// Unit 长度单位
type Unit string

const (
	UnitCharacters Unit = "characters"
	UnitTokens     Unit = "tokens"
)

// DefaultSeparators 递归切分的分隔符，从大到小
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Options 分块参数
type Options struct {
	Policy  Policy
	Size    int
	Overlap int
	// Unit 仅对递归策略生效，token 窗口总以 token 计
	Unit Unit
}

// Validate 校验参数，要求 0 <= Overlap < Size
func (o Options) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", o.Size)
	}
	if o.Overlap < 0 || o.Overlap >= o.Size {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", o.Size, o.Overlap)
	}
	switch o.Policy {
	case PolicyTokenWindow, PolicyRecursive:
	default:
		return fmt.Errorf("unknown chunk policy %q", o.Policy)
	}
	return nil
}

// Chunker 分块器
type Chunker struct {
	tok *tokenizer.Tokenizer
	cfg *config.ChunkingConfig
}

// New 创建分块器
func New(tok *tokenizer.Tokenizer, cfg *config.ChunkingConfig) *Chunker {
	return &Chunker{tok: tok, cfg: cfg}
}

// IngestOptions 文件入库使用的参数
func (c *Chunker) IngestOptions() Options {
	return Options{Policy: PolicyTokenWindow, Size: c.cfg.Size, Overlap: c.cfg.Overlap, Unit: UnitTokens}
}

// UpdateOptions 纯文本更新使用的参数
func (c *Chunker) UpdateOptions() Options {
	return Options{Policy: PolicyRecursive, Size: c.cfg.Size, Overlap: c.cfg.Overlap, Unit: Unit(c.cfg.UpdateUnit)}
}

// Chunk 清洗并切分文本，结果顺序与原文一致，空文本返回空切片
func (c *Chunker) Chunk(text string, opts Options) ([]string, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	text = Clean(text)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	switch opts.Policy {
	case PolicyTokenWindow:
		return c.tokenWindow(text, opts.Size, opts.Overlap), nil
	default:
		s := &recursiveSplitter{
			size:       opts.Size,
			overlap:    opts.Overlap,
			separators: DefaultSeparators,
			length:     c.lengthFunc(opts.Unit),
		}
		return s.split(text), nil
	}
}

// tokenWindow 以 size 个 token 为窗口、size-overlap 为步长滑动
func (c *Chunker) tokenWindow(text string, size, overlap int) []string {
	tokens := c.tok.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	stride := size - overlap
	var chunks []string
	for start := 0; start < len(tokens); start += stride {
		end := min(start+size, len(tokens))
		piece := strings.ToValidUTF8(c.tok.Decode(tokens[start:end]), "")
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, piece)
		}
		if end == len(tokens) {
			break
		}
	}
	return chunks
}

func (c *Chunker) lengthFunc(unit Unit) func(string) int {
	if unit == UnitTokens {
		return c.tok.Count
	}
	return utf8.RuneCountInString
}

// Clean 去除零宽字符与控制字符，统一换行符
func Clean(text string) string {
	text = strings.ToValidUTF8(text, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case unicode.Is(unicode.Cf, r):
			return -1
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, text)
}
