// Package tokenizer 封装 cl100k_base 分词，供分块与对话历史裁剪使用
package tokenizer

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// EncodingName 使用的编码
const EncodingName = "cl100k_base"

// 在包初始化时设置离线加载器
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Tokenizer cl100k_base 分词器
type Tokenizer struct {
	encoding *tiktoken.Tiktoken
	mu       sync.Mutex
}

var (
	instance     *Tokenizer
	instanceOnce sync.Once
	instanceErr  error
)

// Get 获取分词器单例，避免重复加载编码文件
func Get() (*Tokenizer, error) {
	instanceOnce.Do(func() {
		enc, err := tiktoken.GetEncoding(EncodingName)
		if err != nil {
			instanceErr = err
			return
		}
		instance = &Tokenizer{encoding: enc}
	})

	if instanceErr != nil {
		return nil, instanceErr
	}
	return instance, nil
}

// Encode 文本转 token
func (t *Tokenizer) Encode(text string) []int {
	if text == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.encoding.Encode(text, nil, nil)
}

// Decode token 转文本，窗口边界可能截断多字节字符，调用方需自行修复
func (t *Tokenizer) Decode(tokens []int) string {
	if len(tokens) == 0 {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.encoding.Decode(tokens)
}

// Count 计算文本的 token 数量
func (t *Tokenizer) Count(text string) int {
	return len(t.Encode(text))
}
