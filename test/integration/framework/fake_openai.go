//go:build integration
// +build integration

// FakeOpenAI 进程内的 OpenAI 兼容接口，记录收到的对话请求
package framework

import (
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// FlagWord 包含该词的输入会被审核接口标记
const FlagWord = "forbidden"

const fakeDimension = 64

// ChatMessage 对话请求中的一条消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCall 一次对话补全请求
type ChatCall struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	User     string        `json:"user"`
}

// FakeOpenAI 假的模型服务
type FakeOpenAI struct {
	server *httptest.Server

	mu    sync.Mutex
	calls []ChatCall
}

// NewFakeOpenAI 启动假的模型服务
func NewFakeOpenAI() *FakeOpenAI {
	f := &FakeOpenAI{}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/embeddings", f.embeddings)
	mux.HandleFunc("/v1/moderations", f.moderations)
	mux.HandleFunc("/v1/chat/completions", f.completions)
	f.server = httptest.NewServer(mux)
	return f
}

// URL 服务地址，不含 /v1
func (f *FakeOpenAI) URL() string {
	return f.server.URL
}

// Close 关闭服务
func (f *FakeOpenAI) Close() {
	f.server.Close()
}

// ChatCalls 已收到的对话请求
func (f *FakeOpenAI) ChatCalls() []ChatCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChatCall(nil), f.calls...)
}

func (f *FakeOpenAI) embeddings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input []string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	type item struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]item, len(req.Input))
	for i, text := range req.Input {
		data[i] = item{Index: i, Embedding: bagOfWords(text)}
	}
	writeJSON(w, map[string]any{"data": data, "model": "fake-embedding"})
}

func (f *FakeOpenAI) moderations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	flagged := strings.Contains(strings.ToLower(req.Input), FlagWord)
	writeJSON(w, map[string]any{
		"id":      "modr-fake",
		"results": []map[string]any{{"flagged": flagged}},
	})
}

func (f *FakeOpenAI) completions(w http.ResponseWriter, r *http.Request) {
	var call ChatCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()

	question := ""
	for i := len(call.Messages) - 1; i >= 0; i-- {
		if call.Messages[i].Role == "user" {
			question = call.Messages[i].Content
			break
		}
	}
	writeJSON(w, map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]string{"role": "assistant", "content": "  Hint for: " + question + "  "},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"total_tokens": 42},
	})
}

// bagOfWords 词袋哈希向量，相同用词的文本距离更近
func bagOfWords(text string) []float32 {
	v := make([]float64, fakeDimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,?!:;\"'()")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		v[h.Sum32()%fakeDimension]++
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	out := make([]float32, fakeDimension)
	if norm == 0 {
		out[0] = 1
		return out
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(x / norm)
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
