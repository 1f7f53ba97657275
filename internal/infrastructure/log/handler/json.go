package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// JSONHandler JSON 格式日志处理器
type JSONHandler struct {
	opts   *slog.HandlerOptions
	mu     *sync.Mutex
	enc    *json.Encoder
	attrs  []slog.Attr
	groups []string
}

// NewJSONHandler 创建 JSON 处理器
func NewJSONHandler(out io.Writer, opts *slog.HandlerOptions) *JSONHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &JSONHandler{
		opts: opts,
		mu:   &sync.Mutex{},
		enc:  json.NewEncoder(out),
	}
}

// Enabled 检查日志级别是否启用
func (h *JSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return enabled(h.opts, level)
}

// Handle 处理日志记录
func (h *JSONHandler) Handle(_ context.Context, r slog.Record) error {
	obj := make(map[string]any, 4+len(h.attrs)+r.NumAttrs())

	obj["time"] = r.Time.Format(time.RFC3339Nano)
	obj["level"] = r.Level.String()
	obj["msg"] = r.Message

	for _, a := range h.attrs {
		obj[a.Key] = jsonValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		a = qualify(h.groups, a)
		obj[a.Key] = jsonValue(a.Value)
		return true
	})

	if h.opts.AddSource && r.PC != 0 {
		if src := sourceOf(r); src != "" {
			obj["source"] = src
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enc.Encode(obj)
}

// WithAttrs 返回带有额外属性的处理器
func (h *JSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	clone.attrs = append(clone.attrs, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, qualify(h.groups, a))
	}
	return &clone
}

// WithGroup 返回带有分组的处理器
func (h *JSONHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

// jsonValue 把 slog.Value 转换为可编码的值，error 需要转为字符串
func jsonValue(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	case slog.KindGroup:
		m := make(map[string]any)
		for _, a := range v.Group() {
			m[a.Key] = jsonValue(a.Value)
		}
		return m
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.Any()
	}
}
