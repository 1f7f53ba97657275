package handler

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
)

func enabled(opts *slog.HandlerOptions, level slog.Level) bool {
	if opts == nil || opts.Level == nil {
		return level >= slog.LevelInfo
	}
	return level >= opts.Level.Level()
}

// qualify 为属性加上分组前缀
func qualify(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		return a
	}
	a.Key = strings.Join(groups, ".") + "." + a.Key
	return a
}

func sourceOf(r slog.Record) string {
	frames := runtime.CallersFrames([]uintptr{r.PC})
	f, _ := frames.Next()
	if f.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}
