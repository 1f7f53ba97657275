// Package extractor 从上传的课程文件中提取纯文本
package extractor

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/coursebot/backend/internal/domain/document"
	"github.com/coursebot/backend/internal/infrastructure/log"
)

// Format 文件格式
type Format string

// 支持的格式
const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
	FormatText Format = "text"
	FormatHTML Format = "html"
	FormatRTF  Format = "rtf"
)

// suffixTable 按扩展名识别
var suffixTable = map[string]Format{
	".pdf":  FormatPDF,
	".docx": FormatDOCX,
	".pptx": FormatPPTX,
	".txt":  FormatText,
	".html": FormatHTML,
	".htm":  FormatHTML,
	".rtf":  FormatRTF,
}

// mimeTable 扩展名无法识别时按内容签名识别
var mimeTable = map[string]Format{
	"application/pdf": FormatPDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   FormatDOCX,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": FormatPPTX,
	"text/html":       FormatHTML,
	"text/rtf":        FormatRTF,
	"application/rtf": FormatRTF,
	"text/plain":      FormatText,
}

// Result 提取结果
type Result struct {
	Text   string
	Format Format
	MIME   string
}

// outcome 各格式处理器的统一返回值：成功时 text 非空，失败时 reason 非空
type outcome struct {
	text   string
	reason string
}

func failed(format string, args ...any) outcome {
	return outcome{reason: fmt.Sprintf(format, args...)}
}

type handlerFunc func(data []byte) outcome

// Extractor 文本提取器
type Extractor struct {
	handlers map[Format]handlerFunc
	logger   *slog.Logger
}

// New 创建文本提取器
func New() *Extractor {
	return &Extractor{
		handlers: map[Format]handlerFunc{
			FormatPDF:  extractPDF,
			FormatDOCX: extractDOCX,
			FormatPPTX: extractPPTX,
			FormatText: extractText,
			FormatHTML: extractHTML,
			FormatRTF:  extractRTF,
		},
		logger: log.NewModuleLogger("extractor", "dispatcher"),
	}
}

// Supports 文件名后缀是否在支持列表中
func (e *Extractor) Supports(filename string) bool {
	_, ok := suffixTable[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Detect 识别文件格式：先看扩展名，再看内容签名
func (e *Extractor) Detect(data []byte, filename string) (Format, string, bool) {
	detected := mimetype.Detect(data)

	if f, ok := suffixTable[strings.ToLower(filepath.Ext(filename))]; ok {
		return f, detected.String(), true
	}

	for m := detected; m != nil; m = m.Parent() {
		base, _, _ := strings.Cut(m.String(), ";")
		if f, ok := mimeTable[strings.TrimSpace(base)]; ok {
			return f, detected.String(), true
		}
	}
	return "", detected.String(), false
}

// Extract 识别格式并提取文本
func (e *Extractor) Extract(data []byte, filename string) (*Result, error) {
	format, mime, ok := e.Detect(data, filename)
	if !ok {
		e.logger.Warn("Unsupported file type",
			"source_name", filename,
			"mime", mime,
		)
		return nil, fmt.Errorf("%w: %s", document.ErrUnsupportedFormat, filename)
	}

	out := e.run(format, data)
	if out.reason != "" {
		e.logger.Warn("Text extraction failed",
			"source_name", filename,
			"format", format,
			"reason", out.reason,
		)
		return nil, fmt.Errorf("%w: %s", document.ErrEmptyExtraction, filename)
	}
	if strings.TrimSpace(out.text) == "" {
		e.logger.Warn("Text extraction produced no text",
			"source_name", filename,
			"format", format,
		)
		return nil, fmt.Errorf("%w: %s", document.ErrEmptyExtraction, filename)
	}

	e.logger.Debug("Text extracted",
		"source_name", filename,
		"format", format,
		"chars", len(out.text),
	)
	return &Result{Text: out.text, Format: format, MIME: mime}, nil
}

// run 调用处理器，处理器内部的 panic 转为失败结果
func (e *Extractor) run(format Format, data []byte) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed("%s handler panicked: %v", format, r)
		}
	}()
	return e.handlers[format](data)
}
