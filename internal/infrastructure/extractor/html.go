package extractor

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skippedElements 内容不属于正文的元素
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Head:     true,
	atom.Template: true,
	atom.Svg:      true,
}

// blockElements 结束时换行的块级元素
var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Pre: true, atom.Blockquote: true,
	atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Hr: true, atom.Title: true,
}

func extractHTML(data []byte) outcome {
	z := html.NewTokenizer(strings.NewReader(decodeText(data)))
	var b strings.Builder
	skipDepth := 0
	atLineStart := true

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return failed("parse html: %v", err)
			}
			return outcome{text: collapseBlankLines(b.String())}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedElements[a] && tt == html.StartTagToken {
				skipDepth++
			}
			if a == atom.Br || a == atom.Hr {
				b.WriteByte('\n')
				atLineStart = true
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedElements[a] && skipDepth > 0 {
				skipDepth--
				continue
			}
			if blockElements[a] {
				b.WriteByte('\n')
				atLineStart = true
			}

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			text := strings.Join(strings.Fields(string(z.Text())), " ")
			if text == "" {
				continue
			}
			if b.Len() > 0 && !atLineStart {
				b.WriteByte(' ')
			}
			b.WriteString(text)
			atLineStart = false
		}
	}
}

// collapseBlankLines 去掉行首尾空白并合并连续空行
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
