package extractor

import (
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// rtfSkippedDestinations 不含正文的 RTF 目标组
var rtfSkippedDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "header": true, "footer": true, "headerl": true, "headerr": true,
	"footerl": true, "footerr": true, "object": true, "datastore": true,
	"themedata": true, "latentstyles": true, "generator": true, "listtable": true,
	"listoverridetable": true, "rsidtbl": true, "xmlnstbl": true, "mmathPr": true,
	"filetbl": true, "revtbl": true, "fldinst": true,
}

type rtfGroup struct {
	skip bool
	uc   int // \u 之后需要跳过的替代字符数
}

// extractRTF 剥离 RTF 控制字，保留正文
func extractRTF(data []byte) outcome {
	s := string(data)
	if !strings.HasPrefix(strings.TrimSpace(s), "{\\rtf") {
		return failed("missing rtf header")
	}

	var b strings.Builder
	stack := []rtfGroup{{uc: 1}}
	pendingSkip := 0

	cur := func() *rtfGroup { return &stack[len(stack)-1] }
	emit := func(r rune) {
		if pendingSkip > 0 {
			pendingSkip--
			return
		}
		if !cur().skip {
			b.WriteRune(r)
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '{':
			stack = append(stack, *cur())
			pendingSkip = 0
		case '}':
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			pendingSkip = 0
		case '\r', '\n':
		case '\\':
			if i+1 >= len(s) {
				break
			}
			next := s[i+1]
			switch {
			case isASCIILetter(next):
				j := i + 1
				for j < len(s) && isASCIILetter(s[j]) {
					j++
				}
				word := s[i+1 : j]
				k := j
				if k < len(s) && (s[k] == '-' || isDigit(s[k])) {
					k++
					for k < len(s) && isDigit(s[k]) {
						k++
					}
				}
				param, hasParam := 0, k > j
				if hasParam {
					param, _ = strconv.Atoi(s[j:k])
				}
				if k < len(s) && s[k] == ' ' {
					k++
				}
				i = k - 1

				switch {
				case rtfSkippedDestinations[word]:
					cur().skip = true
				case word == "par" || word == "line" || word == "sect" || word == "page" || word == "row":
					emit('\n')
				case word == "tab" || word == "cell":
					emit('\t')
				case word == "emdash":
					emit('\u2014')
				case word == "endash":
					emit('\u2013')
				case word == "bullet":
					emit('\u2022')
				case word == "lquote" || word == "rquote":
					emit('\'')
				case word == "ldblquote" || word == "rdblquote":
					emit('"')
				case word == "uc" && hasParam:
					cur().uc = param
				case word == "u" && hasParam:
					if param < 0 {
						param += 65536
					}
					emit(rune(param))
					pendingSkip = cur().uc
				}
			case next == '\'':
				if i+3 < len(s) {
					if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
						emit(charmap.Windows1252.DecodeByte(byte(v)))
					}
				}
				i += 3
			case next == '*':
				cur().skip = true
				i++
			case next == '~':
				emit(' ')
				i++
			case next == '_':
				emit('-')
				i++
			case next == '\n' || next == '\r':
				emit('\n')
				i++
			case next == '\\' || next == '{' || next == '}':
				emit(rune(next))
				i++
			default:
				// \- 可选连字符等
				i++
			}
		default:
			emit(rune(c))
		}
	}

	return outcome{text: collapseBlankLines(b.String())}
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
