package chunker

import "strings"

// recursiveSplitter 优先使用能让片段不超过 size 的最大分隔单位，再把相邻片段合并回 size 以内
type recursiveSplitter struct {
	size       int
	overlap    int
	separators []string
	length     func(string) int
}

func (s *recursiveSplitter) split(text string) []string {
	var out []string
	for _, chunk := range s.splitWith(text, s.separators) {
		if c := strings.TrimSpace(chunk); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (s *recursiveSplitter) splitWith(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	// 分隔符保留在前一片段末尾，合并时无需再插入
	var pieces []string
	if separator == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.SplitAfter(text, separator)
	}

	var final, good []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if s.length(p) <= s.size {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			final = append(final, p)
		} else {
			final = append(final, s.splitWith(p, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge 把小片段拼接到 size 以内，新块开头保留上一块末尾不超过 overlap 的片段
func (s *recursiveSplitter) merge(pieces []string) []string {
	var docs []string
	var current []string
	total := 0

	for _, p := range pieces {
		l := s.length(p)
		if total+l > s.size && len(current) > 0 {
			docs = append(docs, strings.Join(current, ""))
			for total > s.overlap || (total+l > s.size && total > 0) {
				total -= s.length(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l
	}
	if len(current) > 0 {
		docs = append(docs, strings.Join(current, ""))
	}
	return docs
}
