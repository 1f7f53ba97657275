package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/coursebot/backend/internal/infrastructure/log"
)

const (
	defaultSearchLimit = 3
	maxSearchLimit     = 10
	maxPassageRunes    = 1200
)

// SearchMaterialsInput 课程资料检索输入
type SearchMaterialsInput struct {
	Query string `json:"query" jsonschema:"What you are looking for, in natural language (required)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of passages to return, defaults to 3, max 10"`
}

// SearchMaterialsOutput 课程资料检索输出
type SearchMaterialsOutput struct {
	Results    []*MaterialPassage `json:"results" jsonschema:"Relevant passages, closest first"`
	TotalCount int                `json:"total_count" jsonschema:"Number of passages returned"`
}

// MaterialPassage 一段检索到的资料
type MaterialPassage struct {
	SourceName string `json:"source_name" jsonschema:"Document the passage comes from"`
	ChunkIndex int    `json:"chunk_index" jsonschema:"Position of the passage inside the document"`
	Text       string `json:"text" jsonschema:"Passage text"`
	Relevance  string `json:"relevance" jsonschema:"Relevance level: high/medium/low"`
}

// searchCourseMaterialsTool 检索课程资料
func (s *MCPServer) searchCourseMaterialsTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input SearchMaterialsInput,
) (*mcp.CallToolResult, SearchMaterialsOutput, error) {
	output := SearchMaterialsOutput{Results: []*MaterialPassage{}}

	if strings.TrimSpace(input.Query) == "" {
		return nil, output, fmt.Errorf("query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	for _, r := range s.retriever.Retrieve(ctx, input.Query, limit) {
		output.Results = append(output.Results, &MaterialPassage{
			SourceName: r.Metadata.SourceName,
			ChunkIndex: r.Metadata.ChunkIndex,
			Text:       truncatePassage(r.Text, maxPassageRunes),
			Relevance:  distanceToRelevance(r.Distance),
		})
	}
	output.TotalCount = len(output.Results)

	log.FromContext(ctx, s.logger).Debug("MCP search served",
		"query_len", len(input.Query),
		"results", output.TotalCount,
	)
	return nil, output, nil
}

// ListDocumentsInput 文档列表输入（空输入）
type ListDocumentsInput struct{}

// ListDocumentsOutput 文档列表输出
type ListDocumentsOutput struct {
	Documents  []*CourseDocument `json:"documents" jsonschema:"Documents in the index"`
	TotalCount int               `json:"total_count" jsonschema:"Number of documents"`
}

// CourseDocument 一份课程资料
type CourseDocument struct {
	SourceName  string `json:"source_name" jsonschema:"Document name"`
	ChunkCount  int    `json:"chunk_count" jsonschema:"Number of indexed chunks"`
	ContentType string `json:"content_type,omitempty" jsonschema:"Detected format"`
	IngestedAgo string `json:"ingested_ago" jsonschema:"When the document was ingested (e.g. '2 days ago')"`
}

// listCourseDocumentsTool 列出课程资料
func (s *MCPServer) listCourseDocumentsTool(
	ctx context.Context,
	req *mcp.CallToolRequest,
	input ListDocumentsInput,
) (*mcp.CallToolResult, ListDocumentsOutput, error) {
	output := ListDocumentsOutput{Documents: []*CourseDocument{}}

	sources, err := s.ingest.ListSources(ctx)
	if err != nil {
		return nil, output, fmt.Errorf("failed to list documents: %w", err)
	}
	for _, src := range sources {
		output.Documents = append(output.Documents, &CourseDocument{
			SourceName:  src.SourceName,
			ChunkCount:  src.ChunkCount,
			ContentType: src.ContentType,
			IngestedAgo: formatTimeAgo(src.IngestedAt),
		})
	}
	output.TotalCount = len(output.Documents)
	return nil, output, nil
}

// truncatePassage 截断到指定字符数，尽量在空白处断开
func truncatePassage(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	truncated := runes[:maxRunes]
	for i := len(truncated) - 1; i >= maxRunes-40 && i > 0; i-- {
		if truncated[i] == ' ' || truncated[i] == '\n' {
			return string(truncated[:i]) + "..."
		}
	}
	return string(truncated) + "..."
}

// distanceToRelevance 余弦距离转换为相关性等级
func distanceToRelevance(distance float64) string {
	similarity := 1 - distance
	if similarity >= 0.7 {
		return "high"
	}
	if similarity >= 0.4 {
		return "medium"
	}
	return "low"
}

// formatTimeAgo 格式化为相对时间
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}

	duration := time.Since(t)
	switch {
	case duration < time.Hour:
		mins := int(duration.Minutes())
		if mins <= 1 {
			return "just now"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02")
	}
}
