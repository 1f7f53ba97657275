package mcp

import (
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/coursebot/backend/internal/application/ingest"
	"github.com/coursebot/backend/internal/application/retrieval"
	"github.com/coursebot/backend/internal/infrastructure/log"
)

// MCPServer MCP 服务器，供编辑器或其他智能体查询课程资料
type MCPServer struct {
	server    *mcp.Server
	handler   http.Handler
	retriever *retrieval.Service
	ingest    *ingest.Service
	logger    *slog.Logger
}

// NewServer 创建 MCP 服务器
func NewServer(retriever *retrieval.Service, ingestSvc *ingest.Service) *MCPServer {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "coursebot",
			Version: "0.1.0",
		},
		nil,
	)

	mcpServer := &MCPServer{
		server:    server,
		retriever: retriever,
		ingest:    ingestSvc,
		logger:    log.NewModuleLogger("mcp", "server"),
	}

	mcp.AddTool(server, &mcp.Tool{
		Name: "search_course_materials",
		Description: `Search the uploaded course materials (syllabus, lecture notes, slides) for passages relevant to a question.
Parameters:
- query (string, required): What you are looking for, in natural language
- limit (int, optional): Maximum number of passages, defaults to 3, max 10

Returns: passages with their source document, chunk position and relevance.`,
	}, mcpServer.searchCourseMaterialsTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_course_documents",
		Description: "List the course documents currently in the index. No parameters required. Returns: document names, chunk counts, content types and ingestion times.",
	}, mcpServer.listCourseDocumentsTool)

	mcpServer.handler = mcp.NewSSEHandler(
		func(r *http.Request) *mcp.Server {
			return server
		},
		nil,
	)
	return mcpServer
}

// GetHandler 获取 HTTP Handler（挂载到 HTTP 服务器）
func (s *MCPServer) GetHandler() http.Handler {
	return s.handler
}
