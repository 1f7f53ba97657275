package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursebot/backend/internal/application/ingest"
	"github.com/coursebot/backend/internal/infrastructure/config"
	"github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/coursebot/backend/internal/interfaces/http/response"
)

// DocumentHandler 课程资料管理
type DocumentHandler struct {
	ingest   *ingest.Service
	maxBytes int64
	logger   *slog.Logger
}

// NewDocumentHandler 创建课程资料处理器
func NewDocumentHandler(svc *ingest.Service, cfg *config.ServerConfig) *DocumentHandler {
	return &DocumentHandler{
		ingest:   svc,
		maxBytes: cfg.MaxUploadBytes,
		logger:   log.NewModuleLogger("http", "document"),
	}
}

// UploadResponse 上传结果
type UploadResponse struct {
	Results []*ingest.Result `json:"results"`
}

// DeleteResponse 删除结果
type DeleteResponse struct {
	SourceName string `json:"source_name,omitempty"`
	Deleted    int    `json:"deleted"`
}

// readUpload 读取上传文件，超过大小上限时返回错误
func (h *DocumentHandler) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", errInvalidRequest, fh.Filename, h.maxBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Upload 上传课程资料
// @Summary 上传课程资料
// @Description 按顺序逐个入库，遇到第一个失败的文件即停止
// @Tags 课程资料
// @Accept multipart/form-data
// @Produce json
// @Security InstructorToken
// @Param files formData file true "课程资料文件，可多个"
// @Success 200 {object} response.Response{data=UploadResponse}
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, h.logger, err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		badRequest(c, h.logger, errors.New("no files uploaded"))
		return
	}

	ctx := c.Request.Context()
	results := make([]*ingest.Result, 0, len(files))
	for _, fh := range files {
		data, err := h.readUpload(fh)
		if err == nil {
			var res *ingest.Result
			res, err = h.ingest.Upload(ctx, data, fh.Filename)
			if err == nil {
				results = append(results, res)
				continue
			}
		}
		writeError(c, h.logger, fmt.Errorf("%s: %w", fh.Filename, err))
		return
	}

	response.Success(c, UploadResponse{Results: results})
}

// Update 替换课程资料内容
// @Summary 替换课程资料
// @Description 提供新文件或纯文本（二选一），旧的分块全部替换
// @Tags 课程资料
// @Accept multipart/form-data
// @Produce json
// @Security InstructorToken
// @Param name path string true "文档名"
// @Param file formData file false "新文件"
// @Param content formData string false "新的纯文本内容"
// @Success 200 {object} response.Response{data=ingest.Result}
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /documents/{name} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	var in ingest.UpdateInput

	fh, err := c.FormFile("file")
	switch {
	case err == nil:
		data, err := h.readUpload(fh)
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		in.Data = data
		in.DataFilename = fh.Filename
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		badRequest(c, h.logger, err)
		return
	}
	in.RawText = c.PostForm("content")

	res, err := h.ingest.UpdateSource(c.Request.Context(), c.Param("name"), in)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, res)
}

// Delete 删除一份课程资料
// @Summary 删除课程资料
// @Tags 课程资料
// @Produce json
// @Security InstructorToken
// @Param name path string true "文档名"
// @Success 200 {object} response.Response{data=DeleteResponse}
// @Failure 404 {object} response.ErrorResponse
// @Router /documents/{name} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	name := c.Param("name")
	n, err := h.ingest.DeleteSource(c.Request.Context(), name)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, DeleteResponse{SourceName: ingest.SourceName(name), Deleted: n})
}

// DeleteAll 清空课程资料
// @Summary 清空全部课程资料
// @Tags 课程资料
// @Produce json
// @Security InstructorToken
// @Success 200 {object} response.Response{data=DeleteResponse}
// @Router /documents [delete]
func (h *DocumentHandler) DeleteAll(c *gin.Context) {
	n, err := h.ingest.DeleteAll(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, DeleteResponse{Deleted: n})
}

// List 列出课程资料
// @Summary 课程资料列表
// @Tags 课程资料
// @Produce json
// @Success 200 {object} response.Response{data=[]document.SourceSummary}
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	sources, err := h.ingest.ListSources(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	response.Success(c, sources)
}
