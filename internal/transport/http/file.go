package httptransport

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sandeshaa/backend/internal/middleware"
	"sandeshaa/backend/internal/security"
	"sandeshaa/backend/internal/service"
	"sandeshaa/backend/internal/storage"
)

// FileHandler 处理加密文件传输的 HTTP 请求
type FileHandler struct {
	files *service.FileService
	log   *zap.Logger
}

// NewFileHandler 创建文件处理器
func NewFileHandler(files *service.FileService, log *zap.Logger) *FileHandler {
	return &FileHandler{
		files: files,
		log:   log,
	}
}

type fileUploadResponse struct {
	FileID      string `json:"fileId"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
}

// Upload 接收发给指定收件人的加密文件
//
// multipart 表单：file 为文件内容，to 为收件人用户名。
func (h *FileHandler) Upload(c *gin.Context) {
	toUsername := c.PostForm("to")
	if toUsername == "" {
		BadRequest(c, "missing 'to' form field")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "missing 'file' form field")
		return
	}

	content, err := fileHeader.Open()
	if err != nil {
		h.log.Error("failed to open uploaded file", zap.Error(err))
		InternalError(c, MsgFileUploadFailed)
		return
	}
	defer content.Close()

	envelope, err := h.files.Upload(service.UploadInput{
		FromUserID:  middleware.UserID(c),
		ToUsername:  toUsername,
		Filename:    fileHeader.Filename,
		Size:        fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		var validationErr *security.ValidationError
		switch {
		case errors.Is(err, storage.ErrUserNotFound):
			NotFound(c, "recipient not found")
		case errors.As(err, &validationErr):
			BadRequest(c, validationErr.Error())
		default:
			h.log.Error("failed to store uploaded file", zap.Error(err))
			InternalError(c, MsgFileUploadFailed)
		}
		return
	}

	Created(c, fileUploadResponse{
		FileID:      envelope.ID,
		Filename:    envelope.Filename,
		Size:        envelope.Size,
		ContentType: envelope.ContentType,
	})
}

// Download 下载加密文件，仅发送方和收件人可访问
func (h *FileHandler) Download(c *gin.Context) {
	envelope, content, err := h.files.Download(c.Param("id"), middleware.UserID(c))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrFileEnvelopeNotFound):
			NotFound(c, MsgFileNotFound)
		case errors.Is(err, service.ErrFileAccessDenied):
			Forbidden(c, MsgFileAccessDenied)
		case errors.Is(err, service.ErrFileContentMissing):
			NotFound(c, MsgFileGone)
		default:
			h.log.Error("failed to open file", zap.Error(err))
			InternalError(c, MsgInternalError)
		}
		return
	}
	defer content.Close()

	// 文件下载不使用统一响应格式，直接返回二进制流
	c.Header("Content-Disposition", "attachment; filename=\""+envelope.Filename+"\"")
	c.Header("Content-Length", fmt.Sprintf("%d", envelope.Size))
	c.DataFromReader(http.StatusOK, envelope.Size, "application/octet-stream", content, nil)
}
