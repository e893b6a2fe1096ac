package service

import (
	"errors"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"sandeshaa/backend/internal/domain"
	"sandeshaa/backend/internal/security"
	"sandeshaa/backend/internal/storage"
)

var (
	// ErrFileAccessDenied 非发送方或收件人访问文件
	ErrFileAccessDenied = errors.New("file access denied")
	// ErrFileContentMissing 文件记录存在但内容已不在磁盘
	ErrFileContentMissing = errors.New("file content no longer available")
)

// BlobStore 文件内容存储接口
type BlobStore interface {
	Save(ext string, content io.Reader) (string, int64, error)
	Open(storedName string) (io.ReadCloser, error)
	Delete(storedName string) error
}

// FileService 封装加密文件传输逻辑。
//
// 内容与记录分离：密文落在 Blob 存储，元数据落在文件信封表。
// 收件人首次下载即视为投递完成。
type FileService struct {
	store   storage.Store
	blobs   BlobStore
	maxSize int64
	log     *zap.Logger
}

// NewFileService 创建文件业务服务。
func NewFileService(store storage.Store, blobs BlobStore, maxSize int64, log *zap.Logger) *FileService {
	return &FileService{
		store:   store,
		blobs:   blobs,
		maxSize: maxSize,
		log:     log,
	}
}

// UploadInput 定义文件上传的输入。
type UploadInput struct {
	FromUserID  string
	ToUsername  string
	Filename    string
	Size        int64
	ContentType string
	Content     io.Reader
}

// Upload 校验并保存一次文件投递
//
// 先落 Blob 再写记录；收件人解析失败或记录写入失败时回收
// 已落盘的 Blob，不留孤儿文件。
func (s *FileService) Upload(input UploadInput) (*domain.FileEnvelope, error) {
	if err := security.ValidateUpload(input.Filename, input.Size, s.maxSize); err != nil {
		return nil, err
	}

	recipient, err := s.store.GetUserByUsername(domain.NormalizeUsername(input.ToUsername))
	if err != nil {
		return nil, err
	}

	safeFilename := sanitizeFilename(input.Filename)
	ext, ok := security.SafeExtension(safeFilename)
	if !ok {
		return nil, security.NewValidationError("invalid filename")
	}

	storedName, size, err := s.blobs.Save(ext, input.Content)
	if err != nil {
		return nil, err
	}

	envelope := &domain.FileEnvelope{
		FromUserID:  input.FromUserID,
		ToUserID:    recipient.ID,
		Filename:    safeFilename,
		StoredName:  storedName,
		Size:        size,
		ContentType: input.ContentType,
	}

	if err := s.store.CreateFileEnvelope(envelope); err != nil {
		if cleanupErr := s.blobs.Delete(storedName); cleanupErr != nil {
			s.log.Warn("failed to clean up orphan blob",
				zap.String("stored_name", storedName),
				zap.Error(cleanupErr))
		}
		return nil, err
	}

	s.log.Info("file uploaded",
		zap.String("file_id", envelope.ID),
		zap.String("from", input.FromUserID),
		zap.String("to", recipient.ID),
		zap.Int64("size", size))

	return envelope, nil
}

// Download 打开文件内容供指定用户下载
//
// 仅发送方和收件人可访问。收件人成功打开内容后翻转 delivered
// 标志；标志写入失败只记日志，不阻塞下载。
func (s *FileService) Download(fileID, userID string) (*domain.FileEnvelope, io.ReadCloser, error) {
	envelope, err := s.store.GetFileEnvelope(fileID)
	if err != nil {
		return nil, nil, err
	}

	if envelope.ToUserID != userID && envelope.FromUserID != userID {
		return nil, nil, ErrFileAccessDenied
	}

	content, err := s.blobs.Open(envelope.StoredName)
	if err != nil {
		return nil, nil, ErrFileContentMissing
	}

	if envelope.ToUserID == userID && !envelope.Delivered {
		if err := s.store.MarkFileEnvelopeDelivered(envelope.ID); err != nil {
			s.log.Warn("failed to mark file envelope delivered",
				zap.String("file_id", envelope.ID),
				zap.Error(err))
		} else {
			envelope.Delivered = true
		}
	}

	return envelope, content, nil
}

// sanitizeFilename 清洗上传文件名，仅保留字母数字和 ._- 空格
func sanitizeFilename(filename string) string {
	base := filepath.Base(filename)

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-' || r == ' ':
			b.WriteRune(r)
		}
	}
	return b.String()
}
